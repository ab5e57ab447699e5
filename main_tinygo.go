//go:build tinygo

package main

import (
	"keypanel/app"
	"keypanel/hal"
	"keypanel/internal/config"
)

// Broker settings are baked in at build time, e.g.
// -ldflags "-X main.brokerHost=192.168.1.10".
var (
	brokerHost     string
	brokerUsername string
	brokerPassword string
)

func main() {
	h := hal.New()
	cfg := config.Default()
	cfg.Broker.Host = brokerHost
	cfg.Broker.Username = brokerUsername
	cfg.Broker.Password = brokerPassword
	if err := cfg.Validate(); err != nil {
		h.Logger().WriteLineString("keypanel: " + err.Error())
	}
	app.Run(h, cfg)
}
