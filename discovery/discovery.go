//go:build !tinygo

// Package discovery finds an MQTT broker on the local network over mDNS.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/hashicorp/mdns"
)

// Service is the mDNS service type brokers advertise.
const Service = "_mqtt._tcp"

var ErrNotFound = errors.New("discovery: no broker found")

// Broker is one discovered broker.
type Broker struct {
	Name string
	Addr string // host:port
	TXT  []string
}

// Lookup returns the first broker answering within timeout.
func Lookup(ctx context.Context, timeout time.Duration) (Broker, error) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	entries := make(chan *mdns.ServiceEntry, 4)
	errc := make(chan error, 1)
	go func() {
		defer close(entries)
		errc <- mdns.Query(&mdns.QueryParam{
			Service:     Service,
			Domain:      "local",
			Timeout:     timeout,
			Entries:     entries,
			DisableIPv6: true,
		})
	}()

	for {
		select {
		case <-ctx.Done():
			return Broker{}, ctx.Err()
		case e, ok := <-entries:
			if !ok {
				if err := <-errc; err != nil {
					return Broker{}, fmt.Errorf("discovery: query: %w", err)
				}
				return Broker{}, ErrNotFound
			}
			b, err := fromEntry(e)
			if err != nil {
				slog.Debug("skipping mdns entry", "name", e.Name, "err", err)
				continue
			}
			slog.Info("discovered broker", "name", b.Name, "addr", b.Addr)
			return b, nil
		}
	}
}

func fromEntry(e *mdns.ServiceEntry) (Broker, error) {
	if e == nil {
		return Broker{}, ErrNotFound
	}
	var host string
	switch {
	case e.AddrV4 != nil:
		host = e.AddrV4.String()
	case e.AddrV6 != nil:
		host = e.AddrV6.String()
	default:
		return Broker{}, fmt.Errorf("discovery: %s: no address", e.Name)
	}
	if e.Port <= 0 {
		return Broker{}, fmt.Errorf("discovery: %s: no port", e.Name)
	}
	return Broker{
		Name: e.Name,
		Addr: net.JoinHostPort(host, strconv.Itoa(e.Port)),
		TXT:  e.InfoFields,
	}, nil
}
