//go:build !tinygo

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"keypanel/app"
	"keypanel/discovery"
	"keypanel/hal"
	"keypanel/internal/buildinfo"
	"keypanel/internal/config"
	"keypanel/keypad"
	"keypanel/mqtt"
	"keypanel/transport"
)

const passwordEnv = "KEYPANEL_MQTT_PASSWORD"

type flags struct {
	config      string
	broker      string
	transport   string
	engine      string
	clientID    string
	username    string
	askPassword bool
	discover    bool
	logLevel    string

	headless bool
	hz       int
	ticks    uint64
	trace    bool
	scale    int
}

func main() {
	if err := rootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	var f flags
	root := &cobra.Command{
		Use:   "keypanel",
		Short: "Keypad control panel for Home Assistant over MQTT",
		Long: `keypanel runs the panel firmware against a simulated keypad.

Each pad is a Home Assistant light (<client id>/led/cmd/<key>) and each button
a device trigger (<client id>/button/state/<key>). Keys 0-9 and a-f, or the
mouse, press the simulated buttons.

The broker password is read from ` + passwordEnv + `, or prompted for with
--ask-password.`,
		Version:      buildinfo.Short(),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, f)
		},
	}

	fl := root.Flags()
	fl.StringVarP(&f.config, "config", "c", "", "YAML config file")
	fl.StringVarP(&f.broker, "broker", "b", "", "broker host[:port]")
	fl.StringVar(&f.transport, "transport", "", "broker transport ("+strings.Join(transport.Kinds(), ", ")+")")
	fl.StringVar(&f.engine, "engine", "", "protocol engine ("+strings.Join(mqtt.Engines(), ", ")+")")
	fl.StringVar(&f.clientID, "client-id", "", "MQTT client id (topic root); \"auto\" generates one")
	fl.StringVarP(&f.username, "username", "u", "", "broker username")
	fl.BoolVar(&f.askPassword, "ask-password", false, "prompt for the broker password")
	fl.BoolVar(&f.discover, "discover", false, "find the broker over mDNS ("+discovery.Service+")")
	fl.StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error")
	fl.BoolVar(&f.headless, "headless", false, "run without a window")
	fl.IntVar(&f.hz, "hz", 60, "poll rate in headless mode")
	fl.Uint64Var(&f.ticks, "ticks", 0, "stop after N ticks in headless mode (0 = run forever)")
	fl.BoolVar(&f.trace, "trace", false, "log pad colours on every frame in headless mode")
	fl.IntVar(&f.scale, "scale", 2, "window scale")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "keypanel", buildinfo.String())
		},
	})
	return root
}

func run(cmd *cobra.Command, f flags) error {
	cfg, err := config.Load(f.config)
	if err != nil {
		return err
	}
	if err := applyFlags(cfg, f); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if cfg.Broker.Host == "" && cfg.Broker.Discover {
		b, err := discovery.Lookup(ctx, 5*time.Second)
		if err != nil {
			return err
		}
		if err := setBroker(&cfg.Broker, b.Addr); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "using broker %s (%s)\n", b.Addr, b.Name)
	}

	if cfg.Broker.ClientID == "" {
		cfg.Broker.ClientID = config.NewClientID()
	}
	if cfg.Broker.Password == "" {
		if cfg.Broker.Password, err = password(f.askPassword); err != nil {
			return err
		}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	h := hal.New()
	s, err := app.New(h, cfg)
	if err != nil {
		return err
	}
	if err := s.Start(); err != nil {
		return err
	}

	if f.headless {
		err := hal.RunHeadless(ctx, h, hal.HeadlessConfig{Hz: f.hz, Ticks: f.ticks, Trace: f.trace})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	return hal.RunWindow(h, hal.WindowConfig{
		Title:    "keypanel " + cfg.Broker.ClientID,
		Scale:    f.scale,
		KeyIndex: keypad.Index,
		Status: func() string {
			return s.Status() + "  " + cfg.Broker.Addr()
		},
	})
}

func applyFlags(cfg *config.Config, f flags) error {
	if f.broker != "" {
		if err := setBroker(&cfg.Broker, f.broker); err != nil {
			return err
		}
	}
	if f.transport != "" {
		cfg.Broker.Transport = f.transport
	}
	if f.engine != "" {
		cfg.Broker.Engine = f.engine
	}
	switch f.clientID {
	case "":
	case "auto":
		cfg.Broker.ClientID = config.NewClientID()
	default:
		cfg.Broker.ClientID = f.clientID
	}
	if f.username != "" {
		cfg.Broker.Username = f.username
	}
	if f.discover {
		cfg.Broker.Discover = true
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	return nil
}

// setBroker accepts host or host:port.
func setBroker(b *config.Broker, addr string) error {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		b.Host = addr
		return nil
	}
	p, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("broker %q: bad port: %w", addr, err)
	}
	b.Host, b.Port = host, p
	return nil
}

func password(ask bool) (string, error) {
	if pw := os.Getenv(passwordEnv); pw != "" {
		return pw, nil
	}
	if !ask {
		return "", nil
	}

	fmt.Fprint(os.Stderr, "Broker password: ")
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		pw, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(pw), nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimSpace(line), nil
}
