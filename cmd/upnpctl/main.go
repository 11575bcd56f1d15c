// Command upnpctl is a UPnP control point for the command line.
//
// It discovers media devices on the local network, loads their
// descriptions, and exposes their services for action invocation and
// event subscription, either scripted or through an interactive shell.
//
// Usage:
//
//	upnpctl [flags]
//
// Flags:
//
//	-config string        Configuration file path (YAML)
//	-targets string       Comma separated device type URNs to discover
//	-log-level string     Log level: debug, info, warn, error (default "info")
//	-interactive          Enable interactive command mode
//	-protocol-log string  Write protocol log events to this file (CBOR)
//	-message-log string   SOAP envelope capture: none, body, response, all
//	-search-interval int  Re-send search every n seconds (0 disables)
//
// Examples:
//
//	# Interactive control point with default targets
//	upnpctl -interactive
//
//	# Discover OpenHome renderers only, with full protocol logging
//	upnpctl -targets urn:av-openhome-org:device:Source:1 \
//	        -protocol-log session.ulog -message-log all -interactive
//
//	# Analyze a recorded session
//	upnp-log view session.ulog
//
// Interactive Commands:
//
//	search                  - Re-send the device search
//	devices                 - List discovered devices
//	services <device>       - List a device's services
//	invoke <device> <service> <action> [arg=value ...] - Invoke an action
//	subscribe <device> <service>   - Subscribe to service events
//	unsubscribe <device> <service> - Cancel a subscription
//	play/pause/stop <device>       - Transport shortcuts
//	volume <device> [0-100]        - Show or set volume
//	browse <device> [object-id]    - Browse a media server
//	status                  - Show control point status
//	quit                    - Exit
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/katoemba/upnp-go/cmd/upnpctl/interactive"
	"github.com/katoemba/upnp-go/pkg/log"
	"github.com/katoemba/upnp-go/pkg/profiles"
	"github.com/katoemba/upnp-go/pkg/soap"
	"github.com/katoemba/upnp-go/pkg/upnp"
)

// Config holds the control point configuration. Values from the
// configuration file are overridden by flags given on the command line.
type Config struct {
	Targets        []string `yaml:"targets"`
	LogLevel       string   `yaml:"log_level"`
	ProtocolLog    string   `yaml:"protocol_log"`
	MessageLog     string   `yaml:"message_log"`
	EventPortFrom  int      `yaml:"event_port_from"`
	EventPortTo    int      `yaml:"event_port_to"`
	SubSeconds     int      `yaml:"subscription_seconds"`
	SearchInterval int      `yaml:"search_interval_seconds"`

	Interactive bool `yaml:"-"`
}

var (
	config     Config
	configFile string
	targetsCSV string
)

func init() {
	flag.StringVar(&configFile, "config", "", "Configuration file path (YAML)")
	flag.StringVar(&targetsCSV, "targets", "", "Comma separated device type URNs to discover")
	flag.StringVar(&config.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.BoolVar(&config.Interactive, "interactive", false, "Enable interactive command mode")
	flag.StringVar(&config.ProtocolLog, "protocol-log", "", "Write protocol log events to this file (CBOR)")
	flag.StringVar(&config.MessageLog, "message-log", "", "SOAP envelope capture: none, body, response, all")
	flag.IntVar(&config.EventPortFrom, "event-port-from", 0, "Lower bound of the event callback port range")
	flag.IntVar(&config.EventPortTo, "event-port-to", 0, "Upper bound of the event callback port range")
	flag.IntVar(&config.SubSeconds, "subscription-seconds", 0, "Subscription duration requested from devices")
	flag.IntVar(&config.SearchInterval, "search-interval", 0, "Re-send search every n seconds (0 disables)")
}

func main() {
	flag.Parse()

	if err := loadConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	messageLog, err := soap.ParseMessageLog(config.MessageLog)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// The interactive shell owns the terminal; log output has to go
	// through its writer to not garble the prompt.
	var shell *interactive.ControlPoint
	consoleOut := io.Writer(os.Stderr)
	if config.Interactive {
		shell, err = interactive.New()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		consoleOut = shell.Stdout()
	}

	console := slog.New(slog.NewTextHandler(consoleOut, &slog.HandlerOptions{
		Level: parseLogLevel(config.LogLevel),
	}))
	slog.SetDefault(console)

	sessionID := uuid.NewString()
	logger, closeLog, err := buildProtocolLogger(console, sessionID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	console.Info("upnpctl starting",
		"session_id", sessionID,
		"targets", strings.Join(config.Targets, ","))

	registry := upnp.NewRegistry(upnp.Config{
		SearchTargets:       config.Targets,
		Factories:           profiles.Factories(),
		Logger:              logger,
		MessageLog:          messageLog,
		EventPortFrom:       config.EventPortFrom,
		EventPortTo:         config.EventPortTo,
		SubscriptionTimeout: time.Duration(config.SubSeconds) * time.Second,
		OnDeviceAdded: func(dev *upnp.Device) {
			console.Info("device added",
				"name", dev.FriendlyName(),
				"model", dev.ModelName(),
				"id", dev.ID())
		},
		OnDeviceRemoved: func(dev *upnp.Device) {
			console.Info("device removed",
				"name", dev.FriendlyName(),
				"id", dev.ID())
		},
	})

	if err := registry.StartDiscovery(); err != nil {
		console.Error("failed to start discovery", "err", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if config.SearchInterval > 0 {
		go searchLoop(ctx, registry, time.Duration(config.SearchInterval)*time.Second)
	}

	if shell != nil {
		go shell.Run(ctx, cancel, registry)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		console.Info("received signal", "signal", sig.String())
	case <-ctx.Done():
	}

	console.Info("shutting down")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	if err := registry.StopDiscovery(stopCtx); err != nil {
		console.Error("error stopping discovery", "err", err)
	}
}

// loadConfig reads the configuration file, then lets command line flags
// override the values that were explicitly given.
func loadConfig() error {
	flagged := Config{
		LogLevel:       config.LogLevel,
		ProtocolLog:    config.ProtocolLog,
		MessageLog:     config.MessageLog,
		EventPortFrom:  config.EventPortFrom,
		EventPortTo:    config.EventPortTo,
		SubSeconds:     config.SubSeconds,
		SearchInterval: config.SearchInterval,
	}

	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			return fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return fmt.Errorf("parsing config file: %w", err)
		}
	}

	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if set["log-level"] {
		config.LogLevel = flagged.LogLevel
	}
	if set["protocol-log"] {
		config.ProtocolLog = flagged.ProtocolLog
	}
	if set["message-log"] {
		config.MessageLog = flagged.MessageLog
	}
	if set["event-port-from"] {
		config.EventPortFrom = flagged.EventPortFrom
	}
	if set["event-port-to"] {
		config.EventPortTo = flagged.EventPortTo
	}
	if set["subscription-seconds"] {
		config.SubSeconds = flagged.SubSeconds
	}
	if set["search-interval"] {
		config.SearchInterval = flagged.SearchInterval
	}
	if targetsCSV != "" {
		config.Targets = nil
		for _, t := range strings.Split(targetsCSV, ",") {
			if t = strings.TrimSpace(t); t != "" {
				config.Targets = append(config.Targets, t)
			}
		}
	}
	return nil
}

// buildProtocolLogger assembles the protocol logger: file capture when
// configured, console mirroring at debug level, and session stamping.
func buildProtocolLogger(console *slog.Logger, sessionID string) (log.Logger, func(), error) {
	var loggers []log.Logger

	closeLog := func() {}
	if config.ProtocolLog != "" {
		fileLogger, err := log.NewFileLogger(config.ProtocolLog)
		if err != nil {
			return nil, nil, fmt.Errorf("opening protocol log: %w", err)
		}
		loggers = append(loggers, fileLogger)
		closeLog = func() { fileLogger.Close() }
	}
	if strings.EqualFold(config.LogLevel, "debug") {
		loggers = append(loggers, log.NewSlogAdapter(console))
	}

	if len(loggers) == 0 {
		return log.NoopLogger{}, closeLog, nil
	}
	return &sessionLogger{
		sessionID: sessionID,
		inner:     log.NewMultiLogger(loggers...),
	}, closeLog, nil
}

// sessionLogger stamps every event with the control point's session ID.
type sessionLogger struct {
	sessionID string
	inner     log.Logger
}

func (l *sessionLogger) Log(event log.Event) {
	if event.SessionID == "" {
		event.SessionID = l.sessionID
	}
	l.inner.Log(event)
}

func searchLoop(ctx context.Context, registry *upnp.Registry, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			registry.Search()
		}
	}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
