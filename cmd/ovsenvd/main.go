package main

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"git.sr.ht/~spc/go-log"
	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/ovsenv/ovsenv"
	"github.com/ovsenv/ovsenv/internal/bus"
	internal "github.com/ovsenv/ovsenv/internal/cli"
	"github.com/ovsenv/ovsenv/internal/config"
	"github.com/ovsenv/ovsenv/internal/inventory"
	"github.com/ovsenv/ovsenv/internal/journal"
	"github.com/ovsenv/ovsenv/internal/metrics"
	"github.com/ovsenv/ovsenv/internal/transport"
	"github.com/ovsenv/ovsenv/internal/watch"
	"github.com/urfave/cli/v2"
	"github.com/urfave/cli/v2/altsrc"
	"golang.org/x/crypto/openpgp"
)

func main() {
	app := cli.NewApp()
	app.Name = "ovsenvd"
	app.Version = ovsenv.Version
	app.Usage = "monitor the directory environment of an Open vSwitch installation"

	defaultConfigFilePath, err := config.Path()
	if err != nil {
		log.Fatal(err)
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:      "config",
			Value:     defaultConfigFilePath,
			TakesFile: true,
			Usage:     "Read config values from `FILE`",
		},
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:  config.FlagNameLogLevel,
			Value: "info",
			Usage: "Set the logging output level to `LEVEL`",
		}),
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:  config.FlagNameClientID,
			Usage: "Identify the agent to the server as `ID`",
		}),
		altsrc.NewStringSliceFlag(&cli.StringSliceFlag{
			Name:  config.FlagNameServer,
			Usage: "Connect to the server at `URI`",
		}),
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:      config.FlagNameCertFile,
			TakesFile: true,
			Usage:     "Use `FILE` as the client certificate",
		}),
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:      config.FlagNameKeyFile,
			TakesFile: true,
			Usage:     "Use `FILE` as the client certificate key",
		}),
		altsrc.NewStringSliceFlag(&cli.StringSliceFlag{
			Name:      config.FlagNameCaRoot,
			TakesFile: true,
			Usage:     "Add `FILE` to the list of CA root certificates",
		}),
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:  config.FlagNamePathPrefix,
			Value: ovsenv.PathPrefix,
			Usage: "Prefix HTTP request paths with `PREFIX`",
		}),
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:  config.FlagNameProtocol,
			Usage: "Connect using `PROTOCOL` (mqtt, http or none)",
		}),
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:      config.FlagNameFactsFile,
			TakesFile: true,
			Usage:     "Read facts from `FILE` instead of collecting them",
		}),
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:      config.FlagNameTagsFile,
			TakesFile: true,
			Usage:     "Read tags from `FILE`",
		}),
		altsrc.NewDurationFlag(&cli.DurationFlag{
			Name:  config.FlagNameScanInterval,
			Value: config.DefaultConfig.ScanInterval,
			Usage: "Scan directories every `DURATION`",
		}),
		altsrc.NewStringSliceFlag(&cli.StringSliceFlag{
			Name:  config.FlagNameDatabasePattern,
			Value: cli.NewStringSlice(config.DefaultConfig.DatabasePatterns...),
			Usage: "Treat files matching `PATTERN` as databases",
		}),
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:      config.FlagNameJournal,
			TakesFile: true,
			Usage:     "Record observed events in a journal at `FILE`",
		}),
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:      config.FlagNamePublicKey,
			TakesFile: true,
			Usage:     "Require commands to be signed by a key in `FILE`",
		}),
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:  config.FlagNameMetricsAddr,
			Usage: "Listen on `ADDR` for metrics requests",
		}),
		altsrc.NewIntFlag(&cli.IntFlag{
			Name:  config.FlagNameHTTPRetries,
			Value: config.DefaultConfig.HTTPRetries,
			Usage: "Retry failed HTTP requests `N` times",
		}),
		altsrc.NewDurationFlag(&cli.DurationFlag{
			Name:  config.FlagNameHTTPTimeout,
			Value: config.DefaultConfig.HTTPTimeout,
			Usage: "Cancel HTTP requests after `DURATION`",
		}),
		altsrc.NewDurationFlag(&cli.DurationFlag{
			Name:  config.FlagNamePollingInterval,
			Value: config.DefaultConfig.PollingInterval,
			Usage: "Poll for messages every `DURATION` when connected over HTTP",
		}),
		altsrc.NewBoolFlag(&cli.BoolFlag{
			Name:  config.FlagNameMQTTConnectRetry,
			Usage: "Retry the initial MQTT connection until it succeeds",
		}),
		altsrc.NewDurationFlag(&cli.DurationFlag{
			Name:  config.FlagNameMQTTConnectRetryInterval,
			Value: config.DefaultConfig.MQTTConnectRetryInterval,
			Usage: "Wait `DURATION` between MQTT connection attempts",
		}),
		altsrc.NewBoolFlag(&cli.BoolFlag{
			Name:  config.FlagNameMQTTAutoReconnect,
			Value: config.DefaultConfig.MQTTAutoReconnect,
			Usage: "Reconnect automatically when the MQTT connection drops",
		}),
		altsrc.NewDurationFlag(&cli.DurationFlag{
			Name:  config.FlagNameMQTTReconnectDelay,
			Value: config.DefaultConfig.MQTTReconnectDelay,
			Usage: "Wait `DURATION` before attempting to reconnect",
		}),
		altsrc.NewDurationFlag(&cli.DurationFlag{
			Name:  config.FlagNameMQTTConnectTimeout,
			Value: config.DefaultConfig.MQTTConnectTimeout,
			Usage: "Give up establishing an MQTT connection after `DURATION`",
		}),
		altsrc.NewDurationFlag(&cli.DurationFlag{
			Name:  config.FlagNameMQTTPublishTimeout,
			Value: config.DefaultConfig.MQTTPublishTimeout,
			Usage: "Give up publishing an MQTT message after `DURATION`",
		}),
		&cli.BoolFlag{
			Name:   "generate-man-page",
			Hidden: true,
		},
		&cli.BoolFlag{
			Name:   "generate-markdown",
			Hidden: true,
		},
	}

	// This BeforeFunc will load flag values from a config file only if the
	// "config" flag value is non-zero.
	app.Before = func(c *cli.Context) error {
		filePath := c.String("config")
		if filePath != "" {
			inputSource, err := altsrc.NewTomlSourceFromFile(filePath)
			if err != nil {
				return err
			}
			return altsrc.ApplyInputSourceValues(c, inputSource, app.Flags)
		}
		return nil
	}

	app.Action = func(c *cli.Context) error {
		if c.Bool("generate-man-page") || c.Bool("generate-markdown") {
			type GenerationFunc func() (string, error)
			var generationFunc GenerationFunc
			if c.Bool("generate-man-page") {
				generationFunc = c.App.ToMan
			} else if c.Bool("generate-markdown") {
				generationFunc = c.App.ToMarkdown
			}
			data, err := generationFunc()
			if err != nil {
				return err
			}
			fmt.Println(data)
			return nil
		}
		level, err := log.ParseLevel(c.String(config.FlagNameLogLevel))
		if err != nil {
			return cli.Exit(err, 1)
		}
		log.SetLevel(level)
		log.SetPrefix(fmt.Sprintf("[%v] ", app.Name))

		config.DefaultConfig = config.Config{
			LogLevel:                 c.String(config.FlagNameLogLevel),
			ClientID:                 c.String(config.FlagNameClientID),
			Server:                   c.StringSlice(config.FlagNameServer),
			CertFile:                 c.String(config.FlagNameCertFile),
			KeyFile:                  c.String(config.FlagNameKeyFile),
			CARoot:                   c.StringSlice(config.FlagNameCaRoot),
			PathPrefix:               c.String(config.FlagNamePathPrefix),
			Protocol:                 c.String(config.FlagNameProtocol),
			FactsFile:                c.String(config.FlagNameFactsFile),
			TagsFile:                 c.String(config.FlagNameTagsFile),
			ScanInterval:             c.Duration(config.FlagNameScanInterval),
			DatabasePatterns:         c.StringSlice(config.FlagNameDatabasePattern),
			Journal:                  c.String(config.FlagNameJournal),
			PublicKey:                c.String(config.FlagNamePublicKey),
			MetricsAddr:              c.String(config.FlagNameMetricsAddr),
			HTTPRetries:              c.Int(config.FlagNameHTTPRetries),
			HTTPTimeout:              c.Duration(config.FlagNameHTTPTimeout),
			PollingInterval:          c.Duration(config.FlagNamePollingInterval),
			MQTTConnectRetry:         c.Bool(config.FlagNameMQTTConnectRetry),
			MQTTConnectRetryInterval: c.Duration(config.FlagNameMQTTConnectRetryInterval),
			MQTTAutoReconnect:        c.Bool(config.FlagNameMQTTAutoReconnect),
			MQTTReconnectDelay:       c.Duration(config.FlagNameMQTTReconnectDelay),
			MQTTConnectTimeout:       c.Duration(config.FlagNameMQTTConnectTimeout),
			MQTTPublishTimeout:       c.Duration(config.FlagNameMQTTPublishTimeout),
		}
		if config.DefaultConfig.PathPrefix != "" {
			ovsenv.PathPrefix = config.DefaultConfig.PathPrefix
		}

		// The layout is resolved exactly once. Every subsystem receives this
		// value; none consult the environment afterwards.
		dirs := ovsenv.DirsFromEnvironment()
		log.Infof("resolved directories: pkgdatadir=%v rundir=%v logdir=%v bindir=%v dbdir=%v",
			dirs.PackageDataDir, dirs.RunDir, dirs.LogDir, dirs.BinDir, dirs.DbDir)

		facts, err := getFacts(config.DefaultConfig.FactsFile)
		if err != nil {
			return cli.Exit(fmt.Errorf("cannot get facts: %w", err), 1)
		}

		clientID := config.DefaultConfig.ClientID
		if clientID == "" {
			clientID = facts.MachineID
		}
		log.Debugf("client-id: %v", clientID)

		db, err := ovsenv.NewDatastore()
		if err != nil {
			return cli.Exit(fmt.Errorf("cannot create datastore: %w", err), 1)
		}

		scanner, err := inventory.NewScanner(dirs, config.DefaultConfig.DatabasePatterns)
		if err != nil {
			return cli.Exit(fmt.Errorf("cannot create scanner: %w", err), 1)
		}

		var jrnl *journal.Journal
		if config.DefaultConfig.Journal != "" {
			jrnl, err = journal.Open(config.DefaultConfig.Journal)
			if err != nil {
				return cli.Exit(fmt.Errorf("cannot open journal: %w", err), 1)
			}
			defer jrnl.Close()
		}

		var keyring openpgp.KeyRing
		if config.DefaultConfig.PublicKey != "" {
			data, err := os.ReadFile(config.DefaultConfig.PublicKey)
			if err != nil {
				return cli.Exit(fmt.Errorf("cannot read public key: %w", err), 1)
			}
			entities, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(data))
			if err != nil {
				return cli.Exit(fmt.Errorf("cannot read armored key ring: %w", err), 1)
			}
			keyring = entities
		}

		tlsConfig, err := config.DefaultConfig.CreateTLSConfig()
		if err != nil {
			return cli.Exit(fmt.Errorf("cannot create TLS config: %w", err), 1)
		}

		transporter, err := setupTransport(clientID, tlsConfig)
		if err != nil {
			return cli.Exit(fmt.Errorf("cannot create transport: %w", err), 1)
		}

		a := &agent{
			dirs:      dirs,
			scanner:   scanner,
			db:        db,
			journal:   jrnl,
			transport: transporter,
			keyring:   keyring,
			clientID:  clientID,
		}

		a.bus = bus.NewServer(dirs, db, jrnl, a.latest.Load, func() (*ovsenv.Snapshot, error) {
			return a.performScan("bus")
		})
		if err := a.bus.Connect(); err != nil {
			return cli.Exit(fmt.Errorf("cannot connect to bus: %w", err), 1)
		}
		defer a.bus.Close()

		if config.DefaultConfig.MetricsAddr != "" {
			go func() {
				if err := metrics.ListenAndServe(config.DefaultConfig.MetricsAddr); err != nil {
					log.Errorf("cannot serve metrics: %v", err)
				}
			}()
		}

		if err := transporter.SetRxHandler(a.receive); err != nil {
			return cli.Exit(fmt.Errorf("cannot set RxHandler: %w", err), 1)
		}
		if err := transporter.SetEventHandler(a.handleTransportEvent); err != nil {
			return cli.Exit(fmt.Errorf("cannot set event handler: %w", err), 1)
		}

		// The first scan completes before the transport connects so that a
		// report can be answered immediately.
		snap, err := a.performScan("startup")
		if err != nil {
			return cli.Exit(fmt.Errorf("cannot perform initial scan: %w", err), 1)
		}
		log.Infof("initial scan found %v services, %v databases, %v sockets",
			len(snap.Services), len(snap.Databases), len(snap.Sockets))

		if err := transporter.Connect(); err != nil {
			return cli.Exit(fmt.Errorf("cannot connect transport: %w", err), 1)
		}

		ticker := time.NewTicker(config.DefaultConfig.ScanInterval)
		defer ticker.Stop()
		go func() {
			for range ticker.C {
				if _, err := a.performScan("interval"); err != nil {
					log.Errorf("cannot perform scheduled scan: %v", err)
				}
			}
		}()

		watcher := watch.NewWatcher(dirs, 1*time.Second)
		defer watcher.Stop()
		go func() {
			for path := range watcher.Changed {
				log.Debugf("detected change under %v", path)
				if _, err := a.performScan("watch"); err != nil {
					log.Errorf("cannot rescan after change: %v", err)
				}
			}
		}()

		tlsEvents, err := config.DefaultConfig.WatcherUpdate()
		if err != nil {
			return cli.Exit(fmt.Errorf("cannot watch TLS files: %w", err), 1)
		}
		if tlsEvents != nil {
			go func() {
				for cfg := range tlsEvents {
					log.Info("reloading TLS configuration")
					if err := transporter.ReloadTLSConfig(cfg); err != nil {
						log.Errorf("cannot reload TLS configuration: %v", err)
					}
				}
			}()
		}

		if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
			log.Errorf("cannot notify service manager: %v", err)
		}
		if interval, err := daemon.SdWatchdogEnabled(false); err == nil && interval > 0 {
			go func() {
				for range time.Tick(interval / 2) {
					if _, err := daemon.SdNotify(false, daemon.SdNotifyWatchdog); err != nil {
						log.Errorf("cannot notify watchdog: %v", err)
					}
				}
			}()
		}

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
		<-quit
		log.Info("shutting down")

		_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
		a.quiescing.Store(true)
		a.publishConnectionStatus(ovsenv.ConnectionStateOffline)
		transporter.Disconnect(500)

		return nil
	}
	app.EnableBashCompletion = true
	app.BashComplete = internal.BashComplete

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// setupTransport creates the transport named by the configured protocol,
// falling back to detection from the server URL schemes. With no server at
// all the agent still runs, serving local bus requests only.
func setupTransport(clientID string, tlsConfig *tls.Config) (transport.Transporter, error) {
	if config.DefaultConfig.Protocol == "none" {
		return transport.NewNoopTransport()
	}
	if len(config.DefaultConfig.Server) == 0 {
		log.Warn("no server configured; starting with the local bus interface only")
		return transport.NewNoopTransport()
	}

	protocol, serverURL, err := detectProtocolFromURL(config.DefaultConfig.Server)
	if err != nil {
		return nil, err
	}
	if config.DefaultConfig.Protocol != "" && config.DefaultConfig.Protocol != protocol {
		return nil, fmt.Errorf("configured protocol '%v' does not match server '%v'", config.DefaultConfig.Protocol, serverURL)
	}

	switch protocol {
	case "mqtt":
		brokers := make([]string, 0, len(config.DefaultConfig.Server))
		for _, server := range config.DefaultConfig.Server {
			u, err := url.Parse(server)
			if err != nil {
				continue
			}
			switch u.Scheme {
			case "mqtt", "mqtts":
				brokers = append(brokers, server)
			}
		}
		return transport.NewMQTTTransport(clientID, brokers, tlsConfig)
	case "http":
		u, err := url.Parse(serverURL)
		if err != nil {
			return nil, fmt.Errorf("cannot parse server URL '%v': %w", serverURL, err)
		}
		if u.Scheme != "https" {
			tlsConfig = nil
		}
		userAgent := fmt.Sprintf("ovsenvd/%v", ovsenv.Version)
		return transport.NewHTTPTransport(clientID, u.Host, tlsConfig, userAgent, config.DefaultConfig.PollingInterval)
	}
	return nil, ovsenv.NewInvalidArgumentError(config.FlagNameProtocol, protocol)
}
