package config

import (
	"crypto/tls"
	"fmt"
	"os"
	"time"

	"git.sr.ht/~spc/go-log"
	"github.com/ovsenv/ovsenv"
	"github.com/rjeczalik/notify"
)

const (
	FlagNameLogLevel                 = "log-level"
	FlagNameCertFile                 = "cert-file"
	FlagNameKeyFile                  = "key-file"
	FlagNameCaRoot                   = "ca-root"
	FlagNameServer                   = "server"
	FlagNameClientID                 = "client-id"
	FlagNamePathPrefix               = "path-prefix"
	FlagNameProtocol                 = "protocol"
	FlagNameFactsFile                = "facts-file"
	FlagNameTagsFile                 = "tags-file"
	FlagNameScanInterval             = "scan-interval"
	FlagNameDatabasePattern          = "database-pattern"
	FlagNameJournal                  = "journal"
	FlagNamePublicKey                = "public-key"
	FlagNameMetricsAddr              = "metrics-addr"
	FlagNameHTTPRetries              = "http-retries"
	FlagNameHTTPTimeout              = "http-timeout"
	FlagNamePollingInterval          = "polling-interval"
	FlagNameMQTTConnectRetry         = "mqtt-connect-retry"
	FlagNameMQTTConnectRetryInterval = "mqtt-connect-retry-interval"
	FlagNameMQTTAutoReconnect        = "mqtt-auto-reconnect"
	FlagNameMQTTReconnectDelay       = "mqtt-reconnect-delay"
	FlagNameMQTTConnectTimeout       = "mqtt-connect-timeout"
	FlagNameMQTTPublishTimeout       = "mqtt-publish-timeout"
)

var DefaultConfig = Config{
	PathPrefix:               ovsenv.PathPrefix,
	ScanInterval:             5 * time.Minute,
	DatabasePatterns:         []string{"*.db"},
	HTTPRetries:              3,
	HTTPTimeout:              30 * time.Second,
	PollingInterval:          15 * time.Second,
	MQTTConnectRetryInterval: 30 * time.Second,
	MQTTAutoReconnect:        true,
	MQTTReconnectDelay:       10 * time.Second,
	MQTTConnectTimeout:       30 * time.Second,
	MQTTPublishTimeout:       30 * time.Second,
}

// Config contains current configuration state for the agent.
type Config struct {
	// LogLevel is the level value used for logging.
	LogLevel string

	// ClientID is a unique identification value for the agent over connection
	// transports.
	ClientID string

	// Server is a URI to which the agent connects in order to send and receive
	// messages.
	Server []string

	// CertFile is a path to a public certificate, optionally used along with
	// KeyFile to authenticate connections.
	CertFile string

	// KeyFile is a path to a private certificate, optionally used along with
	// CertFile to authenticate connections.
	KeyFile string

	// CARoot is the list of paths with chain certificate file to optionally
	// include in the TLS configration's CA root list.
	CARoot []string

	// PathPrefix is a value prepended to all path names at the transport layer.
	PathPrefix string

	// Protocol is the protocol used by the agent when connecting to Server.
	// Can be either MQTT, HTTP or none.
	Protocol string

	// FactsFile is a path to a file containing a JSON object consisting of
	// key/value pairs that are reported instead of facts collected from the
	// host.
	FactsFile string

	// TagsFile is a path to a TOML file containing key/value pairs that are
	// included in published status messages.
	TagsFile string

	// ScanInterval is the duration between two scheduled directory scans.
	ScanInterval time.Duration

	// DatabasePatterns is the list of glob patterns that identify database
	// files within the database directory.
	DatabasePatterns []string

	// Journal is used to enable the storage of observed environment events
	// in a SQLite file at the specified file path.
	Journal string

	// PublicKey is a path to an armored OpenPGP public key. When set, only
	// command messages carrying a valid detached signature are executed.
	PublicKey string

	// MetricsAddr is an address to listen on for HTTP metrics requests.
	MetricsAddr string

	// HTTPRetries is the number of times the agent will attempt to resend
	// failed HTTP requests before giving up.
	HTTPRetries int

	// HTTPTimeout is the duration the agent will wait before cancelling an
	// HTTP request.
	HTTPTimeout time.Duration

	// PollingInterval is the duration between two HTTP poll requests when
	// connected over the HTTP transport.
	PollingInterval time.Duration

	// MQTTConnectRetry is the MQTT client option to enable connection retry
	// logic when performing the initial connection.
	MQTTConnectRetry bool

	// MQTTConnectRetryInterval is the MQTT client option that specifies the
	// duration to wait between connection retry attempts.
	MQTTConnectRetryInterval time.Duration

	// MQTTAutoReconnect is the MQTT client option that enables automatic
	// reconnection logic when the client unexpectedly disconnects.
	MQTTAutoReconnect bool

	// MQTTReconnectDelay is the duration the client will wait before
	// attempting to reconnect to the MQTT broker.
	MQTTReconnectDelay time.Duration

	// MQTTConnectTimeout is the duration the client will wait for an MQTT
	// connection to be established before giving up.
	MQTTConnectTimeout time.Duration

	// MQTTPublishTimeout is the duration the client will wait for an MQTT
	// connection to publish a message before giving up.
	MQTTPublishTimeout time.Duration
}

// CreateTLSConfig creates a tls.Config object from the current configuration.
func (conf *Config) CreateTLSConfig() (*tls.Config, error) {
	var certData, keyData []byte
	var err error
	rootCAs := make([][]byte, 0)

	if conf.CertFile != "" && conf.KeyFile != "" {
		certData, err = os.ReadFile(conf.CertFile)
		if err != nil {
			return nil, fmt.Errorf("cannot read cert-file '%v': %w", conf.CertFile, err)
		}

		keyData, err = os.ReadFile(conf.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("cannot read key-file '%v': %w", conf.KeyFile, err)
		}
	}

	for _, file := range conf.CARoot {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("cannot read ca-file '%v': %w", file, err)
		}
		rootCAs = append(rootCAs, data)
	}

	tlsConfig, err := newTLSConfig(certData, keyData, rootCAs)
	if err != nil {
		return nil, err
	}

	return tlsConfig, nil
}

// WatcherUpdate creates an inotify watcher on all TLS related files
// (cert-file, key-file and ca-root). If any of those files are updated, it
// sends over the returned channel a new tls.Config that consumers can use to
// renew their connections. The typical case is short-lived certificates,
// where a connection needs to be reloaded to perform a new TLS handshake.
// It returns an error if a watch cannot be established on any file.
func (conf *Config) WatcherUpdate() (chan *tls.Config, error) {
	c := make(chan notify.EventInfo, 1)
	files := []string{}

	if len(conf.CARoot) > 0 {
		files = append(files, conf.CARoot...)
	}

	if conf.CertFile != "" {
		files = append(files, conf.CertFile)
	}

	if conf.KeyFile != "" {
		files = append(files, conf.KeyFile)
	}

	if len(files) == 0 {
		return nil, nil
	}

	for _, fp := range files {
		if err := notify.Watch(fp, c, notify.InCloseWrite, notify.InDelete); err != nil {
			return nil, fmt.Errorf("cannot start watching file '%v': %w", fp, err)
		}
		log.Debugf("added watchpoint for file: %v", fp)
	}

	events := make(chan *tls.Config, 1)
	go func() {
		for e := range c {
			log.Debugf("received inotify event %v", e.Event())
			switch e.Event() {
			case notify.InCloseWrite, notify.InDelete:
				cfg, err := conf.CreateTLSConfig()
				if err != nil {
					log.Errorf(
						"cannot create TLS config from file '%v' on event %v: %v",
						e.Path(),
						e.Event(),
						err,
					)
				}
				if cfg != nil {
					events <- cfg
				}
			}
		}
	}()

	return events, nil
}
