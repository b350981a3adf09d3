package transport

import (
	"crypto/tls"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"git.sr.ht/~spc/go-log"
	"github.com/ovsenv/ovsenv"
	"github.com/ovsenv/ovsenv/internal/config"
	"github.com/ovsenv/ovsenv/internal/http"
)

// HTTP is a Transporter that sends and receives data and control messages by
// sending HTTP requests to a server.
type HTTP struct {
	clientID        string
	client          *http.Client
	server          string
	rxHandler       RxHandlerFunc
	eventHandler    EventHandlerFunc
	pollingInterval time.Duration
	disconnected    atomic.Value
	userAgent       string
	isTLS           atomic.Value
}

// NewHTTPTransport creates a transport suitable for transmitting data to and
// polling for messages from an HTTP server.
func NewHTTPTransport(clientID string, server string, tlsConfig *tls.Config, userAgent string, pollingInterval time.Duration) (*HTTP, error) {
	disconnected := atomic.Value{}
	disconnected.Store(false)
	isTLS := atomic.Value{}
	isTLS.Store(tlsConfig != nil)
	return &HTTP{
		clientID:        clientID,
		client:          http.NewHTTPClient(tlsConfig.Clone(), userAgent, config.DefaultConfig.HTTPRetries, config.DefaultConfig.HTTPTimeout),
		server:          server,
		pollingInterval: pollingInterval,
		disconnected:    disconnected,
		userAgent:       userAgent,
		isTLS:           isTLS,
	}, nil
}

// Connect starts polling the server for new messages on the "control"
// channel. The data channel is publish-only.
func (t *HTTP) Connect() error {
	t.disconnected.Store(false)

	go t.poll("control")

	if t.eventHandler != nil {
		t.eventHandler(TransporterEventConnected)
	}

	return nil
}

// Disconnect waits the specified number of milliseconds and stops the polling
// routines.
func (t *HTTP) Disconnect(quiesce uint) {
	time.Sleep(time.Millisecond * time.Duration(quiesce))
	t.disconnected.Store(true)
	if t.eventHandler != nil {
		t.eventHandler(TransporterEventDisconnected)
	}
}

// Tx posts data to a URL created by combining client information with addr.
// metadata is included in the request as HTTP headers.
func (t *HTTP) Tx(addr string, metadata map[string]string, data []byte) (int, map[string]string, []byte, error) {
	if t.disconnected.Load().(bool) {
		return TxResponseErr, nil, nil, fmt.Errorf("cannot perform transmit: transport is disconnected")
	}

	headers := map[string]string{
		"Content-Type": "application/json",
	}
	for k, v := range metadata {
		headers[k] = v
	}

	res, err := t.client.Post(t.getURL("out", addr), headers, data)
	if err != nil {
		return TxResponseErr, nil, nil, err
	}

	switch {
	case res.StatusCode >= 200 && res.StatusCode < 300:
		return TxResponseOK, res.Metadata, res.Body, nil
	default:
		return TxResponseErr, res.Metadata, res.Body, &http.APIResponseError{Code: res.StatusCode, Body: string(res.Body)}
	}
}

// SetRxHandler stores f and calls it whenever a poll request returns data.
func (t *HTTP) SetRxHandler(f RxHandlerFunc) error {
	t.rxHandler = f
	return nil
}

// ReloadTLSConfig creates a new HTTP client with the provided TLS config.
func (t *HTTP) ReloadTLSConfig(tlsConfig *tls.Config) error {
	*t.client = *http.NewHTTPClient(tlsConfig, t.userAgent, config.DefaultConfig.HTTPRetries, config.DefaultConfig.HTTPTimeout)
	t.isTLS.Store(tlsConfig != nil)
	return nil
}

func (t *HTTP) SetEventHandler(f EventHandlerFunc) error {
	t.eventHandler = f
	return nil
}

func (t *HTTP) poll(channel string) {
	for {
		if t.disconnected.Load().(bool) {
			return
		}
		res, err := t.client.Get(t.getURL("in", channel))
		if err != nil {
			log.Tracef("cannot poll for messages: %v", err)
		}
		if res != nil && len(res.Body) > 0 {
			t.receive(channel, res.Body)
		}
		time.Sleep(t.pollingInterval)
	}
}

func (t *HTTP) receive(addr string, data []byte) {
	if t.rxHandler == nil {
		log.Errorf("unhandled message received on channel: %v", addr)
		return
	}
	if err := t.rxHandler(addr, nil, data); err != nil {
		log.Errorf("cannot handle received message: %v", err)
	}
}

func (t *HTTP) getURL(direction string, channel string) string {
	protocol := "http"
	if t.isTLS.Load().(bool) {
		protocol = "https"
	}
	path := filepath.Join(ovsenv.PathPrefix, channel, t.clientID, direction)

	return fmt.Sprintf("%s://%s/%s", protocol, t.server, path)
}
