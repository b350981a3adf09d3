package transport

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	"git.sr.ht/~spc/go-log"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/ovsenv/ovsenv"
	"github.com/ovsenv/ovsenv/internal/config"
)

// MQTT is a Transporter that sends and receives data and control messages
// over MQTT by subscribing and publishing to topics on an MQTT broker.
type MQTT struct {
	client       mqtt.Client
	opts         *mqtt.ClientOptions
	rxHandler    RxHandlerFunc
	eventHandler EventHandlerFunc
}

// NewMQTTTransport creates a transport suitable for transmitting data over a
// set of MQTT topics.
func NewMQTTTransport(clientID string, brokers []string, tlsConfig *tls.Config) (*MQTT, error) {
	var t MQTT

	opts := mqtt.NewClientOptions()
	for _, broker := range brokers {
		opts.AddBroker(broker)
	}
	opts.SetClientID(clientID)
	if tlsConfig != nil {
		opts.SetTLSConfig(tlsConfig.Clone())
	}
	opts.SetCleanSession(true)
	opts.SetConnectRetry(config.DefaultConfig.MQTTConnectRetry)
	opts.SetConnectRetryInterval(config.DefaultConfig.MQTTConnectRetryInterval)
	opts.SetAutoReconnect(config.DefaultConfig.MQTTAutoReconnect)
	opts.SetMaxReconnectInterval(config.DefaultConfig.MQTTReconnectDelay)
	opts.SetConnectTimeout(config.DefaultConfig.MQTTConnectTimeout)

	opts.SetOnConnectHandler(func(c mqtt.Client) {
		connectionOpts := c.OptionsReader()
		for _, url := range connectionOpts.Servers() {
			log.Tracef("connected to broker: %v", url)
		}

		// The agent only consumes control messages; the data topic is
		// publish-only.
		topic := fmt.Sprintf("%v/%v/control/in", ovsenv.TopicPrefix, connectionOpts.ClientID())
		c.Subscribe(topic, 1, func(c mqtt.Client, m mqtt.Message) {
			go t.receive("control", m.Payload())
		})
		log.Tracef("subscribed to topic: %v", topic)

		if t.eventHandler != nil {
			t.eventHandler(TransporterEventConnected)
		}
	})

	opts.SetDefaultPublishHandler(func(c mqtt.Client, m mqtt.Message) {
		log.Errorf("unhandled message: %v", string(m.Payload()))
	})

	opts.SetConnectionLostHandler(func(c mqtt.Client, e error) {
		log.Errorf("connection lost unexpectedly: %v", e)
		if t.eventHandler != nil {
			t.eventHandler(TransporterEventDisconnected)
		}
	})

	// The last will makes the broker report the agent offline when the
	// connection drops without a clean disconnect.
	data, err := json.Marshal(&ovsenv.ConnectionStatus{
		Type:      ovsenv.MessageTypeConnectionStatus,
		MessageID: uuid.New().String(),
		Version:   1,
		Sent:      time.Now(),
		Content: struct {
			Facts ovsenv.Facts           `json:"facts"`
			Dirs  ovsenv.Dirs            `json:"dirs"`
			State ovsenv.ConnectionState `json:"state"`
			Tags  map[string]string      `json:"tags,omitempty"`
		}{
			State: ovsenv.ConnectionStateOffline,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("cannot marshal message to JSON: %w", err)
	}
	opts.SetBinaryWill(fmt.Sprintf("%v/%v/control/out", ovsenv.TopicPrefix, clientID), data, 1, false)

	t.opts = opts
	t.client = mqtt.NewClient(opts)

	return &t, nil
}

// Connect connects an MQTT client to the configured broker and waits for the
// connection to open.
func (t *MQTT) Connect() error {
	if token := t.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("cannot connect to broker: %w", token.Error())
	}
	return nil
}

// Disconnect closes the connection to the MQTT broker, waiting for the
// specified number of milliseconds for work to complete.
func (t *MQTT) Disconnect(quiesce uint) {
	t.client.Disconnect(quiesce)
	if t.eventHandler != nil {
		t.eventHandler(TransporterEventDisconnected)
	}
}

// Tx publishes data to an MQTT topic created by combining client information
// with addr.
func (t *MQTT) Tx(addr string, metadata map[string]string, data []byte) (int, map[string]string, []byte, error) {
	connectionOpts := t.client.OptionsReader()
	topic := fmt.Sprintf("%v/%v/%v/out", ovsenv.TopicPrefix, connectionOpts.ClientID(), addr)

	token := t.client.Publish(topic, 1, false, data)
	if timeout := config.DefaultConfig.MQTTPublishTimeout; timeout > 0 {
		if !token.WaitTimeout(timeout) {
			return TxResponseErr, nil, nil, fmt.Errorf("cannot publish message to topic '%v': timed out after %v", topic, timeout)
		}
	} else {
		token.Wait()
	}
	if token.Error() != nil {
		return TxResponseErr, nil, nil, fmt.Errorf("cannot publish message to topic '%v': %w", topic, token.Error())
	}

	log.Debugf("published message to topic: %v", topic)
	log.Tracef("message: %v", string(data))

	return TxResponseOK, nil, nil, nil
}

// SetRxHandler stores f and calls it whenever a message is received on a
// subscribed topic.
func (t *MQTT) SetRxHandler(f RxHandlerFunc) error {
	t.rxHandler = f
	return nil
}

// ReloadTLSConfig replaces the client TLS configuration, recreating the MQTT
// client and reconnecting it to the broker.
func (t *MQTT) ReloadTLSConfig(tlsConfig *tls.Config) error {
	t.client.Disconnect(1000)
	t.opts.SetTLSConfig(tlsConfig.Clone())
	t.client = mqtt.NewClient(t.opts)
	return t.Connect()
}

func (t *MQTT) SetEventHandler(f EventHandlerFunc) error {
	t.eventHandler = f
	return nil
}

func (t *MQTT) receive(addr string, data []byte) {
	if t.rxHandler == nil {
		log.Errorf("unhandled message received on channel: %v", addr)
		return
	}
	if err := t.rxHandler(addr, nil, data); err != nil {
		log.Errorf("cannot handle received message: %v", err)
	}
}
