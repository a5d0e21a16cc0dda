package bridge

import (
	"errors"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/sapi-protocol/sapi-go/pkg/log"
	"github.com/sapi-protocol/sapi-go/pkg/observe"
)

// Connection constants.
const (
	// defaultConnectTimeout is the maximum time to wait for the initial
	// connection.
	defaultConnectTimeout = 10 * time.Second

	// defaultPublishTimeout is the maximum time to wait for publish
	// acknowledgment.
	defaultPublishTimeout = 5 * time.Second

	// defaultKeepAlive is the keepalive interval for the connection.
	defaultKeepAlive = 60 * time.Second

	// defaultDisconnectQuiesce is the time in milliseconds to wait for
	// pending operations on disconnect.
	defaultDisconnectQuiesce = 1000
)

// Bridge errors.
var (
	ErrConnectFailed = errors.New("mqtt connect failed")
	ErrPublishFailed = errors.New("mqtt publish failed")
)

// Config holds the MQTT bridge configuration.
type Config struct {
	// BrokerURL is the broker address, e.g. "tcp://localhost:1883".
	BrokerURL string `yaml:"broker_url"`

	// ClientID identifies this client to the broker. A random ID is
	// generated when empty.
	ClientID string `yaml:"client_id"`

	// Username and Password are the broker credentials, if required.
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// TopicPrefix is prepended to the device type to form the
	// publication topic.
	TopicPrefix string `yaml:"topic_prefix"`

	// QoS is the publish quality-of-service level (0-2).
	QoS byte `yaml:"qos"`
}

// DefaultConfig returns the default bridge configuration.
func DefaultConfig() Config {
	return Config{
		BrokerURL:   "tcp://localhost:1883",
		TopicPrefix: "sapi",
		QoS:         1,
	}
}

// topicFor builds the publication topic for a device type.
func (c Config) topicFor(deviceType string) string {
	return c.TopicPrefix + "/" + deviceType
}

// Publisher forwards notifications to an MQTT broker.
type Publisher struct {
	client pahomqtt.Client
	cfg    Config
	logger log.Logger
}

// Connect establishes a connection to the MQTT broker and returns a
// Publisher ready for use.
func Connect(cfg Config) (*Publisher, error) {
	if cfg.ClientID == "" {
		cfg.ClientID = "sapi-" + uuid.NewString()[:8]
	}

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.BrokerURL)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetKeepAlive(defaultKeepAlive)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(defaultConnectTimeout)

	p := &Publisher{
		cfg:    cfg,
		logger: log.NoopLogger{},
		client: pahomqtt.NewClient(opts),
	}

	token := p.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout connecting to %s", ErrConnectFailed, cfg.BrokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}
	return p, nil
}

// SetLogger sets the event logger. Pass nil to disable logging.
func (p *Publisher) SetLogger(logger log.Logger) {
	if logger == nil {
		logger = log.NoopLogger{}
	}
	p.logger = logger
}

// Publish forwards one notification to the broker. The notification body
// is copied before handing it to the MQTT client, which delivers
// asynchronously.
func (p *Publisher) Publish(n observe.Notification) error {
	payload := make([]byte, len(n.Body))
	copy(payload, n.Body)

	topic := p.cfg.topicFor(n.DeviceType)
	token := p.client.Publish(topic, p.cfg.QoS, false, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout publishing to %s", ErrPublishFailed, topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	sid := uint8(n.SensorID)
	p.logger.Log(log.Event{
		Timestamp:  time.Now(),
		Category:   log.CategoryNotify,
		SensorID:   &sid,
		DeviceType: n.DeviceType,
		Operation:  "publish",
		Status:     "ok",
		Message:    topic,
	})
	return nil
}

// Close disconnects from the broker, allowing pending operations to
// finish first.
func (p *Publisher) Close() {
	p.client.Disconnect(defaultDisconnectQuiesce)
}
