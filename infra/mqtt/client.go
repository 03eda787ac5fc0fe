package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	coremon "github.com/kilianp07/ecom/core/monitoring"
	coremqtt "github.com/kilianp07/ecom/core/mqtt"
	"github.com/kilianp07/ecom/core/schedule"
	"github.com/kilianp07/ecom/infra/logger"
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker       string          `json:"broker"`
	ClientID     string          `json:"client_id"`
	Username     string          `json:"username"`
	Password     string          `json:"password"`
	TopicPrefix  string          `json:"topic_prefix"`
	AckTopic     string          `json:"ack_topic"`
	// AckTimeoutMS bounds the wait for each setpoint ack when AckTopic is set.
	AckTimeoutMS int             `json:"ack_timeout_ms"`
	Variables    []string        `json:"variables"`
	Retain       bool            `json:"retain"`
	UseTLS       bool            `json:"use_tls"`
	ClientCert   string          `json:"client_cert"`
	ClientKey    string          `json:"client_key"`
	CABundle     string          `json:"ca_bundle"`
	AuthMethod   string          `json:"auth_method"`
	QoS          map[string]byte `json:"qos"`
	LWTTopic     string          `json:"lwt_topic"`
	LWTPayload   string          `json:"lwt_payload"`
	LWTQoS       byte            `json:"lwt_qos"`
	LWTRetain    bool            `json:"lwt_retain"`
	MaxRetries   int             `json:"max_retries"`
	BackoffMS    int             `json:"backoff_ms"`
	TLSConfig    *tls.Config     `json:"-"`
}

// SetDefaults fills the topic prefix and retry settings.
func (c *Config) SetDefaults() {
	if c.TopicPrefix == "" {
		c.TopicPrefix = "ecom"
	}
	if c.ClientID == "" {
		c.ClientID = "ecom-" + uuid.NewString()[:8]
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BackoffMS <= 0 {
		c.BackoffMS = 100
	}
	if c.AckTopic != "" && c.AckTimeoutMS <= 0 {
		c.AckTimeoutMS = 5000
	}
}

// AckTimeout is how long a publisher waits for each ack. It is zero when no
// ack topic is configured.
func (c Config) AckTimeout() time.Duration {
	if c.AckTopic == "" {
		return 0
	}
	return time.Duration(c.AckTimeoutMS) * time.Millisecond
}

// Validate checks the broker address and the selected variables.
func (c Config) Validate() error {
	if c.Broker == "" {
		return fmt.Errorf("mqtt: broker is required")
	}
	if _, err := c.variables(); err != nil {
		return err
	}
	return nil
}

func (c Config) variables() ([]schedule.Var, error) {
	if len(c.Variables) == 0 {
		return coremqtt.DefaultVariables(), nil
	}
	out := make([]schedule.Var, 0, len(c.Variables))
	for _, name := range c.Variables {
		v, ok := schedule.ParseVar(name)
		if !ok {
			return nil, fmt.Errorf("mqtt: unknown variable %q", name)
		}
		out = append(out, v)
	}
	return out, nil
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

// PahoClient publishes schedules through Eclipse Paho and tracks the
// acknowledgments received on the ack topic.
type PahoClient struct {
	cli       pahoClient
	prefix    string
	ackTopic  string
	qos       map[string]byte
	retain    bool
	variables []schedule.Var

	mu         sync.Mutex
	ackChans   map[string]chan struct{}
	logger     logger.Logger
	maxRetries int
	backoff    time.Duration
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// NewPahoClient connects to the MQTT broker and subscribes to the ack topic
// when one is configured.
func NewPahoClient(cfg Config) (*PahoClient, error) {
	cfg.SetDefaults()
	vars, err := cfg.variables()
	if err != nil {
		return nil, err
	}
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	log := logger.New("mqtt_client")
	pc := &PahoClient{
		prefix:     cfg.TopicPrefix,
		ackTopic:   cfg.AckTopic,
		qos:        cfg.QoS,
		retain:     cfg.Retain,
		variables:  vars,
		ackChans:   make(map[string]chan struct{}),
		logger:     log,
		maxRetries: cfg.MaxRetries,
		backoff:    time.Duration(cfg.BackoffMS) * time.Millisecond,
	}

	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected")
		if pc.ackTopic == "" {
			return
		}
		if token := c.Subscribe(pc.ackTopic, pc.qosFor("ack"), pc.onAck); token.Wait() && token.Error() != nil {
			log.Errorf("subscribe error: %v", token.Error())
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	pc.cli = c
	return pc, nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.AuthMethod == "username_password" || cfg.AuthMethod == "both" || cfg.AuthMethod == "" {
		if cfg.Username != "" {
			opts.SetUsername(cfg.Username)
		}
		if cfg.Password != "" {
			opts.SetPassword(cfg.Password)
		}
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.LWTTopic != "" {
		opts.SetWill(cfg.LWTTopic, cfg.LWTPayload, cfg.LWTQoS, cfg.LWTRetain)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caBytes)
	return &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

func (p *PahoClient) qosFor(kind string) byte {
	if q, ok := p.qos[kind]; ok {
		return q
	}
	return 0
}

func (p *PahoClient) onAck(_ paho.Client, msg paho.Message) {
	var m struct {
		MessageID string `json:"message_id"`
	}
	if err := json.Unmarshal(msg.Payload(), &m); err != nil {
		p.logger.Errorf("failed to decode ack: %v", err)
		return
	}
	p.mu.Lock()
	ch, ok := p.ackChans[m.MessageID]
	if ok {
		select {
		case ch <- struct{}{}:
		default:
		}
		p.logger.Debugf("received ack %s", m.MessageID)
	}
	p.mu.Unlock()
}

// PublishSchedule sends one setpoint per unit of every configured variable.
// Publishing stops at the first message that still fails after the retries.
func (p *PahoClient) PublishSchedule(runID, scene string, x *schedule.Candidate) ([]string, error) {
	now := time.Now().UnixMilli()
	var ids []string
	for _, v := range p.variables {
		a := x.Get(v)
		for u := 0; u < a.Rows; u++ {
			sp := coremqtt.Setpoint{
				MessageID: uuid.NewString(),
				RunID:     runID,
				Scene:     scene,
				Variable:  v.String(),
				Unit:      u,
				Values:    append([]float64(nil), a.Row(u)...),
				Timestamp: now,
			}
			if err := p.publish(sp); err != nil {
				coremon.CaptureException(err, map[string]string{
					"module":   "mqtt",
					"scene":    scene,
					"variable": sp.Variable,
				})
				return ids, err
			}
			ids = append(ids, sp.MessageID)
		}
	}
	p.logger.Infof("published %d setpoints for run %s", len(ids), runID)
	return ids, nil
}

func (p *PahoClient) publish(sp coremqtt.Setpoint) error {
	payload, err := json.Marshal(sp)
	if err != nil {
		return err
	}
	topic := coremqtt.Topic(p.prefix, sp.Scene, sp.Variable, sp.Unit)
	// Register before publishing so an ack racing the publish token is kept.
	if p.ackTopic != "" {
		p.mu.Lock()
		p.ackChans[sp.MessageID] = make(chan struct{}, 1)
		p.mu.Unlock()
	}
	var publishErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		token := p.cli.Publish(topic, p.qosFor("schedule"), p.retain, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			break
		}
		p.logger.Errorf("publish attempt %d to %s failed: %v", attempt+1, topic, publishErr)
		if attempt < p.maxRetries {
			time.Sleep(p.backoff * time.Duration(1<<attempt))
		}
	}
	if publishErr != nil {
		p.mu.Lock()
		delete(p.ackChans, sp.MessageID)
		p.mu.Unlock()
		return fmt.Errorf("publish %s: %w", topic, publishErr)
	}
	return nil
}

// WaitForAck blocks until an ack for the given message ID is received or timeout.
func (p *PahoClient) WaitForAck(messageID string, timeout time.Duration) (bool, error) {
	p.mu.Lock()
	ch := p.ackChans[messageID]
	p.mu.Unlock()
	if ch == nil {
		return false, fmt.Errorf("%w: %s", coremqtt.ErrUnknownMessage, messageID)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	defer func() {
		p.mu.Lock()
		delete(p.ackChans, messageID)
		p.mu.Unlock()
	}()
	select {
	case <-ch:
		return true, nil
	case <-timer.C:
		return false, fmt.Errorf("%w", coremqtt.ErrAckTimeout)
	}
}

// Disconnect gracefully closes the MQTT connection.
func (p *PahoClient) Disconnect() {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
}
