package mqtt

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"os"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	coremqtt "github.com/kilianp07/ecom/core/mqtt"
	"github.com/kilianp07/ecom/core/schedule"
)

// helper to generate self-signed cert
func generateCert(t *testing.T) (certFile, keyFile, caFile string) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("gen key: %v", err)
	}
	tmpl := x509.Certificate{SerialNumber: big.NewInt(1), Subject: pkix.Name{CommonName: "test"}, NotBefore: time.Now(), NotAfter: time.Now().Add(time.Hour)}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &priv.PublicKey, priv)
	if err != nil {
		t.Fatalf("create cert: %v", err)
	}
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)})

	dir := t.TempDir()
	certFile = dir + "/cert.pem"
	keyFile = dir + "/key.pem"
	caFile = dir + "/ca.pem"
	if err := os.WriteFile(certFile, certPEM, 0644); err != nil {
		t.Fatalf("write cert: %v", err)
	}
	if err := os.WriteFile(keyFile, keyPEM, 0644); err != nil {
		t.Fatalf("write key: %v", err)
	}
	if err := os.WriteFile(caFile, certPEM, 0644); err != nil {
		t.Fatalf("write ca: %v", err)
	}
	return
}

func TestLoadTLSConfig(t *testing.T) {
	cert, key, ca := generateCert(t)
	cfg := Config{UseTLS: true, ClientCert: cert, ClientKey: key, CABundle: ca}
	tlsCfg, err := cfg.LoadTLSConfig()
	if err != nil {
		t.Fatalf("load tls: %v", err)
	}
	if len(tlsCfg.Certificates) == 0 {
		t.Fatalf("no certs loaded")
	}
	if tlsCfg.RootCAs == nil {
		t.Fatalf("no root CAs")
	}
}

func TestNewClientOptionsAuth(t *testing.T) {
	opts, err := NewClientOptions(Config{Broker: "tcp://localhost:1883", ClientID: "id", Username: "u", Password: "p"})
	if err != nil {
		t.Fatalf("opts: %v", err)
	}
	if opts.Username != "u" || opts.Password != "p" {
		t.Fatalf("auth not set")
	}
}

func testCandidate(t *testing.T) *schedule.Candidate {
	t.Helper()
	s, err := schedule.NewSchema(schedule.Dims{Steps: 3, Generators: 2, Loads: 1})
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	x := s.NewCandidate()
	x.Get(schedule.GenActPower).Set(1, 2, 4.5)
	x.Get(schedule.PImp).Set(0, 0, 2)
	return x
}

func withMock(t *testing.T, mc *mockClient) {
	t.Helper()
	newMQTTClient = func(o *paho.ClientOptions) pahoClient { mc.opts = o; return mc }
	t.Cleanup(func() { newMQTTClient = func(opts *paho.ClientOptions) pahoClient { return paho.NewClient(opts) } })
}

func TestQoSSettings(t *testing.T) {
	mc := &mockClient{}
	withMock(t, mc)
	cfg := Config{Broker: "tcp://localhost:1883", ClientID: "id", AckTopic: "a", QoS: map[string]byte{"schedule": 2, "ack": 1},
		Variables: []string{"genActPower"}}
	cli, err := NewPahoClient(cfg)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	if len(mc.subscribed) == 0 || mc.subscribed[0].qos != 1 {
		t.Fatalf("subscribe qos not applied")
	}
	ids, err := cli.PublishSchedule("run", "north", testCandidate(t))
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(ids) != 2 || len(mc.published) != 2 || mc.published[0].qos != 2 {
		t.Fatalf("publish qos not applied: %+v", mc.published)
	}
	// trigger ack
	payload := fmt.Sprintf(`{"message_id":"%s"}`, ids[1])
	cli.onAck(nil, mockMessage{[]byte(payload)})
	ok, err := cli.WaitForAck(ids[1], time.Millisecond)
	if err != nil || !ok {
		t.Fatalf("ack wait failed: %v", err)
	}
}

func TestPublishSchedule_TopicsAndPayload(t *testing.T) {
	mc := &mockClient{}
	withMock(t, mc)
	cli, err := NewPahoClient(Config{Broker: "tcp://localhost:1883", Variables: []string{"genActPower", "pImp"}})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	ids, err := cli.PublishSchedule("run-7", "north", testCandidate(t))
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	want := []string{"ecom/north/genActPower/0", "ecom/north/genActPower/1", "ecom/north/pImp/0"}
	if len(mc.published) != len(want) || len(ids) != len(want) {
		t.Fatalf("published %d messages", len(mc.published))
	}
	for i, topic := range want {
		if mc.published[i].topic != topic {
			t.Fatalf("topic %d = %s, want %s", i, mc.published[i].topic, topic)
		}
	}
	var sp coremqtt.Setpoint
	if err := json.Unmarshal(mc.published[1].payload.([]byte), &sp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sp.RunID != "run-7" || sp.Unit != 1 || sp.MessageID != ids[1] || sp.Values[2] != 4.5 {
		t.Fatalf("unexpected setpoint %+v", sp)
	}
}

func TestUnknownVariableRejected(t *testing.T) {
	cfg := Config{Broker: "tcp://localhost:1883", Variables: []string{"nope"}}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
	if _, err := NewPahoClient(cfg); err == nil {
		t.Fatalf("expected constructor error")
	}
	if err := (Config{}).Validate(); err == nil {
		t.Fatalf("expected missing broker error")
	}
}

func TestLWTConfigured(t *testing.T) {
	mc := &mockClient{}
	withMock(t, mc)
	cfg := Config{Broker: "tcp://localhost:1883", ClientID: "id", LWTTopic: "lwt", LWTPayload: "bye", LWTQoS: 1}
	cli, err := NewPahoClient(cfg)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	if !mc.opts.WillEnabled {
		t.Fatalf("will not enabled")
	}
	if mc.opts.WillTopic != "lwt" || string(mc.opts.WillPayload) != "bye" {
		t.Fatalf("will options incorrect")
	}
	cli.Disconnect()
	if len(mc.published) != 0 {
		t.Fatalf("unexpected publish on disconnect")
	}
}

func TestRetryLogic(t *testing.T) {
	mc := &mockClient{publishErrs: []error{fmt.Errorf("net fail"), nil}}
	withMock(t, mc)
	cfg := Config{Broker: "tcp://localhost:1883", ClientID: "id", MaxRetries: 1, BackoffMS: 1, Variables: []string{"pExp"}}
	cli, err := NewPahoClient(cfg)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	if _, err := cli.PublishSchedule("run", "north", testCandidate(t)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(mc.published) != 2 {
		t.Fatalf("expected retries")
	}
}

func TestWaitForAckTimeout(t *testing.T) {
	mc := &mockClient{}
	withMock(t, mc)
	cfg := Config{Broker: "tcp://localhost:1883", ClientID: "id", AckTopic: "acks", Variables: []string{"pImp"}}
	cli, err := NewPahoClient(cfg)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	ids, _ := cli.PublishSchedule("run", "north", testCandidate(t))
	ok, err := cli.WaitForAck(ids[0], time.Millisecond)
	if !errors.Is(err, coremqtt.ErrAckTimeout) || ok {
		t.Fatalf("expected timeout, got %v", err)
	}
	if _, err := cli.WaitForAck(ids[0], time.Millisecond); !errors.Is(err, coremqtt.ErrUnknownMessage) {
		t.Fatalf("expected unknown message, got %v", err)
	}
}

func TestAckBeforePublishReturns(t *testing.T) {
	mc := &mockClient{}
	withMock(t, mc)
	cli, err := NewPahoClient(Config{Broker: "tcp://localhost:1883", ClientID: "id", AckTopic: "acks", Variables: []string{"pImp"}})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	// the device acks while the publish token is still pending
	mc.onPublish = func(payload []byte) {
		var sp coremqtt.Setpoint
		if err := json.Unmarshal(payload, &sp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		cli.onAck(nil, mockMessage{[]byte(fmt.Sprintf(`{"message_id":"%s"}`, sp.MessageID))})
	}
	ids, err := cli.PublishSchedule("run", "north", testCandidate(t))
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	ok, err := cli.WaitForAck(ids[0], time.Millisecond)
	if err != nil || !ok {
		t.Fatalf("early ack lost: %v", err)
	}
}

func TestFailedPublishDropsAckTracking(t *testing.T) {
	mc := &mockClient{publishErrs: []error{fmt.Errorf("down"), fmt.Errorf("down")}}
	withMock(t, mc)
	cli, err := NewPahoClient(Config{Broker: "tcp://localhost:1883", ClientID: "id", AckTopic: "acks",
		MaxRetries: 1, BackoffMS: 1, Variables: []string{"pImp"}})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	if _, err := cli.PublishSchedule("run", "north", testCandidate(t)); err == nil {
		t.Fatalf("expected publish error")
	}
	if n := len(cli.ackChans); n != 0 {
		t.Fatalf("%d ack channels left after failed publish", n)
	}
}

func TestAckTimeoutDefaults(t *testing.T) {
	cfg := Config{Broker: "tcp://localhost:1883"}
	cfg.SetDefaults()
	if cfg.AckTimeout() != 0 {
		t.Fatalf("ack timeout without ack topic: %v", cfg.AckTimeout())
	}
	cfg = Config{Broker: "tcp://localhost:1883", AckTopic: "acks"}
	cfg.SetDefaults()
	if cfg.AckTimeout() != 5*time.Second {
		t.Fatalf("default ack timeout = %v", cfg.AckTimeout())
	}
}

// mockClient implements pahoClient for tests
type mockClient struct {
	opts       *paho.ClientOptions
	subscribed []struct {
		topic string
		qos   byte
	}
	published []struct {
		topic   string
		qos     byte
		payload interface{}
	}
	publishErrs []error
	onPublish   func(payload []byte)
}

func (m *mockClient) IsConnected() bool { return true }
func (m *mockClient) Connect() paho.Token {
	if m.opts != nil && m.opts.OnConnect != nil {
		m.opts.OnConnect(m)
	}
	return &dummyToken{}
}
func (m *mockClient) Disconnect(uint) {}
func (m *mockClient) Publish(topic string, qos byte, _ bool, payload interface{}) paho.Token {
	m.published = append(m.published, struct {
		topic   string
		qos     byte
		payload interface{}
	}{topic, qos, payload})
	if m.onPublish != nil {
		m.onPublish(payload.([]byte))
	}
	if len(m.publishErrs) > 0 {
		err := m.publishErrs[0]
		m.publishErrs = m.publishErrs[1:]
		return &dummyToken{err: err}
	}
	return &dummyToken{}
}
func (m *mockClient) Subscribe(topic string, qos byte, _ paho.MessageHandler) paho.Token {
	m.subscribed = append(m.subscribed, struct {
		topic string
		qos   byte
	}{topic, qos})
	return &dummyToken{}
}
func (m *mockClient) SubscribeMultiple(map[string]byte, paho.MessageHandler) paho.Token {
	return &dummyToken{}
}
func (m *mockClient) Unsubscribe(...string) paho.Token        { return &dummyToken{} }
func (m *mockClient) AddRoute(string, paho.MessageHandler)    {}
func (m *mockClient) OptionsReader() paho.ClientOptionsReader { return paho.ClientOptionsReader{} }
func (m *mockClient) IsConnectionOpen() bool                  { return true }

type dummyToken struct{ err error }

func (d dummyToken) Wait() bool                     { return true }
func (d dummyToken) WaitTimeout(time.Duration) bool { return true }
func (d dummyToken) Done() <-chan struct{}          { ch := make(chan struct{}); close(ch); return ch }
func (d dummyToken) Error() error                   { return d.err }

type mockMessage struct{ p []byte }

func (m mockMessage) Duplicate() bool   { return false }
func (m mockMessage) Qos() byte         { return 0 }
func (m mockMessage) Retained() bool    { return false }
func (m mockMessage) Topic() string     { return "" }
func (m mockMessage) MessageID() uint16 { return 0 }
func (m mockMessage) Payload() []byte   { return m.p }
func (m mockMessage) Ack()              {}
