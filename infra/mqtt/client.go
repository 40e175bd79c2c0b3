package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/kilianp07/haulplan/core/model"
	coremqtt "github.com/kilianp07/haulplan/core/mqtt"
	"github.com/kilianp07/haulplan/infra/logger"
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Enabled  bool   `json:"enabled"`
	Broker   string `json:"broker"`
	ClientID string `json:"client_id"`
	Username string `json:"username"`
	Password string `json:"password"`
	// TopicPrefix roots every topic, e.g. <prefix>/truck/<id>/plan.
	TopicPrefix string          `json:"topic_prefix"`
	UseTLS      bool            `json:"use_tls"`
	ClientCert  string          `json:"client_cert"`
	ClientKey   string          `json:"client_key"`
	CABundle    string          `json:"ca_bundle"`
	AuthMethod  string          `json:"auth_method"`
	QoS         map[string]byte `json:"qos"`
	// Retain keeps the last weekly order on the broker for trucks that
	// connect later in the week.
	Retain     bool        `json:"retain"`
	LWTTopic   string      `json:"lwt_topic"`
	LWTPayload string      `json:"lwt_payload"`
	LWTQoS     byte        `json:"lwt_qos"`
	LWTRetain  bool        `json:"lwt_retain"`
	MaxRetries int         `json:"max_retries"`
	BackoffMS  int         `json:"backoff_ms"`
	TLSConfig  *tls.Config `json:"-"`
}

func (c Config) prefix() string {
	if c.TopicPrefix == "" {
		return "haulplan"
	}
	return strings.TrimSuffix(c.TopicPrefix, "/")
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

// PahoClient publishes weekly truck orders using Eclipse Paho and tracks
// their acknowledgments.
type PahoClient struct {
	cli    pahoClient
	prefix string
	qos    map[string]byte
	retain bool

	mu         sync.Mutex
	ackChans   map[string]chan struct{}
	logger     logger.Logger
	maxRetries int
	backoff    time.Duration
	now        func() time.Time
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// NewPahoClient connects to the MQTT broker and subscribes to the truck ACK topic.
func NewPahoClient(cfg Config) (*PahoClient, error) {
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	logger := logger.New("mqtt_client")
	pc := &PahoClient{
		prefix:     cfg.prefix(),
		qos:        cfg.QoS,
		retain:     cfg.Retain,
		ackChans:   make(map[string]chan struct{}),
		logger:     logger,
		maxRetries: cfg.MaxRetries,
		backoff:    time.Duration(cfg.BackoffMS) * time.Millisecond,
		now:        time.Now,
	}
	if pc.maxRetries <= 0 {
		pc.maxRetries = 3
	}
	if pc.backoff <= 0 {
		pc.backoff = 100 * time.Millisecond
	}

	opts.OnConnect = func(c paho.Client) {
		logger.Infof("MQTT connected")
		if token := c.Subscribe(pc.AckTopic(), pc.qosFor("ack"), pc.onAck); token.Wait() && token.Error() != nil {
			logger.Errorf("subscribe error: %v", token.Error())
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		logger.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		logger.Warnf("reconnecting to MQTT broker")
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
	if !pool.AppendCertsFromPEM(caBytes) {
		return nil, fmt.Errorf("no certificate found in %s", c.CABundle)
	}
	return &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

// OrderTopic returns the topic a truck listens on for its weekly plan.
func (p *PahoClient) OrderTopic(truckID string) string {
	return fmt.Sprintf("%s/truck/%s/plan", p.prefix, truckID)
}

// AckTopic returns the wildcard topic trucks acknowledge orders on.
func (p *PahoClient) AckTopic() string {
	return p.prefix + "/truck/+/ack"
}

// SummaryTopic returns the topic of the run summary.
func (p *PahoClient) SummaryTopic() string {
	return p.prefix + "/plan/summary"
}

func (p *PahoClient) qosFor(kind string) byte {
	if q, ok := p.qos[kind]; ok {
		return q
	}
	return 0
}

func (p *PahoClient) onAck(_ paho.Client, msg paho.Message) {
	var m struct {
		OrderID string `json:"order_id"`
	}
	if err := json.Unmarshal(msg.Payload(), &m); err != nil {
		p.logger.Errorf("failed to decode ack: %v", err)
		return
	}
	p.mu.Lock()
	ch, ok := p.ackChans[m.OrderID]
	if ok {
		select {
		case ch <- struct{}{}:
		default:
		}
		p.logger.Infof("received ack %s", m.OrderID)
	}
	p.mu.Unlock()
}

// publish sends payload with exponential backoff between attempts.
func (p *PahoClient) publish(ctx context.Context, topic string, qos byte, payload []byte) error {
	var publishErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		token := p.cli.Publish(topic, qos, p.retain, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			return nil
		}
		p.logger.Errorf("publish attempt %d to %s failed: %v", attempt+1, topic, publishErr)
		if attempt == p.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.backoff * time.Duration(1<<attempt)):
		}
	}
	return publishErr
}

// PublishPlan sends one order per truck that received work and a summary of
// the run. Failed trucks are reported in the results; the returned error is
// only set when the summary could not be published or ctx ended.
func (p *PahoClient) PublishPlan(ctx context.Context, runID string, out *model.Outcome) ([]coremqtt.OrderResult, error) {
	now := p.now()
	orders := BuildOrders(runID, out, now)
	results := make([]coremqtt.OrderResult, 0, len(orders))
	for _, o := range orders {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		o.OrderID = uuid.NewString()
		payload, err := json.Marshal(o)
		if err != nil {
			return results, err
		}
		res := coremqtt.OrderResult{TruckID: o.TruckID, OrderID: o.OrderID}
		// registered before publishing so a fast ack is not lost
		p.mu.Lock()
		p.ackChans[o.OrderID] = make(chan struct{}, 1)
		p.mu.Unlock()
		if err := p.publish(ctx, p.OrderTopic(o.TruckID), p.qosFor("order"), payload); err != nil {
			res.Err = err
			p.mu.Lock()
			delete(p.ackChans, o.OrderID)
			p.mu.Unlock()
		} else {
			p.logger.Infof("sent order %s to %s", o.OrderID, p.OrderTopic(o.TruckID))
		}
		results = append(results, res)
	}

	payload, err := json.Marshal(BuildSummary(runID, out, orders, now))
	if err != nil {
		return results, err
	}
	if err := p.publish(ctx, p.SummaryTopic(), p.qosFor("summary"), payload); err != nil {
		return results, fmt.Errorf("publish summary: %w", err)
	}
	return results, nil
}

// WaitForAck blocks until an ACK for the given order ID is received or timeout.
func (p *PahoClient) WaitForAck(orderID string, timeout time.Duration) (bool, error) {
	p.mu.Lock()
	ch := p.ackChans[orderID]
	p.mu.Unlock()
	if ch == nil {
		return false, fmt.Errorf("unknown order")
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ch:
		p.mu.Lock()
		delete(p.ackChans, orderID)
		p.mu.Unlock()
		return true, nil
	case <-timer.C:
		p.mu.Lock()
		delete(p.ackChans, orderID)
		p.mu.Unlock()
		return false, fmt.Errorf("order %s: %w", orderID, coremqtt.ErrAckTimeout)
	}
}

// Disconnect gracefully closes the MQTT connection.
func (p *PahoClient) Disconnect() {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
}
