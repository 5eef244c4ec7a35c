// Package emitter fans stored events out to an MQTT broker.
package emitter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/banshee-data/pose.report/internal/monitoring"
	"github.com/banshee-data/pose.report/internal/pose/rules"
	"github.com/banshee-data/pose.report/internal/pose/sink"
)

var logf = monitoring.Prefixed("mqtt")

// ErrNotConnected is returned by PublishEvent while the broker is down.
var ErrNotConnected = errors.New("mqtt not connected")

// Config describes the broker connection.
type Config struct {
	Broker   string // e.g. tcp://localhost:1883
	ClientID string
	Topic    string // prefix; events go to <Topic>/<exercise>
	QoS      byte
	// PublishTimeout bounds the wait for a publish token. Default 2s.
	PublishTimeout time.Duration
}

// client is the part of mqtt.Client the publisher uses.
type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Publisher sends each stored event to the broker. It implements
// sink.Publisher.
type Publisher struct {
	cfg    Config
	client client
	paho   mqtt.Client

	mu        sync.RWMutex
	connected bool
	published map[string]uint64
	errors    uint64
}

// Stats contains publisher statistics.
type Stats struct {
	Connected bool              `json:"connected"`
	Published map[string]uint64 `json:"published"`
	Errors    uint64            `json:"errors"`
}

func newPublisher(cfg Config, c client) *Publisher {
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 2 * time.Second
	}
	if cfg.Topic == "" {
		cfg.Topic = "pose/events"
	}
	cfg.Topic = strings.TrimSuffix(cfg.Topic, "/")
	return &Publisher{cfg: cfg, client: c, published: make(map[string]uint64)}
}

// Connect dials the broker with automatic reconnection and returns a ready
// publisher.
func Connect(ctx context.Context, cfg Config) (*Publisher, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mqtt broker is required")
	}
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	p := newPublisher(cfg, nil)
	opts.OnConnect = func(mqtt.Client) {
		p.setConnected(true)
		logf("connection established broker=%s client_id=%s", cfg.Broker, cfg.ClientID)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		p.setConnected(false)
		logf("connection lost, will auto-reconnect: %v", err)
	}

	c := mqtt.NewClient(opts)
	p.client, p.paho = c, c

	logf("connecting to broker %s", cfg.Broker)
	token := c.Connect()
	select {
	case <-token.Done():
	case <-time.After(5 * time.Second):
		return nil, errors.New("mqtt connection timeout")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connection failed: %w", err)
	}
	p.setConnected(true)
	return p, nil
}

func (p *Publisher) setConnected(v bool) {
	p.mu.Lock()
	p.connected = v
	p.mu.Unlock()
}

func (p *Publisher) isConnected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.connected
}

func (p *Publisher) countError() {
	p.mu.Lock()
	p.errors++
	p.mu.Unlock()
}

// Topic returns the topic an event for exercise is published to.
func (p *Publisher) Topic(exercise string) string {
	seg := strings.Map(func(r rune) rune {
		switch r {
		case '+', '#', '/':
			return '-'
		}
		return r
	}, rules.Normalize(exercise))
	if seg == "" {
		seg = "unknown"
	}
	return p.cfg.Topic + "/" + seg
}

// PublishEvent encodes e and publishes it.
func (p *Publisher) PublishEvent(ctx context.Context, e sink.Event) error {
	if !p.isConnected() {
		p.countError()
		return ErrNotConnected
	}
	payload, err := Encode(e)
	if err != nil {
		p.countError()
		return fmt.Errorf("failed to encode event: %w", err)
	}

	topic := p.Topic(e.Exercise)
	token := p.client.Publish(topic, p.cfg.QoS, false, payload)
	timer := time.NewTimer(p.cfg.PublishTimeout)
	defer timer.Stop()
	select {
	case <-token.Done():
	case <-timer.C:
		p.countError()
		return errors.New("publish timeout")
	case <-ctx.Done():
		p.countError()
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		p.countError()
		return fmt.Errorf("publish failed: %w", err)
	}

	p.mu.Lock()
	p.published[topic]++
	p.mu.Unlock()
	return nil
}

// Stats returns a snapshot of publish counters.
func (p *Publisher) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	published := make(map[string]uint64, len(p.published))
	for k, v := range p.published {
		published[k] = v
	}
	return Stats{Connected: p.connected, Published: published, Errors: p.errors}
}

// Disconnect closes the broker connection.
func (p *Publisher) Disconnect() {
	if p.paho != nil && p.paho.IsConnected() {
		p.paho.Disconnect(250)
		logf("disconnected")
	}
	p.setConnected(false)
}

// Encode renders e as protojson of a structpb.Struct. Ratios are
// percentages, matching the history API.
func Encode(e sink.Event) ([]byte, error) {
	s, err := structpb.NewStruct(map[string]any{
		"id":                   e.ID,
		"stream_id":            e.StreamID,
		"pose_name":            e.Exercise,
		"is_correct":           e.Correct,
		"feedback":             e.Detail,
		"detection_confidence": e.ConfidencePercent(),
		"avg_visibility":       e.VisibilityPercent(),
		"frame_accuracy":       e.AccuracyPercent(),
		"timestamp":            e.Timestamp.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, err
	}
	return protojson.Marshal(s)
}
