// Package mqtt publishes profiler descriptors and records to an MQTT broker
// as JSON documents.
//
// Descriptors go to "<topic>/types/<id>" as retained messages so late
// subscribers can decode records; records go to "<topic>/records".
package mqtt

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/tidwall/sjson"

	"github.com/dshills/appevent/internal/profiler"
)

// Config describes the broker connection and publishing behavior.
type Config struct {
	// Broker is the broker URL, e.g. "tcp://localhost:1883".
	Broker string

	// ClientID identifies the connection. Empty means "appevent-<session>".
	ClientID string

	// Topic is the topic prefix.
	Topic string

	// QoS is the MQTT quality of service for every publish.
	QoS byte

	// Buffer is the record queue length. Records beyond it are dropped.
	Buffer int

	// PublishTimeout bounds the wait for each publish acknowledgement.
	PublishTimeout time.Duration
}

func (c *Config) setDefaults() {
	if c.Topic == "" {
		c.Topic = "appevent/trace"
	}
	if c.Buffer <= 0 {
		c.Buffer = 1024
	}
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = 5 * time.Second
	}
}

// Sink is a profiler.Profiler that forwards to MQTT. Emit never blocks; a
// single goroutine encodes and publishes.
type Sink struct {
	log     *slog.Logger
	client  mqtt.Client
	cfg     Config
	session uuid.UUID

	typesMu sync.RWMutex
	types   map[uint16]profiler.TypeDescriptor

	mu      sync.RWMutex
	closed  bool
	records chan profiler.Record
	done    chan struct{}

	published atomic.Uint64
	dropped   atomic.Uint64
	failed    atomic.Uint64
}

// Dial connects to cfg.Broker and returns a running sink.
func Dial(log *slog.Logger, cfg Config) (*Sink, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mqtt broker not configured")
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	session := profiler.NewSessionID()
	if cfg.ClientID == "" {
		cfg.ClientID = "appevent-" + session.String()[:8]
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetConnectTimeout(5 * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		log.Info("connected to MQTT broker", slog.String("broker", cfg.Broker), slog.String("client_id", cfg.ClientID))
	})
	opts.SetConnectionLostHandler(func(c mqtt.Client, err error) {
		if err != nil {
			log.Warn("mqtt connection lost", slog.String("err", err.Error()))
		}
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, errors.New("timeout connecting to mqtt broker")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect mqtt broker: %w", err)
	}

	return New(log, client, session, cfg), nil
}

// New returns a running sink that publishes through an already connected
// client.
func New(log *slog.Logger, client mqtt.Client, session uuid.UUID, cfg Config) *Sink {
	cfg.setDefaults()
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	s := &Sink{
		log:     log.With(slog.String("component", "mqtt-trace")),
		client:  client,
		cfg:     cfg,
		session: session,
		types:   make(map[uint16]profiler.TypeDescriptor),
		records: make(chan profiler.Record, cfg.Buffer),
		done:    make(chan struct{}),
	}
	go s.loop()
	return s
}

// Session returns the trace session identifier carried in every message.
func (s *Sink) Session() uuid.UUID { return s.session }

// RegisterType publishes the descriptor as a retained message.
func (s *Sink) RegisterType(d profiler.TypeDescriptor) error {
	if err := d.Info.Validate(); err != nil {
		return err
	}
	payload, err := encodeDescriptor(s.session, d)
	if err != nil {
		return err
	}

	s.typesMu.Lock()
	s.types[d.ID] = d
	s.typesMu.Unlock()

	topic := s.cfg.Topic + "/types/" + strconv.Itoa(int(d.ID))
	return s.publish(topic, true, payload)
}

// Emit queues r for publishing. It drops the record when the queue is full
// or the sink is closed.
func (s *Sink) Emit(r profiler.Record) {
	if r.Args != nil {
		r.Args = append([]byte(nil), r.Args...)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.dropped.Add(1)
		return
	}
	select {
	case s.records <- r:
	default:
		s.dropped.Add(1)
	}
}

// Close publishes what is queued and disconnects.
func (s *Sink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.records)
	s.mu.Unlock()

	<-s.done
	s.client.Disconnect(250)
	return nil
}

// Stats reports publish counters.
type Stats struct {
	Published uint64
	Dropped   uint64
	Failed    uint64
}

// Stats returns the current counters.
func (s *Sink) Stats() Stats {
	return Stats{
		Published: s.published.Load(),
		Dropped:   s.dropped.Load(),
		Failed:    s.failed.Load(),
	}
}

func (s *Sink) loop() {
	defer close(s.done)
	topic := s.cfg.Topic + "/records"
	for r := range s.records {
		s.typesMu.RLock()
		d, ok := s.types[r.TypeID]
		s.typesMu.RUnlock()
		if !ok {
			d = profiler.TypeDescriptor{ID: r.TypeID}
		}

		payload, err := encodeRecord(s.session, d, r)
		if err != nil {
			s.failed.Add(1)
			s.log.Warn("encode trace record", slog.String("type", d.Name), slog.String("err", err.Error()))
			continue
		}
		if err := s.publish(topic, false, payload); err != nil {
			s.log.Warn("publish trace record", slog.String("type", d.Name), slog.String("err", err.Error()))
		}
	}
}

func (s *Sink) publish(topic string, retained bool, payload []byte) error {
	token := s.client.Publish(topic, s.cfg.QoS, retained, payload)
	if !token.WaitTimeout(s.cfg.PublishTimeout) {
		s.failed.Add(1)
		return fmt.Errorf("publish %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		s.failed.Add(1)
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	s.published.Add(1)
	return nil
}

func encodeDescriptor(session uuid.UUID, d profiler.TypeDescriptor) ([]byte, error) {
	doc := []byte(`{}`)
	var err error
	set := func(path string, v any) {
		if err == nil {
			doc, err = sjson.SetBytes(doc, path, v)
		}
	}

	set("session", session.String())
	set("id", d.ID)
	set("name", d.Name)
	set("args", []any{})
	for i, label := range d.Info.Labels {
		set("args."+strconv.Itoa(i)+".label", label)
		set("args."+strconv.Itoa(i)+".type", d.Info.Types[i].String())
	}
	return doc, err
}

func encodeRecord(session uuid.UUID, d profiler.TypeDescriptor, r profiler.Record) ([]byte, error) {
	doc := []byte(`{}`)
	var err error
	set := func(path string, v any) {
		if err == nil {
			doc, err = sjson.SetBytes(doc, path, v)
		}
	}

	set("session", session.String())
	set("kind", r.Kind.String())
	set("type_id", r.TypeID)
	if d.Name != "" {
		set("type", d.Name)
	}
	set("seq", r.Seq)
	set("ts", r.Timestamp.UTC().Format(time.RFC3339Nano))

	if r.Kind == profiler.KindSubmit && len(d.Info.Labels) > 0 {
		values, derr := profiler.Decode(d.Info, r.Args)
		if derr != nil {
			return nil, derr
		}
		for i, v := range values {
			if dur, ok := v.(time.Duration); ok {
				v = dur.Milliseconds()
			}
			set("args."+escapePath(d.Info.Labels[i]), v)
		}
	}
	return doc, err
}

// escapePath escapes the sjson path metacharacters in a label.
func escapePath(s string) string {
	var b []byte
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '.', '*', '?', '|', '#', '@', '\\', ':':
			b = append(b, '\\')
		}
		b = append(b, s[i])
	}
	return string(b)
}
