// Package kafkasink publishes quota modal events to a Kafka topic.
//
// Track never blocks the caller: events go onto a bounded buffer drained by a
// background goroutine. When the buffer is full the event is dropped and
// logged. Close flushes what is buffered.
package kafkasink

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/uncleJim21/pullthatupjamie/internal/analytics"
)

// Writer is the subset of *kafka.Writer the sink uses.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Config configures a Sink.
type Config struct {
	Brokers []string
	Topic   string

	// MaxAttempts defaults to 3.
	MaxAttempts int
	// WriteTimeout is the per-attempt timeout. Defaults to 5s.
	WriteTimeout time.Duration
	// Buffer is the number of queued events. Defaults to 256.
	Buffer int

	Logger zerolog.Logger
}

// Sink implements analytics.Sink on top of a Kafka writer.
type Sink struct {
	writer       Writer
	maxAttempts  int
	writeTimeout time.Duration
	logger       zerolog.Logger

	// mu guards closed; Track sends under the read lock so Close never
	// closes events under a sender.
	mu     sync.RWMutex
	closed bool
	events chan analytics.Event
	done   chan struct{}
	once   sync.Once
}

var _ analytics.Sink = (*Sink)(nil)

// New dials nothing up front; kafka-go connects lazily on the first write.
func New(cfg Config) (*Sink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: at least one broker required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka: topic required")
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: cfg.WriteTimeout,
	}
	return NewWithWriter(w, cfg), nil
}

// NewWithWriter builds a Sink around an existing writer.
func NewWithWriter(w Writer, cfg Config) *Sink {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 256
	}
	s := &Sink{
		writer:       w,
		maxAttempts:  cfg.MaxAttempts,
		writeTimeout: cfg.WriteTimeout,
		logger:       cfg.Logger,
		events:       make(chan analytics.Event, cfg.Buffer),
		done:         make(chan struct{}),
	}
	go s.run()
	return s
}

// Track queues e without blocking. Events tracked after Close are dropped.
func (s *Sink) Track(e analytics.Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.logger.Debug().Str("event", string(e.Name)).Msg("analytics sink closed; event dropped")
		return
	}
	select {
	case s.events <- e:
	default:
		s.logger.Warn().Str("event", string(e.Name)).Msg("analytics buffer full; event dropped")
	}
}

// Close stops accepting events, flushes the buffer and closes the writer.
func (s *Sink) Close() error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.events)
		s.mu.Unlock()

		<-s.done
		err = s.writer.Close()
	})
	return err
}

func (s *Sink) run() {
	defer close(s.done)
	for e := range s.events {
		if err := s.publish(e); err != nil {
			s.logger.Warn().Err(err).Str("event", string(e.Name)).Msg("analytics publish failed")
		}
	}
}

func (s *Sink) publish(e analytics.Event) error {
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(e.ActivationID),
		Value: value,
		Time:  e.At.UTC(),
	}

	var lastErr error
	backoff := 100 * time.Millisecond
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
		lastErr = s.writer.WriteMessages(ctx, msg)
		cancel()
		if lastErr == nil {
			return nil
		}
		if attempt < s.maxAttempts {
			time.Sleep(backoff)
			backoff *= 2
		}
	}
	return fmt.Errorf("produce failed after %d attempts: %w", s.maxAttempts, lastErr)
}
