// Package feed subscribes to the external observation pipeline over NATS.
// Delivery is best-effort and lossy by contract; messages on one subscription
// are dispatched serially, which preserves the engine's one-observation-at-a-
// time processing model.
package feed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// #region config

// Config holds the feed connection parameters.
type Config struct {
	URL     string // default nats.DefaultURL
	Subject string // default "steptrace.observations"
}

// DefaultConfig returns the documented feed defaults.
func DefaultConfig() Config {
	return Config{
		URL:     nats.DefaultURL,
		Subject: "steptrace.observations",
	}
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.URL == "" {
		c.URL = def.URL
	}
	if c.Subject == "" {
		c.Subject = def.Subject
	}
}

// #endregion config

// #region message

// message is the wire form of one observation.
type message struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// #endregion message

// #region processor

// Processor consumes observations; implemented by the engine.
type Processor interface {
	ProcessObservation(ctx context.Context, id, rawText string) error
}

// #endregion processor

// #region feed

// Feed is a running observation subscription.
type Feed struct {
	conn *nats.Conn
	sub  *nats.Subscription
	log  *zap.Logger
}

// Start connects and subscribes. Malformed messages are dropped with a log
// line; the pipeline is allowed to be lossy.
func Start(ctx context.Context, cfg Config, proc Processor, log *zap.Logger) (*Feed, error) {
	cfg.applyDefaults()
	if proc == nil {
		return nil, fmt.Errorf("feed: processor is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	conn, err := nats.Connect(cfg.URL, nats.Name("steptrace-feed"))
	if err != nil {
		return nil, fmt.Errorf("feed: connect %s: %w", cfg.URL, err)
	}

	sub, err := conn.Subscribe(cfg.Subject, func(msg *nats.Msg) {
		var m message
		if err := json.Unmarshal(msg.Data, &m); err != nil {
			log.Warn("dropping malformed observation message", zap.Error(err))
			return
		}
		if m.ID == "" {
			m.ID = uuid.New().String()
		}
		if err := proc.ProcessObservation(ctx, m.ID, m.Text); err != nil {
			log.Warn("observation processing aborted",
				zap.String("observation_id", m.ID), zap.Error(err))
		}
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("feed: subscribe %s: %w", cfg.Subject, err)
	}

	log.Info("observation feed started",
		zap.String("url", cfg.URL), zap.String("subject", cfg.Subject))
	return &Feed{conn: conn, sub: sub, log: log}, nil
}

// Close drains the subscription and closes the connection.
func (f *Feed) Close() error {
	if err := f.sub.Drain(); err != nil {
		f.conn.Close()
		return fmt.Errorf("feed: drain: %w", err)
	}
	f.conn.Close()
	return nil
}

// #endregion feed
