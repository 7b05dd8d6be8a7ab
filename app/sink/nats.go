package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSSink publishes events to per-feed subjects under a common prefix,
// e.g. "feedspout.events.<feed name>".
type NATSSink struct {
	conn          *nats.Conn
	subjectPrefix string
	logger        *slog.Logger
}

func NewNATSSink(url string, subjectPrefix string, logger *slog.Logger) (*NATSSink, error) {
	conn, err := nats.Connect(url,
		nats.Name("feedspout"),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSSink{
		conn:          conn,
		subjectPrefix: subjectPrefix,
		logger:        logger,
	}, nil
}

func (s *NATSSink) Write(ctx context.Context, event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	subject := fmt.Sprintf("%s.%s", s.subjectPrefix, event.Source)

	if err := s.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to deliver event: %w", err)
	}

	s.logger.Debug("Event delivered", "sink", "nats", "subject", subject)
	return nil
}

func (s *NATSSink) Close() error {
	if err := s.conn.Drain(); err != nil {
		s.conn.Close()
		return err
	}

	return nil
}
