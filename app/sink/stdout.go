package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// StdoutSink writes one JSON object per line. Events go to stdout and logs
// to stderr, so the stream stays machine readable.
type StdoutSink struct {
	mu      sync.Mutex
	encoder *json.Encoder
}

func NewStdoutSink(w io.Writer) *StdoutSink {
	return &StdoutSink{encoder: json.NewEncoder(w)}
}

func (s *StdoutSink) Write(ctx context.Context, event *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.encoder.Encode(event); err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	return nil
}

func (s *StdoutSink) Close() error {
	return nil
}
