package sink

import (
	"context"
)

// Sink delivers events to the indexing system. Each Write is one
// independent emission; implementations must be safe for concurrent use.
type Sink interface {
	Write(ctx context.Context, event *Event) error
	Close() error
}

var _ Sink = (*StdoutSink)(nil)
var _ Sink = (*CollectorSink)(nil)
var _ Sink = (*KafkaSink)(nil)
var _ Sink = (*NATSSink)(nil)
