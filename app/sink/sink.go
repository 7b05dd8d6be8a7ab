package sink

import (
	"fmt"
	"log/slog"
	"os"
)

// Options selects and configures a sink backend.
type Options struct {
	Kind         string
	CollectorURL string
	Token        string
	KafkaBrokers []string
	KafkaTopic   string
	NATSURL      string
	NATSSubject  string
}

func New(opts Options, logger *slog.Logger) (Sink, error) {
	switch opts.Kind {
	case "", "stdout":
		return NewStdoutSink(os.Stdout), nil
	case "http":
		if opts.CollectorURL == "" {
			return nil, fmt.Errorf("http sink requires a collector URL")
		}

		return NewCollectorSink(opts.CollectorURL, opts.Token, logger), nil
	case "kafka":
		if len(opts.KafkaBrokers) == 0 {
			return nil, fmt.Errorf("kafka sink requires at least one broker")
		}

		return NewKafkaSink(opts.KafkaBrokers, opts.KafkaTopic, logger)
	case "nats":
		if opts.NATSURL == "" {
			return nil, fmt.Errorf("nats sink requires a server URL")
		}

		return NewNATSSink(opts.NATSURL, opts.NATSSubject, logger)
	default:
		return nil, fmt.Errorf("unknown sink '%s'", opts.Kind)
	}
}
