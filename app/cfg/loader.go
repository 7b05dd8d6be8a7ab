package cfg

import (
	"cmp"
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Checkpoint storage configuration
	StateDir          string `long:"state-dir" env:"STATE_DIR" default:"./state" description:"Directory for the checkpoint database"`
	CheckpointBackend string `long:"checkpoint-backend" env:"CHECKPOINT_BACKEND" default:"sqlite" description:"Checkpoint storage backend (sqlite or redis)"`
	RedisAddr         string `long:"redis-addr" env:"REDIS_ADDR" default:"localhost:6379" description:"Redis server address"`
	RedisPassword     string `long:"redis-password" env:"REDIS_PASSWORD" description:"Redis password (optional)"`
	RedisDB           int    `long:"redis-db" env:"REDIS_DB" default:"0" description:"Redis database number"`

	// Event sink configuration
	Sink           string   `long:"sink" env:"SINK" default:"stdout" description:"Event sink backend (stdout, http, kafka or nats)"`
	CollectorURL   string   `long:"collector-url" env:"COLLECTOR_URL" description:"HTTP event collector URL"`
	CollectorToken string   `long:"collector-token" env:"COLLECTOR_TOKEN" description:"HTTP event collector token (optional)"`
	KafkaBrokers   []string `long:"kafka-broker" env:"KAFKA_BROKERS" env-delim:"," description:"Kafka broker address (repeatable)"`
	KafkaTopic     string   `long:"kafka-topic" env:"KAFKA_TOPIC" default:"feedspout.events" description:"Kafka topic for events"`
	NATSURL        string   `long:"nats-url" env:"NATS_URL" default:"nats://127.0.0.1:4222" description:"NATS server URL"`
	NATSSubject    string   `long:"nats-subject" env:"NATS_SUBJECT" default:"feedspout.events" description:"NATS subject prefix for events"`

	// Application configuration
	FeedsDir          string `long:"feeds-dir" env:"FEEDS_DIR" default:"./feeds" description:"Directory containing feed configuration files"`
	Port              string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	WorkerCount       int    `long:"worker-count" env:"WORKER_COUNT" default:"5" description:"Number of background workers for feed polling"`
	SchedulerInterval int    `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"30" description:"Scheduler interval in seconds"`
	APIAccessKey      string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		StateDir:          raw.StateDir,
		CheckpointBackend: raw.CheckpointBackend,
		RedisAddr:         raw.RedisAddr,
		RedisPassword:     raw.RedisPassword,
		RedisDB:           raw.RedisDB,
		Sink:              raw.Sink,
		CollectorURL:      raw.CollectorURL,
		CollectorToken:    raw.CollectorToken,
		KafkaBrokers:      raw.KafkaBrokers,
		KafkaTopic:        raw.KafkaTopic,
		NATSURL:           raw.NATSURL,
		NATSSubject:       raw.NATSSubject,
		FeedsDir:          raw.FeedsDir,
		Port:              raw.Port,
		WorkerCount:       raw.WorkerCount,
		SchedulerInterval: raw.SchedulerInterval,
		APIAccessKey:      raw.APIAccessKey,
		UserAgent:         cmp.Or(raw.UserAgent, "feedspout/"+GetVersion()),
		Timezone:          raw.Timezone,
		Debug:             raw.Debug,
		Version:           GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

// applyTimezone sets time.Local. Stdout stays untouched here: with the
// default stdout sink it carries the event stream, so startup notes go to
// stderr.
func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
			fmt.Fprintf(os.Stderr, "Timezone configured: %s\n", timezone)
		}
	}
	return nil
}
