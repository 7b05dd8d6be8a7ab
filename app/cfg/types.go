package cfg

type Cfg struct {
	// Checkpoint storage configuration
	StateDir          string
	CheckpointBackend string
	RedisAddr         string
	RedisPassword     string
	RedisDB           int

	// Event sink configuration
	Sink           string
	CollectorURL   string
	CollectorToken string
	KafkaBrokers   []string
	KafkaTopic     string
	NATSURL        string
	NATSSubject    string

	// Application configuration
	FeedsDir          string
	Port              string
	WorkerCount       int
	SchedulerInterval int
	APIAccessKey      string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
