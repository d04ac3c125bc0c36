package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Processor  ProcessorConfig
	EventLoop  EventLoopConfig
	AdminAPI   AdminAPIConfig
	Redis      RedisConfig
	Postgres   PostgresConfig
	GRPCClient GRPCClientConfig
	Metrics    MetricsConfig
	Auth       AuthConfig
	LogLevel   string
}

// ProcessorConfig mirrors the per-Task-Processor configuration knobs:
// worker_threads, task_trace_every, overload_action, task_queue_size_limit,
// task_queue_wait_limit.
type ProcessorConfig struct {
	WorkerThreads      int
	TaskTraceEvery     int
	OverloadAction     string // "cancel" or "ignore"
	TaskQueueSizeLimit int
	TaskQueueWaitLimit time.Duration
	ShutdownTimeout    time.Duration
}

// EventLoopConfig mirrors the per-Event-Thread configuration knobs:
// thread_count, defer_events.
type EventLoopConfig struct {
	ThreadCount int
	DeferEvents bool
	QueueDepth  int
}

type AdminAPIConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	RateLimitRPS int
}

type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type PostgresConfig struct {
	DSN             string
	MaxConns        int
	MinConns        int
	ConnMaxLifetime time.Duration
}

type GRPCClientConfig struct {
	Target            string
	DialTimeout       time.Duration
	KeepaliveInterval time.Duration
}

type MetricsConfig struct {
	Enabled bool
	Path    string
}

type AuthConfig struct {
	Enabled   bool
	JWTSecret string
	APIKeys   []string

	// CancelRole is the minimum JWT role required to cancel a task through
	// the admin API; "admin" always satisfies it regardless of this value.
	// API-key requests carry a synthetic "admin" role claim, so they always
	// satisfy it.
	CancelRole string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/coro")

	setDefaults()

	viper.SetEnvPrefix("SCHED")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults() {
	// Processor defaults
	viper.SetDefault("processor.workerthreads", 10)
	viper.SetDefault("processor.tasktraceevery", 1000)
	viper.SetDefault("processor.overloadaction", "cancel")
	viper.SetDefault("processor.taskqueuesizelimit", 10000)
	viper.SetDefault("processor.taskqueuewaitlimit", 30*time.Second)
	viper.SetDefault("processor.shutdowntimeout", 30*time.Second)

	// Event loop defaults
	viper.SetDefault("eventloop.threadcount", 1)
	viper.SetDefault("eventloop.deferevents", false)
	viper.SetDefault("eventloop.queuedepth", 1024)

	// Admin API defaults
	viper.SetDefault("adminapi.host", "0.0.0.0")
	viper.SetDefault("adminapi.port", 8081)
	viper.SetDefault("adminapi.readtimeout", 30*time.Second)
	viper.SetDefault("adminapi.writetimeout", 30*time.Second)
	viper.SetDefault("adminapi.idletimeout", 120*time.Second)
	viper.SetDefault("adminapi.ratelimitrps", 100)

	// Redis defaults (examples/redistx)
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.poolsize", 100)
	viper.SetDefault("redis.minidleconns", 10)
	viper.SetDefault("redis.maxretries", 3)
	viper.SetDefault("redis.dialtimeout", 5*time.Second)
	viper.SetDefault("redis.readtimeout", 3*time.Second)
	viper.SetDefault("redis.writetimeout", 3*time.Second)

	// Postgres defaults (examples/pgparamstore)
	viper.SetDefault("postgres.dsn", "")
	viper.SetDefault("postgres.maxconns", 10)
	viper.SetDefault("postgres.minconns", 2)
	viper.SetDefault("postgres.connmaxlifetime", time.Hour)

	// gRPC client defaults (examples/grpcclient)
	viper.SetDefault("grpcclient.target", "")
	viper.SetDefault("grpcclient.dialtimeout", 5*time.Second)
	viper.SetDefault("grpcclient.keepaliveinterval", 30*time.Second)

	// Metrics defaults
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")

	// Auth defaults
	viper.SetDefault("auth.enabled", false)
	viper.SetDefault("auth.jwtsecret", "")
	viper.SetDefault("auth.apikeys", []string{})
	viper.SetDefault("auth.cancelrole", "operator")

	// Logging defaults
	viper.SetDefault("loglevel", "info")
}
