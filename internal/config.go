package internal

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env           string              `mapstructure:"env"`
	Server        ServerConfig        `mapstructure:"http_server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Security      SecurityConfig      `mapstructure:"security" validate:"required"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Payment       PaymentConfig       `mapstructure:"payment"`
	Tasks         TasksConfig         `mapstructure:"tasks"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	BaseURL           string        `mapstructure:"base_url"`
	AllowedOrigins    string        `mapstructure:"allowed_origins"`
	OpenAPIPath       string        `mapstructure:"openapi_path"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"required,min=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"required,min=1"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"required,min=1m"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" validate:"required,min=1m"`
	Source          string        `mapstructure:"source"`
}

type SecurityConfig struct {
	// NotificationSigningKey signs the JWT attached to outgoing tenant notifications.
	NotificationSigningKey string        `mapstructure:"notification_signing_key" validate:"required,min=32"`
	NotificationTokenTTL   time.Duration `mapstructure:"notification_token_ttl"`
	BCryptCost             int           `mapstructure:"bcrypt_cost" validate:"required,min=10,max=15"`
}

type PaymentConfig struct {
	GatewayTimeout time.Duration `mapstructure:"gateway_timeout"`
	// VoidWindow is how long after capture a void is still attempted before falling back to credit.
	VoidWindow             time.Duration `mapstructure:"void_window"`
	CancelReviewDelay      time.Duration `mapstructure:"cancel_review_delay"`
	ManualReviewPercentage float64       `mapstructure:"manual_review_percentage"`
	NotificationTimeout    time.Duration `mapstructure:"notification_timeout"`
	NotificationRetries    uint64        `mapstructure:"notification_retries"`
	NotificationBackoff    time.Duration `mapstructure:"notification_backoff"`
}

type TasksConfig struct {
	Driver         string        `mapstructure:"driver" validate:"oneof=local kafka"`
	MaxWorkers     int           `mapstructure:"max_workers"`
	JobQueueSize   int           `mapstructure:"job_queue_size"`
	WorkerPoolSize int           `mapstructure:"worker_pool_size"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	RetryBackoff   time.Duration `mapstructure:"retry_backoff"`
	ScheduleKey    string        `mapstructure:"schedule_key"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	Kafka          KafkaConfig   `mapstructure:"kafka"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type ObservabilityConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics"`
	Tracing TracingConfig `mapstructure:"tracing"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path" validate:"required_if=Enabled true"`
}

type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	ServiceName  string  `mapstructure:"service_name" validate:"required_if=Enabled true"`
	SamplingRate float64 `mapstructure:"sampling_rate" validate:"min=0,max=1"`
	JaegerURL    string  `mapstructure:"jaeger_url" validate:"required_if=Enabled true,url"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json text"`
}

// LoadConfigFromEnv builds the configuration for container deployments where no config.yml is mounted.
func LoadConfigFromEnv() *Config {
	return &Config{
		Env: getEnv("APP_ENV", "production"),
		Server: ServerConfig{
			Port:              getEnvAsInt("HTTP_PORT", 8080),
			BaseURL:           getEnv("BASE_URL", ""),
			AllowedOrigins:    getEnv("ALLOWED_ORIGINS", "*"),
			OpenAPIPath:       getEnv("OPENAPI_PATH", "./api/openapi.yml"),
			ReadHeaderTimeout: getEnvAsDuration("READ_HEADER_TIMEOUT", 5*time.Second),
			ReadTimeout:       getEnvAsDuration("READ_TIMEOUT", 15*time.Second),
			IdleTimeout:       getEnvAsDuration("IDLE_TIMEOUT", 60*time.Second),
			WriteTimeout:      getEnvAsDuration("WRITE_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
			Source:          getEnv("DATABASE_URL", ""),
		},
		Security: SecurityConfig{
			NotificationSigningKey: getEnv("NOTIFICATION_SIGNING_KEY", ""),
			NotificationTokenTTL:   getEnvAsDuration("NOTIFICATION_TOKEN_TTL", 5*time.Minute),
			BCryptCost:             getEnvAsInt("BCRYPT_COST", 12),
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: getEnv("METRICS_ENABLED", "true") == "true",
				Path:    getEnv("METRICS_PATH", "/metrics"),
			},
			Tracing: TracingConfig{
				Enabled:      getEnv("TRACING_ENABLED", "false") == "true",
				ServiceName:  getEnv("TRACING_SERVICE_NAME", "payment-orchestrator"),
				SamplingRate: 1,
				JaegerURL:    getEnv("JAEGER_ENDPOINT", "http://localhost:14268/api/traces"),
			},
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "json"),
			},
		},
		Payment: PaymentConfig{
			GatewayTimeout:         getEnvAsDuration("GATEWAY_TIMEOUT", 30*time.Second),
			VoidWindow:             getEnvAsDuration("VOID_WINDOW", 24*time.Hour),
			CancelReviewDelay:      getEnvAsDuration("CANCEL_REVIEW_DELAY", 10*time.Second),
			ManualReviewPercentage: getEnvAsFloat("MANUAL_REVIEW_PERCENTAGE", 100),
			NotificationTimeout:    getEnvAsDuration("NOTIFICATION_TIMEOUT", 10*time.Second),
			NotificationRetries:    uint64(getEnvAsInt("NOTIFICATION_RETRIES", 5)),
			NotificationBackoff:    getEnvAsDuration("NOTIFICATION_BACKOFF", time.Second),
		},
		Tasks: TasksConfig{
			Driver:         getEnv("TASKS_DRIVER", "kafka"),
			MaxWorkers:     getEnvAsInt("TASKS_MAX_WORKERS", 10),
			JobQueueSize:   getEnvAsInt("TASKS_JOB_QUEUE_SIZE", 100),
			WorkerPoolSize: getEnvAsInt("TASKS_WORKER_POOL_SIZE", 10),
			MaxAttempts:    getEnvAsInt("TASKS_MAX_ATTEMPTS", 3),
			RetryBackoff:   getEnvAsDuration("TASKS_RETRY_BACKOFF", 2*time.Second),
			ScheduleKey:    getEnv("TASKS_SCHEDULE_KEY", "payment-orchestrator:scheduled-tasks"),
			PollInterval:   getEnvAsDuration("TASKS_POLL_INTERVAL", time.Second),
			Kafka: KafkaConfig{
				Brokers: strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
				Topic:   getEnv("KAFKA_TOPIC", "payment-orchestrator.tasks"),
				GroupID: getEnv("KAFKA_GROUP_ID", "payment-orchestrator-worker"),
			},
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
	}
}

// ----------------- HELPERS -----------------

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsFloat(key string, defaultVal float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultVal
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if err := c.Security.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("security config: %v", err))
	}

	if err := c.Payment.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("payment config: %v", err))
	}

	if err := c.Tasks.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("tasks config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.AllowedOrigins != "" {
		origins := strings.Split(c.AllowedOrigins, ",")
		for _, origin := range origins {
			origin = strings.TrimSpace(origin)
			if origin == "*" {
				continue
			}
			if _, err := url.Parse(origin); err != nil {
				return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
			}
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *DatabaseConfig) Validate() error {
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *SecurityConfig) Validate() error {
	if len(c.NotificationSigningKey) < 32 {
		return errors.New("notification signing key must be at least 32 characters")
	}
	if c.BCryptCost != 0 && (c.BCryptCost < 10 || c.BCryptCost > 15) {
		return errors.New("bcrypt_cost must be between 10 and 15")
	}
	return nil
}

func (c *PaymentConfig) Validate() error {
	if c.ManualReviewPercentage < 0 || c.ManualReviewPercentage > 100 {
		return errors.New("manual_review_percentage must be between 0 and 100")
	}
	if c.VoidWindow < 0 {
		return errors.New("void_window cannot be negative")
	}
	if c.CancelReviewDelay < 0 {
		return errors.New("cancel_review_delay cannot be negative")
	}
	return nil
}

func (c *TasksConfig) Validate() error {
	switch c.Driver {
	case "", "local":
	case "kafka":
		if len(c.Kafka.Brokers) == 0 {
			return errors.New("kafka brokers are required for the kafka driver")
		}
		if c.Kafka.Topic == "" {
			return errors.New("kafka topic is required for the kafka driver")
		}
	default:
		return fmt.Errorf("unknown tasks driver %q", c.Driver)
	}
	return nil
}
