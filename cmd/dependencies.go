package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/payment-orchestrator/internal"
	"github.com/frahmantamala/payment-orchestrator/internal/auth"
	authpostgres "github.com/frahmantamala/payment-orchestrator/internal/auth/postgres"
	"github.com/frahmantamala/payment-orchestrator/internal/gateway"
	"github.com/frahmantamala/payment-orchestrator/internal/gateway/cybersource"
	"github.com/frahmantamala/payment-orchestrator/internal/gateway/mercadopago"
	gatewaypostgres "github.com/frahmantamala/payment-orchestrator/internal/gateway/postgres"
	"github.com/frahmantamala/payment-orchestrator/internal/gateway/ticket"
	"github.com/frahmantamala/payment-orchestrator/internal/ipn"
	ipnpostgres "github.com/frahmantamala/payment-orchestrator/internal/ipn/postgres"
	"github.com/frahmantamala/payment-orchestrator/internal/payment"
	paymentpostgres "github.com/frahmantamala/payment-orchestrator/internal/payment/postgres"
	"github.com/frahmantamala/payment-orchestrator/internal/paymentmethod"
	"github.com/frahmantamala/payment-orchestrator/internal/paymentorder"
	paymentorderpostgres "github.com/frahmantamala/payment-orchestrator/internal/paymentorder/postgres"
	"github.com/frahmantamala/payment-orchestrator/internal/tasks"
	"github.com/frahmantamala/payment-orchestrator/internal/tasks/handlers"
	"github.com/frahmantamala/payment-orchestrator/pkg/logger"
	"github.com/frahmantamala/payment-orchestrator/pkg/tracing"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Dependencies is the object graph shared by the server and worker commands.
type Dependencies struct {
	Config *internal.Config
	Logger *slog.Logger
	DB     *sqlx.DB
	Gorm   *gorm.DB
	Redis  redis.UniversalClient
	Tracer trace.TracerProvider

	TaskRouter *tasks.Router
	Dispatcher tasks.Dispatcher
	Publisher  *tasks.KafkaPublisher
	Scheduler  *tasks.RedisScheduler
	local      *tasks.LocalDispatcher

	Tenants  auth.RepositoryAPI
	Auth     *auth.Service
	Gateways *gateway.Resolver
	Payments *payment.Service
	Orders   *paymentorder.Service
	Pipeline *ipn.Pipeline
}

func initializeDependencies() (*Dependencies, error) {
	cfg, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.InitWithLevel(cfg.Env, cfg.Observability.Logging.Level)
	log := logger.LoggerWrapper()

	deps := &Dependencies{Config: cfg, Logger: log}

	if cfg.Observability.Tracing.Enabled {
		tp, err := tracing.InitTracer(cfg.Observability.Tracing.ServiceName, cfg.Observability.Tracing.JaegerURL, cfg.Observability.Tracing.SamplingRate)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize tracer: %w", err)
		}
		deps.Tracer = tp
	}

	deps.DB, err = initDB(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	deps.Gorm, err = initGorm(deps.DB)
	if err != nil {
		deps.Close(context.Background())
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}

	if cfg.Redis.Addr != "" {
		deps.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	deps.TaskRouter = tasks.NewRouter(log)
	if err := deps.initDispatcher(); err != nil {
		deps.Close(context.Background())
		return nil, err
	}

	registry := gateway.NewRegistry(gateway.Deps{
		Dispatcher: deps.Dispatcher,
		Logger:     log,
		Settings: gateway.Settings{
			Timeout:                cfg.Payment.GatewayTimeout,
			VoidWindow:             cfg.Payment.VoidWindow,
			CancelReviewDelay:      cfg.Payment.CancelReviewDelay,
			ManualReviewPercentage: cfg.Payment.ManualReviewPercentage,
		},
	})
	registry.Register(gateway.KindCybersource, cybersource.Factory)
	registry.Register(gateway.KindMercadoPago, mercadopago.Factory)
	registry.Register(gateway.KindTicket, ticket.Factory)

	deps.Gateways = gateway.NewResolver(gatewaypostgres.NewGatewayRepository(deps.Gorm), registry)

	deps.Tenants = authpostgres.NewTenantRepository(deps.Gorm)
	deps.Auth = auth.NewService(deps.Tenants, cfg.Security.BCryptCost, log)

	deps.Payments = payment.NewService(paymentpostgres.NewPaymentRepository(deps.Gorm), deps.Gateways, deps.Dispatcher, log)
	deps.Orders = paymentorder.NewService(
		paymentorderpostgres.NewPaymentOrderRepository(deps.Gorm),
		deps.Payments,
		paymentmethod.NewDefaultRegistry(deps.Payments, log),
		deps.Gateways,
		deps.Dispatcher,
		cfg.Server.BaseURL,
		log,
	)
	deps.Pipeline = ipn.NewPipeline(ipnpostgres.NewIpnRepository(deps.Gorm), deps.Gateways, deps.Payments, deps.Dispatcher, log)

	signer := auth.NewNotificationSigner(cfg.Security.NotificationSigningKey, cfg.Security.NotificationTokenTTL)
	notifier := handlers.NewNotifier(
		deps.Tenants,
		signer,
		gateway.NewHTTPClient(cfg.Payment.NotificationTimeout),
		handlers.NotifierConfig{
			Retries: cfg.Payment.NotificationRetries,
			Backoff: cfg.Payment.NotificationBackoff,
		},
		log,
	)
	handlers.New(deps.Payments, deps.Orders, deps.Gateways, notifier, log).Register(deps.TaskRouter)

	return deps, nil
}

// initDispatcher picks where queued work runs. The local driver processes tasks
// in this process; the kafka driver publishes them for the worker command.
func (d *Dependencies) initDispatcher() error {
	cfg := d.Config.Tasks
	switch cfg.Driver {
	case "kafka":
		if d.Redis == nil {
			return errors.New("the kafka tasks driver needs redis for delayed tasks")
		}
		producer, err := tasks.NewKafkaProducer(cfg.Kafka.Brokers)
		if err != nil {
			return err
		}
		d.Scheduler = tasks.NewRedisScheduler(d.Redis, cfg.ScheduleKey, d.Logger)
		d.Publisher = tasks.NewKafkaPublisher(producer, cfg.Kafka.Topic, d.Scheduler)
		d.Dispatcher = d.Publisher
	default:
		d.local = tasks.NewLocalDispatcher(tasks.LocalConfig{
			MaxWorkers:     cfg.MaxWorkers,
			JobQueueSize:   cfg.JobQueueSize,
			WorkerPoolSize: cfg.WorkerPoolSize,
			MaxAttempts:    cfg.MaxAttempts,
			RetryBackoff:   cfg.RetryBackoff,
		}, d.TaskRouter, d.Logger)
		d.Dispatcher = d.local
	}
	d.Logger.Info("task dispatcher ready", "driver", cfg.Driver)
	return nil
}

// Retrier mirrors the retry settings of the local dispatcher for the kafka consumer.
func (d *Dependencies) Retrier() tasks.Retrier {
	return tasks.Retrier{MaxAttempts: d.Config.Tasks.MaxAttempts, Backoff: d.Config.Tasks.RetryBackoff}
}

// Close releases everything in reverse order of construction.
func (d *Dependencies) Close(ctx context.Context) {
	if d.local != nil {
		d.local.Shutdown()
	}
	if d.Publisher != nil {
		if err := d.Publisher.Close(); err != nil {
			d.Logger.Error("kafka producer close error", "error", err)
		}
	}
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.Logger.Error("redis close error", "error", err)
		}
	}
	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			d.Logger.Error("database close error", "error", err)
		}
	}
	if d.Tracer != nil {
		if err := tracing.Shutdown(ctx, d.Tracer); err != nil {
			d.Logger.Error("tracer shutdown error", "error", err)
		}
	}
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// verify connection; close underlying *sql.DB on failure
	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}

// initGorm runs the repositories over the pool opened by initDB.
func initGorm(db *sqlx.DB) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{Conn: db.DB}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
}
