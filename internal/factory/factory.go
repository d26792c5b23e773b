package factory

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"verify-service/internal/bucketing"
	"verify-service/internal/client"
	"verify-service/internal/config"
	"verify-service/internal/delivery"
	"verify-service/internal/handler"
	redisrepo "verify-service/internal/repository/redis"
	"verify-service/internal/repository/scylla"
	"verify-service/internal/service"
	"verify-service/internal/util"
)

// Factory owns every process-wide resource: storage clients, repositories,
// services, handlers. Built once at startup, closed once at shutdown.
type Factory struct {
	Config *config.Config
	Logger *zap.Logger

	ScyllaClient     *scylla.ScyllaClient
	RedisClient      *client.RedisClient
	KafkaProducer    *client.KafkaProducer
	ClickHouseClient *client.ClickHouseClient

	OTPService  *service.OTPService
	UserService *service.UserService

	AuthHandler *handler.AuthHandler
	UserHandler *handler.UserHandler

	closeOnce sync.Once
}

// New builds the full dependency graph. Scylla and Redis are required;
// Kafka, ClickHouse and AWS delivery are optional sinks that degrade to
// warnings when unreachable.
func New(cfg *config.Config) (*Factory, error) {
	logger := util.Init(cfg.Environment, cfg.Logging.Level, cfg.Logging.Format)

	f := &Factory{
		Config: cfg,
		Logger: logger,
	}

	scyllaClient, err := scylla.NewScyllaClient(cfg, logger)
	if err != nil {
		return nil, err
	}
	f.ScyllaClient = scyllaClient

	redisClient, err := client.NewRedisClient(cfg, logger)
	if err != nil {
		f.Close()
		return nil, err
	}
	f.RedisClient = redisClient

	kafkaProducer, err := client.NewKafkaProducer(cfg, logger)
	if err != nil {
		util.Warn("Kafka unavailable, domain events disabled", zap.Error(err))
	} else {
		f.KafkaProducer = kafkaProducer
	}

	clickhouseClient, err := client.NewClickHouseClient(cfg, logger)
	if err != nil {
		util.Warn("ClickHouse unavailable, audit trail disabled", zap.Error(err))
	} else {
		f.ClickHouseClient = clickhouseClient
	}

	gateway, err := delivery.NewGateway(cfg, logger)
	if err != nil {
		f.Close()
		return nil, err
	}

	bucketingMgr := bucketing.NewBucketingManager(cfg)
	userRepo := scylla.NewUserRepository(scyllaClient, bucketingMgr, logger)
	otpRepo := scylla.NewOTPRepository(scyllaClient, logger)
	otpCache := redisrepo.NewOTPCache(redisClient)

	f.OTPService = service.NewOTPService(otpRepo, otpCache, gateway,
		f.KafkaProducer, f.ClickHouseClient, logger)
	f.UserService = service.NewUserService(userRepo,
		f.KafkaProducer, f.ClickHouseClient, logger)

	f.AuthHandler = handler.NewAuthHandler(f.OTPService, logger)
	f.UserHandler = handler.NewUserHandler(f.UserService, logger)

	util.Info("Service factory initialized",
		zap.String("environment", cfg.Environment),
		zap.Bool("kafka", f.KafkaProducer != nil),
		zap.Bool("clickhouse", f.ClickHouseClient != nil))

	return f, nil
}

// HealthCheck probes every attached backend in parallel.
func (f *Factory) HealthCheck(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return f.ScyllaClient.HealthCheck() })
	g.Go(func() error { return f.RedisClient.HealthCheck(ctx) })
	if f.KafkaProducer != nil {
		g.Go(func() error { return f.KafkaProducer.HealthCheck(ctx) })
	}
	if f.ClickHouseClient != nil {
		g.Go(func() error { return f.ClickHouseClient.HealthCheck(ctx) })
	}

	return g.Wait()
}

// HealthHandler serves GET /health.
func (f *Factory) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]interface{}{"status": "ok"}
		if err := f.HealthCheck(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body = map[string]interface{}{"status": "degraded", "error": err.Error()}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}

// Close releases every attached resource. Safe to call more than once.
func (f *Factory) Close() {
	f.closeOnce.Do(func() {
		if f.KafkaProducer != nil {
			_ = f.KafkaProducer.Close()
		}
		if f.ClickHouseClient != nil {
			_ = f.ClickHouseClient.Close()
		}
		if f.RedisClient != nil {
			_ = f.RedisClient.Close()
		}
		if f.ScyllaClient != nil {
			f.ScyllaClient.Close()
		}
		util.Info("Service factory closed")
	})
}
