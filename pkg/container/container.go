// Package container wires every layer of the checkout core together:
// config, Postgres, Redis, the advisory locker, the asynq client, and
// the product/hold/order/webhook service DAG each HTTP handler and
// worker task handler is built from.
package container

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"checkout-core/internal/config"
	infraCache "checkout-core/internal/infrastructure/cache"
	"checkout-core/internal/infrastructure/database"
	"checkout-core/internal/infrastructure/lock"
	"checkout-core/pkg/cache"
	"checkout-core/pkg/logger"

	productcache "checkout-core/internal/domains/product/cache"
	producthandler "checkout-core/internal/domains/product/handler"
	productrepo "checkout-core/internal/domains/product/repository"
	productservice "checkout-core/internal/domains/product/service"

	holdhandler "checkout-core/internal/domains/hold/handler"
	holdjob "checkout-core/internal/domains/hold/job"
	holdrepo "checkout-core/internal/domains/hold/repository"
	holdservice "checkout-core/internal/domains/hold/service"

	orderhandler "checkout-core/internal/domains/order/handler"
	orderrepo "checkout-core/internal/domains/order/repository"
	orderservice "checkout-core/internal/domains/order/service"

	webhookhandler "checkout-core/internal/domains/webhook/handler"
	webhookjob "checkout-core/internal/domains/webhook/job"
	webhookrepo "checkout-core/internal/domains/webhook/repository"
	webhookservice "checkout-core/internal/domains/webhook/service"
)

type Container struct {
	Config      *config.Config
	DB          *database.PostgresDB
	Cache       cache.Cache
	Locker      *lock.Locker
	AsynqClient *asynq.Client

	ProductOps  productservice.ProductOps
	HoldOps     holdservice.HoldOps
	OrderOps    orderservice.OrderOps
	WebhookOps  webhookservice.WebhookOps

	ProductHandler *producthandler.Handler
	HoldHandler    *holdhandler.Handler
	OrderHandler   *orderhandler.Handler
	WebhookHandler *webhookhandler.Handler

	HoldSweepHandler      *holdjob.SweepHandler
	HoldReleaseHandler    *holdjob.ReleaseHandler
	WebhookReconcileHandler *webhookjob.ReconcileHandler
}

func NewContainer() (*Container, error) {
	c := &Container{}

	if err := c.initInfrastructure(); err != nil {
		return nil, fmt.Errorf("failed to init infrastructure: %w", err)
	}
	if err := c.initDomains(); err != nil {
		return nil, fmt.Errorf("failed to init domains: %w", err)
	}

	log.Println("container initialized")
	return c, nil
}

func (c *Container) initInfrastructure() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	c.Config = cfg

	dbConfig, err := config.LoadDatabaseConfig()
	if err != nil {
		return fmt.Errorf("failed to load database config: %w", err)
	}

	db := database.NewPostgresDB(dbConfig)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.HealthCheck(context.Background()); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	c.DB = db
	log.Println("database connected")

	redisCache := infraCache.NewRedisCache(cfg.Redis.Host, cfg.Redis.Password, cfg.Redis.DB)
	if rc, ok := redisCache.(*infraCache.RedisCache); ok {
		if err := rc.Connect(context.Background()); err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
	}
	c.Cache = redisCache
	log.Println("redis connected")

	c.Locker = lock.NewLocker(c.Cache)

	c.AsynqClient = asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Host,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	log.Println("asynq client initialized")

	return nil
}

// initDomains wires the product -> hold -> order -> webhook DAG: each
// later service is constructed from the one before it rather than
// reaching back into the container for its own dependencies.
func (c *Container) initDomains() error {
	cfg := c.Config

	productRepo := productrepo.NewRepository(c.DB.Pool)
	stockCache := productcache.NewCoordinator(c.Cache, cfg.Stock.CacheTTL)
	c.ProductOps = productservice.NewProductOps(
		c.DB.Pool, productRepo, stockCache, c.Locker,
		cfg.Lock.ProductLockWait, cfg.Lock.ProductLockTTL,
	)

	holdRepo := holdrepo.NewRepository(c.DB.Pool)
	c.HoldOps = holdservice.NewHoldOps(
		c.DB.Pool, holdRepo, c.ProductOps, c.Locker,
		cfg.Lock.HoldLockWait, cfg.Lock.HoldLockTTL,
		cfg.Lock.ReleaseLockWait, cfg.Lock.ReleaseLockTTL,
		cfg.Stock.HoldTTL,
		cfg.Retry.MaxDeadlockRetries, cfg.Retry.BaseBackoff,
	)

	orderRepo := orderrepo.NewRepository(c.DB.Pool)
	c.OrderOps = orderservice.NewOrderOps(
		c.DB.Pool, orderRepo, c.HoldOps, c.ProductOps, c.Locker,
		cfg.Lock.HoldLockWait, cfg.Lock.HoldLockTTL,
	)

	webhookRepo := webhookrepo.NewRepository(c.DB.Pool)
	c.WebhookOps = webhookservice.NewWebhookOps(c.DB.Pool, webhookRepo, c.OrderOps)

	c.ProductHandler = producthandler.NewHandler(c.ProductOps)
	c.HoldHandler = holdhandler.NewHandler(c.HoldOps)
	c.OrderHandler = orderhandler.NewHandler(c.OrderOps)
	c.WebhookHandler = webhookhandler.NewHandler(c.WebhookOps)

	c.HoldSweepHandler = holdjob.NewSweepHandler(holdRepo, c.DB.Pool, c.AsynqClient)
	c.HoldReleaseHandler = holdjob.NewReleaseHandler(c.HoldOps)
	c.WebhookReconcileHandler = webhookjob.NewReconcileHandler(c.WebhookOps, cfg.Sweep.WebhookReconcileSize)

	return nil
}

func (c *Container) Cleanup() {
	log.Println("cleaning up container resources")

	if c.DB != nil && c.DB.Pool != nil {
		c.DB.Pool.Close()
	}

	if c.AsynqClient != nil {
		if err := c.AsynqClient.Close(); err != nil {
			logger.Error("asynq client close failed", err)
		}
	}

	if c.Cache != nil {
		if rc, ok := c.Cache.(*infraCache.RedisCache); ok {
			if err := rc.Close(); err != nil {
				logger.Error("redis close failed", err)
			}
		}
	}

	log.Println("container cleanup complete")
}
