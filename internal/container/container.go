package container

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	_ "github.com/danielgtaylor/huma/v2/formats/cbor" // CBOR format support for huma
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"github.com/serroba/shortlink/internal/analytics"
	analyticsstore "github.com/serroba/shortlink/internal/analytics/store"
	"github.com/serroba/shortlink/internal/handlers"
	"github.com/serroba/shortlink/internal/health"
	"github.com/serroba/shortlink/internal/messaging"
	"github.com/serroba/shortlink/internal/middleware"
	"github.com/serroba/shortlink/internal/migrations"
	"github.com/serroba/shortlink/internal/ratelimit"
	"github.com/serroba/shortlink/internal/shortener"
	"github.com/serroba/shortlink/internal/store"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ConsumerGroupName is the Redis stream consumer group of the analytics consumer.
const ConsumerGroupName = "analytics"

// RedisClient closes the client on injector shutdown.
type RedisClient struct {
	*redis.Client
}

func (c *RedisClient) Shutdown() error {
	return c.Close()
}

// Postgres closes the pool on injector shutdown.
type Postgres struct {
	Pool *pgxpool.Pool
}

func (p *Postgres) Shutdown() error {
	p.Pool.Close()

	return nil
}

// LoggerPackage provides the zap logger.
func LoggerPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*zap.Logger, error) {
		opts := do.MustInvoke[*Options](i)

		return NewLogger(opts.LogFormat, opts.LogLevel)
	})
}

// NewLogger builds a console (development) or JSON (production) logger.
func NewLogger(format, level string) (*zap.Logger, error) {
	var cfg zap.Config

	switch format {
	case "json":
		cfg = zap.NewProductionConfig()
	case "console", "":
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}

	if level != "" {
		lvl, err := zap.ParseAtomicLevel(level)
		if err != nil {
			return nil, fmt.Errorf("parse log level: %w", err)
		}

		cfg.Level = lvl
	}

	return cfg.Build()
}

// RedisPackage provides the Redis client.
func RedisPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*RedisClient, error) {
		opts := do.MustInvoke[*Options](i)

		return &RedisClient{Client: redis.NewClient(&redis.Options{Addr: opts.RedisAddr})}, nil
	})
}

// PostgresPackage provides the connection pool with migrations applied.
func PostgresPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*Postgres, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		cfg, err := pgxpool.ParseConfig(opts.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("parse database url: %w", err)
		}

		cfg.MaxConns = 10
		cfg.MinConns = 1
		cfg.MaxConnLifetime = time.Hour
		cfg.MaxConnIdleTime = 30 * time.Minute
		cfg.HealthCheckPeriod = time.Minute

		pool, err := pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("create connection pool: %w", err)
		}

		if err := pool.Ping(ctx); err != nil {
			pool.Close()

			return nil, fmt.Errorf("ping database: %w", err)
		}

		sqlDB := stdlib.OpenDBFromPool(pool)
		defer sqlDB.Close()

		if err := migrations.NewMigrator(sqlDB, logger).RunUp(); err != nil {
			pool.Close()

			return nil, err
		}

		return &Postgres{Pool: pool}, nil
	})
}

// RepositoryPackage provides the short link repository and the allocator on top of it.
func RepositoryPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (shortener.Repository, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)

		var repo shortener.Repository

		switch opts.Storage {
		case StoragePostgres:
			repo = store.NewPostgresStore(do.MustInvoke[*Postgres](i).Pool)
		default:
			repo = store.NewMemoryStore()
		}

		if opts.Backend == BackendRedis && opts.CacheTTLSeconds > 0 {
			client := do.MustInvoke[*RedisClient](i)
			repo = store.NewRedisCacheRepository(repo, client.Client, opts.CacheTTL(), logger)
		}

		logger.Info("link repository ready",
			zap.String("storage", opts.Storage),
			zap.Bool("cache", opts.Backend == BackendRedis && opts.CacheTTLSeconds > 0),
		)

		return repo, nil
	})

	do.Provide(injector, func(_ *do.Injector) (clockwork.Clock, error) {
		return clockwork.NewRealClock(), nil
	})

	do.Provide(injector, func(i *do.Injector) (*shortener.Allocator, error) {
		opts := do.MustInvoke[*Options](i)

		generator, err := shortener.NewNanoidGenerator(opts.CodeLength)
		if err != nil {
			return nil, err
		}

		return shortener.NewAllocator(
			do.MustInvoke[shortener.Repository](i),
			generator,
			shortener.WithMaxAttempts(opts.MaxAttempts),
			shortener.WithClock(do.MustInvoke[clockwork.Clock](i)),
			shortener.WithLogger(do.MustInvoke[*zap.Logger](i)),
		), nil
	})
}

// RateLimitPackage provides the admission limiter over Redis or in-memory counters.
func RateLimitPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (ratelimit.Store, error) {
		opts := do.MustInvoke[*Options](i)

		if opts.Backend == BackendRedis {
			return store.NewRateLimitRedisStore(do.MustInvoke[*RedisClient](i).Client), nil
		}

		s := store.NewRateLimitMemoryStore(do.MustInvoke[clockwork.Clock](i))
		s.StartPruning(opts.RateWindow())

		return s, nil
	})

	do.Provide(injector, func(i *do.Injector) (*ratelimit.FixedWindowLimiter, error) {
		opts := do.MustInvoke[*Options](i)

		policy := ratelimit.FailClosed
		if opts.RateLimitFailOpen {
			policy = ratelimit.FailOpen
		}

		return ratelimit.NewFixedWindowLimiter(
			do.MustInvoke[ratelimit.Store](i),
			int64(opts.RateLimit),
			opts.RateWindow(),
			policy,
			do.MustInvoke[*zap.Logger](i),
		), nil
	})
}

// memoryPubSub is shared by the publisher and subscriber when events stay in process.
type memoryPubSub struct {
	*gochannel.GoChannel
}

func (m *memoryPubSub) Shutdown() error {
	return m.Close()
}

// pubSubPackage is called by both the publisher and the consumer packages; Override
// keeps a second registration from panicking.
func pubSubPackage(injector *do.Injector) {
	do.Override(injector, func(i *do.Injector) (*memoryPubSub, error) {
		logger := messaging.NewZapLogger(do.MustInvoke[*zap.Logger](i))

		return &memoryPubSub{GoChannel: gochannel.NewGoChannel(gochannel.Config{}, logger)}, nil
	})
}

// PublisherGroupPackage provides the event publisher and the typed analytics publishers.
func PublisherGroupPackage(injector *do.Injector) {
	pubSubPackage(injector)

	do.Provide(injector, func(i *do.Injector) (*messaging.PublisherGroup, error) {
		opts := do.MustInvoke[*Options](i)

		var publisher message.Publisher

		if opts.Backend == BackendRedis {
			client := do.MustInvoke[*RedisClient](i)

			pub, err := redisstream.NewPublisher(redisstream.PublisherConfig{
				Client:     client.Client,
				Marshaller: redisstream.DefaultMarshallerUnmarshaller{},
			}, messaging.NewZapLogger(do.MustInvoke[*zap.Logger](i)))
			if err != nil {
				return nil, fmt.Errorf("create redis stream publisher: %w", err)
			}

			publisher = pub
		} else {
			publisher = do.MustInvoke[*memoryPubSub](i)
		}

		return messaging.NewPublisherGroup(publisher), nil
	})

	do.Provide(injector, func(i *do.Injector) (analytics.Publishers, error) {
		group := do.MustInvoke[*messaging.PublisherGroup](i)

		return analytics.NewPublishers(group.Publisher()), nil
	})
}

// AnalyticsPackage provides the analytics store.
func AnalyticsPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (analytics.Store, error) {
		opts := do.MustInvoke[*Options](i)

		if opts.Backend == BackendRedis {
			return analyticsstore.NewRedis(do.MustInvoke[*RedisClient](i).Client), nil
		}

		return analyticsstore.NewMemory(do.MustInvoke[*zap.Logger](i)), nil
	})
}

// ConsumerGroupPackage provides the analytics consumers. It requires AnalyticsPackage.
func ConsumerGroupPackage(injector *do.Injector) {
	pubSubPackage(injector)

	do.Provide(injector, func(i *do.Injector) (*messaging.ConsumerGroup, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)

		var subscriber message.Subscriber

		if opts.Backend == BackendRedis {
			client := do.MustInvoke[*RedisClient](i)

			sub, err := redisstream.NewSubscriber(redisstream.SubscriberConfig{
				Client:        client.Client,
				Unmarshaller:  redisstream.DefaultMarshallerUnmarshaller{},
				ConsumerGroup: ConsumerGroupName,
			}, messaging.NewZapLogger(logger))
			if err != nil {
				return nil, fmt.Errorf("create redis stream subscriber: %w", err)
			}

			subscriber = sub
		} else {
			subscriber = do.MustInvoke[*memoryPubSub](i)
		}

		group := messaging.NewConsumerGroup(subscriber, logger)
		analytics.RegisterConsumers(group, do.MustInvoke[analytics.Store](i), logger)

		return group, nil
	})
}

// HTTPPackage provides the router and the huma API with all routes registered.
func HTTPPackage(injector *do.Injector) {
	do.Provide(injector, func(_ *do.Injector) (*chi.Mux, error) {
		router := chi.NewMux()
		router.Use(chimiddleware.Recoverer)

		return router, nil
	})

	do.Provide(injector, func(i *do.Injector) (huma.API, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)
		router := do.MustInvoke[*chi.Mux](i)

		identity, err := middleware.NewClientIdentity(opts.TrustedProxyList())
		if err != nil {
			return nil, err
		}

		api := humachi.New(router, huma.DefaultConfig("URL Shortener", "1.0.0"))
		api.UseMiddleware(middleware.RequestMeta(api, identity))

		urlHandler := handlers.NewURLHandler(
			do.MustInvoke[*shortener.Allocator](i),
			do.MustInvoke[shortener.Repository](i),
			do.MustInvoke[analytics.Store](i),
			opts.BaseURL,
			do.MustInvoke[analytics.Publishers](i),
			do.MustInvoke[clockwork.Clock](i),
			logger,
		)

		admission := middleware.Admission(api, do.MustInvoke[*ratelimit.FixedWindowLimiter](i), identity, logger)
		handlers.RegisterRoutes(api, urlHandler, admission)

		healthHandler := health.NewHandler(healthCheckers(i, opts))
		health.RegisterRoutes(api, healthHandler)

		logger.Info("routes registered", zap.Strings("health_checks", healthHandler.Names()))

		return api, nil
	})
}

func healthCheckers(i *do.Injector, opts *Options) map[string]health.Checker {
	checkers := make(map[string]health.Checker)

	if opts.Backend == BackendRedis {
		checkers["redis"] = health.NewRedisChecker(do.MustInvoke[*RedisClient](i).Client)
	}

	if opts.Storage == StoragePostgres {
		checkers["postgres"] = do.MustInvoke[*Postgres](i).Pool
	}

	return checkers
}
