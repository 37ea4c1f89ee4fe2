package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	cacheadapter "github.com/viralforge/mesh/services/marketing/campaign-service/internal/adapters/cache"
	eventadapter "github.com/viralforge/mesh/services/marketing/campaign-service/internal/adapters/events"
	grpcadapter "github.com/viralforge/mesh/services/marketing/campaign-service/internal/adapters/grpc"
	httpadapter "github.com/viralforge/mesh/services/marketing/campaign-service/internal/adapters/http"
	"github.com/viralforge/mesh/services/marketing/campaign-service/internal/adapters/memory"
	"github.com/viralforge/mesh/services/marketing/campaign-service/internal/adapters/postgres"
	"github.com/viralforge/mesh/services/marketing/campaign-service/internal/adapters/security"
	"github.com/viralforge/mesh/services/marketing/campaign-service/internal/adapters/web"
	"github.com/viralforge/mesh/services/marketing/campaign-service/internal/apidocs"
	"github.com/viralforge/mesh/services/marketing/campaign-service/internal/application"
	"github.com/viralforge/mesh/services/marketing/campaign-service/internal/markdown"
	"github.com/viralforge/mesh/services/marketing/campaign-service/internal/ports"
	"github.com/viralforge/mesh/services/marketing/campaign-service/internal/telemetry"
)

var campaignEventTypes = []string{
	"campaign.created",
	"campaign.updated",
	"campaign.deleted",
	"campaign.status_changed",
}

type Runtime struct {
	cfg        Config
	logger     *slog.Logger
	service    *application.Service
	httpServer *http.Server
	grpcServer *grpc.Server
	health     *grpcadapter.HealthReporter
	outbox     *eventadapter.OutboxWorker
	consumer   *eventadapter.ConsumerWorker
	cleanupFns []func(context.Context)
}

type storage struct {
	campaigns   ports.CampaignRepository
	documents   ports.DocumentRepository
	outbox      ports.OutboxRepository
	eventDedup  ports.EventDedupRepository
	idempotency ports.IdempotencyRepository
	ping        grpcadapter.Pinger
}

func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	return NewRuntimeFromConfig(ctx, cfg, os.Stdout)
}

// NewRuntimeFromConfig wires every adapter for cfg. Logs go to out as JSON.
func NewRuntimeFromConfig(ctx context.Context, cfg Config, out io.Writer) (*Runtime, error) {
	logger := newLogger(out, cfg.LogLevel).With("service", cfg.ServiceName)
	slog.SetDefault(logger)
	logger.Info("bootstrapping campaign service",
		"http_port", cfg.HTTPPort,
		"grpc_port", cfg.GRPCPort,
		"storage", cfg.StorageDriver,
	)

	r := &Runtime{cfg: cfg, logger: logger}
	ok := false
	defer func() {
		if !ok {
			r.cleanup(context.Background())
		}
	}()

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName: cfg.ServiceName,
		Endpoint:    cfg.OTELEndpoint,
		SampleRatio: cfg.OTELSampleRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	r.onClose(func(ctx context.Context) { _ = shutdownTracing(ctx) })

	store, err := r.openStorage(ctx)
	if err != nil {
		return nil, err
	}

	var cache ports.Cache
	var cachePing grpcadapter.Pinger
	if cfg.RedisURL == "" {
		logger.Warn("REDIS_URL not set, using in-process cache")
		mem := cacheadapter.NewMemoryCache()
		cache, cachePing = mem, mem
	} else {
		client, err := cacheadapter.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		r.onClose(func(context.Context) { _ = client.Close() })
		redisCache := cacheadapter.NewRedisCache(client, cfg.ServiceName+":")
		cache, cachePing = redisCache, redisCache
	}

	verifier, err := security.NewHS256Verifier(cfg.JWTSecret, security.VerifierOptions{
		Audience: cfg.JWTAudience,
		Issuer:   cfg.JWTIssuer,
	})
	if err != nil {
		return nil, fmt.Errorf("init jwt verifier: %w", err)
	}

	r.service = application.NewService(application.Dependencies{
		Config: application.Config{
			ServiceName:     cfg.ServiceName,
			ListCacheTTL:    cfg.ListCacheTTL,
			IdempotencyTTL:  cfg.IdempotencyTTL,
			WriteRateLimit:  cfg.WriteRateLimit,
			WriteRateWindow: cfg.WriteRateWindow,
			MaxHTMLBytes:    cfg.MaxHTMLBytes,
		},
		Campaigns:   store.campaigns,
		Documents:   store.documents,
		Outbox:      store.outbox,
		EventDedup:  store.eventDedup,
		Idempotency: store.idempotency,
		Tokens:      verifier,
		Cache:       cache,
		Markdown:    markdown.NewConverter(),
	})

	r.health = grpcadapter.NewHealthReporter(logger, "campaign.v1.CampaignService", map[string]grpcadapter.Pinger{
		"storage": store.ping,
		"cache":   cachePing,
	}, cfg.HealthInterval)

	ui, err := web.NewHandler(r.service, apidocs.NewRegistry(cfg.PublicBaseURL), web.Options{
		Logger:        logger,
		SecureCookies: cfg.SecureCookies,
	})
	if err != nil {
		return nil, fmt.Errorf("init web ui: %w", err)
	}
	handler := httpadapter.NewHandler(r.service, httpadapter.Options{
		Readiness:    r.health,
		ConvertRate:  cfg.ConvertRate,
		ConvertBurst: cfg.ConvertBurst,
	})
	r.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           httpadapter.NewRouter(handler, ui.Routes()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.grpcServer = grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	r.health.Register(r.grpcServer)

	publisher, consumer, err := r.openEvents()
	if err != nil {
		return nil, err
	}
	r.outbox = eventadapter.NewOutboxWorker(logger, store.outbox, publisher, cfg.OutboxPollInterval, cfg.OutboxBatchSize)
	r.consumer = eventadapter.NewConsumerWorker(logger, consumer, r.service, cfg.ConsumerPollInterval)

	ok = true
	return r, nil
}

func (r *Runtime) openStorage(ctx context.Context) (storage, error) {
	if r.cfg.StorageDriver == StorageMemory {
		r.logger.Warn("using in-memory storage, data is lost on restart")
		repos := memory.NewRepositories()
		return storage{
			campaigns:   repos.Campaigns,
			documents:   repos.Documents,
			outbox:      repos.Outbox,
			eventDedup:  repos.EventDedup,
			idempotency: repos.Idempotency,
			ping:        repos,
		}, nil
	}

	db, err := postgres.Connect(ctx, r.cfg.DatabaseURL, r.cfg.MaxDBConns)
	if err != nil {
		return storage{}, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return storage{}, fmt.Errorf("gorm sql db: %w", err)
	}
	r.onClose(func(context.Context) { _ = sqlDB.Close() })
	if r.cfg.AutoMigrate {
		if err := postgres.RunMigrations(ctx, db); err != nil {
			return storage{}, fmt.Errorf("run migrations: %w", err)
		}
	}
	repos := postgres.NewRepositories(db)
	return storage{
		campaigns:   repos.Campaigns,
		documents:   repos.Documents,
		outbox:      repos.Outbox,
		eventDedup:  repos.EventDedup,
		idempotency: repos.Idempotency,
		ping:        grpcadapter.PingFunc(sqlDB.PingContext),
	}, nil
}

// openEvents picks Kafka when brokers are configured and falls back to the
// logging publisher and an idle consumer otherwise.
func (r *Runtime) openEvents() (ports.EventPublisher, eventadapter.Consumer, error) {
	if len(r.cfg.KafkaBrokers) == 0 {
		r.logger.Warn("KAFKA_BROKERS not set, campaign events are only logged")
		return eventadapter.NewLoggingPublisher(r.logger), eventadapter.NewNoopConsumer(), nil
	}
	topics := make(map[string]string, len(campaignEventTypes))
	for _, eventType := range campaignEventTypes {
		topics[eventType] = r.cfg.CampaignTopic
	}
	publisher, err := eventadapter.NewKafkaPublisher(r.cfg.KafkaBrokers, topics)
	if err != nil {
		return nil, nil, fmt.Errorf("init kafka publisher: %w", err)
	}
	r.onClose(func(context.Context) { _ = publisher.Close() })
	consumer, err := eventadapter.NewKafkaConsumer(r.cfg.KafkaBrokers, r.cfg.KafkaGroupID, []string{eventadapter.TopicUserDeleted})
	if err != nil {
		return nil, nil, fmt.Errorf("init kafka consumer: %w", err)
	}
	r.onClose(func(context.Context) { _ = consumer.Close() })
	return publisher, consumer, nil
}

// Handler exposes the HTTP router, mainly for in-process tests.
func (r *Runtime) Handler() http.Handler { return r.httpServer.Handler }

func (r *Runtime) Service() *application.Service { return r.service }

// RunAPI serves HTTP and gRPC until ctx is cancelled or a server fails. With
// the memory driver the workers run in the same process, since a separate
// worker could not see the in-process outbox.
func (r *Runtime) RunAPI(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", r.cfg.GRPCPort))
	if err != nil {
		r.cleanup(context.Background())
		return fmt.Errorf("listen gRPC: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r.logger.Info("http server started", "addr", r.httpServer.Addr)
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		r.logger.Info("grpc server started", "addr", lis.Addr().String())
		if err := r.grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})
	g.Go(func() error { return ignoreCanceled(r.health.Run(gctx)) })
	if r.cfg.StorageDriver == StorageMemory {
		g.Go(func() error { return ignoreCanceled(r.outbox.Run(gctx)) })
		g.Go(func() error { return ignoreCanceled(r.consumer.Run(gctx)) })
	}
	g.Go(func() error {
		<-gctx.Done()
		r.logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = r.httpServer.Shutdown(shutdownCtx)
		r.grpcServer.GracefulStop()
		return nil
	})

	err = g.Wait()
	if err != nil {
		r.logger.Error("server failure", "error", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	r.cleanup(shutdownCtx)
	return err
}

// RunWorker relays the outbox and consumes user lifecycle events.
func (r *Runtime) RunWorker(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	r.logger.Info("workers started")
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ignoreCanceled(r.outbox.Run(gctx)) })
	g.Go(func() error { return ignoreCanceled(r.consumer.Run(gctx)) })
	err := g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r.cleanup(shutdownCtx)
	return err
}

// Close releases connections without serving.
func (r *Runtime) Close(ctx context.Context) {
	r.cleanup(ctx)
}

func (r *Runtime) onClose(fn func(context.Context)) {
	r.cleanupFns = append(r.cleanupFns, fn)
}

func (r *Runtime) cleanup(ctx context.Context) {
	for i := len(r.cleanupFns) - 1; i >= 0; i-- {
		r.cleanupFns[i](ctx)
	}
	r.cleanupFns = nil
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func newLogger(out io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: lvl}))
}
