// Package app initializes and holds long-lived application services, acting as a
// dependency injection container for the CLI commands.
package app

import (
	"context"
	"fmt"
	"sync"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/JakeFAU/insider-filings-crawler/internal/api"
	memorycache "github.com/JakeFAU/insider-filings-crawler/internal/cache/memory"
	rediscache "github.com/JakeFAU/insider-filings-crawler/internal/cache/redis"
	"github.com/JakeFAU/insider-filings-crawler/internal/checkpoint"
	"github.com/JakeFAU/insider-filings-crawler/internal/clock/system"
	"github.com/JakeFAU/insider-filings-crawler/internal/config"
	"github.com/JakeFAU/insider-filings-crawler/internal/deadletter"
	"github.com/JakeFAU/insider-filings-crawler/internal/edgar"
	"github.com/JakeFAU/insider-filings-crawler/internal/extract"
	collyfetcher "github.com/JakeFAU/insider-filings-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/insider-filings-crawler/internal/index"
	"github.com/JakeFAU/insider-filings-crawler/internal/persist"
	"github.com/JakeFAU/insider-filings-crawler/internal/policy/ratelimit"
	gcppublisher "github.com/JakeFAU/insider-filings-crawler/internal/publisher/pubsub"
	"github.com/JakeFAU/insider-filings-crawler/internal/scheduler"
	blob "github.com/JakeFAU/insider-filings-crawler/internal/storage"
	gcsstorage "github.com/JakeFAU/insider-filings-crawler/internal/storage/gcs"
	localstorage "github.com/JakeFAU/insider-filings-crawler/internal/storage/local"
	"github.com/JakeFAU/insider-filings-crawler/internal/store/postgres"
	"github.com/JakeFAU/insider-filings-crawler/internal/worker"
)

// App holds the shared, long-lived services. Clients that need the network are
// opened on first use so that commands only pay for what they touch.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	blobs       blob.BlobStore
	gcs         *storage.Client
	checkpoints *checkpoint.Store

	mu           sync.Mutex
	store        *postgres.Store
	redis        *redis.Client
	pubsubClient *pubsub.Client
	publisher    *gcppublisher.Publisher
}

// New builds the container and its checkpoint storage.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger}
	if err := a.setupStorage(ctx); err != nil {
		return nil, err
	}
	a.checkpoints = checkpoint.New(a.blobs)
	return a, nil
}

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Config returns the loaded configuration.
func (a *App) Config() config.Config { return a.cfg }

// Checkpoints returns the checkpoint store over the configured backend.
func (a *App) Checkpoints() *checkpoint.Store { return a.checkpoints }

func (a *App) setupStorage(ctx context.Context) error {
	switch a.cfg.Storage.Backend {
	case config.BackendGCS:
		a.logger.Info("using GCS checkpoint backend", zap.String("bucket", a.cfg.Storage.GCS.Bucket))
		client, err := storage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("gcs client init failed: %w", err)
		}
		a.gcs = client
		a.blobs, err = gcsstorage.New(client, gcsstorage.Config{
			Bucket: a.cfg.Storage.GCS.Bucket,
			Prefix: a.cfg.Storage.GCS.Prefix,
		})
		if err != nil {
			return fmt.Errorf("gcs blob store init failed: %w", err)
		}
	default:
		a.logger.Info("using local checkpoint backend", zap.String("path", a.cfg.Storage.Local.BaseDir))
		blobs, err := localstorage.New(localstorage.Config{BaseDir: a.cfg.Storage.Local.BaseDir})
		if err != nil {
			return fmt.Errorf("local blob store init failed: %w", err)
		}
		a.blobs = blobs
	}
	return nil
}

// Store opens the Postgres store on first use.
func (a *App) Store(ctx context.Context) (*postgres.Store, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.store != nil {
		return a.store, nil
	}
	if err := a.cfg.RequireDatabase(); err != nil {
		return nil, err
	}
	store, err := postgres.NewStore(ctx, postgres.Config{
		DSN:             a.cfg.DB.DSN,
		MaxConns:        a.cfg.DB.MaxConns,
		MinConns:        a.cfg.DB.MinConns,
		MaxConnLifetime: a.cfg.DB.MaxConnLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store init failed: %w", err)
	}
	a.store = store
	a.logger.Info("postgres store initialized", zap.Int32("max_conns", a.cfg.DB.MaxConns))
	return store, nil
}

// Caches returns one identifier cache per entity on the configured backend.
func (a *App) Caches(ctx context.Context) (persist.Caches, error) {
	if a.cfg.Cache.Backend != config.BackendRedis {
		return persist.Caches{
			Issuers:     memorycache.New(),
			Individuals: memorycache.New(),
			Forms:       memorycache.New(),
		}, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.redis == nil {
		client, err := rediscache.Connect(ctx, a.cfg.Cache.RedisURL)
		if err != nil {
			return persist.Caches{}, fmt.Errorf("redis cache init failed: %w", err)
		}
		a.redis = client
		a.logger.Info("redis identifier cache initialized", zap.String("prefix", a.cfg.Cache.Prefix))
	}
	entity := func(name string) edgar.IDCache {
		return rediscache.New(a.redis, rediscache.Config{Prefix: a.cfg.Cache.Prefix, Entity: name, TTL: a.cfg.Cache.TTL})
	}
	return persist.Caches{
		Issuers:     entity("issuer"),
		Individuals: entity("individual"),
		Forms:       entity("form"),
	}, nil
}

// Publisher returns the day-report publisher, or nil when no Pub/Sub project is set.
func (a *App) Publisher(ctx context.Context) (edgar.Publisher, error) {
	if a.cfg.PubSub.ProjectID == "" || a.cfg.PubSub.Topic == "" {
		a.logger.Info("no Pub/Sub project configured, day reports are not published")
		return nil, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.publisher == nil {
		client, err := gcppublisher.Connect(ctx, a.cfg.PubSub.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("pubsub client init failed: %w", err)
		}
		a.pubsubClient = client
		a.publisher = gcppublisher.New(client, map[string]string{"source": "insider-filings-crawler"})
		a.logger.Info("Pub/Sub publisher initialized",
			zap.String("project", a.cfg.PubSub.ProjectID),
			zap.String("topic", a.cfg.PubSub.Topic),
		)
	}
	return a.publisher, nil
}

// CrawlOptions override configuration for one crawl command.
type CrawlOptions struct {
	RunID string
	// BatchSize overrides crawl.batch_size when positive.
	BatchSize int
}

// Crawler assembles the scheduler and everything it drives.
func (a *App) Crawler(ctx context.Context, opts CrawlOptions) (*scheduler.Scheduler, error) {
	if err := a.cfg.RequireUserAgent(); err != nil {
		return nil, err
	}
	batch := a.cfg.Crawl.BatchSize
	if opts.BatchSize > 0 {
		batch = opts.BatchSize
	}

	store, err := a.Store(ctx)
	if err != nil {
		return nil, err
	}
	caches, err := a.Caches(ctx)
	if err != nil {
		return nil, err
	}
	publisher, err := a.Publisher(ctx)
	if err != nil {
		return nil, err
	}
	dead, err := deadletter.New(a.cfg.DeadLetter.Path, a.logger.Named("deadletter"))
	if err != nil {
		return nil, fmt.Errorf("dead-letter log init failed: %w", err)
	}

	logger := a.logger.With(zap.String("run_id", opts.RunID))
	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:   a.cfg.EDGAR.UserAgent,
		Timeout:     a.cfg.EDGAR.Timeout,
		MaxBodySize: a.cfg.EDGAR.MaxBodySize,
	})
	pool := worker.New(
		fetcher,
		extract.New(a.cfg.EDGAR.BaseURL),
		dead,
		worker.Config{Concurrency: batch, BaseURL: a.cfg.EDGAR.BaseURL},
		logger.Named("worker"),
	)
	indexClient := index.New(index.Config{
		BaseURL:   a.cfg.EDGAR.BaseURL,
		Host:      a.cfg.EDGAR.Host,
		UserAgent: a.cfg.EDGAR.UserAgent,
		Timeout:   a.cfg.EDGAR.Timeout,
	}, logger.Named("index"))
	pipeline := persist.New(store, caches, persist.Config{Concurrency: a.cfg.Crawl.PersistConcurrency}, logger.Named("persist"))

	deps := scheduler.Deps{
		Index:       indexClient,
		Pool:        pool,
		Checkpoints: a.checkpoints,
		Persister:   pipeline,
		Pacer:       ratelimit.New(ratelimit.Config{Interval: ratelimit.DefaultInterval}),
		Clock:       system.New(),
	}
	if publisher != nil {
		deps.Publisher = publisher
	}
	sched, err := scheduler.New(scheduler.Config{
		BatchSize:        batch,
		Cooldown:         a.cfg.Crawl.Cooldown,
		RetryDelay:       a.cfg.Crawl.RetryDelay,
		MaxIndexAttempts: a.cfg.Crawl.MaxIndexAttempts,
		FormTypes:        a.cfg.Crawl.FormTypes,
		Topic:            a.cfg.PubSub.Topic,
	}, deps, opts.RunID, a.logger.Named("scheduler"))
	if err != nil {
		return nil, err
	}

	a.logger.Info("crawler assembled",
		zap.String("run_id", opts.RunID),
		zap.Int("batch_size", batch),
		zap.Strings("form_types", a.cfg.Crawl.FormTypes),
		zap.String("dead_letter", dead.Path()),
	)
	return sched, nil
}

// ReadyChecks returns probes for every downstream opened so far.
func (a *App) ReadyChecks() map[string]api.Check {
	a.mu.Lock()
	defer a.mu.Unlock()
	checks := map[string]api.Check{}
	if a.store != nil {
		checks["postgres"] = a.store.Ping
	}
	if a.redis != nil {
		client := a.redis
		checks["redis"] = func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("redis ping: %w", err)
			}
			return nil
		}
	}
	return checks
}

// Close releases every opened client. Errors are logged; shutdown continues.
func (a *App) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.publisher != nil {
		a.publisher.Stop()
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("redis client close failed", zap.Error(err))
		}
	}
	if a.store != nil {
		a.store.Close()
	}
	if a.gcs != nil {
		if err := a.gcs.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	_ = a.logger.Sync() // fails on terminals that cannot fsync stderr
}
