package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/unclebandit/darb-backend/internal/cache"
	"github.com/unclebandit/darb-backend/internal/config"
	"github.com/unclebandit/darb-backend/internal/db"
	"github.com/unclebandit/darb-backend/internal/media"
	"github.com/unclebandit/darb-backend/internal/queue"
	"github.com/unclebandit/darb-backend/internal/quota"
	"github.com/unclebandit/darb-backend/internal/repository"
	"github.com/unclebandit/darb-backend/internal/service"
	"github.com/unclebandit/darb-backend/internal/store"
)

// App holds the persistence, media and queue components shared by the
// server, the upload worker and the seeder.
type App struct {
	Config config.Config
	Logger zerolog.Logger

	DB     *sql.DB
	Redis  redis.UniversalClient
	Local  store.KV
	Remote repository.Adapter
	Store  *repository.Failover

	Monitor   *quota.Monitor
	Evictor   *quota.Evictor
	Cache     *cache.Cache
	Optimizer *media.Optimizer
	Uploader  media.Uploader
	Queue     queue.Queue

	Campaigns *service.CampaignService
	Uploads   *service.UploadWorker

	closers []io.Closer
}

// Build wires every component described by cfg. The caller owns the App
// and must Close it.
func Build(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	if err := a.openLocal(); err != nil {
		return nil, err
	}
	if err := a.openRemote(ctx); err != nil {
		a.Close()
		return nil, err
	}

	a.Monitor = quota.NewMonitor(a.Local)
	a.Evictor = quota.NewEvictor(a.Monitor, logger)
	a.Store = repository.NewFailover(a.Remote, repository.NewLocalAdapter(a.Local), a.Evictor, cfg.RemoteTimeout, logger)
	a.Cache = cache.New()

	profiles, err := media.LoadProfiles(cfg.MediaProfilesFile)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Optimizer = media.NewOptimizer(profiles, logger)
	a.Uploader = media.NewDirUploader(cfg.MediaDir, cfg.MediaBaseURL)

	if err := a.openQueue(); err != nil {
		a.Close()
		return nil, err
	}

	a.Campaigns = service.NewCampaignService(a.Store, a.Cache, a.Optimizer, a.Evictor, a.Queue, logger)
	a.Campaigns.UploadTopic = cfg.UploadQueue
	a.Uploads = service.NewUploadWorker(a.Uploader, a.Campaigns, logger)
	return a, nil
}

// openLocal opens the bbolt fallback store, or an in-memory one when no
// path is configured.
func (a *App) openLocal() error {
	if a.Config.LocalStorePath == "" {
		a.Local = store.NewMemoryStore(a.Config.LocalCapacityBytes)
		a.Logger.Warn().Msg("⚠️ LOCAL_STORE_PATH not set, fallback records will not survive a restart")
		return nil
	}
	bolt, err := store.OpenBolt(a.Config.LocalStorePath, a.Config.LocalCapacityBytes)
	if err != nil {
		return err
	}
	a.Local = bolt
	a.closers = append(a.closers, bolt)
	return nil
}

func (a *App) openRemote(ctx context.Context) error {
	switch a.Config.RemoteBackend {
	case config.RemotePostgres:
		conn, err := db.Open(ctx, a.Config.PostgresDSN())
		if err != nil {
			return err
		}
		if err := db.EnsureSchema(ctx, conn); err != nil {
			a.Logger.Warn().Err(err).Msg("⚠️ documents table not ensured, remote writes may fail")
		}
		a.DB = conn
		a.Remote = repository.NewPostgresAdapter(conn)
		a.closers = append(a.closers, conn)

	case config.RemoteRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     a.Config.RedisAddr,
			Password: a.Config.RedisPassword,
			DB:       a.Config.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			a.Logger.Warn().Err(err).Msg("⚠️ redis not reachable, writes will use the local store")
		}
		a.Redis = client
		a.Remote = repository.NewRedisAdapter(client)
		a.closers = append(a.closers, client)

	case config.RemoteMemory:
		a.Logger.Warn().Msg("⚠️ using the in-memory remote store")
		a.Remote = repository.NewMemoryAdapter()

	default:
		return fmt.Errorf("unsupported remote backend %q", a.Config.RemoteBackend)
	}

	a.Logger.Info().Str("backend", a.Config.RemoteBackend).Msg("✅ remote store configured")
	return nil
}

// openQueue connects the upload queue. The in-memory queue delivers jobs to
// an in-process upload worker.
func (a *App) openQueue() error {
	switch a.Config.QueueBackend {
	case config.QueueAMQP:
		q, err := queue.DialAMQP(a.Config.AMQPURL)
		if err != nil {
			return err
		}
		a.Queue = q
		a.closers = append(a.closers, q)
	default:
		q := queue.NewInMemoryQueue()
		q.Logger = a.Logger.With().Str("component", "queue").Logger()
		a.Queue = q
	}
	return nil
}

// StartUploads subscribes the upload worker to the configured queue.
func (a *App) StartUploads() error {
	return queue.StartUploadSubscriber(a.Queue, a.Config.UploadQueue, a.Uploads.Handle)
}

// Close releases every connection in reverse order of opening.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}
