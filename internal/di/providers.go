// Package di builds the application object graph with wire.
package di

import (
	"context"
	"io"
	"time"

	"github.com/gorilla/mux"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"gorm.io/gorm"

	chathandler "collegovibe/internal/chat/handler"
	"collegovibe/internal/chat/presence"
	"collegovibe/internal/chat/repository"
	"collegovibe/internal/chat/service"
	"collegovibe/internal/common"
	"collegovibe/internal/config"
	"collegovibe/internal/dbmongo"
	"collegovibe/internal/dbmysql"
	"collegovibe/internal/feed"
	"collegovibe/internal/logger"
	"collegovibe/internal/media"
	"collegovibe/internal/memstore"
	"collegovibe/internal/metrics"
	"collegovibe/internal/story"
	"collegovibe/internal/user"
	"collegovibe/internal/worker"
)

// Application is everything the serve command runs.
type Application struct {
	Config   *config.Config
	Log      zerolog.Logger
	Stores   *Stores
	Metrics  *metrics.Collector
	Pool     *worker.Pool
	Stories  *story.Manager
	Presence *presence.Registry
	Router   *mux.Router
	GRPC     *grpc.Server
}

// MediaStore uploads, streams and deletes images.
type MediaStore interface {
	UploadFile(ctx context.Context, filename, mimeType, uploaderID string, content io.Reader) (*dbmongo.MediaFile, error)
	DownloadFile(ctx context.Context, fileID string) (io.ReadCloser, *dbmongo.MediaFile, error)
	DeleteFile(ctx context.Context, fileID string) error
}

// Stores is the persistence layer for the selected backend. Mongo and MySQL
// are nil in memory mode.
type Stores struct {
	Users    user.UserRepository
	Posts    feed.PostRepository
	Comments feed.CommentRepository
	Stories  story.StoryRepository
	Media    MediaStore
	Messages repository.ChatRepository

	Mongo *dbmongo.MongoClient
	MySQL *gorm.DB
}

func ProvideLogger() zerolog.Logger {
	return logger.Logger
}

func ProvideClock() clockwork.Clock {
	return clockwork.NewRealClock()
}

func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// ProvideStores opens MongoDB and MySQL, or a single in-memory store when
// STORE_BACKEND=memory.
func ProvideStores(cfg *config.Config, log zerolog.Logger) (*Stores, func(), error) {
	if cfg.UsesMemoryStore() {
		mem := memstore.New(cfg.Server.MediaBaseURL)
		log.Warn().Msg("using in-memory store, data is lost on exit")
		return &Stores{
			Users:    mem,
			Posts:    mem,
			Comments: mem,
			Stories:  mem,
			Media:    mem,
			Messages: mem,
		}, func() {}, nil
	}

	mc, err := dbmongo.NewMongoConnection(cfg)
	if err != nil {
		return nil, nil, err
	}
	log.Info().Str("database", cfg.MongoDB.Database).Msg("connected to MongoDB")

	db, err := dbmysql.NewMySQL(cfg, log)
	if err != nil {
		closeMongo(mc, log)
		return nil, nil, err
	}

	cleanup := func() {
		if sqlDB, err := db.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				log.Warn().Err(err).Msg("failed to close MySQL")
			}
		}
		closeMongo(mc, log)
	}

	return &Stores{
		Users:    user.NewUserRepository(mc.Database),
		Posts:    feed.NewPostRepository(mc.Database),
		Comments: feed.NewCommentRepository(mc.Database),
		Stories:  story.NewStoryRepository(mc.Database),
		Media:    dbmongo.NewMediaStorage(mc, cfg),
		Messages: repository.NewChatRepository(db),
		Mongo:    mc,
		MySQL:    db,
	}, cleanup, nil
}

func closeMongo(mc *dbmongo.MongoClient, log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := mc.Close(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to disconnect MongoDB")
	}
}

func ProvideWorkerPool(cfg *config.Config, log zerolog.Logger) (*worker.Pool, func()) {
	pool := worker.NewPool(cfg.Worker, log.With().Str("component", "worker").Logger())
	return pool, pool.Shutdown
}

func ProvideStoryManager(cfg *config.Config, s *Stores, pool *worker.Pool, clock clockwork.Clock, m *metrics.Collector, log zerolog.Logger) (*story.Manager, func()) {
	mgr := story.NewManager(cfg, s.Stories, s.Users, s.Media, pool, clock, m,
		log.With().Str("component", "stories").Logger())
	return mgr, mgr.Shutdown
}

func ProvideUserService(s *Stores, tokens *common.TokenIssuer, clock clockwork.Clock, log zerolog.Logger) user.UserService {
	return user.NewUserService(s.Users, tokens, clock, log.With().Str("component", "users").Logger())
}

func ProvideUserHandler(svc user.UserService, s *Stores, log zerolog.Logger) *user.Handler {
	return user.NewHandler(svc, s.Posts, s.Media, log)
}

func ProvideFeedService(s *Stores, mgr *story.Manager, clock clockwork.Clock, log zerolog.Logger) *feed.FeedService {
	return feed.NewFeedService(s.Users, s.Posts, s.Comments, s.Media, mgr, s.Stories, clock,
		log.With().Str("component", "feed").Logger())
}

func ProvidePresence(m *metrics.Collector) *presence.Registry {
	return presence.NewRegistry(m.PresentUsers)
}

func ProvideRelay(s *Stores, reg *presence.Registry, hub *chathandler.StreamHub, pool *worker.Pool, clock clockwork.Clock, m *metrics.Collector, log zerolog.Logger) *service.Relay {
	return service.NewRelay(s.Messages, s.Users, reg, hub, pool, clock, m,
		log.With().Str("component", "relay").Logger())
}

func ProvideChatHandler(relay *service.Relay, reg *presence.Registry, hub *chathandler.StreamHub, s *Stores, log zerolog.Logger) *chathandler.ChatHandler {
	return chathandler.NewChatHandler(relay, reg, hub, s.Users, log.With().Str("component", "chat").Logger())
}

func ProvideMessageHandlers(relay *service.Relay, s *Stores) *chathandler.MessageHandlers {
	return chathandler.NewMessageHandlers(relay, s.Users)
}

func ProvideMediaServer(s *Stores, log zerolog.Logger) *media.Server {
	return media.NewServer(s.Media, log)
}
