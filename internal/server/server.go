package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jjudge-oj/todolist/config"
	"github.com/jjudge-oj/todolist/internal/db"
	"github.com/jjudge-oj/todolist/internal/handlers"
	"github.com/jjudge-oj/todolist/internal/mq"
	"github.com/jjudge-oj/todolist/internal/services"
	"github.com/jjudge-oj/todolist/internal/session"
	"github.com/jjudge-oj/todolist/internal/storage"
	"github.com/jjudge-oj/todolist/internal/store"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	sessionPruneInterval       = time.Hour
	memorySessionPruneInterval = time.Minute
)

// Dependencies are the backends the HTTP handler is built on.
type Dependencies struct {
	Users    services.UserRepository
	Todos    services.TodoRepository
	Sessions session.Store
	Objects  storage.ObjectStorage
	// Events may be nil to disable activity publishing.
	Events services.Publisher
	Log    *zap.Logger

	AuthOptions []services.AuthOption
}

// Server wraps the HTTP server and the backends it owns.
type Server struct {
	httpServer *http.Server
	log        *zap.Logger
	closers    []func() error
	stopPrune  context.CancelFunc
}

// New connects the configured backends and builds the HTTP server.
func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}
	srv := &Server{log: log, stopPrune: func() {}}
	ready := false
	defer func() {
		if !ready {
			srv.close()
		}
	}()

	var (
		pg  *sql.DB
		err error
	)
	if cfg.UsesPostgres() {
		pg, err = db.Open(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		srv.closers = append(srv.closers, pg.Close)
	}

	deps := Dependencies{Log: log}

	switch cfg.StoreBackend {
	case config.BackendPostgres:
		deps.Users = store.NewUserRepository(pg)
		deps.Todos = store.NewTodoRepository(pg)
	case config.BackendMongo:
		mongoDB, err := db.OpenMongo(ctx, cfg.Mongo)
		if err != nil {
			return nil, fmt.Errorf("open mongo: %w", err)
		}
		srv.closers = append(srv.closers, func() error {
			return mongoDB.Client().Disconnect(context.Background())
		})
		users := store.NewMongoUserRepository(mongoDB)
		if err := users.EnsureIndexes(ctx); err != nil {
			return nil, fmt.Errorf("create mongo indexes: %w", err)
		}
		deps.Users = users
		deps.Todos = store.NewMongoTodoRepository(mongoDB)
	case config.BackendMemory:
		deps.Users = store.NewMemoryUserRepository()
		deps.Todos = store.NewMemoryTodoRepository()
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	switch cfg.Session.Backend {
	case config.BackendPostgres:
		pgSessions := session.NewPostgresStore(pg)
		deps.Sessions = pgSessions
		srv.startPruning(pgSessions, sessionPruneInterval)
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		srv.closers = append(srv.closers, client.Close)
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		deps.Sessions = session.NewRedisStore(client)
	case config.BackendMemory:
		memSessions := session.NewMemoryStore()
		deps.Sessions = memSessions
		srv.startPruning(memSessions, memorySessionPruneInterval)
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Session.Backend)
	}

	deps.Objects, err = storage.New(ctx, cfg)
	if err != nil {
		return nil, err
	}

	queue, err := mq.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open mq: %w", err)
	}
	if queue != nil {
		srv.closers = append(srv.closers, queue.Close)
		deps.Events = queue
	}

	handler, err := NewHandler(cfg, deps)
	if err != nil {
		return nil, err
	}

	port := cfg.ServerPort
	if port == 0 {
		port = 3000
	}

	srv.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	ready = true
	return srv, nil
}

// NewHandler builds the router over already constructed backends.
func NewHandler(cfg config.Config, deps Dependencies) (http.Handler, error) {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}

	sessions, err := session.NewManager(deps.Sessions, cfg.Session)
	if err != nil {
		return nil, err
	}
	views, err := handlers.NewViews()
	if err != nil {
		return nil, err
	}

	authService := services.NewAuthService(deps.Users, deps.Events, log, deps.AuthOptions...)
	todoService := services.NewTodoService(deps.Todos, deps.Events, log)
	uploadService := services.NewUploadService(deps.Users, deps.Objects, deps.Events, log)

	pages := handlers.NewPages(sessions, authService, views, log, cfg.Title)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		requestLogger(log),
		middleware.Recoverer,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Handle("/static/*", handlers.StaticHandler())
	handlers.AuthRouter(router, pages, authService)
	handlers.TodoRouter(router, pages, todoService)
	handlers.ProfileRouter(router, pages, uploadService, cfg.Upload.MaxBytes)

	return router, nil
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info("server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, then releases the backends.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.close()
	return err
}

func (s *Server) close() {
	s.stopPrune()
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			s.log.Warn("failed to close backend", zap.Error(err))
		}
	}
	s.closers = nil
}

func (s *Server) startPruning(store session.Pruner, every time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	s.stopPrune = cancel

	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := store.DeleteExpired(ctx)
				if err != nil {
					s.log.Warn("failed to prune sessions", zap.Error(err))
					continue
				}
				s.log.Debug("pruned expired sessions", zap.Int64("removed", removed))
			}
		}
	}()
}
