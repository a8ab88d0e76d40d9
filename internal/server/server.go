package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fittrack/apiserver/config"
	"github.com/fittrack/apiserver/internal/catalog"
	"github.com/fittrack/apiserver/internal/db"
	"github.com/fittrack/apiserver/internal/handlers"
	"github.com/fittrack/apiserver/internal/mq"
	"github.com/fittrack/apiserver/internal/notify"
	"github.com/fittrack/apiserver/internal/services"
	"github.com/fittrack/apiserver/internal/storage"
	"github.com/fittrack/apiserver/internal/store"
	"github.com/fittrack/apiserver/internal/store/memstore"
	"github.com/fittrack/apiserver/types"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server wraps the HTTP server, router and background notification bridge.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	bus        *mq.MQ
	media      *storage.Storage
	hub        *notify.Hub
	bridge     *notify.Bridge
	log        *zap.Logger
}

// repositories is the persistence backend chosen by STORE_BACKEND.
type repositories struct {
	users           services.UserRepository
	exercises       catalog.Cache
	recommendations services.RecommendationRepository
	completions     services.CompletionRepository
	progress        services.ProgressRepository
}

// New wires every component from cfg.
func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}
	jwtSecret := strings.TrimSpace(cfg.Auth.JWTSecret)
	if jwtSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	loc, err := time.LoadLocation(cfg.Progress.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid PROGRESS_TIMEZONE: %w", err)
	}

	s := &Server{log: log}
	ok := false
	defer func() {
		if !ok {
			s.closeBackends()
		}
	}()

	repos, err := s.openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	s.bus, err = mq.Open(ctx, cfg.MQ)
	if err != nil {
		return nil, fmt.Errorf("open mq: %w", err)
	}

	s.media, err = storage.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	catalogClient := catalog.NewClient(cfg.Catalog)
	lookup := catalog.NewCachedLookup(repos.exercises, catalogClient, log)
	mirror := catalog.NewMediaMirror(s.media, lookup, catalogClient, log)

	publisher := notify.NewPublisher(s.bus, cfg.Notify.Channel, log)
	s.hub = notify.NewHub(cfg.Notify.SendBuffer)
	s.bridge = notify.NewBridge(s.bus, cfg.Notify.Channel, s.hub, log)

	goals := types.ProgressGoals{
		Daily:   cfg.Progress.DailyGoal,
		Weekly:  cfg.Progress.WeeklyGoal,
		Monthly: cfg.Progress.MonthlyGoal,
	}

	userService := services.NewUserService(repos.users, cfg.Auth.AdminSecret, log)
	recommendationService := services.NewRecommendationService(repos.recommendations, lookup, publisher, log,
		services.WithEnrichConcurrency(cfg.Catalog.Concurrency))
	progressService := services.NewProgressService(repos.progress, goals, log, services.WithLocation(loc))
	completionService := services.NewCompletionService(repos.completions, progressService, publisher, log)
	exerciseService := services.NewExerciseService(catalogClient, lookup, mirror, log)

	authHandler := handlers.NewAuthHandler(userService, jwtSecret, cfg.Auth.TokenTTL, log)
	requireAuth := authHandler.RequireAuth
	requireAdmin := handlers.RequireAdmin(userService, log)
	wsServer := notify.NewWSServer(s.hub, notify.WSConfig{
		WriteTimeout: cfg.Notify.WriteTimeout,
		PingInterval: cfg.Notify.PingInterval,
	}, originChecker(cfg.Server.AllowedOrigins), log)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		requestLogger(log),
		middleware.Recoverer,
		cors(cfg.Server.AllowedOrigins),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Handle("/metrics", promhttp.Handler())
	router.With(requireAuth, requireAdmin).Get("/ws", wsServer.ServeHTTP)

	requestTimeout := cfg.Server.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = 60 * time.Second
	}
	router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))
		r.Route("/auth", func(r chi.Router) {
			handlers.AuthRouter(r, authHandler)
		})
		r.Route("/users", func(r chi.Router) {
			handlers.UserRouter(r, handlers.NewUserHandler(userService, log), requireAuth, requireAdmin)
		})
		r.Route("/recommendations", func(r chi.Router) {
			handlers.RecommendationRouter(r, handlers.NewRecommendationHandler(recommendationService, log), requireAuth, requireAdmin)
		})
		r.Route("/exercises", func(r chi.Router) {
			handlers.ExerciseRouter(r, handlers.NewExerciseHandler(exerciseService, completionService, log), requireAuth, requireAdmin)
		})
		r.Route("/progress", func(r chi.Router) {
			handlers.ProgressRouter(r, handlers.NewProgressHandler(progressService, userService, log), requireAuth)
		})
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	s.router = router
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	ok = true
	return s, nil
}

func (s *Server) openStore(ctx context.Context, cfg config.Config) (repositories, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Store)) {
	case "memory":
		s.log.Warn("using in-memory store; data is lost on restart")
		mem := memstore.New()
		return repositories{
			users:           mem.Users,
			exercises:       mem.Exercises,
			recommendations: mem.Recommendations,
			completions:     mem.Completions,
			progress:        mem.Progress,
		}, nil
	case "", "postgres":
		conn, err := db.Open(ctx, cfg.Database)
		if err != nil {
			return repositories{}, fmt.Errorf("open database: %w", err)
		}
		s.db = conn
		return repositories{
			users:           store.NewUserRepository(conn),
			exercises:       store.NewExerciseRepository(conn),
			recommendations: store.NewRecommendationRepository(conn),
			completions:     store.NewCompletionRepository(conn),
			progress:        store.NewProgressRepository(conn),
		}, nil
	default:
		return repositories{}, fmt.Errorf("unknown store backend %q", cfg.Store)
	}
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the notification bridge and the HTTP server. It returns nil
// after a graceful Shutdown.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		if err := s.bridge.Run(ctx); err != nil {
			s.log.Error("notification bridge stopped", zap.Error(err))
		}
	}()

	s.log.Info("server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown closes websocket subscribers, drains in-flight requests and
// releases the backends.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	err := s.httpServer.Shutdown(ctx)
	s.closeBackends()
	return err
}

func (s *Server) closeBackends() {
	if s.bus != nil {
		if err := s.bus.Close(); err != nil {
			s.log.Warn("close mq", zap.Error(err))
		}
	}
	if s.media != nil {
		if err := s.media.Close(); err != nil {
			s.log.Warn("close storage", zap.Error(err))
		}
	}
	if s.db != nil {
		_ = s.db.Close()
	}
}
