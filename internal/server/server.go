package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/adb-analytics/apiserver/config"
	"github.com/adb-analytics/apiserver/internal/auth"
	"github.com/adb-analytics/apiserver/internal/db"
	"github.com/adb-analytics/apiserver/internal/handlers"
	"github.com/adb-analytics/apiserver/internal/mq"
	"github.com/adb-analytics/apiserver/internal/notify"
	"github.com/adb-analytics/apiserver/internal/services"
	"github.com/adb-analytics/apiserver/internal/storage"
	"github.com/adb-analytics/apiserver/internal/store"
	"github.com/adb-analytics/apiserver/internal/store/memstore"
	"github.com/adb-analytics/apiserver/internal/store/mongostore"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	closers    []io.Closer
}

// Repositories groups the persistence backends the services use.
type Repositories struct {
	Users    services.UserRepository
	Projects services.ProjectRepository
	Resets   services.PasswordResetRepository
}

// Deps are the collaborators NewRouter wires together.
type Deps struct {
	Repos       Repositories
	Issuer      *auth.Issuer
	Emails      services.EmailDispatcher
	Objects     *storage.Storage
	RateLimit   config.RateLimitConfig
	FrontendURL string
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// New constructs a Server with basic middleware and defaults.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	s := &Server{}
	repos, err := s.openRepositories(ctx, cfg)
	if err != nil {
		return nil, err
	}

	queue, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		_ = s.close()
		return nil, fmt.Errorf("open mq: %w", err)
	}
	mailer := notify.NewMailer(cfg.SMTP)
	var publisher notify.Publisher
	if queue != nil {
		s.closers = append(s.closers, queue)
		publisher = queue
		if cfg.MQ.Backend == "memory" {
			s.consumeInProcess(queue, cfg.MQ.Channel, mailer)
		}
	}

	objects, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		_ = s.close()
		return nil, fmt.Errorf("open storage: %w", err)
	}

	s.router = NewRouter(Deps{
		Repos:       repos,
		Issuer:      auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL),
		Emails:      notify.NewDispatcher(mailer, publisher, cfg.MQ.Channel),
		Objects:     objects,
		RateLimit:   cfg.RateLimit,
		FrontendURL: cfg.FrontendURL,
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// consumeInProcess runs the email consumer inside the server. The memory
// queue is not reachable from a separate worker process.
func (s *Server) consumeInProcess(queue *mq.MQ, channel string, mailer notify.Mailer) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		err := queue.Subscribe(ctx, channel, notify.Handler(mailer))
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("server: email consumer stopped: %v", err)
		}
	}()
	s.closers = append(s.closers, closerFunc(func() error {
		cancel()
		<-done
		return nil
	}))
}

func (s *Server) openRepositories(ctx context.Context, cfg config.Config) (Repositories, error) {
	switch cfg.Database.Driver {
	case "", "postgres":
		conn, err := db.Open(ctx, cfg.Database)
		if err != nil {
			return Repositories{}, err
		}
		s.closers = append(s.closers, conn)
		return Repositories{
			Users:    store.NewUserRepository(conn),
			Projects: store.NewProjectRepository(conn),
			Resets:   store.NewPasswordResetRepository(conn),
		}, nil
	case "mongo":
		client, database, err := mongostore.Connect(ctx, cfg.Mongo)
		if err != nil {
			return Repositories{}, err
		}
		s.closers = append(s.closers, closerFunc(func() error {
			return client.Disconnect(context.Background())
		}))
		return Repositories{
			Users:    mongostore.NewUserRepository(database),
			Projects: mongostore.NewProjectRepository(database),
			Resets:   mongostore.NewPasswordResetRepository(database),
		}, nil
	case "memory":
		log.Printf("server: using in-memory store, data is lost on restart")
		mem := memstore.New()
		return Repositories{
			Users:    memstore.NewUserRepository(mem),
			Projects: memstore.NewProjectRepository(mem),
			Resets:   memstore.NewPasswordResetRepository(mem),
		}, nil
	default:
		return Repositories{}, fmt.Errorf("unknown DB_DRIVER %q", cfg.Database.Driver)
	}
}

// NewRouter builds the route tree on top of already opened backends.
func NewRouter(deps Deps) *chi.Mux {
	userService := services.NewUserService(deps.Repos.Users, deps.Repos.Resets, deps.Issuer, deps.Emails, deps.FrontendURL)
	projectService := services.NewProjectService(deps.Repos.Projects)

	var objects services.ObjectStore
	if deps.Objects != nil {
		objects = deps.Objects
	}
	reportService := services.NewReportService(projectService, objects)

	authMiddleware := handlers.RequireAuth(deps.Issuer)
	limiter := handlers.NewIPRateLimiter(deps.RateLimit.ForgotPasswordPerMinute, deps.RateLimit.ForgotPasswordBurst)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	if deps.RateLimit.TrustProxy {
		router.Use(middleware.RealIP)
	}
	router.Use(
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			handlers.AuthRouter(r, userService, deps.Issuer)
		})
		handlers.PasswordRouter(r, userService, limiter.Middleware)
		r.Route("/projects", func(r chi.Router) {
			handlers.ProjectRouter(r, projectService, reportService, authMiddleware)
		})
	})
	return router
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server. It returns nil after a graceful Shutdown.
func (s *Server) Start() error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and closes the backends.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if closeErr := s.close(); err == nil {
		err = closeErr
	}
	return err
}

func (s *Server) close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
