// Package server wires configuration, storage, services and handlers into
// one HTTP server. It is the composition root: every dependency is built in
// New and handed down, nothing below this package constructs its own.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"

	"github.com/sakif/snapgram/internal/auth"
	"github.com/sakif/snapgram/internal/cache"
	"github.com/sakif/snapgram/internal/config"
	"github.com/sakif/snapgram/internal/events"
	"github.com/sakif/snapgram/internal/handler"
	"github.com/sakif/snapgram/internal/identity"
	"github.com/sakif/snapgram/internal/middleware"
	"github.com/sakif/snapgram/internal/repository"
	sqliteRepo "github.com/sakif/snapgram/internal/repository/sqlite"
	"github.com/sakif/snapgram/internal/service"
)

// Server owns the router and every long-lived connection. Connections are
// closed by Close (Start calls it on the way out).
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger

	db   *sqliteRepo.DB
	rdb  *redis.Client
	nats *events.NATSPublisher
}

// New builds the server. It fails on anything the webhook endpoint cannot
// work without (store, signing secret); optional infrastructure that is
// configured but unreachable (Redis, NATS) is logged and skipped.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	verifier, err := identity.NewSvixVerifier(cfg.WebhookSigningSecret)
	if err != nil {
		return nil, fmt.Errorf("webhook verifier: %w", err)
	}

	if cfg.DBPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	tokens, err := s.sessionTokens()
	if err != nil {
		s.Close()
		return nil, err
	}

	s.setupRoutes(verifier, tokens)
	return s, nil
}

// sessionTokens returns nil (auth disabled) when no session secret is set.
func (s *Server) sessionTokens() (*auth.TokenService, error) {
	if s.config.SessionSecret == "" {
		s.logger.Warn("SESSION_SECRET not set, protected routes accept anonymous requests")
		return nil, nil
	}
	tokens, err := auth.NewTokenService(s.config.SessionSecret, s.config.SessionIssuer, s.config.AuthorizedParties)
	if err != nil {
		return nil, fmt.Errorf("session tokens: %w", err)
	}
	return tokens, nil
}

// postStore returns the SQLite store, fronted by Redis when REDIS_ADDR is set
// and reachable.
func (s *Server) postStore() cache.Backend {
	if s.config.RedisAddr == "" {
		return s.db
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	rdb, err := cache.NewRedisClient(ctx, s.config.RedisAddr, s.config.RedisPassword)
	if err != nil {
		s.logger.Warn("redis unavailable, post cache disabled",
			slog.String("addr", s.config.RedisAddr),
			slog.String("error", err.Error()),
		)
		return s.db
	}
	s.rdb = rdb
	s.logger.Info("post cache enabled", slog.String("addr", s.config.RedisAddr), slog.Duration("ttl", s.config.PostCacheTTL))
	return cache.New(s.db, rdb, s.config.PostCacheTTL, s.logger)
}

func (s *Server) publisher() events.Publisher {
	if s.config.NATSURL == "" {
		return events.Noop{}
	}
	pub, err := events.NewNATSPublisher(s.config.NATSURL)
	if err != nil {
		s.logger.Warn("NATS unavailable, lifecycle events disabled", slog.String("error", err.Error()))
		return events.Noop{}
	}
	s.nats = pub
	return pub
}

func (s *Server) metadataUpdater() identity.MetadataUpdater {
	if s.config.IdentitySecretKey == "" {
		s.logger.Warn("IDENTITY_SECRET_KEY not set, provider metadata will not be updated")
		return identity.NoopMetadata{}
	}
	client, err := identity.NewClerkClient(s.config.IdentityAPIURL, s.config.IdentitySecretKey, s.config.IdentityTimeout)
	if err != nil {
		s.logger.Warn("identity API client disabled", slog.String("error", err.Error()))
		return identity.NoopMetadata{}
	}
	return client
}

// setupRoutes builds the dependency graph and registers every route.
//
//	GET    /                                   welcome
//	GET    /healthz                            store ping
//	POST   /users/api/webhooks/user            identity webhook (signed)
//	GET    /users, /users/{id}, /users/by-identity/{externalId}, /users/{id}/saves
//	PUT    /users/{id}                         auth
//	DELETE /users/{id}                         auth
//	PATCH  /users/{id}/follow/{targetId}       auth
//	PATCH  /users/{id}/unfollow/{targetId}     auth
//	GET    /posts, /posts/post/{id}, /posts/user/{userId}
//	POST   /posts                              auth
//	PATCH  /posts/{id}, /posts/likes/{id}      auth
//	DELETE /posts/{id}                         auth
//	GET    /comments?postId=
//	POST   /comments, PATCH|DELETE /comments/{commentId}   auth
//	POST   /saves, DELETE /saves/{id}          auth
func (s *Server) setupRoutes(verifier identity.Verifier, tokens *auth.TokenService) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	var (
		users    repository.UserRepository = s.db
		store                              = s.postStore()
		pub                                = s.publisher()
		expander                           = service.NewExpander(users, store, store, store)
	)

	identitySvc := service.NewIdentityService(verifier, users, store, s.metadataUpdater(), pub, s.logger)
	userSvc := service.NewUserService(users, store, store, expander, pub, s.logger)
	postSvc := service.NewPostService(store, users, expander, s.logger)
	commentSvc := service.NewCommentService(store, store, store, users, expander, s.logger)

	system := handler.NewSystemHandler(s.db, s.logger)
	webhook := handler.NewWebhookHandler(identitySvc, s.logger)
	userH := handler.NewUserHandler(userSvc, s.logger)
	postH := handler.NewPostHandler(postSvc, s.logger)
	commentH := handler.NewCommentHandler(commentSvc, s.logger)

	requireAuth := auth.RequireAuth(tokens)

	s.router.Get("/", system.HandleWelcome)
	s.router.Get("/healthz", system.HandleHealth)

	s.router.Route("/users", func(r chi.Router) {
		r.Post("/api/webhooks/user", webhook.HandleUserEvent)

		r.Get("/", userH.HandleList)
		r.Get("/by-identity/{externalId}", userH.HandleGetByIdentity)
		r.Get("/{id}", userH.HandleGet)
		r.Get("/{id}/saves", userH.HandleListSaves)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Put("/{id}", userH.HandleUpdate)
			r.Delete("/{id}", userH.HandleDelete)
			r.Patch("/{id}/follow/{targetId}", userH.HandleFollow)
			r.Patch("/{id}/unfollow/{targetId}", userH.HandleUnfollow)
		})
	})

	s.router.Route("/posts", func(r chi.Router) {
		r.Get("/", postH.HandleFeed)
		r.Get("/post/{id}", postH.HandleDetail)
		r.Get("/user/{userId}", postH.HandleListByCreator)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/", postH.HandleCreate)
			r.Patch("/likes/{id}", postH.HandleLike)
			r.Patch("/{id}", postH.HandleEdit)
			r.Delete("/{id}", postH.HandleDelete)
		})
	})

	s.router.Route("/comments", func(r chi.Router) {
		r.Get("/", commentH.HandleList)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/", commentH.HandleCreate)
			r.Patch("/{commentId}", commentH.HandleLike)
			r.Delete("/{commentId}", commentH.HandleDelete)
		})
	})

	s.router.Route("/saves", func(r chi.Router) {
		r.Use(requireAuth)
		r.Post("/", commentH.HandleSave)
		r.Delete("/{id}", commentH.HandleUnsave)
	})
}

// Handler exposes the router, for tests and for embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases every connection the server opened.
func (s *Server) Close() error {
	var errs []error
	if s.nats != nil {
		errs = append(errs, s.nats.Close())
	}
	if s.rdb != nil {
		errs = append(errs, s.rdb.Close())
	}
	errs = append(errs, s.db.Close())
	return errors.Join(errs...)
}

// Start serves until SIGINT/SIGTERM, then drains in-flight requests for up
// to 30 seconds and closes all connections.
func (s *Server) Start() error {
	defer func() {
		if err := s.Close(); err != nil {
			s.logger.Error("closing connections", slog.String("error", err.Error()))
		}
	}()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
