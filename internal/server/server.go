// Package server sets up the HTTP server, router, and all route definitions.
//
// This package is the composition root: New builds every dependency from
// the configuration object (database, token and password services, OAuth
// providers, dispatch queue, services, handlers) and setupRoutes decides
// which middleware guards which route. Nothing below this layer constructs
// its own dependencies.
//
// DEPENDENCY FLOW:
//
//	config.Config → sqlite.DB → services (repository interfaces) → handlers → routes
//	                dispatch.Queue → dispatch.Dispatcher → AuthService, NotificationService
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sakif/authors-haven/internal/auth"
	"github.com/sakif/authors-haven/internal/config"
	"github.com/sakif/authors-haven/internal/dispatch"
	"github.com/sakif/authors-haven/internal/handler"
	"github.com/sakif/authors-haven/internal/middleware"
	"github.com/sakif/authors-haven/internal/model"
	"github.com/sakif/authors-haven/internal/ratelimit"
	sqliteRepo "github.com/sakif/authors-haven/internal/repository/sqlite"
	"github.com/sakif/authors-haven/internal/service"
	"github.com/sakif/authors-haven/internal/validation"
)

// shutdownTimeout bounds both the HTTP drain and the dispatch queue drain.
const shutdownTimeout = 30 * time.Second

// Server represents the HTTP server and all its dependencies.
//
// The Server owns the database connection, the dispatch queue and the rate
// limiter's sweeper goroutine; Close releases all three.
type Server struct {
	router  *chi.Mux
	cfg     *config.Config
	logger  *slog.Logger
	db      *sqliteRepo.DB
	queue   *dispatch.Queue
	limiter *ratelimit.KeyedRateLimiter

	tokens    *auth.TokenService
	passwords *auth.PasswordService
	providers *auth.Providers
}

// New wires the whole application from cfg.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.AccessTokenTTL)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating token service: %w", err)
	}

	s := &Server{
		router:    chi.NewRouter(),
		cfg:       cfg,
		logger:    logger,
		db:        db,
		queue:     dispatch.NewQueue(cfg.Dispatch.Workers, cfg.Dispatch.Buffer, cfg.Dispatch.TaskTimeout, logger),
		limiter:   ratelimit.New(cfg.RateLimit.AuthRPS, cfg.RateLimit.AuthBurst, 10*time.Minute),
		tokens:    tokens,
		passwords: auth.NewPasswordService(cfg.Auth.BcryptCost),
		providers: auth.NewProviders(map[string]auth.Credentials{
			auth.ProviderGoogle:   credentials(cfg.OAuth.Google),
			auth.ProviderFacebook: credentials(cfg.OAuth.Facebook),
			auth.ProviderGitHub:   credentials(cfg.OAuth.GitHub),
		}, cfg.OAuth.CallbackBaseURL),
	}
	s.queue.Start()

	s.setupRoutes()
	return s, nil
}

func credentials(c config.ProviderCredentials) auth.Credentials {
	return auth.Credentials{ClientID: c.ClientID, ClientSecret: c.ClientSecret}
}

// newDispatcher picks real providers when credentials are configured and
// logging stand-ins otherwise, so development needs no SendGrid or Pusher
// account.
func (s *Server) newDispatcher() *dispatch.Dispatcher {
	var mailer dispatch.Mailer = dispatch.NewLogMailer(s.logger)
	if s.cfg.Mail.SendGridKey != "" {
		mailer = dispatch.NewSendGridMailer(s.cfg.Mail.SendGridKey, s.cfg.Mail.From, s.cfg.Mail.FromName)
	} else {
		s.logger.Warn("SENDGRID_API_KEY not set, emails will only be logged")
	}

	var pusher dispatch.Pusher = dispatch.NewLogPusher(s.logger)
	if s.cfg.Push.AppID != "" {
		p := s.cfg.Push
		pusher = dispatch.NewPusherClient(p.AppID, p.Key, p.Secret, p.Cluster, s.cfg.Dispatch.TaskTimeout)
	} else {
		s.logger.Warn("PUSHER_APP_ID not set, push events will only be logged")
	}

	return dispatch.NewDispatcher(s.queue, mailer, pusher, s.logger)
}

// setupRoutes configures all middleware and route handlers.
//
// MIDDLEWARE ORDER MATTERS:
//  1. RequestID: unique id per request, picked up by the request logger
//  2. RealIP: client IP from proxy headers, used by the rate limiter
//  3. Recoverer: a panic becomes a 500 instead of a crash
//  4. Logger: one structured line per request
//
// Per-route guards are layered on top: RequireAuth validates the bearer
// token, RequireActive additionally demands a verified email, RequireRole
// restricts to admins, and validation.Body[T] decodes and validates input
// before the handler runs.
func (s *Server) setupRoutes() {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	dispatcher := s.newDispatcher()

	// === Services ===
	notifications := service.NewNotificationService(s.db, s.db, s.db, s.db, dispatcher, s.cfg.AppURL, s.logger)
	users := service.NewUserService(s.db, s.db, notifications, s.logger)
	articles := service.NewArticleService(s.db, s.db, s.db, s.db, notifications, s.logger)
	comments := service.NewCommentService(s.db, s.db, s.db, notifications, s.logger)
	authService := service.NewAuthService(
		s.db,
		service.NewSocialResolver(s.db, s.logger),
		s.tokens,
		s.passwords,
		dispatcher,
		service.AuthConfig{
			AppURL:         s.cfg.AppURL,
			VerifyEmailTTL: s.cfg.Auth.VerifyEmailTTL,
			ResetTTL:       s.cfg.Auth.ResetTTL,
		},
		s.logger,
	)

	// === Handlers ===
	root := handler.NewRootHandler(s.db, s.logger)
	authHandler := handler.NewAuthHandler(authService, s.providers, s.cfg.OAuth.RedirectURL, s.cfg.IsProduction(), s.logger)
	userHandler := handler.NewUserHandler(users, articles, notifications, s.logger)
	profileHandler := handler.NewProfileHandler(users, s.logger)
	articleHandler := handler.NewArticleHandler(articles, s.logger)
	commentHandler := handler.NewCommentHandler(comments, s.logger)

	// === Guards ===
	v := validation.New()
	requireAuth := auth.RequireAuth(s.tokens)
	optionalAuth := auth.OptionalAuth(s.tokens)
	requireActive := auth.RequireActive(users, s.logger)
	requireAdmin := auth.RequireRole(users, model.RoleAdmin, s.logger)
	limited := middleware.RateLimit(s.limiter, s.logger)

	s.router.NotFound(root.HandleNotFound)
	s.router.MethodNotAllowed(root.HandleMethodNotAllowed)
	s.router.Get("/", root.HandleRoot)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: false,
			MaxAge:           300,
		}))

		r.Get("/health", root.HandleHealth)

		// --- accounts ---
		r.With(limited, validation.Body[validation.SignupRequest](v)).Post("/users", authHandler.HandleSignup)
		r.With(limited, validation.Body[validation.LoginRequest](v)).Post("/users/login", authHandler.HandleLogin)
		r.Get("/users/verifyemail", authHandler.HandleVerifyEmail)
		r.With(limited, validation.Body[validation.PasswordResetRequest](v)).Post("/users/reset-password", authHandler.HandleRequestReset)
		r.With(validation.Body[validation.ResetPasswordRequest](v)).Patch("/users/reset-password", authHandler.HandleResetPassword)
		r.Get("/users/auth/{provider}", authHandler.HandleSocialLogin)
		r.Get("/users/auth/{provider}/redirect", authHandler.HandleSocialCallback)

		// --- the signed-in user ---
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/user", userHandler.HandleMe)
			r.Get("/user/bookmarks", userHandler.HandleBookmarks)

			r.Group(func(r chi.Router) {
				r.Use(requireActive)
				r.With(validation.Body[validation.ProfileUpdateRequest](v)).Put("/user", userHandler.HandleUpdateProfile)
				r.With(validation.Body[validation.NotificationSettingsRequest](v)).Patch("/users/notification", userHandler.HandleNotificationSettings)
				r.Get("/users/notifications", userHandler.HandleListNotifications)
				r.Patch("/users/notifications/{id}/read", userHandler.HandleMarkNotificationRead)
			})
		})

		// --- profiles ---
		r.Route("/profiles/{username}", func(r chi.Router) {
			r.With(optionalAuth).Get("/", profileHandler.HandleGet)
			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Post("/follow", profileHandler.HandleFollow)
				r.Delete("/follow", profileHandler.HandleUnfollow)
				r.Get("/followers", profileHandler.HandleFollowers)
				r.Get("/following", profileHandler.HandleFollowing)
			})
		})

		// --- articles ---
		r.Route("/articles", func(r chi.Router) {
			r.Get("/", articleHandler.HandleList)
			r.Get("/tags", articleHandler.HandleTags)
			r.With(requireAuth, requireAdmin).Delete("/tags/{id}", articleHandler.HandleDeleteTag)
			r.With(requireAuth, validation.Body[validation.ArticleRequest](v)).Post("/", articleHandler.HandleCreate)

			r.Route("/{slug}", func(r chi.Router) {
				r.Get("/", articleHandler.HandleGet)
				r.Get("/comments", commentHandler.HandleList)
				r.Get("/comments/{id}/history", commentHandler.HandleHistory)

				r.Group(func(r chi.Router) {
					r.Use(requireAuth)
					r.With(validation.Body[validation.ArticleUpdateRequest](v)).Put("/", articleHandler.HandleUpdate)
					r.Delete("/", articleHandler.HandleDelete)
					r.With(validation.Body[validation.RatingRequest](v)).Post("/rating", articleHandler.HandleRate)
					r.Post("/clap", articleHandler.HandleClap)
					r.Post("/bookmark", articleHandler.HandleBookmark)
					r.Delete("/bookmark", articleHandler.HandleRemoveBookmark)
					r.With(validation.Body[validation.ReportRequest](v)).Post("/report", articleHandler.HandleReport)

					r.With(validation.Body[validation.CommentRequest](v)).Post("/comment", commentHandler.HandleCreate)
					r.With(validation.Body[validation.CommentRequest](v)).Put("/comments/{id}", commentHandler.HandleUpdate)
					r.Delete("/comments/{id}", commentHandler.HandleDelete)
					r.Post("/comments/{id}/like", commentHandler.HandleLike)
				})
			})
		})

		r.With(requireAuth, requireAdmin).Get("/reports", articleHandler.HandleReports)
	})
}

// Handler returns the router. Tests drive it with httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close drains the dispatch queue and releases the database and the rate
// limiter. It is safe to call once after Start returns, or instead of Start
// in tests.
func (s *Server) Close(ctx context.Context) error {
	s.limiter.Stop()
	queueErr := s.queue.Stop(ctx)
	return errors.Join(queueErr, s.db.Close())
}

// Start runs the HTTP server until SIGINT/SIGTERM, then shuts down
// gracefully:
//  1. Stop accepting connections and let in-flight requests finish
//  2. Drain the dispatch queue so queued emails and pushes still go out
//  3. Close the database
func (s *Server) Start() error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
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
			slog.Int("port", s.cfg.Port),
			slog.String("env", s.cfg.Env),
			slog.String("database", s.cfg.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		closeErr := s.Close(ctx)
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", errors.Join(err, closeErr))
		}
		return closeErr

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		shutdownErr := srv.Shutdown(ctx)
		if err := s.Close(ctx); err != nil {
			s.logger.Error("closing resources", slog.String("error", err.Error()))
		}
		if shutdownErr != nil {
			return fmt.Errorf("graceful shutdown failed: %w", shutdownErr)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
