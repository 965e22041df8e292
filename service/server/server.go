package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"cardadmin/service/bankapi"
	"cardadmin/service/cardaction"
	"cardadmin/service/config"
	"cardadmin/service/dispatch"
	"cardadmin/service/integration"
	"cardadmin/service/live"
	"cardadmin/service/notification"
	"cardadmin/service/request"
	"cardadmin/service/util"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Server struct {
	cfg          *config.Config
	version      string
	board        *notification.Board
	dispatcher   *dispatch.Dispatcher
	requests     *request.Service
	cards        *cardaction.Service
	hub          *live.Hub
	integrations *integration.Integrations
	logger       *slog.Logger
	router       *chi.Mux
	httpServer   *http.Server
	startTime    time.Time
	now          func() time.Time
}

func New(cfg *config.Config, version string, logger *slog.Logger) (*Server, error) {
	hub := live.NewHub(logger.WithGroup("live"))

	integrations, err := integration.Initialize(cfg, hub, logger)
	if err != nil {
		return nil, err
	}

	bank := bankapi.NewClient(cfg.BankAPIURL, cfg.BankAPIToken, cfg.RequestTimeout, logger.WithGroup("bank"))

	board := notification.NewBoard()
	board.Subscribe(hub.OnEntry)

	dispatcher := dispatch.New(board, bank, integrations.Publisher, logger, dispatch.Options{
		StepTimeout: cfg.RequestTimeout,
		ConfirmTTL:  cfg.ConfirmTTL,
	})

	s := &Server{
		cfg:          cfg,
		version:      version,
		board:        board,
		dispatcher:   dispatcher,
		requests:     request.NewService(bank, logger, cfg.ConfirmTTL),
		cards:        cardaction.NewService(bank, integrations.Publisher, logger, cfg.RequestTimeout),
		hub:          hub,
		integrations: integrations,
		logger:       logger,
		startTime:    time.Now(),
		now:          time.Now,
	}

	s.setupRoutes()
	return s, nil
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(rateLimitMiddleware(s.cfg.RateLimit))
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(loggingMiddleware(s.logger))
	r.Use(securityHeadersMiddleware())
	r.Use(middleware.StripSlashes)

	r.Get("/health", s.handleHealthCheck)

	// long-lived, so outside the request timeout
	r.With(authMiddleware(s.cfg.APIKey)).Get("/live", s.hub.ServeHTTP)

	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware(s.cfg.APIKey))
		r.Use(middleware.Timeout(s.requestBudget()))
		r.Use(middleware.Compress(5))

		r.Get("/health", s.handleHealth)
		r.Get("/expiry-options", s.handleExpiryOptions)

		r.Route("/notifications", func(r chi.Router) {
			r.Post("/", s.handleIngest)
			r.Get("/", s.handleListNotifications)
			r.Get("/{id}", s.handleShowDetails)
			r.Delete("/{id}/details", s.handleCloseDetails)
			r.Post("/{id}/confirmation", s.handleRequestConfirmation)
		})

		r.Route("/confirmations/{token}", func(r chi.Router) {
			r.Post("/", s.handleConfirm)
			r.Delete("/", s.handleCancel)
		})

		r.Route("/cards", func(r chi.Router) {
			r.Post("/request-create", s.handleRequestCreate)
			r.Post("/{id}/request-topup", s.handleRequestTopUp)
			r.Post("/{id}/request-block", s.handleRequestBlock)
			r.Post("/{id}/request-unblock", s.handleRequestUnblock)
			r.Post("/{id}/request-recreate", s.handleRequestRecreate)

			r.Get("/{id}/prompt/{action}", s.handleCardPrompt)
			r.Post("/{id}/activate", s.cardAction(cardaction.ActionActivate))
			r.Post("/{id}/block", s.cardAction(cardaction.ActionBlock))
			r.Post("/{id}/topup", s.cardAction(cardaction.ActionTopUp))
			r.Post("/{id}/recreate", s.cardAction(cardaction.ActionRecreate))
			r.Delete("/{id}", s.cardAction(cardaction.ActionDelete))
		})
	})

	s.router = r
}

// requestBudget covers the longest action: create, delete and mark processed.
func (s *Server) requestBudget() time.Duration {
	return 3*s.cfg.RequestTimeout + 5*time.Second
}

func (s *Server) Start(ctx context.Context) error {
	s.integrations.Start(ctx, s.logger)
	go s.dispatcher.Run(ctx)

	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: s.requestBudget() + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	msg := fmt.Sprintf("Card admin console running on:\n  Local: http://localhost:%d", s.cfg.Port)
	if lanIP := util.GetLANIP(); lanIP != "" {
		msg += fmt.Sprintf("\n  Network: http://%s:%d", lanIP, s.cfg.Port)
	}
	s.logger.Info(msg, "bank", s.cfg.BankAPIURL, "relays", s.integrations.Publisher.Senders())

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return s.Shutdown()
	case err := <-errCh:
		return err
	}
}

func (s *Server) Shutdown() error {
	s.logger.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.hub.Close()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown http server: %w", err)
	}

	s.integrations.Close()
	return nil
}
