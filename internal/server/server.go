// internal/server/server.go
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/davem/wrenchd/internal/attach"
	"github.com/davem/wrenchd/internal/auth"
	"github.com/davem/wrenchd/internal/db"
	"github.com/davem/wrenchd/internal/log"
	"github.com/davem/wrenchd/internal/mail"
	"github.com/davem/wrenchd/internal/notify"
	"github.com/davem/wrenchd/internal/realtime"
	"github.com/davem/wrenchd/internal/shop"
)

// Config holds what the composition root cannot derive on its own. The
// attachment backend is injected so tests can hand in a local one and the
// serve command can pick local or S3.
type Config struct {
	JWTSecret     string
	CORSOrigins   []string
	Mail          *mail.Config
	AttachBackend attach.Backend
}

// Server wires the stores, services and handlers together and owns the
// HTTP lifecycle. There is exactly one realtime service per Server; every
// component that pushes gets it injected from here.
type Server struct {
	db     *db.DB
	router *chi.Mux

	authService   *auth.Service
	realtime      *realtime.Service
	notifyStore   *notify.Store
	emitter       *notify.Emitter
	shopService   *shop.Service
	emailService  *mail.EmailService
	attachStore   *attach.Store
	attachBackend attach.Backend

	httpServer *http.Server
}

// New builds a fully wired Server over an open, migrated database.
func New(database *db.DB, cfg Config) (*Server, error) {
	if cfg.Mail == nil {
		cfg.Mail = &mail.Config{}
	}
	mailer, err := mail.NewMailer(cfg.Mail)
	if err != nil {
		return nil, fmt.Errorf("failed to create mailer: %w", err)
	}

	s := &Server{
		db:     database,
		router: chi.NewRouter(),
	}

	s.authService = auth.NewService(database, cfg.JWTSecret)
	s.realtime = realtime.NewService(s.authService)

	s.notifyStore = notify.NewStore(database)
	s.emitter = notify.NewEmitter(s.notifyStore, s.realtime.Dispatcher())

	s.emailService = mail.NewEmailService(mailer, cfg.Mail)

	clients := shop.NewClientStore(database)
	vehicles := shop.NewVehicleStore(database)
	orders := shop.NewOrderStore(database)
	inventory := shop.NewInventoryStore(database)
	s.shopService = shop.NewService(clients, vehicles, orders, inventory,
		s.emitter, s.realtime.Dispatcher(), s.emailService)

	s.attachBackend = cfg.AttachBackend
	if s.attachBackend == nil {
		local, err := attach.NewLocal("attachments")
		if err != nil {
			return nil, fmt.Errorf("failed to create attachment backend: %w", err)
		}
		s.attachBackend = local
	}
	s.attachStore = attach.NewStore(database)

	s.setupRoutes(cfg)
	return s, nil
}

func (s *Server) setupRoutes(cfg Config) {
	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	s.router.Use(log.RequestLogger)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/health", s.handleHealth)

	shopHandler := shop.NewHandler(s.shopService)
	notifyHandler := notify.NewHandler(s.notifyStore, s.emitter)
	attachHandler := attach.NewHandler(s.attachStore, s.attachBackend, s.orderOwner)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", s.handleLogin)
			r.Post("/refresh", s.handleRefresh)

			r.Group(func(r chi.Router) {
				r.Use(s.authService.Middleware)
				r.Post("/logout", s.handleLogout)
				r.Get("/me", s.handleMe)
			})
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(s.authService.Middleware)
			r.Use(auth.RequirePrivileged)
			r.Get("/", s.handleListUsers)
			r.Post("/", s.handleCreateUser)
			r.Put("/{id}/role", s.handleUpdateUserRole)
			r.Delete("/{id}", s.handleDeleteUser)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.authService.Middleware)
			shopHandler.Routes(r)
			r.Route("/notifications", notifyHandler.Routes)
			r.Route("/attachments", attachHandler.Routes)
		})
	})

	// Token validation happens inside the upgrade handshake.
	s.router.Get("/realtime/ws", s.realtime.HandleWebSocket)
}

// orderOwner resolves the login account behind a service order so the
// attachment handler can authorize owner reads.
func (s *Server) orderOwner(orderID string) (string, error) {
	order, err := s.shopService.Orders.Get(orderID)
	if err != nil {
		return "", err
	}
	client, err := s.shopService.Clients.Get(order.ClientID)
	if err != nil {
		return "", err
	}
	return client.UserID, nil
}

// Router exposes the handler tree for tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Realtime exposes the fabric, mainly for the serve command's shutdown
// logging and for tests.
func (s *Server) Realtime() *realtime.Service {
	return s.realtime
}

func (s *Server) ListenAndServe(addr string) error {
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}
	log.Info("http server listening", "addr", addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown stops accepting connections and drains in-flight requests, then
// releases the attachment backend.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http server: %w", err))
		}
	}
	if err := s.attachBackend.Close(); err != nil {
		errs = append(errs, fmt.Errorf("attachment backend: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}
