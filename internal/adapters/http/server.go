package http

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mnemos/mnemos/internal/adapters/http/handlers"
	"github.com/mnemos/mnemos/internal/adapters/http/middleware"
	"github.com/mnemos/mnemos/internal/adapters/secrets"
	"github.com/mnemos/mnemos/internal/application/chat"
	"github.com/mnemos/mnemos/internal/auth"
	"github.com/mnemos/mnemos/internal/config"
	"github.com/mnemos/mnemos/internal/ports"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	config     *config.Config
	router     *chi.Mux
	httpServer *http.Server

	userRepo         ports.UserRepository
	conversationRepo ports.ConversationRepository
	messageRepo      ports.MessageRepository
	modelConfigRepo  ports.ModelConfigRepository
	memoryService    ports.MemoryService
	pipeline         *chat.Pipeline
	tokens           *auth.TokenManager
	box              *secrets.Box
	idGen            ports.IDGenerator
	txManager        ports.TransactionManager
	db               *pgxpool.Pool
	tester           handlers.ConnectionTester
}

func NewServer(
	cfg *config.Config,
	userRepo ports.UserRepository,
	conversationRepo ports.ConversationRepository,
	messageRepo ports.MessageRepository,
	modelConfigRepo ports.ModelConfigRepository,
	memoryService ports.MemoryService,
	pipeline *chat.Pipeline,
	tokens *auth.TokenManager,
	box *secrets.Box,
	idGen ports.IDGenerator,
	txManager ports.TransactionManager,
	db *pgxpool.Pool,
) *Server {
	s := &Server{
		config:           cfg,
		userRepo:         userRepo,
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
		modelConfigRepo:  modelConfigRepo,
		memoryService:    memoryService,
		pipeline:         pipeline,
		tokens:           tokens,
		box:              box,
		idGen:            idGen,
		txManager:        txManager,
		db:               db,
	}

	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recovery)
	r.Use(middleware.CORS(s.config.Server.CORSOrigins))
	r.Use(middleware.Metrics)

	healthHandler := handlers.NewHealthHandler(s.db)
	r.Get("/health", healthHandler.Health)
	r.Handle("/metrics", promhttp.Handler())

	tokenTTLSeconds := s.config.Auth.TokenTTLMins * 60
	authHandler := handlers.NewAuthHandler(s.userRepo, s.tokens, s.idGen, s.memoryService, tokenTTLSeconds)

	r.Post("/api/auth/register", authHandler.Register)
	r.Post("/api/auth/login", authHandler.Login)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(s.tokens))

		r.Post("/auth/refresh", authHandler.Refresh)
		r.Get("/auth/me", authHandler.Me)
		r.Put("/auth/me", authHandler.UpdateMe)
		r.Put("/auth/password", authHandler.UpdatePassword)

		conversationHandler := handlers.NewConversationHandler(s.conversationRepo, s.messageRepo, s.memoryService, s.idGen, s.txManager)
		messageHandler := handlers.NewMessageHandler(s.conversationRepo, s.messageRepo, s.pipeline, s.txManager)
		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", conversationHandler.List)
			r.Post("/", conversationHandler.Create)
			r.Delete("/batch", conversationHandler.BatchDelete)
			r.Route("/{conversationID}", func(r chi.Router) {
				r.Get("/", conversationHandler.Get)
				r.Put("/", conversationHandler.Update)
				r.Delete("/", conversationHandler.Delete)
				r.Get("/messages", messageHandler.List)
				r.Post("/messages", messageHandler.Send)
				r.Post("/messages/stream", messageHandler.Stream)
				r.Put("/messages/{messageID}", messageHandler.Update)
				r.Delete("/messages/{messageID}", messageHandler.Delete)
			})
		})

		memoryHandler := handlers.NewMemoryHandler(s.memoryService, s.conversationRepo, s.modelConfigRepo, s.box)
		r.Route("/memories", func(r chi.Router) {
			r.Get("/", memoryHandler.List)
			r.Post("/", memoryHandler.Create)
			r.Post("/search", memoryHandler.Search)
			r.Put("/{memoryID}", memoryHandler.Update)
			r.Delete("/{memoryID}", memoryHandler.Delete)
		})

		modelConfigHandler := handlers.NewModelConfigHandler(s.modelConfigRepo, s.memoryService, s.box, s.idGen, s.tester)
		r.Route("/user/model-configs", func(r chi.Router) {
			r.Get("/providers", modelConfigHandler.Providers)
			r.Get("/", modelConfigHandler.List)
			r.Get("/default", modelConfigHandler.GetDefault)
			r.Post("/", modelConfigHandler.Create)
			r.Route("/{configID}", func(r chi.Router) {
				r.Put("/", modelConfigHandler.Update)
				r.Delete("/", modelConfigHandler.Delete)
				r.Put("/set-default", modelConfigHandler.SetDefault)
				r.Post("/test", modelConfigHandler.Test)
			})
		})
	})

	s.router = r
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // SSE responses stay open past any fixed deadline
		IdleTimeout:  120 * time.Second,
	}

	log.Printf("Starting HTTP server on %s", addr)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	log.Println("Shutting down HTTP server...")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Router() *chi.Mux {
	return s.router
}
