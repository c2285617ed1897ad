package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mnemos/mnemos/internal/adapters/embedding"
	httpadapter "github.com/mnemos/mnemos/internal/adapters/http"
	"github.com/mnemos/mnemos/internal/adapters/id"
	"github.com/mnemos/mnemos/internal/adapters/postgres"
	"github.com/mnemos/mnemos/internal/adapters/secrets"
	"github.com/mnemos/mnemos/internal/agent"
	"github.com/mnemos/mnemos/internal/application/chat"
	"github.com/mnemos/mnemos/internal/auth"
	"github.com/mnemos/mnemos/internal/domain/models"
	"github.com/mnemos/mnemos/internal/llm"
	"github.com/mnemos/mnemos/internal/memory"
	"github.com/mnemos/mnemos/internal/memory/engine"
	"github.com/mnemos/mnemos/internal/ports"
	"github.com/spf13/cobra"
)

// serveCmd starts the HTTP API server
func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the Mnemos HTTP API server.

The server provides REST endpoints for authentication, conversations,
messages (with SSE streaming), memories and per-user model configs.

Required configuration:
  - PostgreSQL with pgvector (MNEMOS_POSTGRES_URL)
  - Token signing secret (MNEMOS_SECRET_KEY)
  - Embedding endpoint (MNEMOS_EMBEDDING_URL)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}
}

// runServer initializes and starts the HTTP API server
func runServer(ctx context.Context) error {
	log.Println("Starting Mnemos API server...")
	log.Printf("  HTTP:      http://%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("  LLM:       %s", cfg.LLM.URL)
	log.Printf("  Embedding: %s", cfg.Embedding.URL)

	log.Println("Connecting to PostgreSQL...")
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.PostgresURL)
	if err != nil {
		return fmt.Errorf("failed to parse database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return fmt.Errorf("failed to create database pool: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Println("Database connection established")

	if err := postgres.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	userRepo := postgres.NewUserRepository(pool)
	conversationRepo := postgres.NewConversationRepository(pool)
	messageRepo := postgres.NewMessageRepository(pool)
	modelConfigRepo := postgres.NewModelConfigRepository(pool)
	memoryRepo := postgres.NewMemoryRepository(pool)
	relationRepo := postgres.NewRelationRepository(pool)
	txManager := postgres.NewTransactionManager(pool)

	idGen := id.New()

	embeddingClient := embedding.NewClient(
		cfg.Embedding.URL,
		cfg.Embedding.APIKey,
		cfg.Embedding.Model,
		cfg.Embedding.Dimensions,
	)

	// The memory engine runs its extraction prompts on the user's
	// configured model when one exists, otherwise on the server default.
	storeFactory := func(settings *models.LLMSettings) (ports.MemoryStore, error) {
		chatClient := llmClientFor(settings)
		return engine.New(memoryRepo, relationRepo, embeddingClient, chatClient, idGen), nil
	}
	memoryService := memory.NewManager(storeFactory)

	box, err := secrets.NewBox(cfg.Auth.SecretKey)
	if err != nil {
		return fmt.Errorf("failed to initialize secret box: %w", err)
	}
	tokens := auth.NewTokenManager(cfg.Auth.SecretKey, time.Duration(cfg.Auth.TokenTTLMins)*time.Minute)

	clientFactory := func(settings *models.LLMSettings) agent.LLMClient {
		return llm.NewClient(
			settings.BaseURL,
			settings.APIKey,
			settings.ModelName,
			cfg.Agent.MaxTokens,
			cfg.Agent.Temperature,
		)
	}
	pipeline := chat.NewPipeline(
		conversationRepo,
		messageRepo,
		modelConfigRepo,
		memoryService,
		box,
		idGen,
		clientFactory,
		cfg.Agent.MaxTurns,
	)

	server := httpadapter.NewServer(
		cfg,
		userRepo,
		conversationRepo,
		messageRepo,
		modelConfigRepo,
		memoryService,
		pipeline,
		tokens,
		box,
		idGen,
		txManager,
		pool,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		log.Printf("Received signal %v, shutting down...", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Stop(shutdownCtx)
}

// llmClientFor builds the extraction-side LLM client. Extraction runs at
// low temperature regardless of the conversational setting.
func llmClientFor(settings *models.LLMSettings) *llm.Client {
	if settings == nil {
		return llm.NewClient(cfg.LLM.URL, cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.MaxTokens, cfg.LLM.Temperature)
	}
	return llm.NewClient(settings.BaseURL, settings.APIKey, settings.ModelName, cfg.LLM.MaxTokens, cfg.LLM.Temperature)
}
