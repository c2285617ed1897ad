package main

import (
	"fmt"
	"os"

	"github.com/mnemos/mnemos/internal/config"
	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

var cfg *config.Config

func main() {
	rootCmd := &cobra.Command{
		Use:   "mnemos",
		Short: "Mnemos - memory-aware conversational assistant backend",
		Long: `Mnemos is a self-hosted conversational assistant backend with a
dual-scope memory system. Conversations are persisted in PostgreSQL and
extracted facts are stored as vectors alongside a lightweight knowledge
graph.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			return nil
		},
	}

	rootCmd.AddCommand(
		serveCmd(),
		configCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// configCmd shows current configuration
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("Current configuration:")
			fmt.Println()

			fmt.Println("Server:")
			fmt.Printf("  Host: %s\n", cfg.Server.Host)
			fmt.Printf("  Port: %d\n", cfg.Server.Port)
			fmt.Println()

			fmt.Println("Database:")
			fmt.Printf("  PostgreSQL: %s\n", maskSecret(cfg.Database.PostgresURL))
			fmt.Println()

			fmt.Println("LLM (server default):")
			fmt.Printf("  URL:         %s\n", cfg.LLM.URL)
			fmt.Printf("  Model:       %s\n", cfg.LLM.Model)
			fmt.Printf("  Max Tokens:  %d\n", cfg.LLM.MaxTokens)
			fmt.Printf("  Temperature: %.2f\n", cfg.LLM.Temperature)
			fmt.Printf("  API Key:     %s\n", maskSecret(cfg.LLM.APIKey))
			fmt.Println()

			fmt.Println("Embedding:")
			fmt.Printf("  URL:        %s\n", cfg.Embedding.URL)
			fmt.Printf("  Model:      %s\n", cfg.Embedding.Model)
			fmt.Printf("  Dimensions: %d\n", cfg.Embedding.Dimensions)
			fmt.Printf("  API Key:    %s\n", maskSecret(cfg.Embedding.APIKey))
			fmt.Println()

			fmt.Println("Agent:")
			fmt.Printf("  Max Turns:   %d\n", cfg.Agent.MaxTurns)
			fmt.Printf("  Temperature: %.2f\n", cfg.Agent.Temperature)
			fmt.Printf("  Max Tokens:  %d\n", cfg.Agent.MaxTokens)
			fmt.Println()

			fmt.Println("Environment variables:")
			fmt.Println("  MNEMOS_SERVER_HOST, MNEMOS_SERVER_PORT, MNEMOS_CORS_ORIGINS")
			fmt.Println("  MNEMOS_POSTGRES_URL, MNEMOS_SECRET_KEY, MNEMOS_TOKEN_TTL_MINUTES")
			fmt.Println("  MNEMOS_LLM_URL, MNEMOS_LLM_API_KEY, MNEMOS_LLM_MODEL")
			fmt.Println("  MNEMOS_EMBEDDING_URL, MNEMOS_EMBEDDING_API_KEY, MNEMOS_EMBEDDING_MODEL")
			fmt.Println("  MNEMOS_AGENT_MAX_TURNS, MNEMOS_AGENT_TEMPERATURE, MNEMOS_AGENT_MAX_TOKENS")

			return nil
		},
	}
}

// versionCmd shows version information
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Mnemos %s\n", version)
			fmt.Printf("  Commit:     %s\n", commit)
			fmt.Printf("  Build Date: %s\n", buildDate)
		},
	}
}

func maskSecret(s string) string {
	if s == "" {
		return "(not set)"
	}
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}
