package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"collegovibe/internal/config"
	"collegovibe/internal/logger"
)

var (
	// Set via ldflags.
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "collegovibe",
	Short: "Campus social network: feed, stories and direct messages",
	Long: `collegovibe serves the HTTP API for accounts, posts, comments and
stories, and the gRPC chat relay for live direct messages.

Configuration is read from the environment and an optional .env file.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var storeBackend string

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("collegovibe %s (%s)\n", Version, Commit))
	rootCmd.PersistentFlags().StringVar(&storeBackend, "store", "", "document store backend: mongo or memory (overrides STORE_BACKEND)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(reapStoriesCmd)
}

// setup loads configuration and initialises the global logger.
func setup() (*config.Config, io.Closer, error) {
	cfg := config.LoadConfig()
	if storeBackend != "" {
		cfg.Store.Backend = storeBackend
	}
	closer, err := logger.Init(cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialise logger: %w", err)
	}
	return cfg, closer, nil
}
