// Command archivist runs the archive service and its offline stages: serve
// the HTTP API, ingest captured sessions, regenerate thumbnails, manage
// operator accounts.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/openvault/archivist/internal/config"
	"github.com/openvault/archivist/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "archivist",
	Short: "Web capture archive service",
}

func main() {
	// Local overrides from .env; absence is fine.
	_ = godotenv.Load()

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(ingestCmd())
	rootCmd.AddCommand(thumbnailsCmd())
	rootCmd.AddCommand(addUserCmd())
	rootCmd.AddCommand(setPasswordCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() *config.Config {
	log := logger.New("archivist")
	cfg, err := config.New()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	return cfg
}
