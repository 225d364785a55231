package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/openvault/archivist/internal/api"
	"github.com/openvault/archivist/internal/logger"
	"github.com/openvault/archivist/internal/store/sqlstore"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.New("archivist")
			cfg := loadConfig()

			log.Info().
				Str("db_driver", cfg.DBDriver).
				Int("http_port", cfg.HTTPPort).
				Msg("Archivist service starting")

			ctx := context.Background()
			st, err := sqlstore.NewFromConfig(ctx, cfg)
			if err != nil {
				log.Fatal().Err(err).Msg("Store unavailable")
			}
			defer func() { _ = st.Close() }()

			srv := api.NewServer(cfg, st, log)
			server := &http.Server{
				Addr:         cfg.GetHTTPAddr(),
				Handler:      srv.Router(),
				ReadTimeout:  15 * time.Second,
				WriteTimeout: 60 * time.Second,
				IdleTimeout:  60 * time.Second,
			}

			go func() {
				log.Info().Int("port", cfg.HTTPPort).Msg("HTTP server starting")
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal().Err(err).Msg("HTTP server failed")
				}
			}()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			<-quit

			log.Info().Msg("Shutting down server")
			ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(ctxShutdown)
		},
	}
}
