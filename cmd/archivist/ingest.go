package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/openvault/archivist/internal/assets"
	"github.com/openvault/archivist/internal/logger"
	"github.com/openvault/archivist/internal/paths"
	"github.com/openvault/archivist/internal/pipeline"
	"github.com/openvault/archivist/internal/store/sqlstore"
	"github.com/openvault/archivist/internal/thumbs"
)

func ingestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Register and process captured sessions under the archives root",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.New("archivist-ingest")
			cfg := loadConfig()

			ctx := context.Background()
			st, err := sqlstore.NewFromConfig(ctx, cfg)
			if err != nil {
				log.Fatal().Err(err).Msg("Store unavailable")
			}
			defer func() { _ = st.Close() }()

			tr, err := assets.NewFFmpeg(cfg.TranscoderBin, cfg.ProbeBin)
			if err != nil {
				log.Fatal().Err(err).Msg("Media toolchain unavailable")
			}

			return pipeline.New(st, cfg, tr, log).Run(ctx)
		},
	}
}

func thumbnailsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "thumbnails",
		Short: "Generate thumbnails for media that have none yet",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.New("archivist-thumbnails")
			cfg := loadConfig()

			ctx := context.Background()
			st, err := sqlstore.NewFromConfig(ctx, cfg)
			if err != nil {
				log.Fatal().Err(err).Msg("Store unavailable")
			}
			defer func() { _ = st.Close() }()

			tr, err := assets.NewFFmpeg(cfg.TranscoderBin, cfg.ProbeBin)
			if err != nil {
				log.Fatal().Err(err).Msg("Media toolchain unavailable")
			}

			res := &paths.Resolver{ArchivesRoot: cfg.ArchivesRoot, ThumbnailsRoot: cfg.ThumbnailsRoot}
			return thumbs.NewGenerator(st, tr, res, log).Run(ctx)
		},
	}
}
