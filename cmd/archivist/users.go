package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openvault/archivist/internal/auth"
	"github.com/openvault/archivist/internal/logger"
	"github.com/openvault/archivist/internal/store/sqlstore"
)

func addUserCmd() *cobra.Command {
	var admin bool
	cmd := &cobra.Command{
		Use:   "add-user <email> <password>",
		Short: "Create an operator account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.New("archivist")
			cfg := loadConfig()

			ctx := context.Background()
			st, err := sqlstore.NewFromConfig(ctx, cfg)
			if err != nil {
				log.Fatal().Err(err).Msg("Store unavailable")
			}
			defer func() { _ = st.Close() }()

			u, err := auth.NewService(st, log).CreateUser(ctx, args[0], args[1], admin)
			if err != nil {
				return err
			}
			fmt.Printf("created user %d (%s)\n", u.ID, u.Email)
			return nil
		},
	}
	cmd.Flags().BoolVar(&admin, "admin", false, "grant admin rights")
	return cmd
}

func setPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-password <email> <password>",
		Short: "Reset an operator password, unlocking the account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.New("archivist")
			cfg := loadConfig()

			ctx := context.Background()
			st, err := sqlstore.NewFromConfig(ctx, cfg)
			if err != nil {
				log.Fatal().Err(err).Msg("Store unavailable")
			}
			defer func() { _ = st.Close() }()

			u, err := st.Users().GetByEmail(ctx, args[0])
			if err != nil {
				return err
			}
			if err := auth.NewService(st, log).SetPassword(ctx, u.ID, args[1]); err != nil {
				return err
			}
			fmt.Printf("password updated for %s\n", u.Email)
			return nil
		},
	}
}
