package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ignite/aicmo-cam/internal/repository/postgres"
)

func newMigrateCommand() *cobra.Command {
	var listOnly bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded PostgreSQL schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			if listOnly {
				ms, err := postgres.Migrations()
				if err != nil {
					return err
				}
				for _, m := range ms {
					fmt.Fprintln(cmd.OutOrStdout(), " ", m.Name)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Total: %d migrations\n", len(ms))
				return nil
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Database.URL == "" {
				return errors.New("migrate: DATABASE_URL is required")
			}
			conns, err := connect(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer conns.Close()

			applied, err := postgres.Migrate(cmd.Context(), conns.db)
			for _, name := range applied {
				fmt.Fprintln(cmd.OutOrStdout(), "applied", name)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Done: %d applied\n", len(applied))
			return nil
		},
	}
	cmd.Flags().BoolVar(&listOnly, "list", false, "list embedded migrations without connecting")
	return cmd
}
