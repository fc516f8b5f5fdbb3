package main

import (
	"github.com/spf13/cobra"

	"github.com/shivnayan54/studyvibe/internal/database"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Применить миграции БД",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if err := database.Migrate(cfg, logger); err != nil {
				return err
			}
			_, _ = successColor.Fprintln(cmd.OutOrStdout(), "Миграции применены")
			return nil
		},
	}
}
