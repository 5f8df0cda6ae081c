/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"gamepub/internal/bootstrap/logging"
	"gamepub/internal/errs"
)

// initDbCmd creates or migrates the games, versions, events and qc report tables.
var initDbCmd = &cobra.Command{
	Use:   "init-db",
	Short: "Create or migrate the publishing database schema",
	RunE: withApp(func(cmd *cobra.Command, _ []string, rt *runtime) error {
		ctx := cmd.Context()
		logging.Info(ctx, "start init-db")

		if err := rt.App.InitSchema(ctx); err != nil {
			logging.Error(ctx, "initialize schema failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "initialize schema")
		}

		schema, err := rt.App.SchemaVersion(ctx)
		if err != nil {
			return errs.Wrap(err, "read schema version")
		}

		logging.Info(ctx, "init-db finished",
			slog.String("database_driver", rt.App.Config.Database.Driver),
			slog.String("schema_version", schema),
		)
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s schema %s ready at %s\n", rt.App.Config.Database.Driver, schema, rt.App.Config.Database.DSN); err != nil {
			return errs.Wrap(err, "write init-db output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(initDbCmd)
}
