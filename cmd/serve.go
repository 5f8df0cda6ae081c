package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"gamepub/internal/bootstrap"
	"gamepub/internal/bootstrap/logging"
	"gamepub/internal/errs"
	"gamepub/internal/transport/httpapi"
)

var (
	server       *httpapi.Server
	serveMigrate bool
)

// migrateBeforeListen runs while the container is built, before the listener starts.
func migrateBeforeListen(ctx context.Context, app *bootstrap.App) error {
	if !serveMigrate {
		if v, err := app.SchemaVersion(ctx); err != nil || v == "" {
			logging.Warn(ctx, "database schema is not initialized, run init-db first")
		}
		return nil
	}
	return app.InitSchema(ctx)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API until interrupted",
	RunE: withApp(func(cmd *cobra.Command, _ []string, _ *runtime) error {
		ctx := cmd.Context()

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "listening on %s\n", server.Addr()); err != nil {
			return errs.Wrap(err, "write serve output")
		}

		sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()
		<-sigCtx.Done()

		logging.Info(ctx, "shutting down", slog.String("addr", server.Addr()))
		return nil
	}, fx.Invoke(migrateBeforeListen), fx.Invoke(bootstrap.WatchQCPolicy), fx.Populate(&server)),
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", false, "Migrate the schema before listening")
}
