package cmd

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"gamepub/internal/bootstrap"
	"gamepub/internal/bootstrap/logging"
	"gamepub/internal/domain/qcreport"
	"gamepub/internal/errs"
	"gamepub/internal/ports"
	"gamepub/internal/usecase/versions"
)

// runtime is what most commands need from the container.
type runtime struct {
	App        *bootstrap.App
	Versions   *versions.Service
	Blobs      ports.BlobStore
	Thresholds qcreport.Thresholds
}

// withApp boots the container, runs the command and stops the container.
// Extra options (usually fx.Populate) build objects only some commands need.
func withApp(run func(cmd *cobra.Command, args []string, rt *runtime) error, opts ...fx.Option) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := logging.WithAttrs(
			cmd.Context(),
			slog.String("command", cmd.CommandPath()),
			slog.String("config_file", cfgFile),
		)

		rt := &runtime{}
		options := []fx.Option{
			bootstrap.Module,
			fx.WithLogger(func() fxevent.Logger {
				l := &fxevent.SlogLogger{Logger: logging.Logger(ctx)}
				l.UseLogLevel(slog.LevelDebug)
				return l
			}),
			fx.Provide(func() context.Context { return ctx }),
			fx.Provide(
				fx.Annotate(
					func() string { return cfgFile },
					fx.ResultTags(`name:"configFile"`),
				),
			),
			fx.Populate(&rt.App, &rt.Versions, &rt.Blobs, &rt.Thresholds),
		}
		fxApp := fx.New(append(options, opts...)...)

		startCtx, cancelStart := context.WithTimeout(ctx, 10*time.Second)
		defer cancelStart()
		if err := fxApp.Start(startCtx); err != nil {
			logging.Error(ctx, "bootstrap application failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "start fx application")
		}

		defer func() {
			stopCtx, cancelStop := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancelStop()
			if err := fxApp.Stop(stopCtx); err != nil {
				logging.Error(ctx, "fx application stop failed", slog.Any("err", errs.Loggable(err)))
			}
		}()

		cmd.SetContext(ctx)
		if err := run(cmd, args, rt); err != nil {
			return errs.Wrap(err, "run command")
		}
		return nil
	}
}
