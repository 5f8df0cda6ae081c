/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"gamepub/internal/bootstrap/logging"
	"gamepub/internal/domain/version"
	"gamepub/internal/errs"
	"gamepub/internal/ports"
)

var (
	cfgFile   string
	logLevel  string
	logFormat string
	actorID   string
	actorRole []string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:          "gamepub",
	Short:        "Publish game builds through archive checks, review and QC",
	Long:         "Operator CLI and HTTP server for game version publishing: archive validation, uploads, the review lifecycle and QC reports.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		logger, err := logging.New(cmd.ErrOrStderr(), logLevel, logFormat)
		if err != nil {
			return err
		}
		logging.SetDefault(logger)
		cmd.SetContext(logging.WithLogger(cmd.Context(), logger))
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	logger := slog.New(slog.NewTextHandler(rootCmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	ctx = logging.WithLogger(ctx, logger)
	ctx = logging.WithAttrs(ctx, slog.String("app", "gamepub"))

	rootCmd.SetContext(ctx)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logging.Error(ctx, "command execution failed", slog.Any("err", errs.Loggable(err)))
		return errs.Wrap(err, "execute root command")
	}

	return nil
}

// cliActor is the identity local commands act as.
func cliActor() (ports.Actor, error) {
	id := strings.TrimSpace(actorID)
	if id == "" {
		return ports.Actor{}, errs.Wrap(ports.ErrUnauthenticated, "--as is required")
	}
	roles, err := version.ParseRoles(actorRole)
	if err != nil {
		return ports.Actor{}, errs.Wrap(err, "parse --role")
	}
	return ports.Actor{UserID: id, Roles: roles}, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file path (default ./configs/config.yaml when present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format: text or json")
	rootCmd.PersistentFlags().StringVar(&actorID, "as", "operator", "User id local commands act as")
	rootCmd.PersistentFlags().StringSliceVar(&actorRole, "role", []string{string(version.RoleAdmin)}, "Roles of the acting user")
}
