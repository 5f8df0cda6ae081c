package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"gamepub/internal/errs"
	"gamepub/internal/usecase/versions"
)

var gameCmd = &cobra.Command{
	Use:   "game",
	Short: "Register and list games",
}

var gameRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a game id owned by the acting user",
	RunE: withApp(func(cmd *cobra.Command, _ []string, rt *runtime) error {
		actor, err := cliActor()
		if err != nil {
			return err
		}
		gameID, _ := cmd.Flags().GetString("id")
		title, _ := cmd.Flags().GetString("title")

		game, err := rt.Versions.RegisterGame(cmd.Context(), versions.RegisterGameInput{
			GameID: gameID,
			Title:  title,
			Actor:  actor,
		})
		if err != nil {
			return errs.Wrap(err, "register game")
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "registered game: %s (owner %s)\n", game.GameID, game.OwnerID); err != nil {
			return errs.Wrap(err, "write register output")
		}
		return nil
	}),
}

var gameListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the games visible to the acting user",
	RunE: withApp(func(cmd *cobra.Command, _ []string, rt *runtime) error {
		actor, err := cliActor()
		if err != nil {
			return err
		}
		games, err := rt.Versions.ListGames(cmd.Context(), actor)
		if err != nil {
			return errs.Wrap(err, "list games")
		}
		for _, g := range games {
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", g.GameID, g.OwnerID, g.Title); err != nil {
				return errs.Wrap(err, "write game list")
			}
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(gameCmd)
	gameCmd.AddCommand(gameRegisterCmd, gameListCmd)

	gameRegisterCmd.Flags().String("id", "", "Reverse-domain game id, e.g. com.studio.game")
	gameRegisterCmd.Flags().String("title", "", "Display title")
	_ = gameRegisterCmd.MarkFlagRequired("id")
}
