package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"gamepub/internal/domain/version"
	"gamepub/internal/errs"
	"gamepub/internal/usecase/versions"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Create versions and move them through review",
}

var versionCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a draft version of a game",
	RunE: withApp(func(cmd *cobra.Command, _ []string, rt *runtime) error {
		actor, err := cliActor()
		if err != nil {
			return err
		}
		gameID, _ := cmd.Flags().GetString("game")
		number, _ := cmd.Flags().GetString("version")

		v, err := rt.Versions.CreateVersion(cmd.Context(), versions.CreateVersionInput{
			GameID:  gameID,
			Version: number,
			Actor:   actor,
		})
		if err != nil {
			return errs.Wrap(err, "create version")
		}
		if _, err := fmt.Fprint(cmd.OutOrStdout(), renderVersion(v)); err != nil {
			return errs.Wrap(err, "write version output")
		}
		return nil
	}),
}

var versionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the versions of a game, newest first",
	RunE: withApp(func(cmd *cobra.Command, _ []string, rt *runtime) error {
		gameID, _ := cmd.Flags().GetString("game")
		items, err := rt.Versions.ListVersions(cmd.Context(), gameID)
		if err != nil {
			return errs.Wrap(err, "list versions")
		}
		for _, v := range items {
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", v.Version, v.Status, v.ID); err != nil {
				return errs.Wrap(err, "write version list")
			}
		}
		return nil
	}),
}

var versionShowCmd = &cobra.Command{
	Use:   "show <version-id>",
	Short: "Show a version and the actions available to the acting user",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, rt *runtime) error {
		actor, err := cliActor()
		if err != nil {
			return err
		}
		v, err := rt.Versions.GetVersion(cmd.Context(), args[0])
		if err != nil {
			return errs.Wrap(err, "get version")
		}
		actions, err := rt.Versions.AvailableActions(cmd.Context(), v.ID, actor)
		if err != nil {
			return errs.Wrap(err, "list available actions")
		}

		names := make([]string, 0, len(actions))
		for _, a := range actions {
			names = append(names, string(a))
		}
		if len(names) == 0 {
			names = append(names, "none")
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%sactions: %s\n", renderVersion(v), strings.Join(names, ", ")); err != nil {
			return errs.Wrap(err, "write version output")
		}
		return nil
	}),
}

var versionHistoryCmd = &cobra.Command{
	Use:   "history <version-id>",
	Short: "Print the audit trail of a version",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, rt *runtime) error {
		items, err := rt.Versions.History(cmd.Context(), args[0])
		if err != nil {
			return errs.Wrap(err, "load history")
		}
		if _, err := fmt.Fprint(cmd.OutOrStdout(), renderHistory(items)); err != nil {
			return errs.Wrap(err, "write history")
		}
		return nil
	}),
}

var versionTransitionCmd = &cobra.Command{
	Use:   "transition <version-id>",
	Short: "Apply a lifecycle action (submit, start_review, record_pass, record_fail, approve, reject, publish, archive)",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, rt *runtime) error {
		actor, err := cliActor()
		if err != nil {
			return err
		}
		rawAction, _ := cmd.Flags().GetString("action")
		note, _ := cmd.Flags().GetString("note")
		action, err := version.ParseAction(rawAction)
		if err != nil {
			return err
		}

		result, err := rt.Versions.Transition(cmd.Context(), versions.TransitionInput{
			VersionID: args[0],
			Action:    action,
			Actor:     actor,
			Note:      note,
		})
		if err != nil {
			return errs.Wrap(err, "transition version")
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s: %s -> %s (as %s)\n", result.Action, result.From, result.To, result.Role); err != nil {
			return errs.Wrap(err, "write transition output")
		}
		return nil
	}),
}

var versionSelfQACmd = &cobra.Command{
	Use:   "self-qa <version-id>",
	Short: "Record the developer self-QA checklist",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, rt *runtime) error {
		actor, err := cliActor()
		if err != nil {
			return err
		}
		checklist := selfQAFromFlags(cmd)

		v, err := rt.Versions.UpdateSelfQA(cmd.Context(), args[0], actor, checklist)
		if err != nil {
			return errs.Wrap(err, "update self-qa")
		}
		out := renderVersion(v)
		if missing := checklist.MissingItems(); len(missing) > 0 {
			out += "still missing: " + strings.Join(missing, ", ") + "\n"
		}
		if _, err := fmt.Fprint(cmd.OutOrStdout(), out); err != nil {
			return errs.Wrap(err, "write self-qa output")
		}
		return nil
	}),
}

func selfQAFromFlags(cmd *cobra.Command) version.SelfQAChecklist {
	devices, _ := cmd.Flags().GetBool("devices")
	audio, _ := cmd.Flags().GetBool("audio")
	gameplay, _ := cmd.Flags().GetBool("gameplay")
	content, _ := cmd.Flags().GetBool("content")
	note, _ := cmd.Flags().GetString("note")
	return version.SelfQAChecklist{
		TestedDevices:    devices,
		TestedAudio:      audio,
		GameplayComplete: gameplay,
		ContentVerified:  content,
		Note:             note,
	}
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.AddCommand(versionCreateCmd, versionListCmd, versionShowCmd, versionHistoryCmd, versionTransitionCmd, versionSelfQACmd)

	versionCreateCmd.Flags().String("game", "", "Game id")
	versionCreateCmd.Flags().String("version", "", "Version number x.y.z")
	_ = versionCreateCmd.MarkFlagRequired("game")
	_ = versionCreateCmd.MarkFlagRequired("version")

	versionListCmd.Flags().String("game", "", "Game id")
	_ = versionListCmd.MarkFlagRequired("game")

	versionTransitionCmd.Flags().String("action", "", "Lifecycle action")
	versionTransitionCmd.Flags().String("note", "", "Note stored with the audit event")
	_ = versionTransitionCmd.MarkFlagRequired("action")

	versionSelfQACmd.Flags().Bool("devices", false, "Tested on target devices")
	versionSelfQACmd.Flags().Bool("audio", false, "Tested audio")
	versionSelfQACmd.Flags().Bool("gameplay", false, "Gameplay complete")
	versionSelfQACmd.Flags().Bool("content", false, "Content verified")
	versionSelfQACmd.Flags().String("note", "", "Free-form note")
}
