package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"gamepub/internal/bootstrap"
	"gamepub/internal/errs"
	"gamepub/internal/usecase/upload"
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Validate, store and register a game archive",
	Long:  "Runs a full upload session: file checks, transfer to blob storage and the version metadata update. Manifest flags override what the archive declares.",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, rt *runtime) error {
		actor, err := cliActor()
		if err != nil {
			return err
		}

		f, err := os.Open(args[0])
		if err != nil {
			return errs.Wrap(err, "open archive")
		}
		defer f.Close()
		info, err := f.Stat()
		if err != nil {
			return errs.Wrap(err, "stat archive")
		}

		m := bootstrap.NewUploadManager(rt.Blobs, rt.Versions, actor, rt.App.Config)
		out := cmd.OutOrStdout()
		unsubscribe := m.Subscribe(progressPrinter(out))
		defer unsubscribe()

		check := m.SetFile(upload.File{Name: info.Name(), Size: info.Size(), Source: f})
		for _, w := range check.Warnings {
			fmt.Fprintf(out, "warning: %s\n", w)
		}
		if !check.Valid {
			return errs.New(errs.KindValidation, "file rejected: "+strings.Join(check.Errors, "; "))
		}

		m.UpdateManifest(manifestOverrides(cmd, m.State().Manifest))
		m.UpdateMetadata(metadataOverrides(cmd, m.State().Metadata))

		if v := m.Validate(); !v.Valid {
			return errs.New(errs.KindValidation, strings.Join(v.Errors, "; "))
		}
		if err := m.Upload(cmd.Context()); err != nil {
			st := m.State()
			if st.Receipt != nil {
				fmt.Fprintf(out, "archive left in storage at %s\n", st.Receipt.StoragePath)
			}
			return errs.Wrap(err, "upload")
		}

		st := m.State()
		_, err = fmt.Fprintf(out, "uploaded %s (%s) as version %s\n", st.Receipt.StoragePath, humanize.IBytes(uint64(st.Receipt.Size)), st.VersionID)
		return errs.Wrap(err, "write upload output")
	}),
}

// progressPrinter prints a line whenever the stage changes.
func progressPrinter(w io.Writer) func(upload.State) {
	last := upload.StageIdle
	return func(s upload.State) {
		if s.Stage == last {
			return
		}
		last = s.Stage
		line := fmt.Sprintf("[%3d%%] %s", s.Progress, s.Stage)
		if s.Error != "" {
			line += ": " + s.Error
		}
		fmt.Fprintln(w, line)
	}
}

func manifestOverrides(cmd *cobra.Command, current upload.Manifest) upload.Manifest {
	override := func(flag string, dst *string) {
		if v, _ := cmd.Flags().GetString(flag); strings.TrimSpace(v) != "" {
			*dst = v
		}
	}
	override("game", &current.GameID)
	override("version", &current.Version)
	override("runtime", &current.Runtime)
	override("entry", &current.EntryPoint)
	return current
}

func metadataOverrides(cmd *cobra.Command, current upload.Metadata) upload.Metadata {
	override := func(flag string, dst *string) {
		if v, _ := cmd.Flags().GetString(flag); strings.TrimSpace(v) != "" {
			*dst = v
		}
	}
	override("title", &current.Title)
	override("description", &current.Description)
	override("grade", &current.Grade)
	override("subject", &current.Subject)
	override("level", &current.Level)
	override("github", &current.LinkGithub)
	if skills, _ := cmd.Flags().GetStringSlice("skill"); len(skills) > 0 {
		current.Skills = skills
	}
	if themes, _ := cmd.Flags().GetStringSlice("theme"); len(themes) > 0 {
		current.Themes = themes
	}
	return current
}

func init() {
	rootCmd.AddCommand(uploadCmd)

	uploadCmd.Flags().String("game", "", "Game id (defaults to the manifest id)")
	uploadCmd.Flags().String("version", "", "Version number (defaults to the manifest version)")
	uploadCmd.Flags().String("runtime", "", "Runtime (defaults to the manifest runtime)")
	uploadCmd.Flags().String("entry", "", "Entry point (defaults to the manifest or the index file)")
	uploadCmd.Flags().String("title", "", "Title")
	uploadCmd.Flags().String("description", "", "Description")
	uploadCmd.Flags().String("grade", "", "Grade")
	uploadCmd.Flags().String("subject", "", "Subject")
	uploadCmd.Flags().String("level", "", "Level")
	uploadCmd.Flags().String("github", "", "Source repository link")
	uploadCmd.Flags().StringSlice("skill", nil, "Skill tag, repeatable")
	uploadCmd.Flags().StringSlice("theme", nil, "Theme tag, repeatable")
}
