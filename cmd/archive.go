package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"gamepub/internal/domain/archive"
	"gamepub/internal/errs"
)

var errArchiveInvalid = errs.New(errs.KindValidation, "archive is invalid")

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Inspect game archives",
}

// archive validate needs no database, so it skips the container.
var archiveValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Check a zip archive for an index entry and a well-formed manifest",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		var size int64
		if info, err := os.Stat(path); err == nil {
			size = info.Size()
		}
		result := archive.ValidateFile(path)

		asJSON, _ := cmd.Flags().GetBool("json")
		if asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(result); err != nil {
				return errs.Wrap(err, "write archive result")
			}
		} else if _, err := fmt.Fprint(cmd.OutOrStdout(), renderArchiveResult(filepath.Base(path), size, result)); err != nil {
			return errs.Wrap(err, "write archive result")
		}

		if !result.Valid {
			return errArchiveInvalid
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(archiveCmd)
	archiveCmd.AddCommand(archiveValidateCmd)
	archiveValidateCmd.Flags().Bool("json", false, "Print the result as JSON")
}
