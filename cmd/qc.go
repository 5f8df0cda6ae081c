package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"gamepub/internal/domain/qcreport"
	"gamepub/internal/errs"
	"gamepub/internal/usecase/versions"
)

var qcCmd = &cobra.Command{
	Use:   "qc",
	Short: "Aggregate and list QC reports",
}

var qcAggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Aggregate raw QC results into a report, optionally attaching it to a version",
	RunE: withApp(func(cmd *cobra.Command, _ []string, rt *runtime) error {
		input, _ := cmd.Flags().GetString("input")
		attach, _ := cmd.Flags().GetString("attach")
		auto, _ := cmd.Flags().GetBool("auto")

		results, err := readSubResults(input)
		if err != nil {
			return err
		}

		if attach == "" {
			report := qcreport.Aggregate(results, rt.Thresholds, time.Now().UTC())
			_, err := fmt.Fprint(cmd.OutOrStdout(), renderQCReport(report))
			return errs.Wrap(err, "write report")
		}

		actor, err := cliActor()
		if err != nil {
			return err
		}
		recorded, err := rt.Versions.RecordQCReport(cmd.Context(), versions.RecordQCReportInput{
			VersionID:  attach,
			Actor:      actor,
			Results:    results,
			AutoDecide: auto,
		})
		if err != nil {
			return errs.Wrap(err, "record qc report")
		}
		out := renderQCReport(recorded.Report) + fmt.Sprintf("attached as %s\n", recorded.ReportID)
		if t := recorded.Transition; t != nil {
			out += fmt.Sprintf("%s: %s -> %s\n", t.Action, t.From, t.To)
		}
		_, err = fmt.Fprint(cmd.OutOrStdout(), out)
		return errs.Wrap(err, "write report")
	}),
}

var qcListCmd = &cobra.Command{
	Use:   "list <version-id>",
	Short: "List the QC reports of a version, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, rt *runtime) error {
		limit, _ := cmd.Flags().GetInt("limit")
		items, err := rt.Versions.ListQCReports(cmd.Context(), args[0], limit)
		if err != nil {
			return errs.Wrap(err, "list qc reports")
		}
		for _, item := range items {
			line := fmt.Sprintf("%s\t%s\t%s\t%s\n", item.CreatedAt, verdictStyle(item.OverallResult).Render(string(item.OverallResult)), item.Actor, item.ReportID)
			if _, err := fmt.Fprint(cmd.OutOrStdout(), line); err != nil {
				return errs.Wrap(err, "write qc list")
			}
		}
		return nil
	}),
}

func readSubResults(path string) (qcreport.SubResults, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return qcreport.SubResults{}, errs.Wrap(err, "read qc results")
	}
	var out qcreport.SubResults
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(raw, &out)
	default:
		err = json.Unmarshal(raw, &out)
	}
	if err != nil {
		return qcreport.SubResults{}, errs.WithKind(errs.Wrapf(err, "decode %s", path), errs.KindValidation)
	}
	return out, nil
}

func init() {
	rootCmd.AddCommand(qcCmd)
	qcCmd.AddCommand(qcAggregateCmd, qcListCmd)

	qcAggregateCmd.Flags().String("input", "", "JSON or YAML file with the raw check results")
	qcAggregateCmd.Flags().String("attach", "", "Version id to store the report on")
	qcAggregateCmd.Flags().Bool("auto", false, "Record pass or fail on a version under QC")
	_ = qcAggregateCmd.MarkFlagRequired("input")

	qcListCmd.Flags().Int("limit", 20, "Maximum reports to show")
}
