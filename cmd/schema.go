package cmd

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"

	"gamepub/internal/domain/archive"
	"gamepub/internal/domain/qcreport"
	"gamepub/internal/errs"
)

// schemaTargets are the documents external tools hand to gamepub.
var schemaTargets = map[string]func() any{
	"qc-input": func() any { return &qcreport.SubResults{} },
	"manifest": func() any { return &archive.Manifest{} },
}

func schemaNames() []string {
	names := make([]string, 0, len(schemaTargets))
	for name := range schemaTargets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func reflectSchema(name string) ([]byte, error) {
	target, ok := schemaTargets[name]
	if !ok {
		return nil, errs.New(errs.KindValidation, fmt.Sprintf("unknown schema %q, want one of %s", name, strings.Join(schemaNames(), ", ")))
	}
	r := &jsonschema.Reflector{ExpandedStruct: true}
	body, err := json.MarshalIndent(r.Reflect(target()), "", "  ")
	if err != nil {
		return nil, errs.Wrapf(err, "encode %s schema", name)
	}
	return body, nil
}

var schemaCmd = &cobra.Command{
	Use:       "schema <qc-input|manifest>",
	Short:     "Print the JSON schema of a document gamepub reads",
	Args:      cobra.ExactArgs(1),
	ValidArgs: schemaNames(),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := reflectSchema(args[0])
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(body))
		return errs.Wrap(err, "write schema")
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}
