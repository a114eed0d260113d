package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/bfv/configs/pkg/schema"
)

// NewCheckCmd builds and returns the 'check' cobra command.
func NewCheckCmd() *cobra.Command {
	var outputFile string

	cmd := &cobra.Command{
		Use:   "check <schema>",
		Short: "Compile a schema and list its properties",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := outputPath(cmd)
			if err != nil {
				return err
			}
			return runCheck(args[0], out)
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write output to file instead of stdout")
	return cmd
}

// runCheck is the entry point for the check command. Compile errors are
// returned as one error listing every problem.
func runCheck(schemaPath, outputPath string) error {
	log.Debug().Str("schema", schemaPath).Str("output", outputPath).Msg("check started")

	ws, err := loadWorkspace(schemaPath)
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(ws.class.Properties))
	for _, p := range ws.class.Properties {
		rows = append(rows, []string{p.Name, p.Describe(), defaultOf(p), strings.Join(features(p), ", ")})
	}

	return writeOutput(outputPath, func(w io.Writer) error {
		fmt.Fprintf(w, "class %s (%d properties)\n\n", ws.class.Name, len(rows))
		printTable(w, []string{"PROPERTY", "TYPE", "DEFAULT", "FEATURES"}, rows)
		return nil
	})
}

func defaultOf(p *schema.PropertySchema) string {
	if p.DefaultFrom != "" {
		return "= " + p.DefaultFrom
	}
	if p.Default == nil {
		return "-"
	}
	return formatValue(p.Default)
}

// features lists the styles, transforms and scripts declared on p.
func features(p *schema.PropertySchema) []string {
	var out []string
	if n := p.Styles.Number; n != nil {
		out = append(out, fmt.Sprintf("number %q depth %d", n.Pattern, n.Depth))
	}
	if p.Styles.StringBlock != nil {
		out = append(out, "string block")
	}
	if p.Styles.Binary != nil {
		out = append(out, "binary style")
	}
	if m := p.MapTransform; m != nil {
		out = append(out, "asmap("+strings.Join(m.KeyFields, ",")+")")
		if m.Simplify != "" {
			out = append(out, "simplify "+m.Simplify)
		}
	}
	if p.KeyGenerator != nil || p.KeyParser != nil {
		out = append(out, "key scripts")
	}
	if len(p.Validators) > 0 {
		out = append(out, fmt.Sprintf("%d validators", len(p.Validators)))
	}
	if p.Normalize != nil || p.NormalizeScript != nil {
		out = append(out, "normalized")
	}
	return out
}
