package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// NewDiffCmd builds and returns the 'diff' cobra command.
func NewDiffCmd() *cobra.Command {
	var outputFile string

	cmd := &cobra.Command{
		Use:   "diff <schema> <source> <target>",
		Short: "Show resolved value differences between two configuration documents",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := outputPath(cmd)
			if err != nil {
				return err
			}
			return runDiff(cmd.Context(), args[0], args[1], args[2], out)
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write output to file instead of stdout")
	return cmd
}

// runDiff is the entry point for the diff command. Both documents are
// compared after defaults are applied, so a value written out explicitly
// equals its default.
func runDiff(ctx context.Context, schemaPath, sourcePath, targetPath, outputPath string) error {
	log.Debug().Str("source", sourcePath).Str("target", targetPath).Str("output", outputPath).Msg("diff started")

	ws, err := loadWorkspace(schemaPath)
	if err != nil {
		return err
	}
	source, err := ws.loadConfig(ctx, sourcePath)
	if err != nil {
		return fmt.Errorf("reading source: %w", err)
	}
	target, err := ws.loadConfig(ctx, targetPath)
	if err != nil {
		return fmt.Errorf("reading target: %w", err)
	}

	rows := diffRows(ws.class.Names(), source.Snapshot(), target.Snapshot())
	if len(rows) == 0 {
		return writeOutput(outputPath, func(w io.Writer) error {
			_, err := fmt.Fprintln(w, "No differences found.")
			return err
		})
	}

	log.Debug().Int("differences", len(rows)).Msg("diff complete")
	return writeOutput(outputPath, func(w io.Writer) error {
		printTable(w, []string{"PROPERTY", "SOURCE", "TARGET"}, rows)
		return nil
	})
}

// diffRows compares resolved values in declaration order.
func diffRows(names []string, source, target map[string]any) [][]string {
	var rows [][]string
	for _, name := range names {
		s, t := source[name], target[name]
		if cmp.Equal(s, t) {
			continue
		}
		rows = append(rows, []string{name, formatValue(s), formatValue(t)})
	}
	return rows
}
