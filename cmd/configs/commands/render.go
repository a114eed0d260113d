package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// NewRenderCmd builds and returns the 'render' cobra command.
func NewRenderCmd() *cobra.Command {
	var outputFile string

	cmd := &cobra.Command{
		Use:   "render <schema> <values>",
		Short: "Validate plain values against a schema and write the styled document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := outputPath(cmd)
			if err != nil {
				return err
			}
			return runRender(cmd.Context(), args[0], args[1], out)
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write output to file instead of stdout")
	return cmd
}

// runRender is the entry point for the render command.
func runRender(ctx context.Context, schemaPath, valuesPath, outputPath string) error {
	log.Debug().Str("schema", schemaPath).Str("values", valuesPath).Str("output", outputPath).Msg("render started")

	ws, err := loadWorkspace(schemaPath)
	if err != nil {
		return err
	}
	values, err := readValues(valuesPath)
	if err != nil {
		return err
	}

	inst := ws.newInstance()
	if err := inst.SetAll(ctx, values); err != nil {
		return fmt.Errorf("applying values: %w", err)
	}
	data, err := ws.engine.Marshal(ctx, inst)
	if err != nil {
		return fmt.Errorf("rendering: %w", err)
	}

	log.Debug().Int("bytes", len(data)).Msg("render complete")
	return writeOutput(outputPath, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}
