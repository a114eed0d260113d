package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// NewNormalizeCmd builds and returns the 'normalize' cobra command.
func NewNormalizeCmd() *cobra.Command {
	var outputFile string

	cmd := &cobra.Command{
		Use:   "normalize <schema> <config>",
		Short: "Load a configuration document and write it back in its canonical style",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := outputPath(cmd)
			if err != nil {
				return err
			}
			return runNormalize(cmd.Context(), args[0], args[1], out)
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write output to file instead of stdout")
	return cmd
}

// runNormalize is the entry point for the normalize command. Defaults are
// written out along with the live values.
func runNormalize(ctx context.Context, schemaPath, configPath, outputPath string) error {
	log.Debug().Str("schema", schemaPath).Str("config", configPath).Str("output", outputPath).Msg("normalize started")

	ws, err := loadWorkspace(schemaPath)
	if err != nil {
		return err
	}
	inst, err := ws.loadConfig(ctx, configPath)
	if err != nil {
		return err
	}
	data, err := ws.engine.Marshal(ctx, inst)
	if err != nil {
		return fmt.Errorf("rendering: %w", err)
	}

	return writeOutput(outputPath, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}
