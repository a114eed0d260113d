package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/davecgh/go-spew/spew"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// NewInspectCmd builds and returns the 'inspect' cobra command.
func NewInspectCmd() *cobra.Command {
	var (
		outputFile string
		liveOnly   bool
	)

	cmd := &cobra.Command{
		Use:   "inspect <schema> <config>",
		Short: "Dump the resolved values of a configuration document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := outputPath(cmd)
			if err != nil {
				return err
			}
			return runInspect(cmd.Context(), args[0], args[1], out, liveOnly)
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write output to file instead of stdout")
	cmd.Flags().BoolVar(&liveOnly, "live", false, "Dump only values set in the document, without defaults")
	return cmd
}

// runInspect is the entry point for the inspect command. Values are dumped
// with their Go types, which shows how styled text was parsed.
func runInspect(ctx context.Context, schemaPath, configPath, outputPath string, liveOnly bool) error {
	log.Debug().Str("schema", schemaPath).Str("config", configPath).Bool("live", liveOnly).Msg("inspect started")

	ws, err := loadWorkspace(schemaPath)
	if err != nil {
		return err
	}
	inst, err := ws.loadConfig(ctx, configPath)
	if err != nil {
		return err
	}

	values := inst.Snapshot()
	if liveOnly {
		values = inst.Live()
	}

	dumper := spew.ConfigState{Indent: "  ", SortKeys: true, DisablePointerAddresses: true, DisableCapacities: true}
	return writeOutput(outputPath, func(w io.Writer) error {
		for _, name := range ws.class.Names() {
			v, ok := values[name]
			if !ok {
				continue
			}
			fmt.Fprintf(w, "%s: ", name)
			dumper.Fdump(w, v)
		}
		return nil
	})
}
