package commands

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/bfv/configs/internal/settings"
	"github.com/bfv/configs/pkg/mapper"
	"github.com/bfv/configs/pkg/schema"
	"github.com/bfv/configs/pkg/script"
	"github.com/bfv/configs/pkg/value"
)

// workspace holds what every command needs: the engine settings, the
// script bridge, the compiled class and a mapper engine.
type workspace struct {
	settings *settings.Settings
	bridge   *script.Bridge
	class    *schema.ConfigClassSchema
	engine   *mapper.Engine
}

// loadWorkspace reads the settings named by the --settings flag and
// compiles the schema at schemaPath.
func loadWorkspace(schemaPath string) (*workspace, error) {
	s, err := settings.Load(viper.GetViper(), viper.GetString("settings"))
	if err != nil {
		return nil, err
	}
	b, err := s.NewBridge()
	if err != nil {
		return nil, fmt.Errorf("configuring scripts: %w", err)
	}
	class, err := schema.LoadFile(schemaPath, schema.WithBridge(b))
	if err != nil {
		return nil, fmt.Errorf("loading schema: %w", err)
	}
	log.Debug().
		Str("class", class.Name).
		Int("properties", len(class.Properties)).
		Str("language", s.Script.Language).
		Dur("timeout", s.Script.Timeout).
		Msg("schema compiled")

	return &workspace{
		settings: s,
		bridge:   b,
		class:    class,
		engine:   s.NewEngine(b, nil),
	}, nil
}

func (w *workspace) newInstance() *value.Instance {
	return value.New(w.class, value.WithBridge(w.bridge))
}

// loadConfig reads a configuration document into a fresh instance.
func (w *workspace) loadConfig(ctx context.Context, path string) (*value.Instance, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	inst := w.newInstance()
	if err := w.engine.Unmarshal(ctx, data, inst); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	log.Debug().Str("path", path).Int("set", len(inst.Live())).Msg("config loaded")
	return inst, nil
}

// readValues reads a plain mapping of property values from a YAML or TOML
// file. Values are taken as written; no styles or key scripts apply.
func readValues(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading values: %w", err)
	}
	values := map[string]any{}
	if schema.FormatOf(path) == schema.FormatTOML {
		if err := toml.Unmarshal(data, &values); err != nil {
			return nil, fmt.Errorf("parsing values %s: %w", path, err)
		}
		return values, nil
	}
	if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&values); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing values %s: %w", path, err)
	}
	return values, nil
}

// outputPath binds the command's --output flag into viper and returns it.
func outputPath(cmd *cobra.Command) (string, error) {
	if err := viper.BindPFlag("output", cmd.Flags().Lookup("output")); err != nil {
		return "", err
	}
	return viper.GetString("output"), nil
}

// writeOutput calls write with stdout or, when path is set, a buffered
// writer on a new file.
func writeOutput(path string, write func(io.Writer) error) error {
	if path == "" {
		return write(os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file %q: %w", path, err)
	}
	defer f.Close()
	log.Debug().Str("path", path).Msg("writing to file")

	bw := bufio.NewWriter(f)
	if err := write(bw); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return f.Close()
}
