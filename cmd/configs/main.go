package main

import (
	"os"
	"runtime/debug"

	"github.com/bfv/configs/cmd/configs/commands"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
// If not set (e.g., via go install), it will be determined from build info.
var version = "dev"

func init() {
	if version == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
			version = info.Main.Version
		}
	}
}

func main() {
	var (
		verbose   bool
		logFormat string
	)

	rootCmd := &cobra.Command{
		Use:           "configs",
		Short:         "Check, render and normalize schema driven configuration files",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return commands.InitLogging(verbose, logFormat)
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose (debug) logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", commands.LogConsole, "Log output format: console or json")
	rootCmd.PersistentFlags().String("settings", "", "Engine settings file (yaml, toml or json)")
	if err := viper.BindPFlag("settings", rootCmd.PersistentFlags().Lookup("settings")); err != nil {
		log.Fatal().Err(err).Msg("binding settings flag")
	}

	rootCmd.AddCommand(commands.NewCheckCmd())
	rootCmd.AddCommand(commands.NewRenderCmd())
	rootCmd.AddCommand(commands.NewNormalizeCmd())
	rootCmd.AddCommand(commands.NewInspectCmd())
	rootCmd.AddCommand(commands.NewDiffCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("fatal error")
		os.Exit(1)
	}
}
