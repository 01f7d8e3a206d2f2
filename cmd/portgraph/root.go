package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/randalmurphal/portgraph/pkg/portgraph/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	configPath   string
	outputFormat string

	engine config.Engine
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "portgraph",
	Short: "Inspect and run portgraph dataflow graphs",
	Long: `portgraph lists the registered node libraries, runs a demonstration
graph and browses the node snapshots persisted by a graph run.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		engine = config.DefaultEngine()
		if configPath != "" {
			cfg, err := config.FromFile(configPath)
			if err != nil {
				return err
			}
			engine = config.LoadEngine(cfg)
		}
		if outputFormat != "yaml" && outputFormat != "json" {
			return fmt.Errorf("unknown output format %q (want yaml or json)", outputFormat)
		}
		logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: engine.LogLevel}))
		return nil
	},
}

// Execute adds all child commands to the root command and runs it.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "engine config file (.yaml or .json)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "yaml", "output format: yaml or json")
}

// render writes v in the selected output format.
func render(w io.Writer, v any) error {
	if outputFormat == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(v)
}
