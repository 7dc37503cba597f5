package main

import (
	"runtime"

	"github.com/spf13/cobra"

	"github.com/zinrai/seedplan/plan"
)

// Config holds the command line configuration.
type Config struct {
	File        string
	Templates   string
	Image       string
	OutputDir   string
	Parallelism int
	LogLevel    string
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		File:        "topology.yaml",
		Templates:   "",
		Image:       plan.DefaultImage,
		OutputDir:   "./output",
		Parallelism: runtime.GOMAXPROCS(0),
		LogLevel:    "info",
	}
}

// newRootCommand returns the seedplan command bound to cfg.
func newRootCommand(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seedplan",
		Short: "Render an emulated internet topology into a tinet plan",
		Long: `seedplan reads a topology description of autonomous systems, internet
exchanges, networks and nodes, resolves every network join and cross-connect,
allocates addresses, and writes the tinet specification to stdout.

Files declared on nodes are written below the output directory.
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Do not output help message if we get this far.
			cmd.SilenceUsage = true
			return run(cmd.Context(), *cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&cfg.File, "file", "f", cfg.File, "Path to topology YAML file")
	flags.StringVar(&cfg.Templates, "templates", cfg.Templates,
		"Path to node command templates YAML file (built-in templates when empty)")
	flags.StringVar(&cfg.Image, "image", cfg.Image, "Container image for every node")
	flags.StringVar(&cfg.OutputDir, "output-dir", cfg.OutputDir, "Directory to output node files")
	flags.IntVar(&cfg.Parallelism, "parallelism", cfg.Parallelism,
		"Number of nodes configured concurrently")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug|info|warn|error)")
	return cmd
}
