package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"go.uber.org/zap"

	"github.com/zinrai/seedplan/plan"
	"github.com/zinrai/seedplan/topology"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg := DefaultConfig()
	cmd := newRootCommand(&cfg)
	cmd.SilenceErrors = true
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg Config) error {
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	templates := plan.DefaultTemplates()
	if cfg.Templates != "" {
		if templates, err = plan.LoadTemplates(cfg.Templates); err != nil {
			return fmt.Errorf("failed to load templates: %w", err)
		}
	}

	scenario, err := LoadScenario(cfg.File)
	if err != nil {
		return fmt.Errorf("failed to load topology: %w", err)
	}

	inet, err := scenario.Build(
		topology.WithLogger(logger),
		topology.WithParallelism(cfg.Parallelism),
	)
	if err != nil {
		return fmt.Errorf("failed to declare topology: %w", err)
	}
	if err := inet.Render(ctx); err != nil {
		return fmt.Errorf("failed to render topology: %w", err)
	}
	if err := scenario.ApplyLinks(inet); err != nil {
		return err
	}

	spec, err := plan.Build(inet, plan.Options{Image: cfg.Image, Templates: templates})
	if err != nil {
		return fmt.Errorf("failed to build plan: %w", err)
	}

	if err := writeNodeFiles(cfg.OutputDir, spec); err != nil {
		return err
	}
	logger.Info("Wrote node files", zap.String("dir", cfg.OutputDir))

	return writeYAML(spec)
}

// newLogger returns a production logger writing to stderr at level.
func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = lvl
	zc.Encoding = "console"
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}

// writeNodeFiles writes the files of each node to <dir>/<node><path>. Paths
// are resolved against the node directory as if it were the root, so they
// cannot leave it.
func writeNodeFiles(dir string, spec plan.Spec) error {
	for _, node := range spec.Nodes {
		base := filepath.Join(dir, node.Name)
		for _, f := range node.Files {
			path := filepath.Join(base, filepath.Clean("/"+filepath.FromSlash(f.Path)))
			rel, err := filepath.Rel(base, path)
			if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
				return fmt.Errorf("invalid file path %q on %s", f.Path, node.Name)
			}
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", filepath.Dir(path), err)
			}
			if err := os.WriteFile(path, []byte(f.Content), 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", path, err)
			}
		}
	}

	return nil
}

func writeYAML(spec plan.Spec) error {
	data, err := yaml.MarshalWithOptions(spec, yaml.IndentSequence(true))
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}
