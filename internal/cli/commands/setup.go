package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/pinpoint-analytics/internal/analysis"
	"github.com/leapstack-labs/pinpoint-analytics/internal/cli/config"
	"github.com/leapstack-labs/pinpoint-analytics/internal/stack"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg    *config.Config
	Logger *slog.Logger
	Out    io.Writer
}

// NewCommandContext collects the config and logger stored on the command's
// context by the root command.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	cfg := config.GetConfig(cmd.Context())
	if cfg == nil {
		return nil, errors.New("configuration not loaded")
	}
	return &CommandContext{
		Cfg:    cfg,
		Logger: config.GetLogger(cmd.Context()),
		Out:    cmd.OutOrStdout(),
	}, nil
}

// BuildStack validates the config, loads the analysis definition and builds
// the provisioning graph.
func (c *CommandContext) BuildStack() (*stack.Stack, error) {
	if err := c.Cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	doc, err := analysis.Load(c.Cfg.AnalysisTemplate)
	if err != nil {
		return nil, err
	}
	return stack.Build(c.Cfg.StackConfig(doc, c.Logger))
}

// JSON writes v as indented JSON.
func (c *CommandContext) JSON(v any) error {
	enc := json.NewEncoder(c.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// YAML writes v as YAML.
func (c *CommandContext) YAML(v any) error {
	enc := yaml.NewEncoder(c.Out)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// Structured writes v in the configured machine format. It reports false
// for text output, which each command renders itself.
func (c *CommandContext) Structured(v any) (bool, error) {
	switch c.Cfg.OutputFormat {
	case config.OutputJSON:
		return true, c.JSON(v)
	case config.OutputYAML:
		return true, c.YAML(v)
	}
	return false, nil
}

// Table returns a table writer mirrored to the command output.
func (c *CommandContext) Table(header ...any) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(c.Out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row(header))
	return t
}
