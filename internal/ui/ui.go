// Package ui renders BatchEngine progress (spec §4.9's event stream) to a
// terminal: a plain line-oriented renderer for pipes and CI, and a
// bubbletea progress bar for interactive TTYs.
package ui

import (
	"context"
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/DrunkOnJava/ingestor-service/internal/batch"
)

// Renderer consumes a BatchEngine run's event stream and final Result.
type Renderer interface {
	// Start initializes the renderer.
	Start(ctx context.Context) error

	// HandleEvent renders one BatchEngine event.
	HandleEvent(ev batch.Event)

	// Complete marks the run finished with its terminal Result.
	Complete(result batch.Result)

	// Stop stops the renderer and cleans up.
	Stop() error
}

// Config configures a Renderer.
type Config struct {
	Output     io.Writer
	ForcePlain bool
	NoColor    bool
}

// ConfigOption modifies a Config.
type ConfigOption func(*Config)

// WithForcePlain forces the plain line-oriented renderer regardless of
// whether Output is a terminal.
func WithForcePlain(force bool) ConfigOption {
	return func(c *Config) { c.ForcePlain = force }
}

// WithNoColor disables lipgloss styling in the TUI renderer.
func WithNoColor(noColor bool) ConfigOption {
	return func(c *Config) { c.NoColor = noColor }
}

// NewConfig builds a Config over output with the given options applied.
func NewConfig(output io.Writer, opts ...ConfigOption) Config {
	cfg := Config{Output: output}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// NewRenderer picks a TUI renderer for interactive terminals and a plain
// renderer for pipes, CI, or ForcePlain.
func NewRenderer(cfg Config) Renderer {
	if cfg.ForcePlain || !IsTTY(cfg.Output) || DetectCI() {
		return NewPlainRenderer(cfg)
	}
	tui, err := NewTUIRenderer(cfg)
	if err != nil {
		return NewPlainRenderer(cfg)
	}
	return tui
}

// IsTTY reports whether w is a terminal.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// DetectCI reports whether a known CI environment variable is set.
func DetectCI() bool {
	for _, v := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"} {
		if _, ok := os.LookupEnv(v); ok {
			return true
		}
	}
	return false
}
