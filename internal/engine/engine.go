// Package engine provides the core logic for rastack operations.
//
// The engine orchestrates the two phases of a stacking run: first every
// input's band selection is resolved and laid out into a plan (which fixes
// the output band count), then the output dataset is created and the plan is
// copied entry by entry. The second phase never begins before the first
// completes, because the output cannot be created without its final band
// count.
//
// All raster I/O goes through the injected driver registry; the engine owns
// sequencing and error propagation, nothing else.
package engine

import (
	"fmt"
	"io"
	"os"

	"github.com/tkoppel/rastack/internal/raster"
)

// Engine orchestrates rastack operations.
// It is the main API surface called by the CLI.
type Engine struct {
	registry *raster.Registry
	debugOut io.Writer
}

// New creates a new Engine over the given driver registry.
func New(registry *raster.Registry) *Engine {
	return &Engine{
		registry: registry,
		debugOut: os.Stderr,
	}
}

// SetDebugOutput redirects debug tracing (default os.Stderr).
func (e *Engine) SetDebugOutput(w io.Writer) {
	e.debugOut = w
}

// BandCount probes the number of bands in the dataset at path. It satisfies
// planner.Prober; each input is opened only long enough to read its metadata.
func (e *Engine) BandCount(path string) (int, error) {
	src, err := e.registry.Open(path)
	if err != nil {
		return 0, err
	}
	count := src.Meta().Count
	if err := src.Close(); err != nil {
		return 0, fmt.Errorf("failed to close %s: %w", path, err)
	}
	return count, nil
}

// debugf writes a debug trace line when enabled is set.
func (e *Engine) debugf(enabled bool, format string, args ...interface{}) {
	if !enabled {
		return
	}
	fmt.Fprintf(e.debugOut, format+"\n", args...)
}
