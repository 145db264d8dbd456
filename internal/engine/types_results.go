package engine

import (
	"github.com/tkoppel/rastack/internal/planner"
	"github.com/tkoppel/rastack/internal/raster"
)

// StackResult represents the result of a stacking run.
type StackResult struct {
	// Plan is the layout plan that was (or would be) executed
	Plan *planner.Plan

	// OutputMeta is the metadata the output was (or would be) created with
	OutputMeta raster.Meta

	// BandsWritten is the number of bands copied (0 if DryRun)
	BandsWritten int
}

// InfoResult represents a dataset's metadata.
type InfoResult struct {
	// Path is the dataset path
	Path string

	// Meta is the dataset metadata
	Meta raster.Meta
}
