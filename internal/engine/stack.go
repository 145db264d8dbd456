package engine

import (
	"context"
	"fmt"

	"github.com/tkoppel/rastack/internal/band"
	"github.com/tkoppel/rastack/internal/planner"
	"github.com/tkoppel/rastack/internal/raster"
)

// Algorithm steps:
// 1. Validate the request (inputs, output, driver, photometric tag)
// 2. Resolve every selection and build the layout plan (fixes the band count)
// 3. Clone the first input's metadata as the output template
// 4. Create the output (unless DryRun)
// 5. Copy each plan entry in order, one source open at a time
// 6. Close the output and return the result
func (e *Engine) Stack(ctx context.Context, req *StackRequest) (*StackResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(req.Inputs) == 0 {
		return nil, ErrNoInputs
	}
	if req.Output == "" {
		return nil, ErrNoOutput
	}
	if req.Photometric != "" && !raster.ValidPhotometric(req.Photometric) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPhotometric, req.Photometric)
	}
	// Fail on a bad driver name before any input is touched.
	if _, err := e.registry.Driver(req.Driver); err != nil {
		return nil, err
	}

	plan, err := planner.Build(req.Inputs, req.Selections, e)
	if err != nil {
		return nil, fmt.Errorf("failed to build layout plan: %w", err)
	}

	meta, err := e.templateMeta(req, plan)
	if err != nil {
		return nil, err
	}

	result := &StackResult{Plan: plan, OutputMeta: meta}
	if req.DryRun {
		return result, nil
	}

	dst, err := e.registry.Create(req.Output, meta)
	if err != nil {
		return nil, fmt.Errorf("failed to create output %s: %w", req.Output, err)
	}

	for _, entry := range plan.Entries {
		if err := ctx.Err(); err != nil {
			_ = dst.Close()
			return nil, err
		}
		if err := e.copyEntry(entry, dst, req.Debug); err != nil {
			_ = dst.Close()
			return nil, err
		}
		result.BandsWritten += entry.Count()
	}

	if err := dst.Close(); err != nil {
		return nil, fmt.Errorf("failed to close output %s: %w", req.Output, err)
	}
	return result, nil
}

// templateMeta clones the first input's metadata and overrides the fields
// that define the output: band count from the plan, driver and photometric
// tag from the request.
func (e *Engine) templateMeta(req *StackRequest, plan *planner.Plan) (raster.Meta, error) {
	first, err := e.registry.Open(req.Inputs[0])
	if err != nil {
		return raster.Meta{}, fmt.Errorf("failed to open template input %s: %w", req.Inputs[0], err)
	}
	meta := first.Meta().Clone()
	if err := first.Close(); err != nil {
		return raster.Meta{}, fmt.Errorf("failed to close %s: %w", req.Inputs[0], err)
	}

	meta.Count = plan.OutputCount
	meta.Driver = req.Driver
	if req.Photometric != "" {
		meta.Photometric = req.Photometric
	}
	return meta, nil
}

// copyEntry copies one plan entry from its source to the output. The source
// is opened and closed within the call; a Single selection goes through the
// single-band path, a Many selection through the batch path.
func (e *Engine) copyEntry(entry planner.Entry, dst raster.Writer, debug bool) error {
	src, err := e.registry.Open(entry.Path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", entry.Path, err)
	}
	defer func() {
		_ = src.Close()
	}()

	switch entry.Selection.Kind {
	case band.Single:
		e.debugf(debug, "copy %s band %d -> band %d", entry.Path, entry.Selection.Index, entry.DstStart)
		data, err := src.ReadBand(entry.Selection.Index)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", entry.Path, err)
		}
		if err := dst.WriteBand(entry.DstStart, data); err != nil {
			return fmt.Errorf("failed to write band %d: %w", entry.DstStart, err)
		}
	case band.Many:
		e.debugf(debug, "copy %s bands %s -> bands %d..%d", entry.Path, entry.Selection, entry.DstStart, entry.DstEnd())
		data, err := src.ReadBands(entry.Selection.Indexes)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", entry.Path, err)
		}
		if err := dst.WriteBands(entry.DstStart, data); err != nil {
			return fmt.Errorf("failed to write bands %d..%d: %w", entry.DstStart, entry.DstEnd(), err)
		}
	default:
		return fmt.Errorf("unknown selection kind: %d", entry.Selection.Kind)
	}
	return nil
}
