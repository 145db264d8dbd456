package engine

import (
	"context"
	"fmt"
)

// Info reads and returns the metadata of a single dataset.
func (e *Engine) Info(ctx context.Context, req *InfoRequest) (*InfoResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src, err := e.registry.Open(req.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", req.Path, err)
	}
	meta := src.Meta()
	if err := src.Close(); err != nil {
		return nil, fmt.Errorf("failed to close %s: %w", req.Path, err)
	}

	return &InfoResult{Path: req.Path, Meta: meta}, nil
}
