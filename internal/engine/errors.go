package engine

import "errors"

var (
	// ErrNoInputs indicates a stack request without input datasets.
	ErrNoInputs = errors.New("no input datasets")

	// ErrNoOutput indicates a stack request without an output path.
	ErrNoOutput = errors.New("no output path")

	// ErrInvalidPhotometric indicates an unrecognized photometric tag.
	ErrInvalidPhotometric = errors.New("invalid photometric interpretation")
)
