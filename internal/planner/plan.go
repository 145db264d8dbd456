package planner

import (
	"errors"
	"fmt"

	"github.com/tkoppel/rastack/internal/band"
)

// ErrSelectionSurplus indicates more selection expressions than inputs.
var ErrSelectionSurplus = errors.New("more band selections than inputs")

// Prober reports the number of bands in a dataset. The planner probes each
// input exactly once, when its selection is resolved.
type Prober interface {
	BandCount(path string) (int, error)
}

// Entry assigns one input's resolved selection to a destination band range.
type Entry struct {
	// Path is the source dataset path
	Path string

	// Selection is the resolved band selection for this source
	Selection band.Selection

	// DstStart is the first destination band this entry writes (1-based)
	DstStart int
}

// Count returns the number of output bands the entry contributes.
func (e Entry) Count() int {
	return e.Selection.Count()
}

// DstEnd returns the last destination band this entry writes.
func (e Entry) DstEnd() int {
	return e.DstStart + e.Count() - 1
}

// Plan is the ordered set of entries covering every output band exactly once.
type Plan struct {
	// Entries is the ordered list of source-to-destination assignments
	Entries []Entry

	// OutputCount is the total number of output bands
	OutputCount int
}

// Build resolves the selection expressions against the inputs and lays out
// the destination band ranges.
//
// Inputs pair with expressions positionally. Fewer expressions than inputs is
// fine: the unpaired trailing inputs select all of their bands. An empty
// expression selects all bands too. More expressions than inputs is an error.
func Build(inputs []string, expressions []string, probe Prober) (*Plan, error) {
	if len(expressions) > len(inputs) {
		return nil, fmt.Errorf("%w: %d selections for %d inputs",
			ErrSelectionSurplus, len(expressions), len(inputs))
	}

	plan := &Plan{Entries: make([]Entry, 0, len(inputs))}
	cursor := 1
	for i, path := range inputs {
		count, err := probe.BandCount(path)
		if err != nil {
			return nil, fmt.Errorf("failed to probe %s: %w", path, err)
		}

		var expr string
		if i < len(expressions) {
			expr = expressions[i]
		}
		sel, err := band.Parse(expr, count)
		if err != nil {
			return nil, fmt.Errorf("input %s: %w", path, err)
		}

		plan.Entries = append(plan.Entries, Entry{
			Path:      path,
			Selection: sel,
			DstStart:  cursor,
		})
		cursor += sel.Count()
		plan.OutputCount += sel.Count()
	}
	return plan, nil
}
