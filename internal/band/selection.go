// Package band parses band-selection expressions into resolved selections.
//
// A selection expression names which bands of one input dataset take part in
// the output. Four forms are accepted:
//
//	(absent)  all bands
//	"N"       band N alone
//	"M,N,O"   bands M, N, and O, in that order
//	"M..O"    bands M through O, inclusive; either bound may be omitted
//
// Indexes are 1-based. List order is preserved exactly, including duplicates:
// repeating or reordering bands in the output is legitimate use. All resolved
// indexes are validated against the input's band count at parse time so a bad
// expression fails here, with a descriptive error, rather than deep inside a
// driver read.
package band

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrInvalidSelection indicates an expression matching none of the
	// accepted forms.
	ErrInvalidSelection = errors.New("invalid band selection syntax")

	// ErrEmptyRange indicates a range whose start exceeds its stop.
	ErrEmptyRange = errors.New("empty band range")

	// ErrOutOfRange indicates a resolved index outside [1, band count].
	ErrOutOfRange = errors.New("band index out of range")
)

// Kind discriminates the two selection variants.
type Kind int

const (
	// Single selects one band, copied via a single-band read/write.
	Single Kind = iota

	// Many selects an ordered list of bands, copied as one batch.
	Many
)

// Selection is a resolved band selection: either one index or an ordered
// list of indexes. The distinction is preserved because the copy phase uses
// the single-band read/write path for Single and the batch path for Many.
type Selection struct {
	// Kind discriminates which of the remaining fields is valid
	Kind Kind

	// Index is the selected band when Kind is Single
	Index int

	// Indexes is the ordered band list when Kind is Many
	Indexes []int
}

// NewSingle returns a Selection of one band.
func NewSingle(index int) Selection {
	return Selection{Kind: Single, Index: index}
}

// NewMany returns a Selection of the given bands in order.
func NewMany(indexes []int) Selection {
	return Selection{Kind: Many, Indexes: indexes}
}

// All returns the full-band Selection [1..count].
func All(count int) Selection {
	indexes := make([]int, count)
	for i := range indexes {
		indexes[i] = i + 1
	}
	return NewMany(indexes)
}

// Count returns the number of output bands the selection contributes.
func (s Selection) Count() int {
	if s.Kind == Single {
		return 1
	}
	return len(s.Indexes)
}

// List returns the selected indexes in order, regardless of kind.
func (s Selection) List() []int {
	if s.Kind == Single {
		return []int{s.Index}
	}
	return s.Indexes
}

// String renders the selection in expression syntax.
func (s Selection) String() string {
	if s.Kind == Single {
		return strconv.Itoa(s.Index)
	}
	parts := make([]string, len(s.Indexes))
	for i, idx := range s.Indexes {
		parts[i] = strconv.Itoa(idx)
	}
	return strings.Join(parts, ",")
}

// Parse resolves the expression expr against an input with count bands.
// An empty expression selects all bands.
func Parse(expr string, count int) (Selection, error) {
	if expr == "" {
		return All(count), nil
	}
	if strings.Contains(expr, "..") {
		return parseRange(expr, count)
	}
	return parseList(expr, count)
}

// parseRange resolves the "M..O" form. Empty bounds default to the first
// and last band respectively.
func parseRange(expr string, count int) (Selection, error) {
	parts := strings.Split(expr, "..")
	if len(parts) != 2 {
		return Selection{}, fmt.Errorf("%w: %q", ErrInvalidSelection, expr)
	}

	start, stop := 1, count
	var err error
	if parts[0] != "" {
		if start, err = strconv.Atoi(parts[0]); err != nil {
			return Selection{}, fmt.Errorf("%w: %q: bad range start %q", ErrInvalidSelection, expr, parts[0])
		}
	}
	if parts[1] != "" {
		if stop, err = strconv.Atoi(parts[1]); err != nil {
			return Selection{}, fmt.Errorf("%w: %q: bad range stop %q", ErrInvalidSelection, expr, parts[1])
		}
	}

	if start > stop {
		return Selection{}, fmt.Errorf("%w: %q selects no bands", ErrEmptyRange, expr)
	}
	if err := checkIndex(start, count); err != nil {
		return Selection{}, err
	}
	if err := checkIndex(stop, count); err != nil {
		return Selection{}, err
	}

	indexes := make([]int, 0, stop-start+1)
	for i := start; i <= stop; i++ {
		indexes = append(indexes, i)
	}
	return NewMany(indexes), nil
}

// parseList resolves the comma-separated form. A single token yields a
// Single selection; duplicates and ordering are preserved.
func parseList(expr string, count int) (Selection, error) {
	tokens := strings.Split(expr, ",")
	indexes := make([]int, 0, len(tokens))
	for _, tok := range tokens {
		idx, err := strconv.Atoi(tok)
		if err != nil {
			return Selection{}, fmt.Errorf("%w: %q: bad band index %q", ErrInvalidSelection, expr, tok)
		}
		if err := checkIndex(idx, count); err != nil {
			return Selection{}, err
		}
		indexes = append(indexes, idx)
	}

	if len(indexes) == 1 {
		return NewSingle(indexes[0]), nil
	}
	return NewMany(indexes), nil
}

func checkIndex(index, count int) error {
	if index < 1 || index > count {
		return fmt.Errorf("%w: %d (input has %d bands)", ErrOutOfRange, index, count)
	}
	return nil
}
