// Package raster defines the dataset abstraction consumed by the stacking
// engine, along with the driver registry that maps on-disk formats to
// concrete implementations.
//
// The engine never interprets pixel values. Band payloads move through this
// package as raw sample buffers of exactly Width*Height*DType.Size() bytes,
// in the dataset's native little-endian sample order. Datatype coercion,
// resampling, and geometric validation are all out of scope: drivers reject
// what they cannot represent and the engine propagates the error.
package raster

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownDriver indicates a driver name with no registered implementation.
	ErrUnknownDriver = errors.New("unknown driver")

	// ErrUnknownFormat indicates a file no registered driver recognizes.
	ErrUnknownFormat = errors.New("unrecognized raster format")

	// ErrBandIndex indicates a band index outside [1, Count].
	ErrBandIndex = errors.New("band index out of range")

	// ErrBufferSize indicates a band payload whose length does not match the
	// dataset's band size.
	ErrBufferSize = errors.New("band buffer size mismatch")
)

// Dataset is a readable raster dataset.
type Dataset interface {
	// Meta returns the dataset metadata.
	Meta() Meta

	// ReadBand reads the samples of one band (1-based index).
	ReadBand(index int) ([]byte, error)

	// ReadBands reads the listed bands (1-based, in the given order,
	// duplicates allowed) and returns their samples concatenated.
	ReadBands(indexes []int) ([]byte, error)

	// Close releases the dataset.
	Close() error
}

// Writer is a raster dataset opened for writing. The band count and all
// other metadata are fixed at creation time; writes fill bands in place.
type Writer interface {
	// WriteBand writes the samples of one band (1-based index).
	WriteBand(index int, data []byte) error

	// WriteBands writes len(data)/bandSize consecutive bands starting at
	// the 1-based index start.
	WriteBands(start int, data []byte) error

	// Close flushes and releases the dataset.
	Close() error
}

// Driver opens and creates datasets in one on-disk format.
type Driver interface {
	// Name returns the canonical driver name (e.g. "GTiff").
	Name() string

	// Detect reports whether the file at path looks like this format.
	Detect(path string) bool

	// Open opens an existing dataset for reading.
	Open(path string) (Dataset, error)

	// Create creates a new dataset with the given metadata. Existing files
	// are truncated.
	Create(path string, meta Meta) (Writer, error)
}

// Registry holds the available drivers. Open dispatches by format detection
// in registration order; Create dispatches by driver name.
type Registry struct {
	drivers []Driver
	byName  map[string]Driver
}

// NewRegistry creates a registry over the given drivers.
func NewRegistry(drivers ...Driver) *Registry {
	r := &Registry{byName: make(map[string]Driver)}
	for _, d := range drivers {
		r.drivers = append(r.drivers, d)
		r.byName[strings.ToLower(d.Name())] = d
	}
	return r
}

// Driver returns the driver registered under name (case-insensitive).
func (r *Registry) Driver(name string) (Driver, error) {
	d, ok := r.byName[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, name)
	}
	return d, nil
}

// Open opens the dataset at path with the first driver that recognizes it.
func (r *Registry) Open(path string) (Dataset, error) {
	for _, d := range r.drivers {
		if d.Detect(path) {
			return d.Open(path)
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, path)
}

// Create creates the dataset at path with the driver named by meta.Driver.
func (r *Registry) Create(path string, meta Meta) (Writer, error) {
	d, err := r.Driver(meta.Driver)
	if err != nil {
		return nil, err
	}
	return d.Create(path, meta)
}
