package cli

import (
	"encoding/json"
	"os"

	"github.com/tkoppel/rastack/internal/engine"
	"github.com/tkoppel/rastack/internal/raster"
	"github.com/tkoppel/rastack/internal/raster/envi"
	"github.com/tkoppel/rastack/internal/raster/gtiff"
)

// newEngine creates a new engine over the real driver registry. GTiff comes
// first so TIFF detection wins for .tif inputs that also have a stray .hdr
// sidecar next to them.
func newEngine() *engine.Engine {
	registry := raster.NewRegistry(
		gtiff.Driver{},
		envi.Driver{},
	)
	return engine.New(registry)
}

// outputJSON outputs a value as JSON to stdout.
func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
