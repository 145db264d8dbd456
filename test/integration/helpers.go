package integration

import (
	"bytes"
	"testing"

	"github.com/tkoppel/rastack/internal/engine"
	"github.com/tkoppel/rastack/internal/raster"
	"github.com/tkoppel/rastack/internal/raster/envi"
	"github.com/tkoppel/rastack/internal/raster/gtiff"
)

// newEngine builds an engine over the real drivers, mirroring the CLI wiring.
func newEngine() *engine.Engine {
	return engine.New(raster.NewRegistry(gtiff.Driver{}, envi.Driver{}))
}

// testMeta returns the metadata shared by the generated test inputs: a 4x4
// Byte raster with georeferencing.
func testMeta(driver string, count int) raster.Meta {
	return raster.Meta{
		Driver:    driver,
		Width:     4,
		Height:    4,
		Count:     count,
		DType:     raster.Byte,
		CRS:       `PROJCS["integration"]`,
		Transform: [6]float64{1000, 5, 0, 2000, 0, -5},
	}
}

// bandFill returns a full band of the given sample value.
func bandFill(v byte) []byte {
	return bytes.Repeat([]byte{v}, 16)
}

// writeDataset creates a dataset with one constant-valued band per value.
func writeDataset(t *testing.T, driver raster.Driver, path string, values ...byte) {
	t.Helper()
	w, err := driver.Create(path, testMeta(driver.Name(), len(values)))
	if err != nil {
		t.Fatalf("failed to create %s: %v", path, err)
	}
	for i, v := range values {
		if err := w.WriteBand(i+1, bandFill(v)); err != nil {
			t.Fatalf("failed to write band %d of %s: %v", i+1, path, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("failed to close %s: %v", path, err)
	}
}

// readAllBands opens path with the real registry and returns every band.
func readAllBands(t *testing.T, path string) (raster.Meta, [][]byte) {
	t.Helper()
	reg := raster.NewRegistry(gtiff.Driver{}, envi.Driver{})
	ds, err := reg.Open(path)
	if err != nil {
		t.Fatalf("failed to open %s: %v", path, err)
	}
	defer func() {
		_ = ds.Close()
	}()

	meta := ds.Meta()
	bands := make([][]byte, meta.Count)
	for i := range bands {
		data, err := ds.ReadBand(i + 1)
		if err != nil {
			t.Fatalf("failed to read band %d of %s: %v", i+1, path, err)
		}
		bands[i] = data
	}
	return meta, bands
}
