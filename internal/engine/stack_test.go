package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/tkoppel/rastack/internal/raster"
)

// memDriver is an in-memory raster driver. Open serves fixed datasets by
// path; Close on a writer publishes the written bands back into the driver
// so tests can read the output.
type memDriver struct {
	datasets map[string]*memDataset

	// call counters, aggregated across opens
	singleReads  int
	batchReads   int
	singleWrites int
	batchWrites  int
	creates      int
}

func newMemDriver() *memDriver {
	return &memDriver{datasets: make(map[string]*memDataset)}
}

func (d *memDriver) Name() string { return "mem" }

func (d *memDriver) Detect(path string) bool {
	_, ok := d.datasets[path]
	return ok
}

func (d *memDriver) Open(path string) (raster.Dataset, error) {
	ds, ok := d.datasets[path]
	if !ok {
		return nil, fmt.Errorf("no such dataset: %s", path)
	}
	return &memHandle{driver: d, ds: ds}, nil
}

func (d *memDriver) Create(path string, meta raster.Meta) (raster.Writer, error) {
	d.creates++
	return &memWriter{
		driver: d,
		path:   path,
		meta:   meta,
		bands:  make([][]byte, meta.Count),
	}, nil
}

// add registers an input dataset whose band payloads are single distinct
// bytes repeated over a 2x2 Byte raster.
func (d *memDriver) add(path string, meta raster.Meta, bands ...[]byte) {
	meta.Count = len(bands)
	d.datasets[path] = &memDataset{meta: meta, bands: bands}
}

type memDataset struct {
	meta  raster.Meta
	bands [][]byte
}

type memHandle struct {
	driver *memDriver
	ds     *memDataset
}

func (h *memHandle) Meta() raster.Meta { return h.ds.meta }

func (h *memHandle) ReadBand(index int) ([]byte, error) {
	h.driver.singleReads++
	if index < 1 || index > len(h.ds.bands) {
		return nil, fmt.Errorf("%w: %d", raster.ErrBandIndex, index)
	}
	return h.ds.bands[index-1], nil
}

func (h *memHandle) ReadBands(indexes []int) ([]byte, error) {
	h.driver.batchReads++
	var out []byte
	for _, idx := range indexes {
		if idx < 1 || idx > len(h.ds.bands) {
			return nil, fmt.Errorf("%w: %d", raster.ErrBandIndex, idx)
		}
		out = append(out, h.ds.bands[idx-1]...)
	}
	return out, nil
}

func (h *memHandle) Close() error { return nil }

type memWriter struct {
	driver *memDriver
	path   string
	meta   raster.Meta
	bands  [][]byte
}

func (w *memWriter) WriteBand(index int, data []byte) error {
	w.driver.singleWrites++
	if index < 1 || index > w.meta.Count {
		return fmt.Errorf("%w: %d", raster.ErrBandIndex, index)
	}
	w.bands[index-1] = append([]byte{}, data...)
	return nil
}

func (w *memWriter) WriteBands(start int, data []byte) error {
	w.driver.batchWrites++
	size := w.meta.BandSize()
	if size == 0 || len(data)%size != 0 {
		return fmt.Errorf("%w: %d bytes", raster.ErrBufferSize, len(data))
	}
	for i := 0; i < len(data)/size; i++ {
		idx := start + i
		if idx < 1 || idx > w.meta.Count {
			return fmt.Errorf("%w: %d", raster.ErrBandIndex, idx)
		}
		w.bands[idx-1] = append([]byte{}, data[i*size:(i+1)*size]...)
	}
	return nil
}

func (w *memWriter) Close() error {
	w.driver.datasets[w.path] = &memDataset{meta: w.meta, bands: w.bands}
	return nil
}

func fill(b byte) []byte {
	return bytes.Repeat([]byte{b}, 4) // 2x2 Byte raster
}

func testMeta() raster.Meta {
	nodata := 0.0
	return raster.Meta{
		Driver:    "mem",
		Width:     2,
		Height:    2,
		DType:     raster.Byte,
		CRS:       `LOCAL_CS["test"]`,
		Transform: [6]float64{100, 10, 0, 200, 0, -10},
		NoData:    &nodata,
	}
}

func newTestEngine(d *memDriver) *Engine {
	eng := New(raster.NewRegistry(d))
	eng.SetDebugOutput(&bytes.Buffer{})
	return eng
}

// expectBands fails unless the dataset at path holds exactly the given band
// payloads, in order.
func expectBands(t *testing.T, d *memDriver, path string, want ...[]byte) {
	t.Helper()
	ds, ok := d.datasets[path]
	if !ok {
		t.Fatalf("output %s was not created", path)
	}
	if len(ds.bands) != len(want) {
		t.Fatalf("output has %d bands, want %d", len(ds.bands), len(want))
	}
	for i, b := range want {
		if !bytes.Equal(ds.bands[i], b) {
			t.Errorf("output band %d = %v, want %v", i+1, ds.bands[i], b)
		}
	}
}

func TestStack_AllBandsByDefault(t *testing.T) {
	d := newMemDriver()
	d.add("rgb", testMeta(), fill(1), fill(2), fill(3))

	result, err := newTestEngine(d).Stack(context.Background(), &StackRequest{
		Inputs: []string{"rgb"},
		Output: "out",
		Driver: "mem",
	})
	if err != nil {
		t.Fatalf("Stack() error = %v", err)
	}

	if result.BandsWritten != 3 {
		t.Errorf("BandsWritten = %d, want 3", result.BandsWritten)
	}
	expectBands(t, d, "out", fill(1), fill(2), fill(3))
}

func TestStack_ExplicitSelectionsMatchDefault(t *testing.T) {
	// "1,2,3" and "1..3" must produce the same output as no selection.
	for _, expr := range []string{"1,2,3", "1..3"} {
		t.Run(expr, func(t *testing.T) {
			d := newMemDriver()
			d.add("rgb", testMeta(), fill(1), fill(2), fill(3))

			_, err := newTestEngine(d).Stack(context.Background(), &StackRequest{
				Inputs:     []string{"rgb"},
				Selections: []string{expr},
				Output:     "out",
				Driver:     "mem",
			})
			if err != nil {
				t.Fatalf("Stack() error = %v", err)
			}
			expectBands(t, d, "out", fill(1), fill(2), fill(3))
		})
	}
}

func TestStack_SameInputSplitAcrossEntries(t *testing.T) {
	d := newMemDriver()
	d.add("rgb", testMeta(), fill(1), fill(2), fill(3))

	result, err := newTestEngine(d).Stack(context.Background(), &StackRequest{
		Inputs:     []string{"rgb", "rgb"},
		Selections: []string{"..2", "3.."},
		Output:     "out",
		Driver:     "mem",
	})
	if err != nil {
		t.Fatalf("Stack() error = %v", err)
	}

	if result.Plan.OutputCount != 3 {
		t.Errorf("OutputCount = %d, want 3", result.Plan.OutputCount)
	}
	expectBands(t, d, "out", fill(1), fill(2), fill(3))
}

func TestStack_ScalarUsesSingleBandPath(t *testing.T) {
	d := newMemDriver()
	d.add("rgb", testMeta(), fill(1), fill(2), fill(3))

	_, err := newTestEngine(d).Stack(context.Background(), &StackRequest{
		Inputs:     []string{"rgb"},
		Selections: []string{"2"},
		Output:     "out",
		Driver:     "mem",
	})
	if err != nil {
		t.Fatalf("Stack() error = %v", err)
	}

	if d.singleReads != 1 || d.singleWrites != 1 {
		t.Errorf("scalar selection should use the single-band path (reads=%d writes=%d)",
			d.singleReads, d.singleWrites)
	}
	if d.batchWrites != 0 {
		t.Errorf("scalar selection should not batch-write (batchWrites=%d)", d.batchWrites)
	}
	expectBands(t, d, "out", fill(2))
}

func TestStack_ListUsesBatchPath(t *testing.T) {
	d := newMemDriver()
	d.add("rgb", testMeta(), fill(1), fill(2), fill(3))

	_, err := newTestEngine(d).Stack(context.Background(), &StackRequest{
		Inputs:     []string{"rgb"},
		Selections: []string{"2,1,2"},
		Output:     "out",
		Driver:     "mem",
	})
	if err != nil {
		t.Fatalf("Stack() error = %v", err)
	}

	if d.batchReads != 1 || d.batchWrites != 1 {
		t.Errorf("list selection should use the batch path (reads=%d writes=%d)",
			d.batchReads, d.batchWrites)
	}
	expectBands(t, d, "out", fill(2), fill(1), fill(2))
}

func TestStack_TemplateMetadata(t *testing.T) {
	d := newMemDriver()
	first := testMeta()
	d.add("a", first, fill(1), fill(2))
	d.add("b", testMeta(), fill(9))

	result, err := newTestEngine(d).Stack(context.Background(), &StackRequest{
		Inputs:      []string{"a", "b"},
		Output:      "out",
		Driver:      "mem",
		Photometric: "rgb",
	})
	if err != nil {
		t.Fatalf("Stack() error = %v", err)
	}

	meta := result.OutputMeta
	if meta.Count != 3 {
		t.Errorf("output Count = %d, want 3", meta.Count)
	}
	if meta.Driver != "mem" {
		t.Errorf("output Driver = %q, want %q", meta.Driver, "mem")
	}
	if meta.Photometric != "rgb" {
		t.Errorf("output Photometric = %q, want %q", meta.Photometric, "rgb")
	}
	if meta.CRS != first.CRS {
		t.Errorf("output CRS = %q, want template CRS %q", meta.CRS, first.CRS)
	}
	if meta.Transform != first.Transform {
		t.Errorf("output Transform = %v, want template transform %v", meta.Transform, first.Transform)
	}
	if meta.DType != first.DType {
		t.Errorf("output DType = %q, want template type %q", meta.DType, first.DType)
	}
}

func TestStack_DryRunCreatesNothing(t *testing.T) {
	d := newMemDriver()
	d.add("rgb", testMeta(), fill(1), fill(2), fill(3))

	result, err := newTestEngine(d).Stack(context.Background(), &StackRequest{
		Inputs: []string{"rgb"},
		Output: "out",
		Driver: "mem",
		DryRun: true,
	})
	if err != nil {
		t.Fatalf("Stack() error = %v", err)
	}

	if d.creates != 0 {
		t.Errorf("dry run created %d datasets, want 0", d.creates)
	}
	if result.BandsWritten != 0 {
		t.Errorf("BandsWritten = %d, want 0", result.BandsWritten)
	}
	if result.Plan == nil || result.Plan.OutputCount != 3 {
		t.Errorf("dry run should still return the full plan, got %+v", result.Plan)
	}
}

func TestStack_Validation(t *testing.T) {
	d := newMemDriver()
	d.add("rgb", testMeta(), fill(1))
	eng := newTestEngine(d)
	ctx := context.Background()

	if _, err := eng.Stack(ctx, &StackRequest{Output: "out", Driver: "mem"}); !errors.Is(err, ErrNoInputs) {
		t.Errorf("no inputs: error = %v, want ErrNoInputs", err)
	}
	if _, err := eng.Stack(ctx, &StackRequest{Inputs: []string{"rgb"}, Driver: "mem"}); !errors.Is(err, ErrNoOutput) {
		t.Errorf("no output: error = %v, want ErrNoOutput", err)
	}
	req := &StackRequest{Inputs: []string{"rgb"}, Output: "out", Driver: "mem", Photometric: "sepia"}
	if _, err := eng.Stack(ctx, req); !errors.Is(err, ErrInvalidPhotometric) {
		t.Errorf("bad photometric: error = %v, want ErrInvalidPhotometric", err)
	}
	req = &StackRequest{Inputs: []string{"rgb"}, Output: "out", Driver: "HFA"}
	if _, err := eng.Stack(ctx, req); !errors.Is(err, raster.ErrUnknownDriver) {
		t.Errorf("bad driver: error = %v, want ErrUnknownDriver", err)
	}
	if d.creates != 0 {
		t.Errorf("failed requests created %d datasets, want 0", d.creates)
	}
}

func TestStack_CancelledContext(t *testing.T) {
	d := newMemDriver()
	d.add("rgb", testMeta(), fill(1), fill(2), fill(3))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestEngine(d).Stack(ctx, &StackRequest{
		Inputs: []string{"rgb"},
		Output: "out",
		Driver: "mem",
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Stack() error = %v, want context.Canceled", err)
	}
}

func TestInfo(t *testing.T) {
	d := newMemDriver()
	d.add("rgb", testMeta(), fill(1), fill(2), fill(3))

	result, err := newTestEngine(d).Info(context.Background(), &InfoRequest{Path: "rgb"})
	if err != nil {
		t.Fatalf("Info() error = %v", err)
	}
	if result.Meta.Count != 3 {
		t.Errorf("Count = %d, want 3", result.Meta.Count)
	}
	if result.Meta.Width != 2 || result.Meta.Height != 2 {
		t.Errorf("Size = %dx%d, want 2x2", result.Meta.Width, result.Meta.Height)
	}

	if _, err := newTestEngine(d).Info(context.Background(), &InfoRequest{Path: "missing"}); err == nil {
		t.Error("Info() on a missing dataset should fail")
	}
}
