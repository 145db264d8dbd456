package gtiff

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tkoppel/rastack/internal/raster"
)

func writeDataset(t *testing.T, path string, meta raster.Meta, bands ...[]byte) {
	t.Helper()
	meta.Count = len(bands)
	w, err := Driver{}.Create(path, meta)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	for i, b := range bands {
		if err := w.WriteBand(i+1, b); err != nil {
			t.Fatalf("WriteBand(%d) error = %v", i+1, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}

func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.tif")
	nodata := -9999.0
	meta := raster.Meta{
		Driver:      "GTiff",
		Width:       4,
		Height:      3,
		DType:       raster.UInt16,
		CRS:         `PROJCS["test projection"]`,
		Transform:   [6]float64{500000, 30, 0, 6000000, 0, -30},
		NoData:      &nodata,
		Photometric: "rgb",
	}
	band1 := bytes.Repeat([]byte{1, 0}, 12)
	band2 := bytes.Repeat([]byte{2, 0}, 12)
	band3 := bytes.Repeat([]byte{0xff, 0x7f}, 12)
	writeDataset(t, path, meta, band1, band2, band3)

	if !(Driver{}).Detect(path) {
		t.Error("Detect() should recognize a written file")
	}

	ds, err := Driver{}.Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer func() {
		_ = ds.Close()
	}()

	got := ds.Meta()
	if got.Width != 4 || got.Height != 3 || got.Count != 3 {
		t.Errorf("shape = %dx%d, %d bands; want 4x3, 3 bands", got.Width, got.Height, got.Count)
	}
	if got.DType != raster.UInt16 {
		t.Errorf("DType = %q, want UInt16", got.DType)
	}
	if got.CRS != meta.CRS {
		t.Errorf("CRS = %q, want %q", got.CRS, meta.CRS)
	}
	if got.Transform != meta.Transform {
		t.Errorf("Transform = %v, want %v", got.Transform, meta.Transform)
	}
	if got.NoData == nil || *got.NoData != nodata {
		t.Errorf("NoData = %v, want %v", got.NoData, nodata)
	}
	if got.Photometric != "rgb" {
		t.Errorf("Photometric = %q, want rgb", got.Photometric)
	}

	for i, want := range [][]byte{band1, band2, band3} {
		data, err := ds.ReadBand(i + 1)
		if err != nil {
			t.Fatalf("ReadBand(%d) error = %v", i+1, err)
		}
		if !bytes.Equal(data, want) {
			t.Errorf("band %d payload mismatch", i+1)
		}
	}

	batch, err := ds.ReadBands([]int{3, 1})
	if err != nil {
		t.Fatalf("ReadBands() error = %v", err)
	}
	if !bytes.Equal(batch, append(append([]byte{}, band3...), band1...)) {
		t.Error("ReadBands() should concatenate bands in requested order")
	}
}

func TestRoundTrip_MinimalMeta(t *testing.T) {
	// No CRS, no transform, no nodata, no photometric.
	path := filepath.Join(t.TempDir(), "plain.tif")
	meta := raster.Meta{Driver: "GTiff", Width: 2, Height: 2, DType: raster.Float64}
	band := bytes.Repeat([]byte{0}, 32)
	writeDataset(t, path, meta, band)

	ds, err := Driver{}.Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer func() {
		_ = ds.Close()
	}()

	got := ds.Meta()
	if got.CRS != "" || got.NoData != nil {
		t.Errorf("expected empty georeferencing, got CRS=%q NoData=%v", got.CRS, got.NoData)
	}
	if got.Transform != ([6]float64{}) {
		t.Errorf("Transform = %v, want zero", got.Transform)
	}
	// An unset photometric is written as minisblack.
	if got.Photometric != "minisblack" {
		t.Errorf("Photometric = %q, want minisblack", got.Photometric)
	}
	if got.DType != raster.Float64 {
		t.Errorf("DType = %q, want Float64", got.DType)
	}
}

func TestWriteBand_Validation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "val.tif")
	meta := raster.Meta{Driver: "GTiff", Width: 2, Height: 2, DType: raster.Byte, Count: 2}

	w, err := Driver{}.Create(path, meta)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	defer func() {
		_ = w.Close()
	}()

	if err := w.WriteBand(3, make([]byte, 4)); !errors.Is(err, raster.ErrBandIndex) {
		t.Errorf("out-of-range write: error = %v, want ErrBandIndex", err)
	}
	if err := w.WriteBand(1, make([]byte, 3)); !errors.Is(err, raster.ErrBufferSize) {
		t.Errorf("short buffer write: error = %v, want ErrBufferSize", err)
	}
	if err := w.WriteBands(1, make([]byte, 6)); !errors.Is(err, raster.ErrBufferSize) {
		t.Errorf("ragged batch write: error = %v, want ErrBufferSize", err)
	}
}

func TestReadBand_OutOfRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "r.tif")
	meta := raster.Meta{Driver: "GTiff", Width: 2, Height: 2, DType: raster.Byte}
	writeDataset(t, path, meta, make([]byte, 4))

	ds, err := Driver{}.Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer func() {
		_ = ds.Close()
	}()

	if _, err := ds.ReadBand(2); !errors.Is(err, raster.ErrBandIndex) {
		t.Errorf("ReadBand(2) error = %v, want ErrBandIndex", err)
	}
	if _, err := ds.ReadBand(0); !errors.Is(err, raster.ErrBandIndex) {
		t.Errorf("ReadBand(0) error = %v, want ErrBandIndex", err)
	}
}

func TestOpen_RejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not.tif")
	if err := os.WriteFile(path, []byte("definitely not a TIFF"), 0644); err != nil {
		t.Fatal(err)
	}

	if (Driver{}).Detect(path) {
		t.Error("Detect() should reject a non-TIFF file")
	}
	if _, err := (Driver{}).Open(path); err == nil {
		t.Error("Open() should reject a non-TIFF file")
	}
}

func TestCreate_RejectsOversizedLayout(t *testing.T) {
	// Two 4 GiB planes cannot be addressed with 32-bit strip offsets.
	path := filepath.Join(t.TempDir(), "huge.tif")
	meta := raster.Meta{Driver: "GTiff", Width: 65536, Height: 65536, Count: 2, DType: raster.Byte}

	if _, err := (Driver{}).Create(path, meta); err == nil {
		t.Fatal("Create() should reject a layout past the 32-bit offset limit")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("rejected layout should not create the file (stat err = %v)", err)
	}
}

func TestOpen_RejectsBadPhotometricField(t *testing.T) {
	tests := []struct {
		name    string
		corrupt func(entry []byte)
	}{
		{"non-integer field type", func(entry []byte) {
			binary.LittleEndian.PutUint16(entry[2:], typeDouble)
		}},
		{"zero value count", func(entry []byte) {
			binary.LittleEndian.PutUint32(entry[4:], 0)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.tif")
			meta := raster.Meta{Driver: "GTiff", Width: 2, Height: 2, DType: raster.Byte}
			writeDataset(t, path, meta, make([]byte, 4))

			raw, err := os.ReadFile(path)
			if err != nil {
				t.Fatal(err)
			}
			n := int(binary.LittleEndian.Uint16(raw[8:]))
			patched := false
			for i := 0; i < n; i++ {
				entry := raw[10+12*i : 10+12*i+12]
				if binary.LittleEndian.Uint16(entry) == tagPhotometric {
					tt.corrupt(entry)
					patched = true
				}
			}
			if !patched {
				t.Fatal("written file has no photometric entry")
			}
			if err := os.WriteFile(path, raw, 0644); err != nil {
				t.Fatal(err)
			}

			_, err = (Driver{}).Open(path)
			if err == nil {
				t.Fatal("Open() should reject a corrupt photometric tag")
			}
			if strings.Contains(err.Error(), "%!w") {
				t.Errorf("Open() error = %v, want a well-formed message", err)
			}
		})
	}
}

func TestCreate_RejectsBadPhotometric(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.tif")
	meta := raster.Meta{Driver: "GTiff", Width: 1, Height: 1, Count: 1, DType: raster.Byte, Photometric: "sepia"}
	if _, err := (Driver{}).Create(path, meta); err == nil {
		t.Error("Create() should reject an unknown photometric tag")
	}
}
