// Package envi implements the ENVI raster driver: a plain-text .hdr sidecar
// describing a raw band-sequential (BSQ) sample file. Only little-endian,
// zero-offset, BSQ layouts are supported, which is exactly what the driver
// itself writes.
package envi

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tkoppel/rastack/internal/raster"
)

// dtypeCodes maps sample types to ENVI data type codes.
var dtypeCodes = map[raster.DType]int{
	raster.Byte:    1,
	raster.Int16:   2,
	raster.Int32:   3,
	raster.Float32: 4,
	raster.Float64: 5,
	raster.UInt16:  12,
	raster.UInt32:  13,
}

// Driver is the ENVI format driver.
type Driver struct{}

// Name returns "ENVI".
func (Driver) Name() string { return "ENVI" }

// Detect reports whether a header sidecar exists for path.
func (Driver) Detect(path string) bool {
	_, err := findHeader(path)
	return err == nil
}

// headerCandidates returns the sidecar paths to try: extension swapped for
// .hdr, then .hdr appended.
func headerCandidates(path string) []string {
	candidates := []string{}
	if ext := filepath.Ext(path); ext != "" && ext != ".hdr" {
		candidates = append(candidates, strings.TrimSuffix(path, ext)+".hdr")
	}
	return append(candidates, path+".hdr")
}

func findHeader(path string) (string, error) {
	for _, c := range headerCandidates(path) {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c, nil
		}
	}
	return "", fmt.Errorf("no ENVI header found for %s", path)
}

// Open opens an existing ENVI dataset.
func (d Driver) Open(path string) (raster.Dataset, error) {
	hdrPath, err := findHeader(path)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(hdrPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read header %s: %w", hdrPath, err)
	}
	meta, err := parseHeader(string(raw))
	if err != nil {
		return nil, fmt.Errorf("bad ENVI header %s: %w", hdrPath, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return &dataset{meta: meta, f: f}, nil
}

// Create creates a new ENVI dataset. The header sidecar is written up front;
// band writes fill the data file in place.
func (d Driver) Create(path string, meta raster.Meta) (raster.Writer, error) {
	if _, ok := dtypeCodes[meta.DType]; !ok {
		return nil, fmt.Errorf("ENVI: unsupported data type %q", meta.DType)
	}
	if meta.Transform[2] != 0 || meta.Transform[4] != 0 {
		return nil, fmt.Errorf("ENVI: rotated transforms are not supported")
	}

	hdrPath := headerCandidates(path)[0]
	if err := os.WriteFile(hdrPath, []byte(formatHeader(meta)), 0644); err != nil {
		return nil, fmt.Errorf("failed to write header %s: %w", hdrPath, err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	return &writer{meta: meta, f: f}, nil
}

// dataset reads bands from a BSQ data file.
type dataset struct {
	meta raster.Meta
	f    *os.File
}

func (ds *dataset) Meta() raster.Meta { return ds.meta }

func (ds *dataset) ReadBand(index int) ([]byte, error) {
	if index < 1 || index > ds.meta.Count {
		return nil, fmt.Errorf("%w: %d (dataset has %d bands)", raster.ErrBandIndex, index, ds.meta.Count)
	}
	size := ds.meta.BandSize()
	buf := make([]byte, size)
	if _, err := ds.f.ReadAt(buf, int64(size)*int64(index-1)); err != nil {
		return nil, fmt.Errorf("failed to read band %d: %w", index, err)
	}
	return buf, nil
}

func (ds *dataset) ReadBands(indexes []int) ([]byte, error) {
	out := make([]byte, 0, ds.meta.BandSize()*len(indexes))
	for _, idx := range indexes {
		data, err := ds.ReadBand(idx)
		if err != nil {
			return nil, err
		}
		out = append(out, data...)
	}
	return out, nil
}

func (ds *dataset) Close() error { return ds.f.Close() }

// writer writes bands into a BSQ data file.
type writer struct {
	meta raster.Meta
	f    *os.File
}

func (w *writer) WriteBand(index int, data []byte) error {
	if index < 1 || index > w.meta.Count {
		return fmt.Errorf("%w: %d (dataset has %d bands)", raster.ErrBandIndex, index, w.meta.Count)
	}
	size := w.meta.BandSize()
	if len(data) != size {
		return fmt.Errorf("%w: got %d bytes, want %d", raster.ErrBufferSize, len(data), size)
	}
	if _, err := w.f.WriteAt(data, int64(size)*int64(index-1)); err != nil {
		return fmt.Errorf("failed to write band %d: %w", index, err)
	}
	return nil
}

func (w *writer) WriteBands(start int, data []byte) error {
	size := w.meta.BandSize()
	if size == 0 || len(data)%size != 0 {
		return fmt.Errorf("%w: got %d bytes, want a multiple of %d", raster.ErrBufferSize, len(data), size)
	}
	n := len(data) / size
	for i := 0; i < n; i++ {
		if err := w.WriteBand(start+i, data[i*size:(i+1)*size]); err != nil {
			return err
		}
	}
	return nil
}

func (w *writer) Close() error {
	if err := w.f.Sync(); err != nil {
		_ = w.f.Close()
		return err
	}
	return w.f.Close()
}

// formatHeader renders the .hdr sidecar for meta.
func formatHeader(meta raster.Meta) string {
	var b strings.Builder
	b.WriteString("ENVI\n")
	fmt.Fprintf(&b, "samples = %d\n", meta.Width)
	fmt.Fprintf(&b, "lines = %d\n", meta.Height)
	fmt.Fprintf(&b, "bands = %d\n", meta.Count)
	b.WriteString("header offset = 0\n")
	b.WriteString("file type = ENVI Standard\n")
	fmt.Fprintf(&b, "data type = %d\n", dtypeCodes[meta.DType])
	b.WriteString("interleave = bsq\n")
	b.WriteString("byte order = 0\n")
	if meta.Transform != ([6]float64{}) {
		// map info references the top-left corner of pixel (1,1); ENVI wants
		// a positive y pixel size.
		fmt.Fprintf(&b, "map info = {Arbitrary, 1, 1, %s, %s, %s, %s}\n",
			formatFloat(meta.Transform[0]), formatFloat(meta.Transform[3]),
			formatFloat(meta.Transform[1]), formatFloat(-meta.Transform[5]))
	}
	if meta.CRS != "" {
		fmt.Fprintf(&b, "coordinate system string = {%s}\n", meta.CRS)
	}
	if meta.NoData != nil {
		fmt.Fprintf(&b, "data ignore value = %s\n", formatFloat(*meta.NoData))
	}
	return b.String()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// parseHeader parses a .hdr sidecar into Meta. Brace-wrapped values may span
// multiple lines.
func parseHeader(raw string) (raster.Meta, error) {
	var meta raster.Meta
	meta.Driver = "ENVI"

	if !strings.HasPrefix(strings.TrimSpace(raw), "ENVI") {
		return meta, fmt.Errorf("missing ENVI magic line")
	}

	fields, err := headerFields(raw)
	if err != nil {
		return meta, err
	}

	intField := func(key string) (int, error) {
		v, ok := fields[key]
		if !ok {
			return 0, fmt.Errorf("missing %q field", key)
		}
		return strconv.Atoi(v)
	}

	if meta.Width, err = intField("samples"); err != nil {
		return meta, err
	}
	if meta.Height, err = intField("lines"); err != nil {
		return meta, err
	}
	if meta.Count, err = intField("bands"); err != nil {
		return meta, err
	}
	code, err := intField("data type")
	if err != nil {
		return meta, err
	}
	dtype, err := dtypeFromCode(code)
	if err != nil {
		return meta, err
	}
	meta.DType = dtype

	if v, ok := fields["header offset"]; ok && v != "0" {
		return meta, fmt.Errorf("unsupported header offset %q", v)
	}
	if v, ok := fields["interleave"]; ok && !strings.EqualFold(v, "bsq") {
		return meta, fmt.Errorf("unsupported interleave %q", v)
	}
	if v, ok := fields["byte order"]; ok && v != "0" {
		return meta, fmt.Errorf("unsupported byte order %q", v)
	}

	if v, ok := fields["map info"]; ok {
		if err := parseMapInfo(v, &meta); err != nil {
			return meta, err
		}
	}
	if v, ok := fields["coordinate system string"]; ok {
		meta.CRS = v
	}
	if v, ok := fields["data ignore value"]; ok {
		nodata, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return meta, fmt.Errorf("bad data ignore value %q", v)
		}
		meta.NoData = &nodata
	}
	return meta, nil
}

// headerFields splits the header body into key/value pairs, stripping braces
// from brace-wrapped values.
func headerFields(raw string) (map[string]string, error) {
	fields := make(map[string]string)
	lines := strings.Split(raw, "\n")
	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" || line == "ENVI" {
			continue
		}
		eq := strings.Index(line, "=")
		if eq < 0 {
			continue
		}
		key := strings.TrimSpace(line[:eq])
		value := strings.TrimSpace(line[eq+1:])
		if strings.HasPrefix(value, "{") {
			for !strings.HasSuffix(value, "}") {
				i++
				if i >= len(lines) {
					return nil, fmt.Errorf("unterminated brace value for %q", key)
				}
				value += "\n" + strings.TrimSpace(lines[i])
			}
			value = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(value, "{"), "}"))
		}
		fields[strings.ToLower(key)] = value
	}
	return fields, nil
}

// parseMapInfo fills the transform from a map info value. Rotation is not
// representable in map info, so the off-diagonal terms stay zero.
func parseMapInfo(v string, meta *raster.Meta) error {
	parts := strings.Split(v, ",")
	if len(parts) < 7 {
		return fmt.Errorf("bad map info %q", v)
	}
	vals := make([]float64, 4)
	for i, p := range parts[3:7] {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return fmt.Errorf("bad map info %q: %w", v, err)
		}
		vals[i] = f
	}
	meta.Transform = [6]float64{vals[0], vals[2], 0, vals[1], 0, -vals[3]}
	return nil
}

func dtypeFromCode(code int) (raster.DType, error) {
	for dt, c := range dtypeCodes {
		if c == code {
			return dt, nil
		}
	}
	return "", fmt.Errorf("unsupported ENVI data type code %d", code)
}
