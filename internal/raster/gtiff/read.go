package gtiff

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/tkoppel/rastack/internal/raster"
)

// Open opens an existing GTiff dataset for reading.
func (d Driver) Open(path string) (raster.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	ds, err := parseFile(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ds, nil
}

// dataset reads band planes from an open TIFF file.
type dataset struct {
	meta    raster.Meta
	f       *os.File
	offsets []int64
}

func (ds *dataset) Meta() raster.Meta { return ds.meta }

func (ds *dataset) ReadBand(index int) ([]byte, error) {
	if index < 1 || index > ds.meta.Count {
		return nil, fmt.Errorf("%w: %d (dataset has %d bands)", raster.ErrBandIndex, index, ds.meta.Count)
	}
	buf := make([]byte, ds.meta.BandSize())
	if _, err := ds.f.ReadAt(buf, ds.offsets[index-1]); err != nil {
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

// rawEntry is one decoded IFD entry.
type rawEntry struct {
	typ   uint16
	count uint32
	data  []byte
}

// parseFile decodes the header and first IFD of a supported TIFF file.
func parseFile(f *os.File) (*dataset, error) {
	header := make([]byte, 8)
	if _, err := f.ReadAt(header, 0); err != nil {
		return nil, fmt.Errorf("failed to read TIFF header: %w", err)
	}
	switch string(header[:4]) {
	case "II*\x00":
	case "MM\x00*":
		return nil, fmt.Errorf("big-endian TIFF is not supported")
	default:
		return nil, fmt.Errorf("not a TIFF file")
	}
	ifdOffset := int64(binary.LittleEndian.Uint32(header[4:]))

	entries, err := readIFD(f, ifdOffset)
	if err != nil {
		return nil, err
	}
	return datasetFromEntries(f, entries)
}

// readIFD reads all entries of the IFD at offset, resolving out-of-line
// payloads.
func readIFD(f *os.File, offset int64) (map[uint16]rawEntry, error) {
	countBuf := make([]byte, 2)
	if _, err := f.ReadAt(countBuf, offset); err != nil {
		return nil, fmt.Errorf("failed to read IFD: %w", err)
	}
	n := int(binary.LittleEndian.Uint16(countBuf))

	raw := make([]byte, 12*n)
	if _, err := f.ReadAt(raw, offset+2); err != nil {
		return nil, fmt.Errorf("failed to read IFD entries: %w", err)
	}

	entries := make(map[uint16]rawEntry, n)
	for i := 0; i < n; i++ {
		e := raw[12*i : 12*i+12]
		id := binary.LittleEndian.Uint16(e)
		typ := binary.LittleEndian.Uint16(e[2:])
		count := binary.LittleEndian.Uint32(e[4:])

		size := typeSize(typ) * int(count)
		if size < 0 {
			continue // unknown field type, skip
		}
		var data []byte
		if size <= 4 {
			data = append([]byte{}, e[8:8+size]...)
		} else {
			data = make([]byte, size)
			at := int64(binary.LittleEndian.Uint32(e[8:]))
			if _, err := f.ReadAt(data, at); err != nil {
				return nil, fmt.Errorf("failed to read payload of tag %d: %w", id, err)
			}
		}
		entries[id] = rawEntry{typ: typ, count: count, data: data}
	}
	return entries, nil
}

func typeSize(typ uint16) int {
	switch typ {
	case typeASCII:
		return 1
	case typeShort:
		return 2
	case typeLong:
		return 4
	case typeDouble:
		return 8
	default:
		return -1
	}
}

// uintValues decodes an entry's payload as unsigned integers (SHORT or LONG).
func (e rawEntry) uintValues() ([]uint32, error) {
	out := make([]uint32, e.count)
	switch e.typ {
	case typeShort:
		for i := range out {
			out[i] = uint32(binary.LittleEndian.Uint16(e.data[2*i:]))
		}
	case typeLong:
		for i := range out {
			out[i] = binary.LittleEndian.Uint32(e.data[4*i:])
		}
	default:
		return nil, fmt.Errorf("unexpected field type %d", e.typ)
	}
	return out, nil
}

func (e rawEntry) doubleValues() ([]float64, error) {
	if e.typ != typeDouble {
		return nil, fmt.Errorf("unexpected field type %d", e.typ)
	}
	out := make([]float64, e.count)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(e.data[8*i:]))
	}
	return out, nil
}

func (e rawEntry) asciiValue() string {
	return strings.TrimRight(string(e.data), "\x00")
}

// firstUint returns the single (or first) integer value of a tag, or def if
// the tag is absent.
func firstUint(entries map[uint16]rawEntry, id uint16, def uint32) (uint32, error) {
	e, ok := entries[id]
	if !ok {
		return def, nil
	}
	vals, err := e.uintValues()
	if err != nil {
		return 0, fmt.Errorf("bad tag %d: %w", id, err)
	}
	if len(vals) == 0 {
		return 0, fmt.Errorf("bad tag %d: no values", id)
	}
	return vals[0], nil
}

// datasetFromEntries validates the IFD against the supported profile and
// assembles the dataset.
func datasetFromEntries(f *os.File, entries map[uint16]rawEntry) (*dataset, error) {
	width, err := firstUint(entries, tagImageWidth, 0)
	if err != nil {
		return nil, err
	}
	height, err := firstUint(entries, tagImageLength, 0)
	if err != nil {
		return nil, err
	}
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("missing image dimensions")
	}

	spp, err := firstUint(entries, tagSamplesPerPixel, 1)
	if err != nil {
		return nil, err
	}
	compression, err := firstUint(entries, tagCompression, 1)
	if err != nil {
		return nil, err
	}
	if compression != 1 {
		return nil, fmt.Errorf("compressed TIFF is not supported (compression %d)", compression)
	}
	planar, err := firstUint(entries, tagPlanarConfig, 1)
	if err != nil {
		return nil, err
	}
	if spp > 1 && planar != 2 {
		return nil, fmt.Errorf("chunky interleave is not supported")
	}
	rowsPerStrip, err := firstUint(entries, tagRowsPerStrip, height)
	if err != nil {
		return nil, err
	}
	if rowsPerStrip < height {
		return nil, fmt.Errorf("multi-strip planes are not supported")
	}

	bits, err := firstUint(entries, tagBitsPerSample, 1)
	if err != nil {
		return nil, err
	}
	format, err := firstUint(entries, tagSampleFormat, sampleFormatUint)
	if err != nil {
		return nil, err
	}
	dtype, err := dtypeFromFields(uint16(bits), uint16(format))
	if err != nil {
		return nil, err
	}

	offsetsEntry, ok := entries[tagStripOffsets]
	if !ok {
		return nil, fmt.Errorf("missing strip offsets")
	}
	offsetVals, err := offsetsEntry.uintValues()
	if err != nil {
		return nil, fmt.Errorf("bad strip offsets: %w", err)
	}
	if len(offsetVals) != int(spp) {
		return nil, fmt.Errorf("expected %d strips, found %d", spp, len(offsetVals))
	}
	offsets := make([]int64, len(offsetVals))
	for i, v := range offsetVals {
		offsets[i] = int64(v)
	}

	meta := raster.Meta{
		Driver: "GTiff",
		Width:  int(width),
		Height: int(height),
		Count:  int(spp),
		DType:  dtype,
	}

	code, err := firstUint(entries, tagPhotometric, 1)
	if err != nil {
		return nil, err
	}
	for name, c := range photometricCodes {
		if uint32(c) == code {
			meta.Photometric = name
			break
		}
	}

	if e, ok := entries[tagModelTransformation]; ok {
		m, err := e.doubleValues()
		if err != nil || len(m) != 16 {
			return nil, fmt.Errorf("bad model transformation tag")
		}
		meta.Transform = [6]float64{m[3], m[0], m[1], m[7], m[4], m[5]}
	}
	if e, ok := entries[tagGeoAsciiParams]; ok {
		meta.CRS = strings.TrimSuffix(e.asciiValue(), "|")
	}
	if e, ok := entries[tagGDALNoData]; ok {
		nodata, err := parseNoData(e.asciiValue())
		if err != nil {
			return nil, err
		}
		meta.NoData = nodata
	}

	return &dataset{meta: meta, f: f, offsets: offsets}, nil
}
