// Package gtiff implements the GTiff raster driver.
//
// The on-disk form is a little-endian, uncompressed TIFF with planar
// configuration 2 (one sample plane per band) and one strip per plane, so a
// band is a single contiguous run of samples. Georeferencing is carried in
// GeoTIFF tags: the full affine transform in ModelTransformation, the CRS as
// a GeoASCII citation, and the nodata value in the GDAL nodata tag.
//
// The reader handles exactly this profile and rejects everything else
// (compression, chunky interleave, big-endian files) with a descriptive
// error rather than misreading samples.
package gtiff

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/tkoppel/rastack/internal/raster"
)

// TIFF tag and field-type constants (the subset this driver uses).
const (
	tagImageWidth          = 256
	tagImageLength         = 257
	tagBitsPerSample       = 258
	tagCompression         = 259
	tagPhotometric         = 262
	tagStripOffsets        = 273
	tagSamplesPerPixel     = 277
	tagRowsPerStrip        = 278
	tagStripByteCounts     = 279
	tagPlanarConfig        = 284
	tagSampleFormat        = 339
	tagModelTransformation = 34264
	tagGeoKeyDirectory     = 34735
	tagGeoAsciiParams      = 34737
	tagGDALNoData          = 42113

	typeASCII  = 2
	typeShort  = 3
	typeLong   = 4
	typeDouble = 12

	sampleFormatUint  = 1
	sampleFormatInt   = 2
	sampleFormatFloat = 3
)

// photometricCodes maps tag names to TIFF photometric interpretation codes.
var photometricCodes = map[string]uint16{
	"miniswhite": 0,
	"minisblack": 1,
	"rgb":        2,
	"cmyk":       5,
	"ycbcr":      6,
	"cielab":     8,
	"icclab":     9,
	"itulab":     10,
}

// Driver is the GTiff format driver.
type Driver struct{}

// Name returns "GTiff".
func (Driver) Name() string { return "GTiff" }

// Detect reports whether path starts with a TIFF magic number.
func (Driver) Detect(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer func() {
		_ = f.Close()
	}()

	magic := make([]byte, 4)
	if _, err := f.ReadAt(magic, 0); err != nil {
		return false
	}
	return string(magic) == "II*\x00" || string(magic) == "MM\x00*"
}

// dtypeFields returns the BitsPerSample and SampleFormat values for a type.
func dtypeFields(dt raster.DType) (bits uint16, format uint16, err error) {
	switch dt {
	case raster.Byte:
		return 8, sampleFormatUint, nil
	case raster.UInt16:
		return 16, sampleFormatUint, nil
	case raster.Int16:
		return 16, sampleFormatInt, nil
	case raster.UInt32:
		return 32, sampleFormatUint, nil
	case raster.Int32:
		return 32, sampleFormatInt, nil
	case raster.Float32:
		return 32, sampleFormatFloat, nil
	case raster.Float64:
		return 64, sampleFormatFloat, nil
	default:
		return 0, 0, fmt.Errorf("GTiff: unsupported data type %q", dt)
	}
}

func dtypeFromFields(bits, format uint16) (raster.DType, error) {
	switch {
	case bits == 8 && format == sampleFormatUint:
		return raster.Byte, nil
	case bits == 16 && format == sampleFormatUint:
		return raster.UInt16, nil
	case bits == 16 && format == sampleFormatInt:
		return raster.Int16, nil
	case bits == 32 && format == sampleFormatUint:
		return raster.UInt32, nil
	case bits == 32 && format == sampleFormatInt:
		return raster.Int32, nil
	case bits == 32 && format == sampleFormatFloat:
		return raster.Float32, nil
	case bits == 64 && format == sampleFormatFloat:
		return raster.Float64, nil
	default:
		return "", fmt.Errorf("GTiff: unsupported sample layout (%d bits, format %d)", bits, format)
	}
}

// tag is one IFD entry with its raw little-endian payload.
type tag struct {
	id    uint16
	typ   uint16
	count uint32
	data  []byte
}

func shortTag(id uint16, values ...uint16) tag {
	data := make([]byte, 2*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint16(data[2*i:], v)
	}
	return tag{id: id, typ: typeShort, count: uint32(len(values)), data: data}
}

func longTag(id uint16, values ...uint32) tag {
	data := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(data[4*i:], v)
	}
	return tag{id: id, typ: typeLong, count: uint32(len(values)), data: data}
}

func doubleTag(id uint16, values ...float64) tag {
	data := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(data[8*i:], math.Float64bits(v))
	}
	return tag{id: id, typ: typeDouble, count: uint32(len(values)), data: data}
}

func asciiTag(id uint16, s string) tag {
	data := append([]byte(s), 0)
	return tag{id: id, typ: typeASCII, count: uint32(len(data)), data: data}
}

func pad2(n int) int {
	if n%2 == 1 {
		return n + 1
	}
	return n
}

// buildTags assembles the IFD entries for meta, in ascending tag order, with
// band data assumed to start at dataStart.
func buildTags(meta raster.Meta, dataStart uint32) ([]tag, error) {
	bits, format, err := dtypeFields(meta.DType)
	if err != nil {
		return nil, err
	}

	spp := meta.Count
	bandSize := uint32(meta.BandSize())
	offsets := make([]uint32, spp)
	counts := make([]uint32, spp)
	bitsArr := make([]uint16, spp)
	formatArr := make([]uint16, spp)
	for i := 0; i < spp; i++ {
		offsets[i] = dataStart + uint32(i)*bandSize
		counts[i] = bandSize
		bitsArr[i] = bits
		formatArr[i] = format
	}

	photometric := uint16(1) // minisblack
	if meta.Photometric != "" {
		code, ok := photometricCodes[meta.Photometric]
		if !ok {
			return nil, fmt.Errorf("GTiff: unsupported photometric %q", meta.Photometric)
		}
		photometric = code
	}

	tags := []tag{
		longTag(tagImageWidth, uint32(meta.Width)),
		longTag(tagImageLength, uint32(meta.Height)),
		shortTag(tagBitsPerSample, bitsArr...),
		shortTag(tagCompression, 1),
		shortTag(tagPhotometric, photometric),
		longTag(tagStripOffsets, offsets...),
		shortTag(tagSamplesPerPixel, uint16(spp)),
		longTag(tagRowsPerStrip, uint32(meta.Height)),
		longTag(tagStripByteCounts, counts...),
		shortTag(tagPlanarConfig, 2),
		shortTag(tagSampleFormat, formatArr...),
	}

	if meta.Transform != ([6]float64{}) {
		t := meta.Transform
		tags = append(tags, doubleTag(tagModelTransformation,
			t[1], t[2], 0, t[0],
			t[4], t[5], 0, t[3],
			0, 0, 0, 0,
			0, 0, 0, 1))
	}
	if meta.CRS != "" {
		citation := meta.CRS + "|"
		tags = append(tags,
			// GeoKeyDirectory: version 1.1.0, one key: GTCitation in GeoAsciiParams.
			shortTag(tagGeoKeyDirectory, 1, 1, 0, 1, 1026, tagGeoAsciiParams, uint16(len(citation)), 0),
			asciiTag(tagGeoAsciiParams, citation))
	}
	if meta.NoData != nil {
		tags = append(tags, asciiTag(tagGDALNoData, formatNoData(*meta.NoData)))
	}
	return tags, nil
}

// headerSize returns the total size of the header and out-of-line tag
// payloads for the given tags, which is also the band data start offset.
func headerSize(tags []tag) int {
	size := 8 + 2 + 12*len(tags) + 4
	for _, t := range tags {
		if len(t.data) > 4 {
			size += pad2(len(t.data))
		}
	}
	return size
}

// encodeHeader serializes the TIFF header, IFD, and out-of-line payloads.
func encodeHeader(tags []tag) []byte {
	buf := make([]byte, headerSize(tags))
	copy(buf, "II*\x00")
	binary.LittleEndian.PutUint32(buf[4:], 8)

	binary.LittleEndian.PutUint16(buf[8:], uint16(len(tags)))
	aux := 8 + 2 + 12*len(tags) + 4
	for i, t := range tags {
		entry := buf[10+12*i:]
		binary.LittleEndian.PutUint16(entry, t.id)
		binary.LittleEndian.PutUint16(entry[2:], t.typ)
		binary.LittleEndian.PutUint32(entry[4:], t.count)
		if len(t.data) <= 4 {
			copy(entry[8:12], t.data)
		} else {
			binary.LittleEndian.PutUint32(entry[8:], uint32(aux))
			copy(buf[aux:], t.data)
			aux += pad2(len(t.data))
		}
	}
	// Next-IFD offset stays zero: single image per file.
	return buf
}

// Create creates a new GTiff dataset. The full header is written up front;
// band writes fill the planes in place.
func (d Driver) Create(path string, meta raster.Meta) (raster.Writer, error) {
	// The data start depends only on tag payload sizes, not values, so a
	// first pass with a placeholder offset fixes the layout.
	probe, err := buildTags(meta, 0)
	if err != nil {
		return nil, err
	}
	dataStart := headerSize(probe)
	// Classic TIFF offsets are 32-bit; a layout past that limit would wrap.
	if end := int64(dataStart) + int64(meta.Count)*int64(meta.BandSize()); end > math.MaxUint32 {
		return nil, fmt.Errorf("GTiff: dataset too large for classic TIFF (%d bytes)", end)
	}
	tags, err := buildTags(meta, uint32(dataStart))
	if err != nil {
		return nil, err
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	if _, err := f.WriteAt(encodeHeader(tags), 0); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	return &writer{meta: meta, f: f, dataStart: int64(dataStart)}, nil
}

// writer writes band planes into a created GTiff file.
type writer struct {
	meta      raster.Meta
	f         *os.File
	dataStart int64
}

func (w *writer) WriteBand(index int, data []byte) error {
	if index < 1 || index > w.meta.Count {
		return fmt.Errorf("%w: %d (dataset has %d bands)", raster.ErrBandIndex, index, w.meta.Count)
	}
	size := w.meta.BandSize()
	if len(data) != size {
		return fmt.Errorf("%w: got %d bytes, want %d", raster.ErrBufferSize, len(data), size)
	}
	if _, err := w.f.WriteAt(data, w.dataStart+int64(size)*int64(index-1)); err != nil {
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

func formatNoData(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func parseNoData(s string) (*float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil, fmt.Errorf("GTiff: bad nodata value %q", s)
	}
	return &v, nil
}
