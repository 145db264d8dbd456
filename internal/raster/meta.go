package raster

// Meta describes a dataset: its driver, raster shape, sample type, and
// geospatial referencing. The first input's Meta is cloned to define the
// stacking output, with Count and Driver overridden.
type Meta struct {
	// Driver is the driver name used to create the dataset
	Driver string

	// Width and Height are the raster dimensions in pixels
	Width  int
	Height int

	// Count is the number of bands
	Count int

	// DType is the sample data type shared by all bands
	DType DType

	// CRS is the coordinate reference system as WKT (empty if ungeoreferenced)
	CRS string

	// Transform is the pixel-to-world affine transform in GDAL order:
	// x = T[0] + col*T[1] + row*T[2], y = T[3] + col*T[4] + row*T[5]
	Transform [6]float64

	// NoData is the nodata sample value, if any
	NoData *float64

	// Photometric is the photometric interpretation tag (empty if unset)
	Photometric string
}

// BandSize returns the size in bytes of one band's samples.
func (m Meta) BandSize() int {
	return m.Width * m.Height * m.DType.Size()
}

// Clone returns a copy of m with its own NoData pointer.
func (m Meta) Clone() Meta {
	out := m
	if m.NoData != nil {
		v := *m.NoData
		out.NoData = &v
	}
	return out
}

// PhotometricValues is the accepted set of photometric interpretation tags.
var PhotometricValues = []string{
	"minisblack",
	"miniswhite",
	"rgb",
	"cmyk",
	"ycbcr",
	"cielab",
	"icclab",
	"itulab",
}

// ValidPhotometric reports whether tag is one of PhotometricValues.
func ValidPhotometric(tag string) bool {
	for _, v := range PhotometricValues {
		if tag == v {
			return true
		}
	}
	return false
}
