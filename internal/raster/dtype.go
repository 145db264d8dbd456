package raster

import "fmt"

// DType identifies the sample data type of a dataset's bands. Names follow
// the GDAL convention.
type DType string

const (
	Byte    DType = "Byte"
	UInt16  DType = "UInt16"
	Int16   DType = "Int16"
	UInt32  DType = "UInt32"
	Int32   DType = "Int32"
	Float32 DType = "Float32"
	Float64 DType = "Float64"
)

// Size returns the sample size in bytes, or 0 for an unknown type.
func (d DType) Size() int {
	switch d {
	case Byte:
		return 1
	case UInt16, Int16:
		return 2
	case UInt32, Int32, Float32:
		return 4
	case Float64:
		return 8
	default:
		return 0
	}
}

// ParseDType returns the DType with the given name.
func ParseDType(name string) (DType, error) {
	switch DType(name) {
	case Byte, UInt16, Int16, UInt32, Int32, Float32, Float64:
		return DType(name), nil
	default:
		return "", fmt.Errorf("unknown data type %q", name)
	}
}
