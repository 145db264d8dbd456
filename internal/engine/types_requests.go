package engine

// StackRequest represents a request to stack bands into one output dataset.
type StackRequest struct {
	// Inputs is the ordered list of input dataset paths
	Inputs []string

	// Selections is the list of band-selection expressions, paired
	// positionally with Inputs. Missing or empty entries select all bands.
	Selections []string

	// Output is the output dataset path
	Output string

	// Driver is the output driver name (e.g. "GTiff")
	Driver string

	// Photometric is an optional photometric interpretation tag for the output
	Photometric string

	// DryRun builds and returns the plan without creating the output
	DryRun bool

	// Debug enables per-entry copy tracing on the engine's debug output
	Debug bool
}

// InfoRequest represents a request for dataset metadata.
type InfoRequest struct {
	// Path is the dataset path
	Path string
}
