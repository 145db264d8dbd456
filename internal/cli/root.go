package cli

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	jsonOutput bool
	debugMode  bool
)

// rootCmd is the root command for rastack.
var rootCmd = &cobra.Command{
	Use:     "rastack",
	Version: "dev",
	Short:   "Stack raster bands into multiband datasets",
	Long: `rastack merges bands from one or more raster datasets into a single
multiband output.

Inputs must be of a kind: same dimensions and data type. The output inherits
its spatial reference, transform, and data type from the first input.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func SetVersion(v string) {
	if v == "" {
		return
	}
	rootCmd.Version = v
	rootCmd.SetVersionTemplate("{{.Version}}\n")
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug tracing on stderr")

	rootCmd.AddCommand(stackCmd)
	rootCmd.AddCommand(infoCmd)
}

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}
