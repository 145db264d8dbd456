package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tkoppel/rastack/internal/engine"
)

var infoCmd = &cobra.Command{
	Use:   "info PATH",
	Short: "Print the metadata of a raster dataset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := &engine.InfoRequest{Path: args[0]}
		result, err := newEngine().Info(context.Background(), req)
		if err != nil {
			return err
		}

		if jsonOutput {
			return outputJSON(result)
		}

		m := result.Meta
		PrintSection("Dataset")
		PrintLabelValue("Path", result.Path)
		PrintLabelValue("Driver", m.Driver)
		PrintLabelValue("Size", fmt.Sprintf("%d x %d", m.Width, m.Height))
		PrintLabelValue("Bands", strconv.Itoa(m.Count))
		PrintLabelValue("Type", string(m.DType))
		if m.CRS != "" {
			PrintLabelValue("CRS", m.CRS)
		}
		if m.Transform != ([6]float64{}) {
			t := m.Transform
			PrintLabelValue("Transform", fmt.Sprintf("%g, %g, %g, %g, %g, %g",
				t[0], t[1], t[2], t[3], t[4], t[5]))
		}
		if m.NoData != nil {
			PrintLabelValue("NoData", strconv.FormatFloat(*m.NoData, 'g', -1, 64))
		}
		if m.Photometric != "" {
			PrintLabelValue("Photometric", m.Photometric)
		}
		return nil
	},
}
