package cli

import (
	"github.com/spf13/cobra"

	"github.com/joanabot/joana-weather/internal/geo"
)

type normalizeResult struct {
	Input   string `json:"input"`
	City    string `json:"city"`
	Rule    string `json:"rule"`
	Changed bool   `json:"changed"`
}

func newNormalizeCmd(app *App) *cobra.Command {
	var lat, lon float64

	cmd := &cobra.Command{
		Use:   "normalize NAME",
		Short: "Show the canonical name for a provider city name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var coords *geo.Point
			if cmd.Flags().Changed("lat") && cmd.Flags().Changed("lon") {
				coords = &geo.Point{Lat: lat, Lon: lon}
			}

			city, rule := app.Names.Resolve(args[0], coords)
			return printJSON(cmd.OutOrStdout(), normalizeResult{
				Input:   args[0],
				City:    city,
				Rule:    string(rule),
				Changed: city != args[0],
			})
		},
	}

	cmd.Flags().Float64Var(&lat, "lat", 0, "Latitude reported with the name")
	cmd.Flags().Float64Var(&lon, "lon", 0, "Longitude reported with the name")

	return cmd
}
