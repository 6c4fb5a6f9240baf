package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joanabot/joana-weather/internal/weather"
)

func newCurrentCmd(app *App) *cobra.Command {
	var city, units string
	var lat, lon float64
	var brief bool

	cmd := &cobra.Command{
		Use:   "current",
		Short: "Print the current weather for a city or position",
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := weather.ParseUnits(units)
			if err != nil {
				return err
			}

			byCoords := cmd.Flags().Changed("lat") || cmd.Flags().Changed("lon")
			if byCoords && !(cmd.Flags().Changed("lat") && cmd.Flags().Changed("lon")) {
				return errors.New("--lat and --lon must be given together")
			}
			if !byCoords && city == "" {
				return errors.New("--city or --lat/--lon is required")
			}

			var reading weather.Reading
			if byCoords {
				reading, err = app.Weather.GetCurrentWeatherByCoordinates(cmd.Context(), lat, lon, u)
			} else {
				reading, err = app.Weather.GetCurrentWeather(cmd.Context(), city, u)
			}
			if err != nil {
				return fmt.Errorf("current weather: %w", err)
			}
			if brief {
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: %.1f%s, %s\n",
					reading.City, reading.Temperature, reading.Units.Symbol(), reading.Condition)
				return err
			}
			return printJSON(cmd.OutOrStdout(), reading)
		},
	}

	cmd.Flags().StringVar(&city, "city", "", "City name")
	cmd.Flags().Float64Var(&lat, "lat", 0, "Latitude")
	cmd.Flags().Float64Var(&lon, "lon", 0, "Longitude")
	cmd.Flags().StringVar(&units, "units", "celsius", "celsius or fahrenheit")
	cmd.Flags().BoolVar(&brief, "brief", false, "Print a one-line summary instead of JSON")

	return cmd
}

func newForecastCmd(app *App) *cobra.Command {
	var city, units string
	var days int

	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Print a daily forecast for a city",
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := weather.ParseUnits(units)
			if err != nil {
				return err
			}
			if days < 1 || days > 7 {
				return errors.New("--days must be between 1 and 7")
			}

			forecast, err := app.Weather.GetWeatherForecast(cmd.Context(), city, days, u)
			if err != nil {
				return fmt.Errorf("forecast: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), forecast)
		},
	}

	cmd.Flags().StringVar(&city, "city", "", "City name")
	cmd.Flags().IntVar(&days, "days", 3, "Number of days (1-7)")
	cmd.Flags().StringVar(&units, "units", "celsius", "celsius or fahrenheit")
	_ = cmd.MarkFlagRequired("city")

	return cmd
}
