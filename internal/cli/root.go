package cli

import (
	"io"
	"log/slog"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	httpapi "github.com/joanabot/joana-weather/internal/api/http"
)

// Background is a set of jobs that runs while the server is up.
type Background interface {
	Start()
	Stop()
}

// App holds references to everything the CLI commands use.
type App struct {
	Weather   httpapi.WeatherService
	Names     httpapi.CityResolver
	Providers []string
	Logger    *slog.Logger

	// Serve only.
	Port       string
	Background Background
	Metrics    bool
}

// NewRootCmd creates the top-level "joana-weather" command and registers
// all subcommands against the provided App.
func NewRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "joana-weather",
		Short:         "Weather lookups with provider fallback and city name correction",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newServeCmd(app),
		newCurrentCmd(app),
		newForecastCmd(app),
		newNormalizeCmd(app),
	)

	return root
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
