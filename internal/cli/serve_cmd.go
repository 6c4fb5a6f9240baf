package cli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	httpapi "github.com/joanabot/joana-weather/internal/api/http"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(app *App) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if port == "" {
				port = app.Port
			}

			server := httpapi.NewServer(httpapi.ServerOptions{
				Service:   app.Weather,
				Names:     app.Names,
				Logger:    app.Logger,
				Providers: app.Providers,
				AccessLog: true,
				Metrics:   app.Metrics,
			})

			if app.Background != nil {
				app.Background.Start()
				defer app.Background.Stop()
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				app.Logger.Info("http server listening", "port", port, "providers", app.Providers)
				errCh <- server.Listen(":" + port)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			app.Logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return server.ShutdownWithContext(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "Listen port (defaults to PORT)")

	return cmd
}
