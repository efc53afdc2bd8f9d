// Package serve implements the HTTP service command.
package serve

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/veridict/voiceguard-go/internal/aasist"
	"github.com/veridict/voiceguard-go/internal/api"
	"github.com/veridict/voiceguard-go/internal/conf"
	"github.com/veridict/voiceguard-go/internal/detect"
	"github.com/veridict/voiceguard-go/internal/logging"
	"github.com/veridict/voiceguard-go/internal/observability"
	"github.com/veridict/voiceguard-go/internal/weights"
)

const shutdownGrace = 30 * time.Second

// Command creates the serve command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the voice detection HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), settings)
		},
	}

	cmd.Flags().IntVarP(&settings.Web.Port, "port", "p", settings.Web.Port, "HTTP listen port")
	cmd.Flags().StringVar(&settings.Web.Host, "host", settings.Web.Host, "HTTP listen address")

	return cmd
}

func runServer(ctx context.Context, settings *conf.Settings) error {
	logger := logging.ForService("serve")

	metrics, err := observability.NewMetrics()
	if err != nil {
		return fmt.Errorf("error creating metrics: %w", err)
	}

	resolver, err := weights.NewResolver(ctx, settings)
	if err != nil {
		return fmt.Errorf("error creating weights resolver: %w", err)
	}

	registry := aasist.NewRegistry(ctx, settings, aasist.DefaultLoader(settings, resolver))
	defer registry.Close()
	metrics.ModelsLoaded.Set(float64(len(registry.Scorers())))
	if registry.Empty() {
		logger.Warn("no models loaded, serving QC fallback answers only")
	}

	detector := detect.New(settings, registry, metrics)
	server := api.New(settings, detector, metrics)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("shutting down", "reason", "context canceled")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("error during shutdown: %w", err)
	}
	return nil
}
