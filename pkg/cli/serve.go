package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	httpctrl "github.com/secmon-lab/vidqa/pkg/controller/http"
	"github.com/secmon-lab/vidqa/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdServe() *cli.Command {
	var addr string
	var allowedOrigins []string
	var pipelineCfg pipelineConfig

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP server address",
			Value:       "127.0.0.1:5000",
			Sources:     cli.EnvVars("VIDQA_ADDR"),
			Destination: &addr,
		},
		&cli.StringSliceFlag{
			Name:        "allowed-origin",
			Usage:       "CORS allowed origin (repeatable, default any)",
			Sources:     cli.EnvVars("VIDQA_ALLOWED_ORIGINS"),
			Destination: &allowedOrigins,
		},
	}
	flags = append(flags, pipelineCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start HTTP server",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			uc, err := pipelineCfg.Configure(ctx, c)
			if err != nil {
				return err
			}

			var httpOpts []httpctrl.Options
			if len(allowedOrigins) > 0 {
				httpOpts = append(httpOpts, httpctrl.WithAllowedOrigins(allowedOrigins...))
			}

			server := &http.Server{
				Addr:              addr,
				Handler:           httpctrl.New(uc.Answer, httpOpts...),
				ReadHeaderTimeout: 30 * time.Second,
			}

			// Setup signal handling for graceful shutdown
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			// Start server in goroutine
			errCh := make(chan error, 1)
			go func() {
				logging.Default().Info("Starting HTTP server", "addr", addr)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- goerr.Wrap(err, "failed to start server")
				}
			}()

			// Wait for shutdown signal or server error
			select {
			case err := <-errCh:
				return err
			case sig := <-sigCh:
				logging.Default().Info("Received shutdown signal", "signal", sig)

				// In-flight answers may be waiting on the generative model
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()

				if err := server.Shutdown(shutdownCtx); err != nil {
					return goerr.Wrap(err, "failed to shutdown server gracefully")
				}

				logging.Default().Info("Server shutdown completed")
				return nil
			}
		},
	}
}
