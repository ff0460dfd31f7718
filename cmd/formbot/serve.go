package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/formbot/internal/cli"
	"github.com/aretw0/formbot/internal/config"
	"github.com/aretw0/formbot/pkg/adapters/discord"
	httpAdapter "github.com/aretw0/formbot/pkg/adapters/http"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and, when DISCORD_TOKEN is set, the Discord relay",
	Long: `Starts the JSON API, websocket chat and /metrics on PORT.
If a Discord token is configured the relay runs in the same process and its
conversations are mirrored to the per-user event streams.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("port", "p", "", "Port to listen on (overrides PORT)")
	serveCmd.Flags().StringSlice("allowed-origins", nil, "CORS and websocket origins (default any)")
	serveCmd.Flags().Bool("no-discord", false, "Do not start the Discord relay even if a token is set")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("port") {
		cfg.Port, _ = cmd.Flags().GetString("port")
	}
	origins, _ := cmd.Flags().GetStringSlice("allowed-origins")
	noDiscord, _ := cmd.Flags().GetBool("no-discord")

	logger := cli.NewLogger(cfg)
	sc := cli.NewSignalContext(cmd.Context())
	defer sc.Cancel()

	app, err := cli.NewApp(sc, cfg, logger, cli.WithMetrics(prometheus.DefaultRegisterer))
	if err != nil {
		return err
	}
	defer app.Close()

	opts := []httpAdapter.Option{
		httpAdapter.WithLogger(logger),
		httpAdapter.WithMetricsHandler(promhttp.Handler()),
		httpAdapter.WithAllowedOrigins(origins...),
		httpAdapter.WithSanitizer(cli.InputSanitizer(cfg)),
	}
	if app.Storage.Check != nil {
		opts = append(opts, httpAdapter.WithCheck("store", app.Storage.Check))
	}
	srv := httpAdapter.NewServer(app.Bot, opts...)

	g, ctx := errgroup.WithContext(sc)
	g.Go(func() error {
		return listen(ctx, logger, cfg.Addr(), srv.Routes())
	})

	if cfg.Discord.Token != "" && !noDiscord {
		relay := newRelay(app, cfg, logger, discord.WithMirror(srv.Mirror))
		srv.AddCheck("discord", relay.Check)
		g.Go(func() error {
			return relay.Run(ctx, cfg.Discord.Token)
		})
	} else {
		logger.Info("Discord relay disabled")
	}

	err = g.Wait()
	if sig := sc.Signal(); sig != nil {
		logger.Info("Shutdown complete", "signal", sig.String())
	}
	return err
}

// listen serves h on addr until ctx is done, then shuts down gracefully.
func listen(ctx context.Context, logger *slog.Logger, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to listen for errors coming from the listener.
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Starting formbot server", "address", addr)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Graceful shutdown did not complete", "timeout", shutdownTimeout, "err", err)
			return srv.Close()
		}
		logger.Info("Server stopped gracefully")
		return nil
	}
}

func newRelay(app *cli.App, cfg *config.Config, logger *slog.Logger, opts ...discord.Option) *discord.Relay {
	base := []discord.Option{
		discord.WithPrefix(cfg.Discord.CommandPrefix),
		discord.WithLogger(logger),
		discord.WithSanitizer(cli.InputSanitizer(cfg)),
	}
	return discord.New(app.Bot, append(base, opts...)...)
}
