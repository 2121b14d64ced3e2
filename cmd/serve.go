package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/umbc-cmsc636/rent-analytics/internal/choropleth"
	"github.com/umbc-cmsc636/rent-analytics/internal/config"
	"github.com/umbc-cmsc636/rent-analytics/internal/dashboard"
	"github.com/umbc-cmsc636/rent-analytics/internal/dataset"
	"github.com/umbc-cmsc636/rent-analytics/internal/region"
)

var (
	servePort int
	serveHost string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Load the datasets and serve the dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if serveHost != "" {
			cfg.Server.Host = serveHost
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		// A load failure is fatal: the dashboard never starts on partial data.
		bundle, err := loadBundle(ctx, cfg, newOpener(cfg))
		if err != nil {
			return err
		}

		dash, err := newDashboard(bundle, cfg)
		if err != nil {
			return err
		}

		srv := &http.Server{
			Addr:              cfg.Server.Addr(),
			Handler:           dash.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zap.L().Warn("server shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("starting server",
			zap.String("addr", srv.Addr),
			zap.Int("counties", len(bundle.Counties)),
			zap.Strings("default_states", cfg.Dashboard.DefaultStates),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// newDashboard builds the catalog, renderer and server for a loaded bundle.
func newDashboard(b *dataset.Bundle, c *config.Config) (*dashboard.Server, error) {
	catalog, err := choropleth.DefaultCatalog()
	if err != nil {
		return nil, err
	}
	catalog.ApplyDictionary(b.Dictionary)

	outlines, err := region.ParseOutlineMode(c.Dashboard.StateOutlines)
	if err != nil {
		return nil, err
	}

	return dashboard.NewServer(b, catalog, choropleth.NewPlotlyRenderer(catalog), dashboard.Config{
		Title:          c.Dashboard.Title,
		DefaultStates:  c.Dashboard.DefaultStates,
		Metric:         c.Dashboard.Metric,
		Style:          styleFrom(c.Dashboard.Style),
		Outlines:       outlines,
		SessionTTL:     c.Server.SessionTTL,
		CacheSize:      c.Server.CacheSize,
		CacheTTL:       c.Server.CacheTTL,
		AllowedOrigins: c.Server.AllowedOrigins,
		PlotlyJSURL:    c.Dashboard.PlotlyJSURL,
	})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "listen address (default from config)")
	rootCmd.AddCommand(serveCmd)
}
