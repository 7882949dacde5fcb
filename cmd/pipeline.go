package cmd

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"limeal.fr/gamepipe/pkg/config"
	"limeal.fr/gamepipe/pkg/connectors"
	"limeal.fr/gamepipe/pkg/game/download"
	"limeal.fr/gamepipe/pkg/game/meta"
	"limeal.fr/gamepipe/pkg/telemetry"
	"limeal.fr/gamepipe/pkg/utils"
)

const serviceName = "gamepipe"

// pipeline is the set of components a command works with, built from the
// loaded configuration.
type pipeline struct {
	layout     config.LaunchOptions
	mux        *connectors.Mux
	resolver   *meta.Resolver
	downloader *download.Downloader

	closers []func(context.Context) error
}

func newPipeline(ctx context.Context, metricsAddr string) (*pipeline, error) {
	layout, err := config.NewLaunchOptions(cfg.RootDir)
	if err != nil {
		return nil, err
	}

	p := &pipeline{layout: layout}

	shutdown, err := telemetry.Setup(ctx, serviceName, cfg.LauncherVersion, cfg.OTelEndpoint)
	if err != nil {
		return nil, err
	}
	p.closers = append(p.closers, shutdown)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := download.NewMetrics(reg)

	if metricsAddr != "" {
		if err := p.serveMetrics(reg, metricsAddr); err != nil {
			p.Close()
			return nil, err
		}
	}

	p.mux = connectors.NewMux(cfg.HTTPTimeout, cfg.LauncherName+"/"+cfg.LauncherVersion)
	p.closers = append(p.closers, func(context.Context) error { return p.mux.Close() })

	p.resolver = meta.NewResolver(p.mux, layout,
		meta.WithManifestURL(cfg.ManifestURL),
		meta.WithLogger(logger),
	)
	p.downloader = download.New(p.mux, layout,
		download.WithResourcesURL(cfg.ResourcesURL),
		download.WithRuntimeIndexURL(cfg.RuntimeIndexURL),
		download.WithConcurrency(cfg.Concurrency),
		download.WithMaxTries(cfg.MaxTries),
		download.WithLogger(logger),
		download.WithMetrics(metrics),
		download.WithProgress(utils.TerminalProgress(os.Stdout)),
	)
	return p, nil
}

func (p *pipeline) serveMetrics(reg *prometheus.Registry, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", ln.Addr().String())

	p.closers = append(p.closers, srv.Shutdown)
	return nil
}

// Close releases everything newPipeline opened, most recent first.
func (p *pipeline) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	for i := len(p.closers) - 1; i >= 0; i-- {
		errs = append(errs, p.closers[i](ctx))
	}
	return errors.Join(errs...)
}
