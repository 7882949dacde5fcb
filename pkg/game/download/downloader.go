// Package download fetches the client jar, libraries, natives and asset
// objects of a version, verifying every file against its SHA-1.
package download

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"limeal.fr/gamepipe/pkg/config"
	"limeal.fr/gamepipe/pkg/connectors"
	"limeal.fr/gamepipe/pkg/game/rules"
	"limeal.fr/gamepipe/pkg/utils"
)

const (
	ConcurrentDownloads = 10
	DefaultMaxTries     = 5
)

const (
	pipelineClient    = "client"
	pipelineLibraries = "libraries"
	pipelineAssets    = "assets"
	pipelineRuntime   = "runtime"
	pipelineDirect    = "direct"
)

type Downloader struct {
	fetcher         connectors.Fetcher
	layout          config.LaunchOptions
	env             rules.Env
	resourcesURL    string
	runtimeIndexURL string

	concurrency int
	maxTries    int
	newBackOff  func() backoff.BackOff

	log      *slog.Logger
	metrics  *Metrics
	progress utils.ProgressCallback
}

type Option func(*Downloader)

func WithLogger(log *slog.Logger) Option {
	return func(d *Downloader) { d.log = log }
}

func WithMetrics(m *Metrics) Option {
	return func(d *Downloader) { d.metrics = m }
}

// WithBackOff sets the policy used to space out retries. The factory is
// called once per artifact.
func WithBackOff(newBackOff func() backoff.BackOff) Option {
	return func(d *Downloader) { d.newBackOff = newBackOff }
}

// WithConcurrency bounds simultaneous fetches within one pipeline.
func WithConcurrency(n int) Option {
	return func(d *Downloader) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

func WithMaxTries(n int) Option {
	return func(d *Downloader) {
		if n > 0 {
			d.maxTries = n
		}
	}
}

func WithResourcesURL(u string) Option {
	return func(d *Downloader) { d.resourcesURL = u }
}

func WithRuntimeIndexURL(u string) Option {
	return func(d *Downloader) { d.runtimeIndexURL = u }
}

func WithProgress(cb utils.ProgressCallback) Option {
	return func(d *Downloader) { d.progress = cb }
}

// WithEnv overrides the platform used to evaluate library rules.
func WithEnv(env rules.Env) Option {
	return func(d *Downloader) { d.env = env }
}

func New(fetcher connectors.Fetcher, layout config.LaunchOptions, opts ...Option) *Downloader {
	d := &Downloader{
		fetcher:         fetcher,
		layout:          layout,
		env:             rules.Current(),
		resourcesURL:    config.DefaultResourcesURL,
		runtimeIndexURL: config.DefaultRuntimeIndexURL,
		concurrency:     ConcurrentDownloads,
		maxTries:        DefaultMaxTries,
		newBackOff:      defaultBackOff,
		log:             slog.Default(),
		metrics:         NewMetrics(nil),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	return b
}

func (d *Downloader) report(section string, current, total int, description string) {
	if d.progress != nil {
		d.progress(section, current, total, description)
	}
}

func sleepCtx(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
