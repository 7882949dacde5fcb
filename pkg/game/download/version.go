package download

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"limeal.fr/gamepipe/pkg/game/manifests"
	"limeal.fr/gamepipe/pkg/telemetry"
)

// DownloadVersion runs the client, libraries and assets pipelines
// concurrently and waits for all three. A failing pipeline does not stop
// the others; every failure is part of the returned error.
func (d *Downloader) DownloadVersion(ctx context.Context, v *manifests.VersionDescriptor, idx *manifests.AssetIndex) error {
	ctx, span := telemetry.Tracer().Start(ctx, "download.Version")
	span.SetAttributes(attribute.String("version.id", v.ID))
	defer span.End()

	var (
		wg   sync.WaitGroup
		errs [3]error
	)

	pipelines := [3]struct {
		name string
		run  func() error
	}{
		{pipelineClient, func() error { return d.DownloadClient(ctx, v) }},
		{pipelineLibraries, func() error { return d.DownloadLibraries(ctx, v) }},
		{pipelineAssets, func() error { return d.DownloadAssets(ctx, v, idx) }},
	}

	for i, p := range pipelines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := p.run(); err != nil {
				errs[i] = fmt.Errorf("%s: %w", p.name, err)
			}
		}()
	}
	wg.Wait()

	err := errors.Join(errs[:]...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "download failed")
	}
	return err
}
