package download

import (
	"context"

	"limeal.fr/gamepipe/pkg/game/manifests"
	"limeal.fr/gamepipe/pkg/launcherr"
	"limeal.fr/gamepipe/pkg/telemetry"
)

// DownloadClient fetches the version's client jar to
// <ClientDir>/<id>/<id>.jar.
func (d *Downloader) DownloadClient(ctx context.Context, v *manifests.VersionDescriptor) error {
	ctx, span := telemetry.Tracer().Start(ctx, "download.Client")
	defer span.End()

	client, ok := v.Client()
	if !ok {
		return launcherr.Parsef("descriptor %s has no client download", v.ID)
	}

	return d.run(ctx, pipelineClient, "Downloading client", []job{{
		name: v.ID + ".jar",
		url:  client.URL,
		dest: d.layout.ClientJar(v.ID),
		sha1: client.SHA1,
	}})
}
