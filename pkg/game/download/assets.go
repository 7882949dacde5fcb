package download

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"limeal.fr/gamepipe/pkg/game/manifests"
	"limeal.fr/gamepipe/pkg/launcherr"
	"limeal.fr/gamepipe/pkg/telemetry"
	"limeal.fr/gamepipe/pkg/utils"
)

// DownloadAssets fetches every object of idx into
// <AssetsDir>/objects/<xx>/<hash>. When the version uses the legacy
// layout, or the index is virtual or mapped to resources, each object is
// also copied to <LegacyAssetsDir>/<name>.
func (d *Downloader) DownloadAssets(ctx context.Context, v *manifests.VersionDescriptor, idx *manifests.AssetIndex) error {
	ctx, span := telemetry.Tracer().Start(ctx, "download.Assets")
	defer span.End()

	if idx == nil {
		return launcherr.InvalidInputf("no asset index for version %s", v.ID)
	}

	legacy := idx.NeedsLegacyCopy(v.Assets)
	span.SetAttributes(attribute.Int("download.objects", len(idx.Objects)), attribute.Bool("download.legacy", legacy))

	// Objects sharing a hash are fetched once.
	byHash := map[string][]string{}
	objects := map[string]manifests.AssetObject{}
	for name, obj := range idx.Objects {
		byHash[obj.Hash] = append(byHash[obj.Hash], name)
		objects[obj.Hash] = obj
	}

	hashes := make([]string, 0, len(byHash))
	for h := range byHash {
		hashes = append(hashes, h)
	}
	sort.Strings(hashes)

	jobs := make([]job, 0, len(hashes))
	for _, h := range hashes {
		rel, err := objects[h].ObjectPath()
		if err != nil {
			return launcherr.Parse("asset index "+v.AssetIndex.ID, err)
		}

		j := job{
			name: byHash[h][0],
			url:  strings.TrimSuffix(d.resourcesURL, "/") + "/" + rel,
			dest: d.layout.AssetObjectPath(rel),
			sha1: h,
		}
		if legacy {
			names := byHash[h]
			sort.Strings(names)
			src, hash := j.dest, h
			j.after = func() error {
				for _, name := range names {
					if err := d.legacyCopy(src, name, hash); err != nil {
						return err
					}
				}
				return nil
			}
		}
		jobs = append(jobs, j)
	}

	return d.run(ctx, pipelineAssets, "Downloading assets", jobs)
}

func (d *Downloader) legacyCopy(src, name, hash string) error {
	base := filepath.Clean(d.layout.LegacyAssetsDir)
	dst := filepath.Join(base, filepath.FromSlash(name))
	if !strings.HasPrefix(dst, base+string(os.PathSeparator)) {
		return launcherr.Parsef("asset name %q escapes the legacy assets directory", name)
	}

	if utils.HasFileWithSHA1(dst, hash) {
		return nil
	}
	if err := utils.CopyFileAtomic(src, dst); err != nil {
		return launcherr.IO(dst, err)
	}
	return nil
}
