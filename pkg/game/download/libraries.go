package download

import (
	"context"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"limeal.fr/gamepipe/pkg/game/manifests"
	"limeal.fr/gamepipe/pkg/game/rules"
	"limeal.fr/gamepipe/pkg/launcherr"
	"limeal.fr/gamepipe/pkg/telemetry"
	"limeal.fr/gamepipe/pkg/utils"
)

type nativeJar struct {
	path    string
	exclude []string
}

// DownloadLibraries fetches every library whose rules allow the current
// platform, plus its native classifier when it has one. Natives are then
// extracted to <NativesDir>/<id>.
func (d *Downloader) DownloadLibraries(ctx context.Context, v *manifests.VersionDescriptor) error {
	ctx, span := telemetry.Tracer().Start(ctx, "download.Libraries")
	defer span.End()

	jobs, natives, err := d.libraryJobs(v)
	if err != nil {
		return err
	}
	span.SetAttributes(attribute.Int("download.jobs", len(jobs)), attribute.Int("download.natives", len(natives)))

	if err := d.run(ctx, pipelineLibraries, "Downloading libraries", jobs); err != nil {
		return err
	}

	nativesDir := d.layout.VersionNativesDir(v.ID)
	extracted := 0
	for i, n := range natives {
		count, err := utils.ExtractNatives(n.path, nativesDir, n.exclude)
		if err != nil {
			return launcherr.IO(n.path, err)
		}
		extracted += count
		d.report("Extracting natives", i+1, len(natives), filepath.Base(n.path))
	}
	if len(natives) > 0 {
		d.log.Debug("natives extracted", "dir", nativesDir, "jars", len(natives), "files", extracted)
	}
	return nil
}

func (d *Downloader) libraryJobs(v *manifests.VersionDescriptor) ([]job, []nativeJar, error) {
	var (
		jobs    []job
		natives []nativeJar
		seen    = map[string]bool{}
	)

	add := func(j job) {
		if seen[j.dest] {
			return
		}
		seen[j.dest] = true
		jobs = append(jobs, j)
	}

	for i := range v.Libraries {
		lib := &v.Libraries[i]
		if !rules.Evaluate(lib.Rules, d.env) {
			d.log.Debug("library excluded by rules", "library", lib.Name)
			continue
		}

		if j, ok, err := d.artifactJob(lib); err != nil {
			return nil, nil, err
		} else if ok {
			add(j)
		}

		key, art, ok := rules.NativeClassifier(lib, d.env)
		if !ok {
			continue
		}
		native, ok, err := nativeDownload(lib, key, art)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			d.log.Debug("native classifier has no download", "library", lib.Name, "classifier", key)
			continue
		}
		dest := filepath.Join(d.layout.LibrariesDir, filepath.FromSlash(native.Path))
		add(job{name: lib.Name + ":" + key, url: native.URL, dest: dest, sha1: native.SHA1})

		var exclude []string
		if lib.Extract != nil {
			exclude = lib.Extract.Exclude
		}
		natives = append(natives, nativeJar{path: dest, exclude: exclude})
	}

	return jobs, natives, nil
}

// nativeDownload locates the classifier jar key of lib. A classifier missing
// from the descriptor's downloads falls back to the library's maven
// repository, unverified, like a main jar without an artifact entry.
func nativeDownload(lib *manifests.Library, key string, art *manifests.Artifact) (manifests.JarDownload, bool, error) {
	if art != nil && art.URL != "" {
		rel := art.Path
		if rel == "" {
			p, err := manifests.MavenPath(lib.Name, key)
			if err != nil {
				return manifests.JarDownload{}, false, launcherr.Parse("library "+lib.Name, err)
			}
			rel = p
		}
		return manifests.JarDownload{Path: rel, URL: art.URL, SHA1: art.SHA1}, true, nil
	}
	if art != nil || lib.URL == "" {
		return manifests.JarDownload{}, false, nil
	}

	rel, err := manifests.MavenPath(lib.Name, key)
	if err != nil {
		return manifests.JarDownload{}, false, launcherr.Parse("library "+lib.Name, err)
	}
	return manifests.JarDownload{Path: rel, URL: strings.TrimSuffix(lib.URL, "/") + "/" + rel}, true, nil
}

// artifactJob builds the job for a library's main jar, if it has one.
func (d *Downloader) artifactJob(lib *manifests.Library) (job, bool, error) {
	jar, ok, err := lib.MainJar()
	if err != nil {
		return job{}, false, launcherr.Parse("library "+lib.Name, err)
	}
	if !ok {
		return job{}, false, nil
	}
	return job{
		name: lib.Name,
		url:  jar.URL,
		dest: filepath.Join(d.layout.LibrariesDir, filepath.FromSlash(jar.Path)),
		sha1: jar.SHA1,
	}, true, nil
}
