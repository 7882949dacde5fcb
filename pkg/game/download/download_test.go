package download

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"limeal.fr/gamepipe/pkg/config"
	"limeal.fr/gamepipe/pkg/game/manifests"
	"limeal.fr/gamepipe/pkg/game/rules"
	"limeal.fr/gamepipe/pkg/launcherr"
	"limeal.fr/gamepipe/pkg/utils"
)

// scriptedFetcher serves fixed bodies per URL. A URL listed in bad serves
// corrupted bytes for its first n fetches.
type scriptedFetcher struct {
	mu    sync.Mutex
	files map[string][]byte
	bad   map[string]int
	down  map[string]int
	calls map[string]int
}

func newScriptedFetcher() *scriptedFetcher {
	return &scriptedFetcher{
		files: map[string][]byte{},
		bad:   map[string]int{},
		down:  map[string]int{},
		calls: map[string]int{},
	}
}

func (f *scriptedFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[url]++
	if f.down[url] > 0 {
		f.down[url]--
		return nil, fmt.Errorf("GET %s: connection reset", url)
	}
	data, ok := f.files[url]
	if !ok {
		return nil, fmt.Errorf("GET %s: status code: 404", url)
	}
	if f.bad[url] > 0 {
		f.bad[url]--
		return append([]byte("corrupt-"), data...), nil
	}
	return data, nil
}

func (f *scriptedFetcher) count(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

func (f *scriptedFetcher) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

var linux64 = rules.Env{OS: "linux", Arch: "amd64", OSRelease: "6.8.0"}

func newTestDownloader(t *testing.T, f *scriptedFetcher, opts ...Option) (*Downloader, config.LaunchOptions) {
	t.Helper()
	layout, err := config.NewLaunchOptions(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, layout.EnsureDirs())

	base := []Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} }),
		WithEnv(linux64),
		WithResourcesURL("https://resources.example"),
	}
	return New(f, layout, append(base, opts...)...), layout
}

func TestFetchAndVerifyCacheHitSkipsNetwork(t *testing.T) {
	f := newScriptedFetcher()
	d, layout := newTestDownloader(t, f)

	dest := filepath.Join(layout.LibrariesDir, "a.jar")
	require.NoError(t, os.WriteFile(dest, []byte("cached"), 0o644))

	require.NoError(t, d.FetchAndVerify(context.Background(), "https://x.example/a.jar", dest, utils.BytesSHA1([]byte("cached")), 3))
	assert.Equal(t, 0, f.total())
}

func TestFetchAndVerifyFailsAfterExactlyMaxTries(t *testing.T) {
	for _, maxTries := range []int{1, 3, 5} {
		t.Run(fmt.Sprint(maxTries), func(t *testing.T) {
			f := newScriptedFetcher()
			url := "https://x.example/bad.jar"
			f.files[url] = []byte("payload")
			f.bad[url] = 100
			d, layout := newTestDownloader(t, f)

			dest := filepath.Join(layout.LibrariesDir, "bad.jar")
			err := d.FetchAndVerify(context.Background(), url, dest, utils.BytesSHA1([]byte("payload")), maxTries)

			var sumErr *launcherr.ChecksumError
			require.ErrorAs(t, err, &sumErr)
			assert.True(t, errors.Is(err, launcherr.ErrChecksum))
			assert.Equal(t, url, sumErr.URL)
			assert.Equal(t, maxTries, sumErr.Tries)
			assert.Equal(t, maxTries, f.count(url))
			assert.NoFileExists(t, dest)
		})
	}
}

func TestFetchAndVerifyTransportFailuresAreFetchErrors(t *testing.T) {
	f := newScriptedFetcher()
	url := "https://x.example/gone.jar"
	d, layout := newTestDownloader(t, f)

	err := d.FetchAndVerify(context.Background(), url, filepath.Join(layout.LibrariesDir, "gone.jar"), utils.BytesSHA1([]byte("payload")), 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, launcherr.ErrFetch)
	assert.False(t, errors.Is(err, launcherr.ErrChecksum), "no bytes were ever hashed: %v", err)

	var fetchErr *launcherr.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, url, fetchErr.Item)
	assert.Equal(t, 3, f.count(url))
}

func TestFetchAndVerifyMismatchAfterOutageIsChecksumError(t *testing.T) {
	f := newScriptedFetcher()
	url := "https://x.example/flaky-bad.jar"
	f.files[url] = []byte("payload")
	f.down[url] = 1
	f.bad[url] = 100
	d, layout := newTestDownloader(t, f)

	err := d.FetchAndVerify(context.Background(), url, filepath.Join(layout.LibrariesDir, "fb.jar"), utils.BytesSHA1([]byte("payload")), 3)
	var sumErr *launcherr.ChecksumError
	require.ErrorAs(t, err, &sumErr)
	assert.Equal(t, 3, sumErr.Tries)
}

func TestFetchAndVerifyRecoversWithinBudget(t *testing.T) {
	f := newScriptedFetcher()
	url := "https://x.example/flaky.jar"
	f.files[url] = []byte("payload")
	f.bad[url] = 1
	f.down[url] = 1
	d, layout := newTestDownloader(t, f)

	dest := filepath.Join(layout.LibrariesDir, "nested", "flaky.jar")
	require.NoError(t, d.FetchAndVerify(context.Background(), url, dest, utils.BytesSHA1([]byte("payload")), 3))
	assert.Equal(t, 3, f.count(url))

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(got))
}

func TestFetchAndVerifyWithoutHash(t *testing.T) {
	f := newScriptedFetcher()
	url := "https://x.example/nohash.jar"
	f.files[url] = []byte("anything")
	d, layout := newTestDownloader(t, f)

	dest := filepath.Join(layout.LibrariesDir, "nohash.jar")
	require.NoError(t, d.FetchAndVerify(context.Background(), url, dest, "", 2))
	require.NoError(t, d.FetchAndVerify(context.Background(), url, dest, "", 2))
	assert.Equal(t, 1, f.count(url))

	err := d.FetchAndVerify(context.Background(), "https://x.example/missing.jar", filepath.Join(layout.LibrariesDir, "m.jar"), "", 2)
	assert.ErrorIs(t, err, launcherr.ErrFetch)
	assert.Equal(t, 2, f.count("https://x.example/missing.jar"))
}

func TestFetchAndVerifyStopsOnCancelledContext(t *testing.T) {
	f := newScriptedFetcher()
	d, layout := newTestDownloader(t, f)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := d.FetchAndVerify(ctx, "https://x.example/a.jar", filepath.Join(layout.LibrariesDir, "a.jar"), "abc", 5)
	assert.ErrorIs(t, err, launcherr.ErrTask)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, f.total())
}

func TestFetchAndVerifyRejectsZeroTries(t *testing.T) {
	d, layout := newTestDownloader(t, newScriptedFetcher())
	err := d.FetchAndVerify(context.Background(), "https://x.example/a.jar", filepath.Join(layout.LibrariesDir, "a.jar"), "abc", 0)
	assert.ErrorIs(t, err, launcherr.ErrInvalidInput)
}

func jarBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

type fixture struct {
	fetcher    *scriptedFetcher
	descriptor *manifests.VersionDescriptor
	index      *manifests.AssetIndex
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	f := newScriptedFetcher()

	client := []byte("client-jar")
	lib := []byte("lib-jar")
	osxLib := []byte("osx-jar")
	natives := jarBytes(t, map[string]string{"liblwjgl.so": "elf", "META-INF/MANIFEST.MF": "x"})
	icon := []byte("icon-bytes")
	sound := []byte("sound-bytes")

	f.files["https://dl.example/client.jar"] = client
	f.files["https://dl.example/lib.jar"] = lib
	f.files["https://dl.example/osx.jar"] = osxLib
	f.files["https://dl.example/natives-linux.jar"] = natives

	iconHash := utils.BytesSHA1(icon)
	soundHash := utils.BytesSHA1(sound)
	f.files["https://resources.example/"+iconHash[:2]+"/"+iconHash] = icon
	f.files["https://resources.example/"+soundHash[:2]+"/"+soundHash] = sound

	descriptor := &manifests.VersionDescriptor{
		ID:                 "1.7.10",
		MainClass:          "net.minecraft.client.main.Main",
		MinecraftArguments: "--username ${auth_player_name}",
		Assets:             manifests.LegacyAssets,
		AssetIndex:         manifests.AssetIndexRef{ID: "legacy"},
		Downloads: map[string]manifests.Artifact{
			"client": {URL: "https://dl.example/client.jar", SHA1: utils.BytesSHA1(client)},
		},
		Libraries: []manifests.Library{
			{
				Name: "com.example:lib:1.0",
				Downloads: manifests.LibraryDownloads{Artifact: &manifests.Artifact{
					Path: "com/example/lib/1.0/lib-1.0.jar", URL: "https://dl.example/lib.jar", SHA1: utils.BytesSHA1(lib),
				}},
			},
			{
				Name:  "com.example:osx-only:1.0",
				Rules: []manifests.Rule{{Action: manifests.Allow, OS: &manifests.OSRule{Name: "osx"}}},
				Downloads: manifests.LibraryDownloads{Artifact: &manifests.Artifact{
					Path: "com/example/osx-only/1.0/osx-only-1.0.jar", URL: "https://dl.example/osx.jar", SHA1: utils.BytesSHA1(osxLib),
				}},
			},
			{
				Name:    "org.lwjgl.lwjgl:lwjgl-platform:2.9.4",
				Natives: map[string]string{"linux": "natives-linux"},
				Extract: &manifests.ExtractRules{Exclude: []string{"META-INF/"}},
				Downloads: manifests.LibraryDownloads{Classifiers: map[string]*manifests.Artifact{
					"natives-linux": {URL: "https://dl.example/natives-linux.jar", SHA1: utils.BytesSHA1(natives)},
				}},
			},
		},
	}

	index := &manifests.AssetIndex{Objects: map[string]manifests.AssetObject{
		"icons/icon_16x16.png": {Hash: iconHash, Size: int64(len(icon))},
		"icons/icon_32x32.png": {Hash: iconHash, Size: int64(len(icon))},
		"sound/step.ogg":       {Hash: soundHash, Size: int64(len(sound))},
	}}

	return fixture{fetcher: f, descriptor: descriptor, index: index}
}

func modTimes(t *testing.T, root string) map[string]time.Time {
	t.Helper()
	out := map[string]time.Time{}
	require.NoError(t, filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		out[path] = info.ModTime()
		return nil
	}))
	return out
}

func TestDownloadVersionLayoutAndIdempotence(t *testing.T) {
	fx := newFixture(t)
	reg := prometheus.NewRegistry()
	var progressCalls sync.Map
	d, layout := newTestDownloader(t, fx.fetcher,
		WithMetrics(NewMetrics(reg)),
		WithConcurrency(2),
		WithProgress(func(section string, current, total int, description string) {
			progressCalls.Store(section, true)
		}),
	)

	require.NoError(t, d.DownloadVersion(context.Background(), fx.descriptor, fx.index))

	assert.FileExists(t, layout.ClientJar("1.7.10"))
	assert.FileExists(t, filepath.Join(layout.LibrariesDir, "com", "example", "lib", "1.0", "lib-1.0.jar"))
	assert.NoFileExists(t, filepath.Join(layout.LibrariesDir, "com", "example", "osx-only", "1.0", "osx-only-1.0.jar"))
	assert.Equal(t, 0, fx.fetcher.count("https://dl.example/osx.jar"))

	// natives classifier path is derived from the maven coordinate
	assert.FileExists(t, filepath.Join(layout.LibrariesDir, "org", "lwjgl", "lwjgl", "lwjgl-platform", "2.9.4", "lwjgl-platform-2.9.4-natives-linux.jar"))
	assert.FileExists(t, filepath.Join(layout.VersionNativesDir("1.7.10"), "liblwjgl.so"))
	assert.NoFileExists(t, filepath.Join(layout.VersionNativesDir("1.7.10"), "META-INF", "MANIFEST.MF"))

	iconHash := fx.index.Objects["icons/icon_16x16.png"].Hash
	assert.FileExists(t, layout.AssetObjectPath(iconHash[:2]+"/"+iconHash))
	for _, name := range []string{"icons/icon_16x16.png", "icons/icon_32x32.png", "sound/step.ogg"} {
		assert.FileExists(t, filepath.Join(layout.LegacyAssetsDir, filepath.FromSlash(name)))
	}
	// two names sharing a hash are fetched once
	assert.Equal(t, 1, fx.fetcher.count("https://resources.example/"+iconHash[:2]+"/"+iconHash))

	_, ok := progressCalls.Load("Downloading assets")
	assert.True(t, ok)

	before := modTimes(t, layout.RootDir)
	fetches := fx.fetcher.total()

	require.NoError(t, d.DownloadVersion(context.Background(), fx.descriptor, fx.index))
	assert.Equal(t, fetches, fx.fetcher.total(), "second run must not fetch")
	assert.Equal(t, before, modTimes(t, layout.RootDir), "second run must not write")

	assert.Equal(t, float64(2), counterValue(t, reg, "gamepipe_download_fetch_total", "assets"))
	assert.Equal(t, float64(2), counterValue(t, reg, "gamepipe_download_cache_hit_total", "assets"))
	assert.Equal(t, float64(1), counterValue(t, reg, "gamepipe_download_cache_hit_total", "client"))
}

func TestDownloadVersionReportsEveryFailingPipeline(t *testing.T) {
	fx := newFixture(t)
	fx.fetcher.bad["https://dl.example/client.jar"] = 100
	delete(fx.fetcher.files, "https://resources.example/"+fx.index.Objects["sound/step.ogg"].Hash[:2]+"/"+fx.index.Objects["sound/step.ogg"].Hash)

	d, layout := newTestDownloader(t, fx.fetcher, WithMaxTries(2))

	err := d.DownloadVersion(context.Background(), fx.descriptor, fx.index)
	require.Error(t, err)
	assert.ErrorIs(t, err, launcherr.ErrChecksum)
	assert.ErrorIs(t, err, launcherr.ErrFetch)
	assert.Contains(t, err.Error(), "client:")
	assert.Contains(t, err.Error(), "assets:")
	assert.NotContains(t, err.Error(), "libraries:")

	// the libraries pipeline ran to completion regardless
	assert.FileExists(t, filepath.Join(layout.LibrariesDir, "com", "example", "lib", "1.0", "lib-1.0.jar"))
	assert.Equal(t, 2, fx.fetcher.count("https://dl.example/client.jar"))
}

func TestDownloadLibrariesNativesWithoutClassifierEntry(t *testing.T) {
	f := newScriptedFetcher()
	natives := jarBytes(t, map[string]string{"liblwjgl.so": "elf"})
	f.files["https://maven.example/org/lwjgl/lwjgl/lwjgl-platform/2.9.4/lwjgl-platform-2.9.4-natives-linux.jar"] = natives
	d, layout := newTestDownloader(t, f)

	v := &manifests.VersionDescriptor{ID: "1.8.9", Libraries: []manifests.Library{
		{Name: "org.lwjgl.lwjgl:lwjgl-platform:2.9.4", Natives: map[string]string{"linux": "natives-linux"}},
		{
			Name:    "org.lwjgl.lwjgl:lwjgl-platform:2.9.2",
			Natives: map[string]string{"linux": "natives-linux-${arch}"},
			Downloads: manifests.LibraryDownloads{Classifiers: map[string]*manifests.Artifact{
				"natives-linux-32": {URL: "https://dl.example/natives-32.jar"},
			}},
		},
		{
			Name:    "org.lwjgl.lwjgl:lwjgl-platform:2.9.4",
			URL:     "https://maven.example/",
			Natives: map[string]string{"linux": "natives-linux"},
		},
	}}

	assert.NotPanics(t, func() {
		require.NoError(t, d.DownloadLibraries(context.Background(), v))
	})
	assert.Equal(t, 1, f.total())
	assert.FileExists(t, filepath.Join(layout.VersionNativesDir("1.8.9"), "liblwjgl.so"))
}

func TestDownloadAssetsRejectsEscapingNames(t *testing.T) {
	fx := newFixture(t)
	hash := fx.index.Objects["sound/step.ogg"].Hash
	fx.index.Objects = map[string]manifests.AssetObject{"../../evil": {Hash: hash}}

	d, _ := newTestDownloader(t, fx.fetcher)
	err := d.DownloadAssets(context.Background(), fx.descriptor, fx.index)
	assert.ErrorIs(t, err, launcherr.ErrParse)
}

func TestDownloadClientWithoutDownloadEntry(t *testing.T) {
	d, _ := newTestDownloader(t, newScriptedFetcher())
	err := d.DownloadClient(context.Background(), &manifests.VersionDescriptor{ID: "x"})
	assert.ErrorIs(t, err, launcherr.ErrParse)
}

func counterValue(t *testing.T, reg *prometheus.Registry, name, pipeline string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "pipeline" && lp.GetValue() == pipeline {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}
