package meta

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"limeal.fr/gamepipe/pkg/config"
	"limeal.fr/gamepipe/pkg/game/manifests"
	"limeal.fr/gamepipe/pkg/launcherr"
	"limeal.fr/gamepipe/pkg/utils"
)

type fakeFetcher struct {
	mu    sync.Mutex
	files map[string][]byte
	calls map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{files: map[string][]byte{}, calls: map[string]int{}}
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[url]++
	data, ok := f.files[url]
	if !ok {
		return nil, fmt.Errorf("GET %s: status code: 404", url)
	}
	return data, nil
}

func (f *fakeFetcher) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

const (
	manifestURL   = "https://meta.example/version_manifest.json"
	descriptorURL = "https://meta.example/1.20.1.json"
	indexURL      = "https://meta.example/indexes/5.json"
)

var descriptorJSON = []byte(`{
  "id": "1.20.1",
  "mainClass": "net.minecraft.client.main.Main",
  "type": "release",
  "assets": "5",
  "assetIndex": {"id": "5", "url": "` + indexURL + `"},
  "arguments": {"game": ["--username", "${auth_player_name}"], "jvm": ["-cp", "${classpath}"]},
  "libraries": []
}`)

var indexJSON = []byte(`{"objects": {"icons/icon.png": {"hash": "bdf48ef6b5d0d23bbb02e17d04865216179f510a", "size": 3}}}`)

func manifestJSON(descriptorSHA1 string) []byte {
	return []byte(`{
  "latest": {"release": "1.20.1", "snapshot": "23w31a"},
  "versions": [
    {"id": "23w31a", "type": "snapshot", "url": "https://meta.example/23w31a.json"},
    {"id": "1.20.1", "type": "release", "url": "` + descriptorURL + `", "sha1": "` + descriptorSHA1 + `"}
  ]
}`)
}

func newTestResolver(t *testing.T, f *fakeFetcher) (*Resolver, config.LaunchOptions) {
	t.Helper()
	layout, err := config.NewLaunchOptions(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, layout.EnsureDirs())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewResolver(f, layout, WithManifestURL(manifestURL), WithLogger(logger)), layout
}

func TestFetchManifest(t *testing.T) {
	f := newFakeFetcher()
	f.files[manifestURL] = manifestJSON(utils.BytesSHA1(descriptorJSON))
	r, _ := newTestResolver(t, f)

	m, err := r.FetchManifest(context.Background())
	require.NoError(t, err)
	assert.Len(t, m.Versions, 2)
	assert.Equal(t, []string{"1.20.1"}, m.IDs(true))
	assert.Equal(t, []string{"23w31a", "1.20.1"}, m.IDs(false))
}

func TestFetchManifestErrors(t *testing.T) {
	f := newFakeFetcher()
	r, _ := newTestResolver(t, f)

	_, err := r.FetchManifest(context.Background())
	assert.ErrorIs(t, err, launcherr.ErrFetch)

	f.files[manifestURL] = []byte(`{"versions": [`)
	_, err = r.FetchManifest(context.Background())
	assert.ErrorIs(t, err, launcherr.ErrParse)
}

func TestResolveUnknownVersionFetchesNothing(t *testing.T) {
	f := newFakeFetcher()
	r, _ := newTestResolver(t, f)

	var m manifests.VersionManifest
	require.NoError(t, json.Unmarshal(manifestJSON(""), &m))

	_, err := r.ResolveVersion(context.Background(), &m, "0.0.0-nope")
	assert.ErrorIs(t, err, launcherr.ErrInvalidInput)
	assert.Equal(t, 0, f.total())
}

func TestResolveVersionCachesDescriptor(t *testing.T) {
	f := newFakeFetcher()
	f.files[descriptorURL] = descriptorJSON
	r, layout := newTestResolver(t, f)

	var m manifests.VersionManifest
	require.NoError(t, json.Unmarshal(manifestJSON(utils.BytesSHA1(descriptorJSON)), &m))

	d, err := r.ResolveVersion(context.Background(), &m, "1.20.1")
	require.NoError(t, err)
	assert.Equal(t, "1.20.1", d.ID)
	assert.FileExists(t, layout.DescriptorPath("1.20.1"))
	assert.Equal(t, 1, f.calls[descriptorURL])

	// second resolve is served from disk
	delete(f.files, descriptorURL)
	d, err = r.ResolveVersion(context.Background(), &m, LatestRelease)
	require.NoError(t, err)
	assert.Equal(t, "1.20.1", d.ID)
	assert.Equal(t, 1, f.calls[descriptorURL])
}

func TestResolveVersionRefetchesCorruptCache(t *testing.T) {
	f := newFakeFetcher()
	f.files[descriptorURL] = descriptorJSON
	r, layout := newTestResolver(t, f)

	path := layout.DescriptorPath("1.20.1")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o644))

	var m manifests.VersionManifest
	require.NoError(t, json.Unmarshal(manifestJSON(""), &m))

	d, err := r.ResolveVersion(context.Background(), &m, "1.20.1")
	require.NoError(t, err)
	assert.Equal(t, "net.minecraft.client.main.Main", d.MainClass)
	assert.Equal(t, 1, f.calls[descriptorURL])

	onDisk, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, descriptorJSON, onDisk)
}

func TestResolveVersionRejectsBadDescriptors(t *testing.T) {
	f := newFakeFetcher()
	r, layout := newTestResolver(t, f)

	var m manifests.VersionManifest
	require.NoError(t, json.Unmarshal(manifestJSON("0000000000000000000000000000000000000000"), &m))

	f.files[descriptorURL] = descriptorJSON
	_, err := r.ResolveVersion(context.Background(), &m, "1.20.1")
	assert.ErrorIs(t, err, launcherr.ErrChecksum)
	assert.NoFileExists(t, layout.DescriptorPath("1.20.1"))

	require.NoError(t, json.Unmarshal(manifestJSON(""), &m))
	f.files[descriptorURL] = []byte(`{"id": "1.19", "mainClass": "M", "minecraftArguments": "x", "libraries": []}`)
	_, err = r.ResolveVersion(context.Background(), &m, "1.20.1")
	assert.ErrorIs(t, err, launcherr.ErrParse)

	delete(f.files, descriptorURL)
	_, err = r.ResolveVersion(context.Background(), &m, "1.20.1")
	var fetchErr *launcherr.FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, "version descriptor 1.20.1", fetchErr.Item)
}

func TestFetchAssetIndex(t *testing.T) {
	f := newFakeFetcher()
	f.files[indexURL] = indexJSON
	r, layout := newTestResolver(t, f)

	var d manifests.VersionDescriptor
	require.NoError(t, json.Unmarshal(descriptorJSON, &d))
	d.AssetIndex.SHA1 = utils.BytesSHA1(indexJSON)

	idx, err := r.FetchAssetIndex(context.Background(), &d)
	require.NoError(t, err)
	require.Contains(t, idx.Objects, "icons/icon.png")
	assert.FileExists(t, layout.AssetIndexPath("5"))

	_, err = r.FetchAssetIndex(context.Background(), &d)
	require.NoError(t, err)
	assert.Equal(t, 1, f.calls[indexURL])

	d.AssetIndex.URL = ""
	_, err = r.FetchAssetIndex(context.Background(), &d)
	assert.ErrorIs(t, err, launcherr.ErrParse)
}
