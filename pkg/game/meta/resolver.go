// Package meta resolves a version identifier into its parsed descriptor
// and asset index, keeping both cached on disk.
package meta

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"limeal.fr/gamepipe/pkg/config"
	"limeal.fr/gamepipe/pkg/connectors"
	"limeal.fr/gamepipe/pkg/game/manifests"
	"limeal.fr/gamepipe/pkg/launcherr"
	"limeal.fr/gamepipe/pkg/telemetry"
	"limeal.fr/gamepipe/pkg/utils"
)

const (
	LatestRelease  = "latest-release"
	LatestSnapshot = "latest-snapshot"
)

type Resolver struct {
	fetcher     connectors.Fetcher
	layout      config.LaunchOptions
	manifestURL string
	logger      *slog.Logger
}

type Option func(*Resolver)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) { r.logger = logger }
}

func WithManifestURL(u string) Option {
	return func(r *Resolver) { r.manifestURL = u }
}

func NewResolver(fetcher connectors.Fetcher, layout config.LaunchOptions, opts ...Option) *Resolver {
	r := &Resolver{
		fetcher:     fetcher,
		layout:      layout,
		manifestURL: config.DefaultManifestURL,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// FetchManifest downloads and parses the index of every known version.
func (r *Resolver) FetchManifest(ctx context.Context) (*manifests.VersionManifest, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "meta.FetchManifest")
	defer span.End()

	data, err := r.fetcher.Fetch(ctx, r.manifestURL)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, launcherr.Fetch("version manifest", err)
	}

	var m manifests.VersionManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, launcherr.Parse("version manifest", err)
	}
	if len(m.Versions) == 0 {
		return nil, launcherr.Parsef("version manifest at %s lists no versions", r.manifestURL)
	}

	r.logger.Debug("fetched version manifest", "url", r.manifestURL, "versions", len(m.Versions))
	return &m, nil
}

// Lookup finds the summary for id, expanding the latest-release and
// latest-snapshot aliases.
func Lookup(m *manifests.VersionManifest, id string) (manifests.VersionSummary, error) {
	switch id {
	case LatestRelease:
		id = m.Latest.Release
	case LatestSnapshot:
		id = m.Latest.Snapshot
	}
	if id == "" {
		return manifests.VersionSummary{}, launcherr.InvalidInputf("empty version id")
	}

	summary, ok := m.Find(id)
	if !ok {
		return manifests.VersionSummary{}, launcherr.InvalidInputf("invalid game version %s", id)
	}
	return summary, nil
}

// ResolveVersion returns the descriptor of id. A cached copy under the
// client directory is reused when it still parses and matches the
// manifest hash; otherwise the descriptor is fetched and cached again.
func (r *Resolver) ResolveVersion(ctx context.Context, m *manifests.VersionManifest, id string) (*manifests.VersionDescriptor, error) {
	summary, err := Lookup(m, id)
	if err != nil {
		return nil, err
	}

	ctx, span := telemetry.Tracer().Start(ctx, "meta.ResolveVersion")
	span.SetAttributes(attribute.String("version.id", summary.ID))
	defer span.End()

	path := r.layout.DescriptorPath(summary.ID)
	data, err := r.readCached(path, summary.SHA1)
	if err != nil {
		return nil, err
	}
	if data != nil {
		d, err := decodeDescriptor(data, summary.ID)
		if err == nil {
			r.logger.Debug("using cached version descriptor", "version", summary.ID, "path", path)
			return d, nil
		}
		r.logger.Warn("cached version descriptor is invalid, fetching again", "version", summary.ID, "error", err)
	}

	data, err = r.fetchVerified(ctx, summary.URL, summary.SHA1, "version descriptor "+summary.ID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	d, err := decodeDescriptor(data, summary.ID)
	if err != nil {
		return nil, err
	}
	if err := utils.WriteFileAtomic(path, data, 0o644); err != nil {
		return nil, launcherr.IO(path, err)
	}

	r.logger.Info("resolved version descriptor", "version", summary.ID, "type", summary.Type)
	return d, nil
}

// FetchAssetIndex returns the asset index referenced by d, cached under
// the assets indexes directory.
func (r *Resolver) FetchAssetIndex(ctx context.Context, d *manifests.VersionDescriptor) (*manifests.AssetIndex, error) {
	ref := d.AssetIndex
	if ref.ID == "" || ref.URL == "" {
		return nil, launcherr.Parsef("descriptor %s has no asset index", d.ID)
	}

	ctx, span := telemetry.Tracer().Start(ctx, "meta.FetchAssetIndex")
	span.SetAttributes(attribute.String("asset_index.id", ref.ID))
	defer span.End()

	path := r.layout.AssetIndexPath(ref.ID)
	data, err := r.readCached(path, ref.SHA1)
	if err != nil {
		return nil, err
	}
	if data != nil {
		idx, err := decodeAssetIndex(data, ref.ID)
		if err == nil {
			return idx, nil
		}
		r.logger.Warn("cached asset index is invalid, fetching again", "index", ref.ID, "error", err)
	}

	data, err = r.fetchVerified(ctx, ref.URL, ref.SHA1, "asset index "+ref.ID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	idx, err := decodeAssetIndex(data, ref.ID)
	if err != nil {
		return nil, err
	}
	if err := utils.WriteFileAtomic(path, data, 0o644); err != nil {
		return nil, launcherr.IO(path, err)
	}

	r.logger.Debug("fetched asset index", "index", ref.ID, "objects", len(idx.Objects))
	return idx, nil
}

// readCached returns the bytes at path when they exist and hash to sha1
// (any content is accepted when sha1 is empty). It returns nil, nil on a
// miss.
func (r *Resolver) readCached(path, sha1 string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, launcherr.IO(path, err)
	}
	if sha1 != "" && !utils.SameHash(utils.BytesSHA1(data), sha1) {
		r.logger.Debug("cached file hash mismatch", "path", path)
		return nil, nil
	}
	return data, nil
}

func (r *Resolver) fetchVerified(ctx context.Context, url, sha1, item string) ([]byte, error) {
	data, err := r.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, launcherr.Fetch(item, err)
	}
	if sha1 != "" && !utils.SameHash(utils.BytesSHA1(data), sha1) {
		return nil, &launcherr.ChecksumError{URL: url, Hash: sha1, Tries: 1}
	}
	return data, nil
}

func decodeDescriptor(data []byte, id string) (*manifests.VersionDescriptor, error) {
	var d manifests.VersionDescriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, launcherr.Parse("version descriptor "+id, err)
	}
	if err := d.Validate(id); err != nil {
		return nil, launcherr.Parse("version descriptor "+id, err)
	}
	return &d, nil
}

func decodeAssetIndex(data []byte, id string) (*manifests.AssetIndex, error) {
	var idx manifests.AssetIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, launcherr.Parse("asset index "+id, err)
	}
	if idx.Objects == nil {
		return nil, launcherr.Parsef("asset index %s has no objects", id)
	}
	return &idx, nil
}
