package manifests

import "fmt"

type AssetIndex struct {
	Objects        map[string]AssetObject `json:"objects"`
	Virtual        bool                   `json:"virtual,omitempty"`
	MapToResources bool                   `json:"map_to_resources,omitempty"`
}

type AssetObject struct {
	Hash string `json:"hash"`
	Size int64  `json:"size"`
}

// ObjectPath is the object's location below the assets objects directory.
func (o AssetObject) ObjectPath() (string, error) {
	if len(o.Hash) < 2 {
		return "", fmt.Errorf("invalid asset hash %q", o.Hash)
	}
	return o.Hash[:2] + "/" + o.Hash, nil
}

// NeedsLegacyCopy reports whether objects must also be mirrored by name.
func (i *AssetIndex) NeedsLegacyCopy(assetsTag string) bool {
	return assetsTag == LegacyAssets || i.Virtual || i.MapToResources
}
