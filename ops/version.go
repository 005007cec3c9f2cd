package ops

import (
	"github.com/nodalync/node/types"
	"github.com/nodalync/node/wire"
)

// GetVersions returns the local version chain rooted at versionRoot,
// ordered by version.number, spec.md §4.3 get_versions().
func (n *Node) GetVersions(versionRoot types.Hash) ([]types.Manifest, error) {
	return n.store.Manifests().GetVersions(versionRoot)
}

// ListManifests returns locally known manifests matching filter, spec.md
// §4.3 ManifestStore.list(). A thin pass-through exposed at the ops layer so
// a front end never needs to reach past Node into store directly.
func (n *Node) ListManifests(filter types.ManifestFilter) ([]types.Manifest, error) {
	return n.store.Manifests().List(filter)
}

// GetManifest returns a single locally known manifest by hash.
func (n *Node) GetManifest(hash types.Hash) (types.Manifest, error) {
	return n.store.Manifests().Get(hash)
}

// HandleVersionRequest answers a remote VersionRequest with the local
// version chain for the requested root.
func (n *Node) HandleVersionRequest(req wire.VersionRequest) (wire.VersionResponse, error) {
	manifests, err := n.store.Manifests().GetVersions(req.Root)
	if err != nil {
		return wire.VersionResponse{}, err
	}
	if len(manifests) == 0 {
		return wire.VersionResponse{}, types.NewError(types.CodeVersionNotFound, "ops: no versions found for root")
	}
	versions := make([]types.Version, len(manifests))
	for i, mf := range manifests {
		versions[i] = mf.Version
	}
	return wire.VersionResponse{
		Versions:  versions,
		Timestamp: n.now(),
		Sender:    n.Self(),
	}, nil
}
