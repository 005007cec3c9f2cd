package ops

import (
	"context"
	"strings"

	"github.com/nodalync/node/types"
	"github.com/nodalync/node/valid"
	"github.com/nodalync/node/wire"
)

// joinMentionsTruncated concatenates mention contents with ". " separators,
// cutting the result at maxLen chars (spec.md §4.6's "≤500-char summary").
func joinMentionsTruncated(mentions []types.Mention, maxLen int) string {
	var b strings.Builder
	for i, m := range mentions {
		if i > 0 {
			b.WriteString(". ")
		}
		b.WriteString(m.Content)
		if b.Len() >= maxLen {
			break
		}
	}
	out := b.String()
	if len(out) > maxLen {
		out = out[:maxLen]
	}
	return out
}

// Create builds a new artifact, spec.md §4.6 create(). L3 is rejected here;
// derived artifacts go through Derive. The result starts Private and
// zero-priced, version 1 of its own chain, with a self-referential
// provenance root.
//
// l0Source is only meaningful for ContentL1: it names the L0 artifact these
// facts were extracted from (spec.md §3.5's "L1: derived_from.len()==1").
// It must be the zero hash for L0/L2.
func (n *Node) Create(contentType types.ContentType, data []byte, meta types.Metadata, l0Source types.Hash) (types.Manifest, error) {
	if contentType == types.ContentL3 {
		return types.Manifest{}, types.NewError(types.CodeInvalidManifest, "ops: create does not accept L3, use Derive")
	}
	var l0Manifest *types.Manifest
	if contentType == types.ContentL1 {
		if l0Source.IsZero() {
			return types.Manifest{}, types.NewError(types.CodeInvalidProvenance, "ops: L1 content requires its L0 source")
		}
		mf, err := n.store.Manifests().Get(l0Source)
		if err != nil {
			return types.Manifest{}, err
		}
		l0Manifest = &mf
	} else if !l0Source.IsZero() {
		return types.Manifest{}, types.NewError(types.CodeInvalidProvenance, "ops: only L1 content takes an L0 source")
	}

	hash, err := n.store.Content().Store(data)
	if err != nil {
		return types.Manifest{}, err
	}

	now := n.now()
	meta.SizeBytes = uint64(len(data))

	mf := types.Manifest{
		Hash:        hash,
		ContentType: contentType,
		Owner:       n.Self(),
		Version:     types.Version{Number: 1, Root: hash, Timestamp: now},
		Visibility:  types.VisibilityPrivate,
		Metadata:    meta,
		Economics:   types.Economics{Price: 0, Currency: types.Currency},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if contentType != types.ContentL2 {
		mf.Provenance = types.Provenance{
			RootL0L1: []types.ProvenanceEntry{{
				Hash:                   hash,
				Owner:                  mf.Owner,
				VisibilityAtDerivation: mf.Visibility,
				Weight:                 1,
			}},
		}
	}
	var sources []types.Manifest
	if l0Manifest != nil {
		mf.Provenance.DerivedFrom = []types.Hash{l0Source}
		mf.Provenance.Depth = 1
		sources = []types.Manifest{*l0Manifest}
	}

	if err := valid.CheckContent(mf, data); err != nil {
		return types.Manifest{}, err
	}
	if err := valid.CheckVersion(mf.Version, mf.Hash, nil); err != nil {
		return types.Manifest{}, err
	}
	if err := valid.CheckProvenance(mf, sources); err != nil {
		return types.Manifest{}, err
	}

	if err := n.store.Content().StoreVerified(hash, data); err != nil {
		return types.Manifest{}, err
	}
	if err := n.store.Manifests().Put(mf); err != nil {
		return types.Manifest{}, err
	}
	if err := n.store.Provenance().Add(hash, mf.Provenance.DerivedFrom, mf.Provenance.RootL0L1); err != nil {
		return types.Manifest{}, err
	}
	return mf, nil
}

// ExtractL1 runs the configured Extractor over an L0 artifact's bytes and
// stores the resulting L1Summary, spec.md §4.6 extract_l1().
func (n *Node) ExtractL1(hash types.Hash) (types.L1Summary, error) {
	mf, err := n.store.Manifests().Get(hash)
	if err != nil {
		return types.L1Summary{}, err
	}
	if mf.ContentType != types.ContentL0 {
		return types.L1Summary{}, types.NewError(types.CodeInvalidManifest, "ops: extract_l1 requires an L0 artifact")
	}
	data, err := n.store.Content().Load(hash)
	if err != nil {
		return types.L1Summary{}, err
	}

	mentions, err := func() (ms []types.Mention, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = types.NewError(types.CodeInternalError, "ops: extractor panicked")
			}
		}()
		return n.extractor.Extract(data, mf.Metadata.Mime)
	}()
	if err != nil {
		return types.L1Summary{}, fmtTxErr("extract_l1", err)
	}

	summary := types.L1Summary{
		L0Hash:       hash,
		MentionCount: len(mentions),
	}
	if len(mentions) > 5 {
		summary.Preview = mentions[:5]
	} else {
		summary.Preview = mentions
	}
	topics := make(map[string]bool)
	for _, m := range mentions {
		for _, e := range m.Entities {
			if len(topics) >= 5 {
				break
			}
			topics[e] = true
		}
	}
	for t := range topics {
		summary.PrimaryTopics = append(summary.PrimaryTopics, t)
		if len(summary.PrimaryTopics) >= 5 {
			break
		}
	}
	summary.Summary = joinMentionsTruncated(mentions, 500)

	if err := n.store.L1Summaries().Put(summary); err != nil {
		return types.L1Summary{}, err
	}
	return summary, nil
}

// Publish updates a manifest's visibility/price/access, announcing to the
// overlay when it becomes Shared, spec.md §4.6 publish().
func (n *Node) Publish(ctx context.Context, hash types.Hash, visibility types.Visibility, price uint64, access *types.AccessRules) (types.Manifest, error) {
	mf, err := n.store.Manifests().Get(hash)
	if err != nil {
		return types.Manifest{}, err
	}
	if mf.Owner != n.Self() {
		return types.Manifest{}, types.NewError(types.CodeAccessDenied, "ops: only the owner may publish")
	}
	if mf.ContentType == types.ContentL2 {
		return types.Manifest{}, types.NewError(types.CodeInvalidManifest, "ops: L2 content cannot be published")
	}
	if price < types.MinPrice || price > types.MaxPrice {
		return types.Manifest{}, types.NewError(types.CodeInvalidManifest, "ops: price out of bounds")
	}

	mf.Visibility = visibility
	mf.Economics.Price = price
	if access != nil {
		mf.Access = *access
	}
	mf.UpdatedAt = n.now()

	if err := valid.CheckManifestMetadata(mf); err != nil {
		return types.Manifest{}, err
	}

	if err := n.store.Manifests().Put(mf); err != nil {
		return types.Manifest{}, err
	}

	if visibility == types.VisibilityShared {
		l1, _ := n.store.L1Summaries().Get(hash)
		var l1ptr *types.L1Summary
		if l1.L0Hash == hash {
			l1ptr = &l1
		}
		payload := wire.AnnouncePayload{
			Hash:        hash,
			ContentType: mf.ContentType,
			Title:       mf.Metadata.Title,
			L1Summary:   l1ptr,
			Price:       mf.Economics.Price,
			Timestamp:   n.now(),
			Sender:      n.Self(),
		}
		if err := withRetry(ctx, func(ctx context.Context) error {
			return n.overlay.DHTAnnounce(ctx, hash, payload)
		}); err != nil {
			return types.Manifest{}, err
		}
	}
	return mf, nil
}

// Unpublish sets a manifest Private and withdraws any DHT announcement,
// spec.md §4.6 unpublish().
func (n *Node) Unpublish(ctx context.Context, hash types.Hash) error {
	mf, err := n.store.Manifests().Get(hash)
	if err != nil {
		return err
	}
	if mf.Owner != n.Self() {
		return types.NewError(types.CodeAccessDenied, "ops: only the owner may unpublish")
	}
	wasShared := mf.Visibility == types.VisibilityShared

	mf.Visibility = types.VisibilityPrivate
	mf.UpdatedAt = n.now()
	if err := n.store.Manifests().Put(mf); err != nil {
		return err
	}

	if wasShared {
		return withRetry(ctx, func(ctx context.Context) error {
			return n.overlay.DHTRemove(ctx, hash)
		})
	}
	return nil
}

// Update builds the next version in oldHash's chain over newContent,
// spec.md §4.6 update().
func (n *Node) Update(oldHash types.Hash, newContent []byte) (types.Manifest, error) {
	prev, err := n.store.Manifests().Get(oldHash)
	if err != nil {
		return types.Manifest{}, err
	}
	if prev.Owner != n.Self() {
		return types.Manifest{}, types.NewError(types.CodeAccessDenied, "ops: only the owner may update")
	}

	newHash, err := n.store.Content().Store(newContent)
	if err != nil {
		return types.Manifest{}, err
	}

	now := n.now()
	prevHashCopy := prev.Hash
	mf := prev
	mf.Hash = newHash
	mf.Metadata.SizeBytes = uint64(len(newContent))
	mf.Version = types.Version{
		Number:    prev.Version.Number + 1,
		Previous:  &prevHashCopy,
		Root:      prev.Version.Root,
		Timestamp: now,
	}
	mf.CreatedAt = now
	mf.UpdatedAt = now
	// provenance carries over unchanged except its self-root, which must now
	// point at the new hash for L0/L1 artifacts.
	if mf.ContentType == types.ContentL0 || mf.ContentType == types.ContentL1 {
		mf.Provenance.RootL0L1 = []types.ProvenanceEntry{{
			Hash:                   newHash,
			Owner:                  mf.Owner,
			VisibilityAtDerivation: mf.Visibility,
			Weight:                 1,
		}}
	}

	if err := valid.CheckContent(mf, newContent); err != nil {
		return types.Manifest{}, err
	}
	if err := valid.CheckVersion(mf.Version, mf.Hash, &prev); err != nil {
		return types.Manifest{}, err
	}

	var sources []types.Manifest
	for _, parentHash := range mf.Provenance.DerivedFrom {
		src, err := n.store.Manifests().Get(parentHash)
		if err != nil {
			return types.Manifest{}, err
		}
		sources = append(sources, src)
	}
	if err := valid.CheckProvenance(mf, sources); err != nil {
		return types.Manifest{}, err
	}

	if err := n.store.Content().StoreVerified(newHash, newContent); err != nil {
		return types.Manifest{}, err
	}
	if err := n.store.Manifests().Put(mf); err != nil {
		return types.Manifest{}, err
	}
	if err := n.store.Provenance().Add(newHash, mf.Provenance.DerivedFrom, mf.Provenance.RootL0L1); err != nil {
		return types.Manifest{}, err
	}
	return mf, nil
}

// Derive builds an L3 insight from one or more sources the caller must
// already own or have paid for (proven by cache presence), spec.md §4.6
// derive().
func (n *Node) Derive(sources []types.Hash, insight []byte, meta types.Metadata) (types.Manifest, error) {
	if len(sources) == 0 {
		return types.Manifest{}, types.NewError(types.CodeInvalidProvenance, "ops: derive requires at least one source")
	}

	sourceManifests := make([]types.Manifest, 0, len(sources))
	sourceProv := make([]types.Provenance, 0, len(sources))
	for _, h := range sources {
		mf, err := n.store.Manifests().Get(h)
		if err != nil {
			return types.Manifest{}, err
		}
		if mf.Owner != n.Self() && !n.store.Cache().IsCached(h) {
			return types.Manifest{}, types.NewError(types.CodeAccessDenied, "ops: source must be locally owned or previously paid for")
		}
		sourceManifests = append(sourceManifests, mf)
		sourceProv = append(sourceProv, mf.Provenance)
	}

	hash, err := n.store.Content().Store(insight)
	if err != nil {
		return types.Manifest{}, err
	}

	now := n.now()
	meta.SizeBytes = uint64(len(insight))
	mf := types.Manifest{
		Hash:        hash,
		ContentType: types.ContentL3,
		Owner:       n.Self(),
		Version:     types.Version{Number: 1, Root: hash, Timestamp: now},
		Visibility:  types.VisibilityPrivate,
		Metadata:    meta,
		Economics:   types.Economics{Price: 0, Currency: types.Currency},
		Provenance: types.Provenance{
			RootL0L1:    types.MergeRoots(sourceProv...),
			DerivedFrom: sources,
			Depth:       types.MaxDepth(sourceProv...) + 1,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := valid.CheckContent(mf, insight); err != nil {
		return types.Manifest{}, err
	}
	if err := valid.CheckVersion(mf.Version, mf.Hash, nil); err != nil {
		return types.Manifest{}, err
	}
	if err := valid.CheckProvenance(mf, sourceManifests); err != nil {
		return types.Manifest{}, err
	}

	if err := n.store.Content().StoreVerified(hash, insight); err != nil {
		return types.Manifest{}, err
	}
	if err := n.store.Manifests().Put(mf); err != nil {
		return types.Manifest{}, err
	}
	if err := n.store.Provenance().Add(hash, sources, mf.Provenance.RootL0L1); err != nil {
		return types.Manifest{}, err
	}
	return mf, nil
}

// Preview is the free operation: load a manifest and its L1 summary if one
// exists, spec.md §4.6 preview().
func (n *Node) Preview(hash types.Hash) (types.Manifest, *types.L1Summary, error) {
	mf, err := n.store.Manifests().Get(hash)
	if err != nil {
		return types.Manifest{}, nil, err
	}
	summary, err := n.store.L1Summaries().Get(hash)
	if err != nil {
		return mf, nil, nil
	}
	return mf, &summary, nil
}

// HandlePreviewRequest answers a remote PreviewRequest with the local
// manifest and its L1 summary if any, gated by the same access rules a paid
// query would apply (spec.md §4.4 rule 5): Private content is never
// returned to anyone but its owner.
func (n *Node) HandlePreviewRequest(req wire.PreviewRequest) (wire.PreviewResponse, error) {
	mf, summary, err := n.Preview(req.Hash)
	if err != nil {
		return wire.PreviewResponse{}, err
	}
	if mf.Owner != req.Sender {
		if err := valid.CheckAccess(mf, req.Sender, 0); err != nil {
			return wire.PreviewResponse{}, err
		}
	}
	return wire.PreviewResponse{
		Manifest:  mf,
		L1Summary: summary,
		Timestamp: n.now(),
		Sender:    n.Self(),
	}, nil
}
