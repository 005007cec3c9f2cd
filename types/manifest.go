package types

// Manifest is the complete typed metadata record for a content artifact,
// spec.md §3.3. All fields are frozen at creation except the ones listed
// under Mutable below.
type Manifest struct {
	Hash        Hash        `cbor:"hash"`
	ContentType ContentType `cbor:"content_type"`
	Owner       PeerID      `cbor:"owner"`
	Version     Version     `cbor:"version"`
	Visibility  Visibility  `cbor:"visibility"`
	Access      AccessRules `cbor:"access"`
	Metadata    Metadata    `cbor:"metadata"`
	Economics   Economics   `cbor:"economics"`
	Provenance  Provenance  `cbor:"provenance"`
	CreatedAt   int64       `cbor:"created_at"`
	UpdatedAt   int64       `cbor:"updated_at"`
}

// VersionRoot is the stable identifier of this manifest's version chain.
func (m Manifest) VersionRoot() Hash { return m.Version.Root }

// L1Summary is the extracted-mentions summary produced by extract_l1,
// spec.md §4.6.
type L1Summary struct {
	L0Hash        Hash     `cbor:"l0_hash"`
	MentionCount  int      `cbor:"mention_count"`
	Preview       []Mention `cbor:"preview"`        // up to 5
	PrimaryTopics []string  `cbor:"primary_topics"` // up to 5
	Summary       string    `cbor:"summary"`        // <=500 chars
}

// MentionClassification tags what kind of atomic fact a Mention records,
// spec.md §6.5.
type MentionClassification uint8

const (
	ClaimMention MentionClassification = iota
	StatisticMention
	DefinitionMention
	ObservationMention
	MethodMention
	ResultMention
)

// MentionConfidence distinguishes facts the extractor read verbatim from
// ones it inferred, spec.md §6.5.
type MentionConfidence uint8

const (
	ConfidenceExplicit MentionConfidence = iota
	ConfidenceInferred
)

// SourceLocation pinpoints where in the source document a Mention was found.
type SourceLocation struct {
	LocationType string `cbor:"location_type"`
	Reference    string `cbor:"reference"`
	Quote        string `cbor:"quote"` // <=500 chars
}

// Mention is one atomic fact extracted from an L0 document by the pluggable
// extractor, spec.md §6.5.
type Mention struct {
	ID             Hash                  `cbor:"id"`
	Content        string                `cbor:"content"` // <=1000 chars
	SourceLocation SourceLocation        `cbor:"source_location"`
	Classification MentionClassification `cbor:"classification"`
	Confidence     MentionConfidence     `cbor:"confidence"`
	Entities       []string              `cbor:"entities,omitempty"`
}

// ManifestFilter narrows ManifestStore.List results, spec.md §4.3.
type ManifestFilter struct {
	Visibility     *Visibility
	ContentType    *ContentType
	CreatedBefore  *int64
	CreatedAfter   *int64
	Limit          int
	Offset         int
}
