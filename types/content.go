package types

import (
	"crypto/ed25519"

	"github.com/nodalync/node/crypto"
)

// Hash aliases crypto.Hash so the rest of the type system doesn't need to
// import crypto directly for the common case.
type Hash = crypto.Hash

// PeerID aliases crypto.PeerID.
type PeerID = crypto.PeerID

// Signature aliases crypto.Signature.
type Signature = crypto.Signature

// ContentType tags an artifact's tier in the provenance lattice (spec.md
// §3.2). L2 is the optional entity-graph extension described in spec.md §9's
// Open Question: always Private, zero-priced, and excluded from
// root_L0L1 — it may feed an L3 as a derived_from input but never becomes a
// payment recipient.
type ContentType uint8

const (
	ContentL0 ContentType = iota
	ContentL1
	ContentL3
	ContentL2 // optional entity-graph extension, spec.md §9
)

func (t ContentType) String() string {
	switch t {
	case ContentL0:
		return "L0"
	case ContentL1:
		return "L1"
	case ContentL3:
		return "L3"
	case ContentL2:
		return "L2"
	default:
		return "unknown"
	}
}

func (t ContentType) Valid() bool {
	return t == ContentL0 || t == ContentL1 || t == ContentL3 || t == ContentL2
}

// Visibility controls access per spec.md §4.4 rule 5.
type Visibility uint8

const (
	VisibilityPrivate Visibility = iota
	VisibilityUnlisted
	VisibilityShared
)

func (v Visibility) String() string {
	switch v {
	case VisibilityPrivate:
		return "private"
	case VisibilityUnlisted:
		return "unlisted"
	case VisibilityShared:
		return "shared"
	default:
		return "unknown"
	}
}

func (v Visibility) Valid() bool {
	return v == VisibilityPrivate || v == VisibilityUnlisted || v == VisibilityShared
}

// Metadata is the descriptive, size-limited part of a manifest (spec.md §3.3).
type Metadata struct {
	Title       string   `cbor:"title"`
	Description string   `cbor:"description,omitempty"`
	Tags        []string `cbor:"tags,omitempty"`
	SizeBytes   uint64   `cbor:"size_bytes"`
	Mime        string   `cbor:"mime,omitempty"`
}

// Currency is fixed to NDL for this protocol version (spec.md §3.3).
const Currency = "NDL"

// Economics is the mutable revenue-tracking block of a manifest.
type Economics struct {
	Price        uint64 `cbor:"price"`
	Currency     string `cbor:"currency"`
	TotalQueries uint64 `cbor:"total_queries"`
	TotalRevenue uint64 `cbor:"total_revenue"`
}

// AccessRules implements spec.md §4.4 rule 5's decision table.
type AccessRules struct {
	Allowlist         []PeerID `cbor:"allowlist,omitempty"`
	Denylist          []PeerID `cbor:"denylist,omitempty"`
	RequireBond       bool     `cbor:"require_bond,omitempty"`
	BondAmount        uint64   `cbor:"bond_amount,omitempty"`
	MaxQueriesPerPeer uint64   `cbor:"max_queries_per_peer,omitempty"`
}

// KeyPair is a convenience bundle used by ops when it needs both halves of an
// identity at once (e.g. signing outgoing messages).
type KeyPair struct {
	Private ed25519.PrivateKey
	Public  ed25519.PublicKey
}
