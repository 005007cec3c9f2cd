package wire

import (
	"fmt"
	"sync"

	"github.com/fxamacker/cbor/v2"

	"github.com/nodalync/node/crypto"
)

// canonicalMode is the deterministic structured-binary encoder of spec.md
// §4.2/§6.1: sorted map keys, minimum-width integers, no indefinite-length
// items. fxamacker/cbor's canonical options give us this directly instead of
// a hand-rolled encoder — see DESIGN.md.
var canonicalMode cbor.EncMode

var decMode cbor.DecMode

func init() {
	opts := cbor.CanonicalEncOptions()
	m, err := opts.EncMode()
	if err != nil {
		panic(fmt.Errorf("wire: build canonical encoder: %w", err))
	}
	canonicalMode = m

	dopts := cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyEnforcedAPF,
		IndefLength: cbor.IndefLengthForbidden,
	}
	dm, err := dopts.DecMode()
	if err != nil {
		panic(fmt.Errorf("wire: build decoder: %w", err))
	}
	decMode = dm
}

// MarshalPayload deterministically encodes v (a message payload struct) to
// bytes. Encoding the same value twice always yields byte-identical output.
func MarshalPayload(v interface{}) ([]byte, error) {
	b, err := canonicalMode.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("wire: marshal payload: %w", err)
	}
	return b, nil
}

// UnmarshalPayload decodes bytes into v, rejecting indefinite-length items
// and duplicate map keys. Unknown fields are ignored (forward
// compatibility, spec.md §6.1) since cbor.Unmarshal does this by default for
// fields absent from the Go struct.
func UnmarshalPayload(data []byte, v interface{}) error {
	if err := decMode.Unmarshal(data, v); err != nil {
		return fmt.Errorf("wire: unmarshal payload: %w", err)
	}
	return nil
}

// prototypes maps each wire Type to a factory returning a fresh pointer to
// its registered Go type, so generic dispatch code (NewPayload) can decode
// without a type switch at every call site.
var prototypes sync.Map // map[Type]func() interface{}

func registerPrototype(t Type, factory func() interface{}) {
	prototypes.Store(t, factory)
}

// NewPayload allocates the zero value of the payload type registered for t.
// Returns false if t is unrecognized.
func NewPayload(t Type) (interface{}, bool) {
	v, ok := prototypes.Load(t)
	if !ok {
		return nil, false
	}
	return v.(func() interface{})(), true
}

// EncodeMessage is the common ops/net path: marshal payload, build the
// envelope (signature left zero), sign it, and re-encode with the real
// signature.
func EncodeMessage(typ Type, payload interface{}, sign func(msg []byte) crypto.Signature) ([]byte, error) {
	body, err := MarshalPayload(payload)
	if err != nil {
		return nil, err
	}
	env := Envelope{Version: ProtocolVersion, Type: typ, Payload: body}
	hash := HashForSigning(env)
	env.Signature = sign(hash[:])
	return EncodeEnvelope(env), nil
}
