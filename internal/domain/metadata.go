package domain

import (
	"encoding/json"
	"fmt"
)

// metadataEnvelope is the persisted form of a Metadata payload: the kind
// discriminator plus the variant's own fields.
type metadataEnvelope struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// EncodeMetadata serializes a metadata variant into its envelope form. A nil
// metadata encodes to nil.
func EncodeMetadata(m Metadata) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode metadata %q: %w", m.Kind(), err)
	}
	return json.Marshal(metadataEnvelope{Kind: m.Kind(), Data: data})
}

// DecodeMetadata reverses EncodeMetadata. Unknown kinds are an error rather
// than being silently dropped; the ledger is an audit trail.
func DecodeMetadata(raw []byte) (Metadata, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var env metadataEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode metadata envelope: %w", err)
	}
	var (
		m   Metadata
		err error
	)
	switch env.Kind {
	case ResolutionMetadata{}.Kind():
		var v ResolutionMetadata
		err = json.Unmarshal(env.Data, &v)
		m = v
	case PauseMetadata{}.Kind():
		var v PauseMetadata
		err = json.Unmarshal(env.Data, &v)
		m = v
	case SessionEndMetadata{}.Kind():
		var v SessionEndMetadata
		err = json.Unmarshal(env.Data, &v)
		m = v
	case SettlementFailureMetadata{}.Kind():
		var v SettlementFailureMetadata
		err = json.Unmarshal(env.Data, &v)
		m = v
	case AdminNoteMetadata{}.Kind():
		var v AdminNoteMetadata
		err = json.Unmarshal(env.Data, &v)
		m = v
	default:
		return nil, fmt.Errorf("unknown metadata kind %q", env.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("decode metadata %q: %w", env.Kind, err)
	}
	return m, nil
}
