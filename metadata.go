package cardano

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
)

const (
	// DefaultRegistrationLabel identifies voter registration records on chain.
	DefaultRegistrationLabel uint64 = 12012026

	// MaxMetadataStringSize is the ledger limit for a single metadata text
	// value, in bytes.
	MaxMetadataStringSize = 64

	alonzoAuxDataTag = 259
)

type VoterRegistration struct {
	Action    string `yaml:"action" json:"action"`
	VoterName string `yaml:"voter_name" json:"voter_name"`
	Ward      string `yaml:"ward" json:"ward"`
	Status    string `yaml:"status" json:"status"`
}

func DefaultVoterRegistration() VoterRegistration {
	return VoterRegistration{
		Action:    "Voter Registration",
		VoterName: "BlockVoter_Delhi_Final",
		Ward:      "MCD-Ward-42",
		Status:    "Verified",
	}
}

// Fields is the metadatum map for the record. Values longer than
// MaxMetadataStringSize become lists of chunks.
func (v VoterRegistration) Fields() map[string]any {
	return map[string]any{
		"action":     metadataText(v.Action),
		"voter_name": metadataText(v.VoterName),
		"ward":       metadataText(v.Ward),
		"status":     metadataText(v.Status),
	}
}

func metadataText(s string) any {
	if len(s) <= MaxMetadataStringSize {
		return s
	}
	return ChunkString(s, MaxMetadataStringSize)
}

// Metadata is transaction metadata: a map from numeric label to metadatum.
type Metadata map[uint64]any

// RegistrationMetadata builds the single-label payload attached to a
// registration transaction.
func RegistrationMetadata(label uint64, record VoterRegistration) Metadata {
	return Metadata{label: record.Fields()}
}

// Cbor encodes the metadata as Shelley auxiliary data. Encoding is
// deterministic.
func (m Metadata) Cbor() (encoded []byte, err error) {
	encoded, err = CborEncoder.Marshal(map[uint64]any(m))
	if err != nil {
		err = errors.Wrapf(ErrSerialization, "metadata: %v", err)
	}
	return
}

// Hash is the auxiliary data hash committed to in the transaction body.
func (m Metadata) Hash() (hash []byte, err error) {
	encoded, err := m.Cbor()
	if err != nil {
		return
	}
	return Blake2bSum256(encoded), nil
}

// MarshalJSON renders the cardano-cli "no schema" JSON form, labels as
// decimal strings.
func (m Metadata) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(m))
	for label, value := range m {
		out[strconv.FormatUint(label, 10)] = NormalizeMetadatum(value)
	}
	return json.Marshal(out)
}

// DecodeMetadata parses auxiliary data in any of its era forms: a bare
// metadata map, the shelley-ma [metadata, scripts] pair or the alonzo
// tag 259 map.
func DecodeMetadata(auxData []byte) (m Metadata, err error) {
	var raw any
	if err = StandardCborDecoder.Unmarshal(auxData, &raw); err != nil {
		err = errors.Wrapf(ErrSerialization, "auxiliary data: %v", err)
		return
	}

	switch v := raw.(type) {
	case map[any]any:
		return metadataFromMap(v)
	case []any:
		// shelley-ma: [metadata, [scripts]]
		if len(v) > 0 {
			if inner, ok := v[0].(map[any]any); ok {
				return metadataFromMap(inner)
			}
		}
	case cbor.Tag:
		if fields, ok := v.Content.(map[any]any); ok && v.Number == alonzoAuxDataTag {
			if inner, ok := fields[uint64(0)].(map[any]any); ok {
				return metadataFromMap(inner)
			}
			return Metadata{}, nil
		}
	}

	err = errors.Wrapf(ErrSerialization, "unsupported auxiliary data shape %T", raw)
	return
}

func metadataFromMap(in map[any]any) (m Metadata, err error) {
	m = make(Metadata, len(in))
	for k, v := range in {
		label, ok := k.(uint64)
		if !ok {
			err = errors.Wrapf(ErrSerialization, "metadata label %v is not an unsigned integer", k)
			return
		}
		m[label] = v
	}
	return
}

// NormalizeMetadatum converts decoded CBOR values into JSON friendly ones:
// maps get string keys and byte strings become 0x prefixed hex.
func NormalizeMetadatum(v any) any {
	switch x := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[fmt.Sprint(NormalizeMetadatum(k))] = NormalizeMetadatum(val)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[k] = NormalizeMetadatum(val)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = NormalizeMetadatum(val)
		}
		return out
	case []string:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = val
		}
		return out
	case []byte:
		return "0x" + hex.EncodeToString(x)
	default:
		return v
	}
}

// JoinMetadataText reverses metadataText: a chunked list is concatenated.
func JoinMetadataText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []any:
		s := ""
		for _, part := range x {
			s += fmt.Sprint(part)
		}
		return s
	case []string:
		s := ""
		for _, part := range x {
			s += part
		}
		return s
	default:
		return fmt.Sprint(v)
	}
}

// VoterRegistrationFromMetadatum reads a record back from the value stored
// under the registration label.
func VoterRegistrationFromMetadatum(v any) (record VoterRegistration, err error) {
	fields, ok := NormalizeMetadatum(v).(map[string]any)
	if !ok {
		err = errors.Wrapf(ErrSerialization, "registration metadatum is %T, expected a map", v)
		return
	}
	record.Action = JoinMetadataText(fields["action"])
	record.VoterName = JoinMetadataText(fields["voter_name"])
	record.Ward = JoinMetadataText(fields["ward"])
	record.Status = JoinMetadataText(fields["status"])
	return
}
