package cardano

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"os"

	"filippo.io/edwards25519"
	"github.com/Salvionied/apollo/serialization/Key"
	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
)

const (
	EnvelopeTypeSigningKey         = "PaymentSigningKeyShelley_ed25519"
	EnvelopeTypeExtendedSigningKey = "PaymentExtendedSigningKeyShelley_ed25519_bip32"
	EnvelopeTypeVerificationKey    = "PaymentVerificationKeyShelley_ed25519"

	extendedSigningKeySize = 128
)

// TextEnvelope is the JSON key file format written by cardano-cli.
type TextEnvelope struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	CborHex     string `json:"cborHex"`
}

func (e TextEnvelope) payload() (payload []byte, err error) {
	raw, err := hex.DecodeString(e.CborHex)
	if err != nil {
		err = errors.Wrapf(ErrInvalidSigningKey, "cborHex is not hex: %v", err)
		return
	}
	if err = cbor.Unmarshal(raw, &payload); err != nil {
		err = errors.Wrapf(ErrInvalidSigningKey, "cborHex is not a cbor byte string: %v", err)
	}
	return
}

func newTextEnvelope(typ, description string, payload []byte) (env TextEnvelope, err error) {
	raw, err := cbor.Marshal(payload)
	if err != nil {
		err = errors.Wrap(ErrSerialization, err.Error())
		return
	}
	return TextEnvelope{
		Type:        typ,
		Description: description,
		CborHex:     hex.EncodeToString(raw),
	}, nil
}

type VerificationKey []byte

func (v VerificationKey) String() string {
	return hex.EncodeToString(v)
}

// Hash is the blake2b-224 key hash used as the payment credential.
func (v VerificationKey) Hash() ([]byte, error) {
	return Blake2bSum224(v)
}

func (v VerificationKey) Address(network Network) (Address, error) {
	return EncodeAddress(v, network, AddressTypePayment)
}

func (v VerificationKey) Envelope() (TextEnvelope, error) {
	return newTextEnvelope(EnvelopeTypeVerificationKey, "Payment Verification Key", v)
}

// SigningKey holds either a 32 byte ed25519 seed or a 64 byte bip32
// extended secret (kL || kR). Signing itself is done by the transaction
// builder; see Keys.
type SigningKey struct {
	secret   []byte
	extended bool
	public   VerificationKey
}

func NewSigningKeyFromSeed(seed []byte) (*SigningKey, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, errors.Wrapf(ErrInvalidSigningKey, "expected a %d byte seed, got %d", ed25519.SeedSize, len(seed))
	}
	private := ed25519.NewKeyFromSeed(seed)
	return &SigningKey{
		secret: append([]byte{}, seed...),
		public: VerificationKey(private.Public().(ed25519.PublicKey)),
	}, nil
}

// NewExtendedSigningKey accepts the 128 byte cardano-cli extended key
// (kL || kR || public key || chain code). The embedded public key must match
// the one derived from kL.
func NewExtendedSigningKey(key []byte) (*SigningKey, error) {
	if len(key) != extendedSigningKeySize {
		return nil, errors.Wrapf(ErrInvalidSigningKey, "expected a %d byte extended key, got %d", extendedSigningKeySize, len(key))
	}

	wide := make([]byte, 64)
	copy(wide, key[:32])
	scalar, err := new(edwards25519.Scalar).SetUniformBytes(wide)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidSigningKey, err.Error())
	}

	derived := new(edwards25519.Point).ScalarBaseMult(scalar).Bytes()
	if !bytes.Equal(derived, key[64:96]) {
		return nil, errors.Wrap(ErrInvalidSigningKey, "embedded public key does not match extended secret")
	}

	return &SigningKey{
		secret:   append([]byte{}, key[:64]...),
		extended: true,
		public:   VerificationKey(derived),
	}, nil
}

func GenerateSigningKey() (*SigningKey, error) {
	seed := make([]byte, ed25519.SeedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, errors.Wrap(err, "failed to generate random seed")
	}
	return NewSigningKeyFromSeed(seed)
}

// LoadSigningKey reads a signing key envelope from path. A missing file is
// reported as ErrKeyFileNotFound.
func LoadSigningKey(path string) (key *SigningKey, err error) {
	if !FileExists(path) {
		err = errors.Wrapf(ErrKeyFileNotFound, "%s", path)
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		err = errors.Wrapf(ErrInvalidSigningKey, "unable to read %s: %v", path, err)
		return
	}

	return ParseSigningKey(data)
}

func ParseSigningKey(data []byte) (key *SigningKey, err error) {
	env := TextEnvelope{}
	if err = json.Unmarshal(data, &env); err != nil {
		err = errors.Wrapf(ErrInvalidSigningKey, "not a text envelope: %v", err)
		return
	}

	payload, err := env.payload()
	if err != nil {
		return
	}

	switch env.Type {
	case EnvelopeTypeSigningKey:
		return NewSigningKeyFromSeed(payload)
	case EnvelopeTypeExtendedSigningKey:
		return NewExtendedSigningKey(payload)
	default:
		err = errors.Wrapf(ErrInvalidSigningKey, "unsupported envelope type '%s'", env.Type)
		return
	}
}

func (k *SigningKey) VerificationKey() VerificationKey {
	return k.public
}

func (k *SigningKey) Extended() bool {
	return k.extended
}

// Keys returns the key pair in the form the transaction builder signs with.
func (k *SigningKey) Keys() (Key.VerificationKey, Key.SigningKey) {
	return Key.VerificationKey{Payload: append([]byte{}, k.public...)},
		Key.SigningKey{Payload: append([]byte{}, k.secret...)}
}

// Envelope is only available for seed keys.
func (k *SigningKey) Envelope() (TextEnvelope, error) {
	if k.extended {
		return TextEnvelope{}, errors.Wrap(ErrInvalidSigningKey, "extended keys cannot be re-exported")
	}
	return newTextEnvelope(EnvelopeTypeSigningKey, "Payment Signing Key", k.secret)
}
