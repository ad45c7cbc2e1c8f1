package cardano

import (
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RFC 8032 test vector 1
const (
	testSeedHex   = "9d61b19deffd5a60ba844af492ec2cc44449c5697b326919703bac031cae7f60"
	testPublicHex = "d75a980182b10ab7d54bfed3c964073a0ee172f3daa62325af021a68f707511a"
)

func writeTestKey(t *testing.T, envelopeType, cborHex string) string {
	t.Helper()

	data, err := json.Marshal(TextEnvelope{
		Type:        envelopeType,
		Description: "Payment Signing Key",
		CborHex:     cborHex,
	})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "test.skey")
	require.NoError(t, os.WriteFile(path, data, 0600))
	return path
}

func testExtendedKey(t *testing.T) []byte {
	t.Helper()

	seed := HexString(testSeedHex).Bytes()
	digest := sha512.Sum512(seed)
	digest[0] &= 248
	digest[31] &= 127
	digest[31] |= 64

	key := append([]byte{}, digest[:]...)
	key = append(key, HexString(testPublicHex).Bytes()...)
	key = append(key, make([]byte, 32)...)
	return key
}

func TestLoadSigningKey_Missing(t *testing.T) {
	_, err := LoadSigningKey(filepath.Join(t.TempDir(), "winning_voter.skey"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrKeyFileNotFound))
	assert.Equal(t, KindPrecondition, KindOf(err))
}

func TestLoadSigningKey_Seed(t *testing.T) {
	path := writeTestKey(t, EnvelopeTypeSigningKey, "5820"+testSeedHex)

	key, err := LoadSigningKey(path)
	require.NoError(t, err)
	assert.False(t, key.Extended())
	assert.Equal(t, testPublicHex, key.VerificationKey().String())

	vkey, skey := key.Keys()
	assert.Equal(t, testPublicHex, hex.EncodeToString(vkey.Payload))
	assert.Equal(t, testSeedHex, hex.EncodeToString(skey.Payload))

	// the payloads are copies
	skey.Payload[0] ^= 0xff
	_, again := key.Keys()
	assert.Equal(t, testSeedHex, hex.EncodeToString(again.Payload))
}

func TestLoadSigningKey_Extended(t *testing.T) {
	extended := testExtendedKey(t)
	path := writeTestKey(t, EnvelopeTypeExtendedSigningKey, "5880"+hex.EncodeToString(extended))

	key, err := LoadSigningKey(path)
	require.NoError(t, err)
	assert.True(t, key.Extended())
	assert.Equal(t, testPublicHex, key.VerificationKey().String())

	// the builder signs with kL || kR, the public key comes from kL
	vkey, skey := key.Keys()
	assert.Equal(t, testPublicHex, hex.EncodeToString(vkey.Payload))
	assert.Equal(t, extended[:64], skey.Payload)

	_, err = key.Envelope()
	assert.True(t, errors.Is(err, ErrInvalidSigningKey))
}

func TestNewExtendedSigningKey_PublicKeyMismatch(t *testing.T) {
	extended := testExtendedKey(t)
	extended[64] ^= 0xff

	_, err := NewExtendedSigningKey(extended)
	assert.True(t, errors.Is(err, ErrInvalidSigningKey))
}

func TestNewExtendedSigningKey_MalformedReturnsError(t *testing.T) {
	for _, size := range []int{0, 32, 64, 96, 127, 129} {
		var err error
		assert.NotPanics(t, func() {
			_, err = NewExtendedSigningKey(make([]byte, size))
		}, "%d bytes", size)
		assert.True(t, errors.Is(err, ErrInvalidSigningKey), "%d bytes: %v", size, err)
	}

	// an all zero secret derives the identity point, never the zero key
	var err error
	assert.NotPanics(t, func() {
		_, err = NewExtendedSigningKey(make([]byte, 128))
	})
	assert.True(t, errors.Is(err, ErrInvalidSigningKey), "%v", err)
}

func TestParseSigningKey_Invalid(t *testing.T) {
	testCases := []struct {
		name string
		data string
	}{
		{"not json", "winning voter"},
		{"bad hex", `{"type":"PaymentSigningKeyShelley_ed25519","cborHex":"zz"}`},
		{"not a byte string", `{"type":"PaymentSigningKeyShelley_ed25519","cborHex":"01"}`},
		{"short seed", `{"type":"PaymentSigningKeyShelley_ed25519","cborHex":"4401020304"}`},
		{"unsupported type", `{"type":"StakeSigningKeyShelley_ed25519","cborHex":"5820` + testSeedHex + `"}`},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			_, err := ParseSigningKey([]byte(testCase.data))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidSigningKey))
			assert.Equal(t, KindPrecondition, KindOf(err))
		})
	}
}

func TestSigningKey_EnvelopeRoundTrip(t *testing.T) {
	key, err := GenerateSigningKey()
	require.NoError(t, err)

	env, err := key.Envelope()
	require.NoError(t, err)
	assert.Equal(t, EnvelopeTypeSigningKey, env.Type)
	assert.Regexp(t, "^5820[0-9a-f]{64}$", env.CborHex)

	data, err := json.Marshal(env)
	require.NoError(t, err)

	parsed, err := ParseSigningKey(data)
	require.NoError(t, err)
	assert.Equal(t, key.VerificationKey(), parsed.VerificationKey())

	vkey, err := key.VerificationKey().Envelope()
	require.NoError(t, err)
	assert.Equal(t, EnvelopeTypeVerificationKey, vkey.Type)
	assert.Equal(t, "5820"+key.VerificationKey().String(), vkey.CborHex)
}
