package cardano

import (
	"crypto/ed25519"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Body of the single transaction in mainnet block 10497579.
const mainnetTxBodyHex = "a40081825820710cb03bdce782b7d8f4e9cd2395dd98036ce9a7f7ed019086816fb6aee806b201018282581d61c0155b37c96884187b00f35eddb8492660ed642b4cb1c7a91193722f1a0013e17582581d618c309901c237ca9bd09f699588c01217efa550816e0d06ceb26291e61a07b87e6d021a0002c7e5031a079f5da7"

func TestTxBody_DecodeMainnet(t *testing.T) {
	raw := HexString(mainnetTxBodyHex).Bytes()

	body := &TxBody{}
	require.NoError(t, StandardCborDecoder.Unmarshal(raw, body))

	require.Len(t, body.Inputs, 1)
	assert.Equal(t, "710cb03bdce782b7d8f4e9cd2395dd98036ce9a7f7ed019086816fb6aee806b2", body.Inputs[0].TxHash.String())
	assert.Equal(t, uint32(1), body.Inputs[0].Index)

	require.Len(t, body.Outputs, 2)
	expected := []struct {
		address string
		amount  uint64
	}{
		{"addr1v8qp2kehe95ggxrmqre4ahdcfynxpmty9dxtr3afzxfhytcfl5f09", 1302901},
		{"addr1vxxrpxgpcgmu4x7sna5etzxqzgt7lf2ss9hq6pkwkf3frestvu8tz", 129531501},
	}
	for i, o := range body.Outputs {
		encoded, err := o.Address.Bech32String(NetworkMainNet)
		require.NoError(t, err)
		assert.Equal(t, expected[i].address, encoded)
		assert.Equal(t, expected[i].amount, o.Amount)
	}

	assert.Equal(t, uint64(182245), body.Fee)
	assert.Equal(t, uint64(127884711), body.Ttl)
	assert.Empty(t, body.AuxiliaryDataHash)

	reencoded, err := body.Cbor()
	require.NoError(t, err)
	assert.Equal(t, raw, reencoded, "deterministic encoding must reproduce the on-chain body")
}

func testTx(t *testing.T, key *SigningKey) *Tx {
	t.Helper()

	addr, err := key.VerificationKey().Address(NetworkPreProd)
	require.NoError(t, err)

	aux, err := RegistrationMetadata(DefaultRegistrationLabel, DefaultVoterRegistration()).Cbor()
	require.NoError(t, err)

	body := &TxBody{
		Inputs:            []TxInput{{TxHash: make([]byte, TxHashSize), Index: 0}},
		Outputs:           []TxOutput{{Address: addr, Amount: 2_000_000}},
		Fee:               180_000,
		Ttl:               7200,
		AuxiliaryDataHash: Blake2bSum256(aux),
	}

	tx, err := NewTx(body, aux)
	require.NoError(t, err)
	return tx
}

// witness signs the transaction id with the RFC 8032 test seed.
func witness(tx *Tx) {
	private := ed25519.NewKeyFromSeed(HexString(testSeedHex).Bytes())
	tx.Witnesses.VKeyWitnesses = append(tx.Witnesses.VKeyWitnesses, VKeyWitness{
		VKey:      VerificationKey(private.Public().(ed25519.PublicKey)),
		Signature: ed25519.Sign(private, tx.Hash()),
	})
}

func TestTx_VerifyWitnesses(t *testing.T) {
	key, err := NewSigningKeyFromSeed(HexString(testSeedHex).Bytes())
	require.NoError(t, err)

	tx := testTx(t, key)
	witness(tx)

	signers, err := tx.VerifyWitnesses()
	require.NoError(t, err)
	require.Len(t, signers, 1)

	keyHash, err := key.VerificationKey().Hash()
	require.NoError(t, err)
	assert.Equal(t, keyHash, signers[0])

	tx.Witnesses.VKeyWitnesses[0].Signature[0] ^= 0x01
	_, err = tx.VerifyWitnesses()
	assert.True(t, errors.Is(err, ErrRejectedByNode))
}

func TestTx_EncodeDecode(t *testing.T) {
	key, err := NewSigningKeyFromSeed(HexString(testSeedHex).Bytes())
	require.NoError(t, err)

	tx := testTx(t, key)
	witness(tx)

	encoded, err := tx.Cbor()
	require.NoError(t, err)
	assert.Equal(t, byte(0x84), encoded[0], "a transaction is a 4 element array")

	decoded, err := DecodeTx(encoded)
	require.NoError(t, err)
	assert.Equal(t, tx.ID(), decoded.ID())
	assert.True(t, decoded.Valid)
	assert.Equal(t, []byte(tx.AuxiliaryData), []byte(decoded.AuxiliaryData))
	assert.Len(t, tx.ID(), 64)

	body, err := decoded.DecodeBody()
	require.NoError(t, err)
	assert.Equal(t, uint64(180_000), body.Fee)
	assert.Equal(t, uint64(2_000_000), body.OutputTotal())

	_, err = decoded.VerifyWitnesses()
	assert.NoError(t, err)

	_, err = DecodeTx([]byte{0xff})
	assert.True(t, errors.Is(err, ErrSerialization))
}

func TestDecodeTx_EraForms(t *testing.T) {
	key, err := NewSigningKeyFromSeed(HexString(testSeedHex).Bytes())
	require.NoError(t, err)

	tx := testTx(t, key)
	witness(tx)

	witnesses, err := CborEncoder.Marshal(tx.Witnesses)
	require.NoError(t, err)

	// [body, witnesses, aux] predates the is_valid flag
	legacy := []byte{0x83}
	legacy = append(legacy, tx.Body...)
	legacy = append(legacy, witnesses...)
	legacy = append(legacy, tx.AuxiliaryData...)

	decoded, err := DecodeTx(legacy)
	require.NoError(t, err)
	assert.True(t, decoded.Valid)
	assert.Equal(t, tx.ID(), decoded.ID())
	assert.Equal(t, []byte(tx.AuxiliaryData), []byte(decoded.AuxiliaryData))
	_, err = decoded.VerifyWitnesses()
	assert.NoError(t, err)

	_, err = DecodeTx([]byte{0x82, 0xa0, 0xa0})
	assert.True(t, errors.Is(err, ErrSerialization))
}

func TestTxOutput_MapForm(t *testing.T) {
	addr, err := DecodeAddress("addr1v8qp2kehe95ggxrmqre4ahdcfynxpmty9dxtr3afzxfhytcfl5f09", NetworkMainNet)
	require.NoError(t, err)

	encoded, err := CborEncoder.Marshal(map[uint64]any{0: []byte(addr), 1: uint64(1302901)})
	require.NoError(t, err)

	output := TxOutput{}
	require.NoError(t, StandardCborDecoder.Unmarshal(encoded, &output))
	assert.Equal(t, addr, output.Address)
	assert.Equal(t, uint64(1302901), output.Amount)
	assert.False(t, output.HasAssets())

	policy := map[string]any{"token": uint64(1)}
	encoded, err = CborEncoder.Marshal(map[uint64]any{
		0: []byte(addr),
		1: []any{uint64(1500000), map[string]any{"policy": policy}},
	})
	require.NoError(t, err)

	output = TxOutput{}
	require.NoError(t, StandardCborDecoder.Unmarshal(encoded, &output))
	assert.Equal(t, uint64(1500000), output.Amount)
	assert.True(t, output.HasAssets())

	encoded, err = CborEncoder.Marshal(map[uint64]any{1: uint64(1)})
	require.NoError(t, err)
	assert.Error(t, StandardCborDecoder.Unmarshal(encoded, &TxOutput{}))
}
