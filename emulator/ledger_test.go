package emulator

import (
	"crypto/ed25519"
	"math"
	"testing"

	. "github.com/alexdcox/cardano-uer"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testWallet struct {
	key     *SigningKey
	private ed25519.PrivateKey
	address Address
	bech32  string
}

func newTestWallet(t *testing.T) *testWallet {
	t.Helper()

	_, private, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	key, err := NewSigningKeyFromSeed(private.Seed())
	require.NoError(t, err)
	addr, err := key.VerificationKey().Address(NetworkPrivateNet)
	require.NoError(t, err)
	encoded, err := addr.Bech32String(NetworkPrivateNet)
	require.NoError(t, err)

	return &testWallet{key: key, private: private, address: addr, bech32: encoded}
}

// sign adds the wallet's vkey witness over the transaction id.
func (w *testWallet) sign(tx *Tx) {
	tx.Witnesses.VKeyWitnesses = append(tx.Witnesses.VKeyWitnesses, VKeyWitness{
		VKey:      w.key.VerificationKey(),
		Signature: ed25519.Sign(w.private, tx.Hash()),
	})
}

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()

	ledger, err := NewLedger(NewInMemoryDatabase(), NetworkPrivateNet, DefaultProtocolParams)
	require.NoError(t, err)
	return ledger
}

func fund(t *testing.T, ledger *Ledger, wallet *testWallet, amount uint64) Utxo {
	t.Helper()

	record, err := ledger.Fund(wallet.bech32, amount)
	require.NoError(t, err)
	require.Len(t, record.Outputs, 1)
	return record.Outputs[0]
}

// registration spends the wallet's first utxo into a 2 ada self-payment plus
// change, carrying the default registration metadata, signed by signer.
func registration(t *testing.T, ledger *Ledger, wallet *testWallet, signer *testWallet) []byte {
	t.Helper()

	utxos, err := ledger.Utxos(wallet.bech32)
	require.NoError(t, err)
	require.NotEmpty(t, utxos)
	tip, err := ledger.Tip()
	require.NoError(t, err)

	aux, err := RegistrationMetadata(DefaultRegistrationLabel, DefaultVoterRegistration()).Cbor()
	require.NoError(t, err)

	const fee = 250_000
	tx, err := NewTx(&TxBody{
		Inputs: []TxInput{utxos[0].Input()},
		Outputs: []TxOutput{
			{Address: wallet.address, Amount: 2_000_000},
			{Address: wallet.address, Amount: utxos[0].Amount - 2_000_000 - fee},
		},
		Fee:               fee,
		Ttl:               tip.Slot + 7200,
		AuxiliaryDataHash: Blake2bSum256(aux),
	}, aux)
	require.NoError(t, err)
	signer.sign(tx)

	raw, err := tx.Cbor()
	require.NoError(t, err)
	return raw
}

// handBuilt signs a single input transaction without any balancing.
func handBuilt(t *testing.T, wallet *testWallet, input Utxo, outputs []TxOutput, fee, ttl uint64) []byte {
	t.Helper()

	tx, err := NewTx(&TxBody{
		Inputs:  []TxInput{input.Input()},
		Outputs: outputs,
		Fee:     fee,
		Ttl:     ttl,
	}, nil)
	require.NoError(t, err)
	wallet.sign(tx)

	raw, err := tx.Cbor()
	require.NoError(t, err)
	return raw
}

func assertRejected(t *testing.T, err error, contains string) {
	t.Helper()

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRejectedByNode), "%v", err)
	assert.Equal(t, KindRejectedByNode, KindOf(err))
	assert.Contains(t, err.Error(), contains)
}

func TestLedger_Fund(t *testing.T) {
	ledger := newTestLedger(t)
	wallet := newTestWallet(t)

	utxos, err := ledger.Utxos(wallet.bech32)
	require.NoError(t, err)
	assert.Empty(t, utxos)

	first := fund(t, ledger, wallet, 5_000_000)
	second := fund(t, ledger, wallet, 5_000_000)
	assert.NotEqual(t, first.TxHash, second.TxHash)

	utxos, err = ledger.Utxos(wallet.bech32)
	require.NoError(t, err)
	assert.Len(t, utxos, 2)

	tip, err := ledger.Tip()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), tip.Height)
	assert.Equal(t, uint64(2*SlotsPerBlock), tip.Slot)

	_, err = ledger.Fund(wallet.bech32, 0)
	assert.True(t, errors.Is(err, ErrOutputTooSmall))

	_, err = ledger.Fund(wallet.bech32, MaxLovelaceSupply+1)
	assert.True(t, errors.Is(err, ErrInvalidConfig))

	_, err = ledger.Fund("addr1v8qp2kehe95ggxrmqre4ahdcfynxpmty9dxtr3afzxfhytcfl5f09", 1)
	assert.True(t, errors.Is(err, ErrInvalidAddress), "mainnet address on privnet")
}

func TestLedger_SubmitRegistration(t *testing.T) {
	ledger := newTestLedger(t)
	wallet := newTestWallet(t)
	fund(t, ledger, wallet, 10_000_000)

	raw := registration(t, ledger, wallet, wallet)

	txID, err := ledger.Submit(raw)
	require.NoError(t, err)

	tx, err := DecodeTx(raw)
	require.NoError(t, err)
	assert.Equal(t, tx.ID(), txID)

	record, err := ledger.Tx(txID)
	require.NoError(t, err)
	assert.Len(t, record.Inputs, 1)
	assert.Len(t, record.Outputs, 2)
	assert.Equal(t, uint64(10_000_000), record.OutputTotal()+record.Fee)
	assert.Equal(t, []byte(tx.AuxiliaryData), record.AuxData)

	utxos, err := ledger.Utxos(wallet.bech32)
	require.NoError(t, err)
	assert.Len(t, utxos, 2)
	for _, u := range utxos {
		assert.Equal(t, tx.Hash(), u.TxHash)
	}

	// the same bytes again spend inputs that are gone
	_, err = ledger.Submit(raw)
	assertRejected(t, err, "bad input")
}

func TestLedger_RejectsBadSignature(t *testing.T) {
	ledger := newTestLedger(t)
	wallet := newTestWallet(t)
	fund(t, ledger, wallet, 10_000_000)

	tx, err := DecodeTx(registration(t, ledger, wallet, wallet))
	require.NoError(t, err)
	tx.Witnesses.VKeyWitnesses[0].Signature[10] ^= 0x80
	raw, err := tx.Cbor()
	require.NoError(t, err)

	_, err = ledger.Submit(raw)
	assertRejected(t, err, "invalid signature")
}

func TestLedger_RejectsMissingWitness(t *testing.T) {
	ledger := newTestLedger(t)
	wallet := newTestWallet(t)
	stranger := newTestWallet(t)
	fund(t, ledger, wallet, 10_000_000)

	_, err := ledger.Submit(registration(t, ledger, wallet, stranger))
	assertRejected(t, err, "missing witness")
}

func TestLedger_RejectsInvalidTransactions(t *testing.T) {
	ledger := newTestLedger(t)
	wallet := newTestWallet(t)
	input := fund(t, ledger, wallet, 10_000_000)

	mainnet, err := wallet.key.VerificationKey().Address(NetworkMainNet)
	require.NoError(t, err)

	const fee = 300_000

	testCases := []struct {
		name     string
		outputs  []TxOutput
		fee      uint64
		ttl      uint64
		contains string
	}{
		{
			name:     "value not conserved",
			outputs:  []TxOutput{{Address: wallet.address, Amount: 10_000_000 - fee - 1}},
			fee:      fee,
			ttl:      100_000,
			contains: "value not conserved",
		},
		{
			name:     "fee too low",
			outputs:  []TxOutput{{Address: wallet.address, Amount: 10_000_000 - 1000}},
			fee:      1000,
			ttl:      100_000,
			contains: "below minimum",
		},
		{
			name:     "expired",
			outputs:  []TxOutput{{Address: wallet.address, Amount: 10_000_000 - fee}},
			fee:      fee,
			ttl:      1,
			contains: "expired",
		},
		{
			name:     "output below minimum",
			outputs:  []TxOutput{{Address: wallet.address, Amount: 10_000_000 - fee - 1000}, {Address: wallet.address, Amount: 1000}},
			fee:      fee,
			ttl:      100_000,
			contains: "minimum is",
		},
		{
			name:     "wrong network",
			outputs:  []TxOutput{{Address: mainnet, Amount: 10_000_000 - fee}},
			fee:      fee,
			ttl:      100_000,
			contains: "pays to a",
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			raw := handBuilt(t, wallet, input, testCase.outputs, testCase.fee, testCase.ttl)
			_, err := ledger.Submit(raw)
			assertRejected(t, err, testCase.contains)
		})
	}

	// nothing above was applied
	utxos, err := ledger.Utxos(wallet.bech32)
	require.NoError(t, err)
	assert.Equal(t, []Utxo{input}, utxos)

	raw := handBuilt(t, wallet, input, []TxOutput{{Address: wallet.address, Amount: 10_000_000 - fee}}, fee, 100_000)
	_, err = ledger.Submit(raw)
	assert.NoError(t, err)
}

func TestLedger_RejectsOverflowingOutputs(t *testing.T) {
	ledger := newTestLedger(t)
	wallet := newTestWallet(t)
	input := fund(t, ledger, wallet, 10_000_000)

	const fee = 300_000

	// the two outputs wrap around to exactly inputs - fee in uint64
	overflowing := []TxOutput{
		{Address: wallet.address, Amount: 1 << 63},
		{Address: wallet.address, Amount: 1<<63 + 10_000_000 - fee},
	}
	_, err := ledger.Submit(handBuilt(t, wallet, input, overflowing, fee, 100_000))
	assertRejected(t, err, "max supply")

	// every output within supply, together more than the input
	wrapping := []TxOutput{
		{Address: wallet.address, Amount: MaxLovelaceSupply},
		{Address: wallet.address, Amount: MaxLovelaceSupply},
		{Address: wallet.address, Amount: MaxLovelaceSupply},
	}
	_, err = ledger.Submit(handBuilt(t, wallet, input, wrapping, fee, 100_000))
	assertRejected(t, err, "value not conserved")

	_, err = ledger.Submit(handBuilt(t, wallet, input, []TxOutput{{Address: wallet.address, Amount: 1_000_000}}, math.MaxUint64-999_999, 100_000))
	assertRejected(t, err, "exceeds the max lovelace supply")

	utxos, err := ledger.Utxos(wallet.bech32)
	require.NoError(t, err)
	assert.Equal(t, []Utxo{input}, utxos, "nothing was applied")
}

func TestLedger_RejectsGarbage(t *testing.T) {
	ledger := newTestLedger(t)

	_, err := ledger.Submit([]byte("winning voter"))
	assert.Equal(t, KindSerialization, KindOf(err))
}
