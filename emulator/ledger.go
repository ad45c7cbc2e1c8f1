package emulator

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"math/bits"
	"sync"
	"time"

	. "github.com/alexdcox/cardano-uer"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	SlotsPerBlock = 20
	SlotsPerEpoch = 432000

	// MaxLovelaceSupply bounds every amount the ledger accepts, which also
	// keeps amounts inside sqlite's signed INTEGER.
	MaxLovelaceSupply uint64 = 45_000_000_000_000_000

	// MinUtxoBytes is the constant overhead the ledger adds to an output's
	// serialized size when computing its minimum value.
	MinUtxoBytes = 160
)

type ProtocolParams struct {
	MinFeeA          uint64 `json:"minFeeA"`
	MinFeeB          uint64 `json:"minFeeB"`
	MaxTxSize        uint64 `json:"maxTxSize"`
	CoinsPerUtxoByte uint64 `json:"coinsPerUtxoByte"`
}

// MinFee is the linear fee for a transaction of size bytes.
func (p *ProtocolParams) MinFee(size int) uint64 {
	return p.MinFeeA*uint64(size) + p.MinFeeB
}

func (p *ProtocolParams) MinUtxo(outputSize int) uint64 {
	return uint64(MinUtxoBytes+outputSize) * p.CoinsPerUtxoByte
}

// DefaultProtocolParams mirror the public testnets.
var DefaultProtocolParams = ProtocolParams{
	MinFeeA:          44,
	MinFeeB:          155381,
	MaxTxSize:        16384,
	CoinsPerUtxoByte: 4310,
}

var cborNull = []byte{0xf6}

func genesisBlock() Block {
	return Block{Hash: hex.EncodeToString(make([]byte, TxHashSize))}
}

// Ledger validates submitted transactions against the database and applies
// them, one block per transaction.
type Ledger struct {
	db      Database
	network *NetworkParams
	params  ProtocolParams
	mu      sync.Mutex
	log     *zerolog.Logger
	now     func() time.Time
	// start is the emulated system start, reported as genesis.
	start time.Time
}

func NewLedger(db Database, network Network, params ProtocolParams) (ledger *Ledger, err error) {
	networkParams, err := network.Params()
	if err != nil {
		return
	}

	ledger = &Ledger{
		db:      db,
		network: networkParams,
		params:  params,
		log:     Log(),
		now:     time.Now,
		start:   time.Now().Truncate(time.Second),
	}
	return
}

func (l *Ledger) Params() ProtocolParams {
	return l.params
}

func (l *Ledger) Network() Network {
	return l.network.Name
}

func (l *Ledger) Tip() (Block, error) {
	return l.db.GetTip()
}

func (l *Ledger) Utxos(address string) (utxos []Utxo, err error) {
	if _, err = DecodeAddress(address, l.network.Name); err != nil {
		return
	}
	return l.db.GetUtxosForAddress(address)
}

func (l *Ledger) Tx(hash string) (*TxRecord, error) {
	return l.db.GetTx(hash)
}

func (l *Ledger) nextBlock(tip Block, txHash []byte) Block {
	prev, _ := hex.DecodeString(tip.Hash)
	return Block{
		Height: tip.Height + 1,
		Slot:   tip.Slot + SlotsPerBlock,
		Hash:   hex.EncodeToString(Blake2bSum256(append(prev, txHash...))),
		Time:   l.now().Unix(),
	}
}

// Fund mints a new output to address out of thin air.
func (l *Ledger) Fund(address string, amount uint64) (record *TxRecord, err error) {
	if _, err = DecodeAddress(address, l.network.Name); err != nil {
		return
	}
	if amount == 0 {
		err = errors.Wrap(ErrOutputTooSmall, "fund amount must be positive")
		return
	}
	if amount > MaxLovelaceSupply {
		err = errors.Wrapf(ErrInvalidConfig, "fund amount exceeds the max lovelace supply %d", MaxLovelaceSupply)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	tip, err := l.db.GetTip()
	if err != nil {
		return
	}

	seed := make([]byte, 24)
	binary.BigEndian.PutUint64(seed, tip.Height)
	binary.BigEndian.PutUint64(seed[8:], uint64(l.now().UnixNano()))
	binary.BigEndian.PutUint64(seed[16:], amount)
	hash := Blake2bSum256(append([]byte("faucet:"+address), seed...))

	record = &TxRecord{
		Hash:  hex.EncodeToString(hash),
		Block: l.nextBlock(tip, hash),
		Outputs: []Utxo{{
			TxHash:  hash,
			Index:   0,
			Address: address,
			Amount:  amount,
		}},
	}

	if err = l.db.ApplyTx(record); err != nil {
		return nil, err
	}

	l.log.Info().Msgf("funded %s with %d lovelace in %s", address, amount, record.Hash)
	return
}

// Submit validates raw against the current ledger state and applies it.
func (l *Ledger) Submit(raw []byte) (txID string, err error) {
	tx, err := DecodeTx(raw)
	if err != nil {
		return
	}

	body, err := tx.DecodeBody()
	if err != nil {
		return
	}

	txID = tx.ID()

	l.mu.Lock()
	defer l.mu.Unlock()

	tip, err := l.db.GetTip()
	if err != nil {
		return "", err
	}

	record, err := l.validate(tx, body, raw, tip)
	if err != nil {
		l.log.Debug().Msgf("rejected %s: %v", txID, err)
		return "", err
	}

	if err = l.db.ApplyTx(record); err != nil {
		if errors.Is(err, ErrUtxoNotFound) {
			err = errors.Wrap(ErrRejectedByNode, err.Error())
		}
		return "", err
	}

	l.log.Info().Msgf("applied %s in block %d (fee %d, %d bytes)", txID, record.Block.Height, record.Fee, record.Size)
	return txID, nil
}

func reject(format string, args ...interface{}) error {
	return errors.Wrapf(ErrRejectedByNode, format, args...)
}

func (l *Ledger) validate(tx *Tx, body *TxBody, raw []byte, tip Block) (record *TxRecord, err error) {
	if !tx.Valid {
		return nil, reject("phase-2 invalid transactions are not supported")
	}

	if l.params.MaxTxSize > 0 && uint64(len(raw)) > l.params.MaxTxSize {
		return nil, reject("tx is %d bytes, max %d", len(raw), l.params.MaxTxSize)
	}

	if len(body.Inputs) == 0 {
		return nil, reject("tx has no inputs")
	}

	if body.Ttl != 0 && body.Ttl <= tip.Slot {
		return nil, reject("tx expired at slot %d, current slot %d", body.Ttl, tip.Slot)
	}

	if minFee := l.params.MinFee(len(raw)); body.Fee < minFee {
		return nil, reject("fee %d below minimum %d", body.Fee, minFee)
	}
	if body.Fee > MaxLovelaceSupply {
		return nil, reject("fee %d exceeds the max lovelace supply", body.Fee)
	}

	hash := tx.Hash()
	record = &TxRecord{
		Hash:  hash.String(),
		Block: l.nextBlock(tip, hash),
		Fee:   body.Fee,
		Size:  len(raw),
	}

	requiredSigners := map[string]bool{}
	seen := map[string]bool{}
	var inputTotal, carry uint64
	for _, input := range body.Inputs {
		ref := utxoKey(input.TxHash.String(), input.Index)
		if seen[ref] {
			return nil, reject("input %s listed twice", ref)
		}
		seen[ref] = true

		utxo, err2 := l.db.GetUtxo(input.TxHash.String(), input.Index)
		if err2 != nil {
			return nil, reject("bad input: %v", err2)
		}

		addr, err2 := DecodeAddress(utxo.Address, l.network.Name)
		if err2 != nil {
			return nil, err2
		}
		keyHash, err2 := addr.PaymentKeyHash()
		if err2 != nil {
			return nil, reject("input %s is not locked by a payment key: %v", ref, err2)
		}
		requiredSigners[hex.EncodeToString(keyHash)] = true

		if inputTotal, carry = bits.Add64(inputTotal, utxo.Amount, 0); carry != 0 {
			return nil, reject("input total overflows")
		}
		record.Inputs = append(record.Inputs, utxo)
	}

	var outputTotal uint64
	for i, output := range body.Outputs {
		header, err2 := output.Address.Header()
		if err2 != nil {
			return nil, reject("output %d: %v", i, err2)
		}
		if header.NetworkBits() != l.network.HeaderNetwork {
			return nil, reject("output %d pays to a %s address on %s", i, header.NetworkBits(), l.network.Name)
		}

		encoded, err2 := output.Address.Bech32String(l.network.Name)
		if err2 != nil {
			return nil, reject("output %d: %v", i, err2)
		}

		if output.HasAssets() {
			return nil, reject("output %d carries native assets, only lovelace is supported", i)
		}
		if output.Amount > MaxLovelaceSupply {
			return nil, reject("output %d pays %d lovelace, more than the max supply %d", i, output.Amount, MaxLovelaceSupply)
		}

		size, err2 := output.Size()
		if err2 != nil {
			return nil, err2
		}
		if minimum := l.params.MinUtxo(size); output.Amount < minimum {
			return nil, reject("output %d pays %d lovelace, minimum is %d", i, output.Amount, minimum)
		}

		if outputTotal, carry = bits.Add64(outputTotal, output.Amount, 0); carry != 0 {
			return nil, reject("output total overflows")
		}
		record.Outputs = append(record.Outputs, Utxo{
			TxHash:  hash,
			Index:   uint32(i),
			Address: encoded,
			Amount:  output.Amount,
		})
	}

	spent, carry := bits.Add64(outputTotal, body.Fee, 0)
	if carry != 0 || inputTotal != spent {
		return nil, reject("value not conserved: inputs %d, outputs %d, fee %d", inputTotal, outputTotal, body.Fee)
	}

	hasAux := len(tx.AuxiliaryData) > 0 && !bytes.Equal(tx.AuxiliaryData, cborNull)
	switch {
	case hasAux && len(body.AuxiliaryDataHash) == 0:
		return nil, reject("auxiliary data present without a hash in the body")
	case !hasAux && len(body.AuxiliaryDataHash) > 0:
		return nil, reject("body commits to auxiliary data that is missing")
	case hasAux:
		if !bytes.Equal(Blake2bSum256(tx.AuxiliaryData), body.AuxiliaryDataHash) {
			return nil, reject("auxiliary data hash mismatch")
		}
		if _, err = DecodeMetadata(tx.AuxiliaryData); err != nil {
			return nil, reject("auxiliary data: %v", err)
		}
		record.AuxData = append([]byte{}, tx.AuxiliaryData...)
	}

	signers, err := tx.VerifyWitnesses()
	if err != nil {
		return nil, err
	}
	signed := map[string]bool{}
	for _, s := range signers {
		signed[hex.EncodeToString(s)] = true
	}
	for keyHash := range requiredSigners {
		if !signed[keyHash] {
			return nil, reject("missing witness for key hash %s", keyHash)
		}
	}

	return record, nil
}
