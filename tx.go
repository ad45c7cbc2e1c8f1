package cardano

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
)

type TxInput struct {
	_      struct{} `cbor:",toarray"`
	TxHash HexBytes `json:"txHash"`
	Index  uint32   `json:"index"`
}

func (i TxInput) Ref() string {
	return fmt.Sprintf("%s#%d", i.TxHash, i.Index)
}

type TxOutput struct {
	_       struct{} `cbor:",toarray"`
	Address Address  `json:"address"`
	Amount  uint64   `json:"amount"`
	// assets is set when the decoded value carried a multi-asset bundle.
	assets bool
}

// UnmarshalCBOR accepts both the legacy [address, value] output and the
// babbage {0: address, 1: value} map.
func (o *TxOutput) UnmarshalCBOR(data []byte) (err error) {
	var address, value cbor.RawMessage

	var legacy []cbor.RawMessage
	if err = StandardCborDecoder.Unmarshal(data, &legacy); err == nil {
		if len(legacy) < 2 {
			return errors.Errorf("output has %d fields", len(legacy))
		}
		address, value = legacy[0], legacy[1]
	} else {
		post := map[uint64]cbor.RawMessage{}
		if err = StandardCborDecoder.Unmarshal(data, &post); err != nil {
			return errors.Errorf("output is neither an array nor a map: %v", err)
		}
		address, value = post[0], post[1]
		if address == nil || value == nil {
			return errors.New("output map is missing the address or value")
		}
	}

	if err = StandardCborDecoder.Unmarshal(address, &o.Address); err != nil {
		return errors.Errorf("output address: %v", err)
	}

	if err = StandardCborDecoder.Unmarshal(value, &o.Amount); err == nil {
		return nil
	}
	var multiAsset []cbor.RawMessage
	if err = StandardCborDecoder.Unmarshal(value, &multiAsset); err != nil || len(multiAsset) != 2 {
		return errors.New("output value is neither a coin nor a [coin, assets] pair")
	}
	o.assets = true
	if err = StandardCborDecoder.Unmarshal(multiAsset[0], &o.Amount); err != nil {
		return errors.Errorf("output coin: %v", err)
	}
	return nil
}

// HasAssets reports whether the output carries native tokens.
func (o TxOutput) HasAssets() bool {
	return o.assets
}

// Size is the serialized size of the output, used for the minimum utxo
// calculation.
func (o TxOutput) Size() (int, error) {
	encoded, err := CborEncoder.Marshal(o)
	if err != nil {
		return 0, errors.Wrapf(ErrSerialization, "output: %v", err)
	}
	return len(encoded), nil
}

type TxBody struct {
	Inputs            []TxInput  `cbor:"0,keyasint" json:"inputs"`
	Outputs           []TxOutput `cbor:"1,keyasint" json:"outputs"`
	Fee               uint64     `cbor:"2,keyasint" json:"fee"`
	Ttl               uint64     `cbor:"3,keyasint,omitempty" json:"ttl,omitempty"`
	AuxiliaryDataHash HexBytes   `cbor:"7,keyasint,omitempty" json:"auxiliaryDataHash,omitempty"`
}

func (b *TxBody) Cbor() (encoded []byte, err error) {
	encoded, err = CborEncoder.Marshal(b)
	if err != nil {
		err = errors.Wrapf(ErrSerialization, "tx body: %v", err)
	}
	return
}

func (b *TxBody) OutputTotal() (total uint64) {
	for _, o := range b.Outputs {
		total += o.Amount
	}
	return
}

type VKeyWitness struct {
	_         struct{}        `cbor:",toarray"`
	VKey      VerificationKey `json:"vkey"`
	Signature HexBytes        `json:"signature"`
}

type WitnessSet struct {
	VKeyWitnesses []VKeyWitness `cbor:"0,keyasint,omitempty" json:"vkeyWitnesses,omitempty"`
}

// Tx is a complete transaction: [body, witnesses, is_valid, auxiliary_data].
// Body and AuxiliaryData are kept as the exact bytes their hashes commit to.
type Tx struct {
	_             struct{} `cbor:",toarray"`
	Body          cbor.RawMessage
	Witnesses     WitnessSet
	Valid         bool
	AuxiliaryData cbor.RawMessage
}

// UnmarshalCBOR also accepts the pre-alonzo [body, witnesses, auxiliary_data]
// form, which is always valid.
func (t *Tx) UnmarshalCBOR(data []byte) (err error) {
	var fields []cbor.RawMessage
	if err = StandardCborDecoder.Unmarshal(data, &fields); err != nil {
		return
	}

	var aux cbor.RawMessage
	switch len(fields) {
	case 3:
		t.Valid = true
		aux = fields[2]
	case 4:
		if err = StandardCborDecoder.Unmarshal(fields[2], &t.Valid); err != nil {
			return errors.Errorf("is_valid: %v", err)
		}
		aux = fields[3]
	default:
		return errors.Errorf("transaction has %d fields", len(fields))
	}

	if err = StandardCborDecoder.Unmarshal(fields[1], &t.Witnesses); err != nil {
		return errors.Errorf("witness set: %v", err)
	}
	t.Body = append(cbor.RawMessage{}, fields[0]...)
	t.AuxiliaryData = append(cbor.RawMessage{}, aux...)
	return nil
}

func NewTx(body *TxBody, auxData []byte) (tx *Tx, err error) {
	encodedBody, err := body.Cbor()
	if err != nil {
		return
	}
	tx = &Tx{
		Body:          encodedBody,
		Valid:         true,
		AuxiliaryData: auxData,
	}
	return
}

func DecodeTx(raw []byte) (tx *Tx, err error) {
	tx = &Tx{}
	if err = StandardCborDecoder.Unmarshal(raw, tx); err != nil {
		err = errors.Wrapf(ErrSerialization, "tx: %v", err)
		return nil, err
	}
	return
}

// Hash is the blake2b-256 of the serialized body: the transaction id.
func (t *Tx) Hash() HexBytes {
	return Blake2bSum256(t.Body)
}

func (t *Tx) ID() string {
	return hex.EncodeToString(t.Hash())
}

func (t *Tx) DecodeBody() (body *TxBody, err error) {
	body = &TxBody{}
	if err = StandardCborDecoder.Unmarshal(t.Body, body); err != nil {
		err = errors.Wrapf(ErrSerialization, "tx body: %v", err)
		return nil, err
	}
	return
}

func (t *Tx) Cbor() (encoded []byte, err error) {
	encoded, err = CborEncoder.Marshal(t)
	if err != nil {
		err = errors.Wrapf(ErrSerialization, "tx: %v", err)
	}
	return
}

// VerifyWitnesses checks every vkey witness signature and returns the key
// hashes of the signers.
func (t *Tx) VerifyWitnesses() (signers [][]byte, err error) {
	hash := t.Hash()
	for i, w := range t.Witnesses.VKeyWitnesses {
		if len(w.VKey) != ed25519.PublicKeySize {
			err = errors.Wrapf(ErrInvalidPublicKeyType, "witness %d: vkey is %d bytes", i, len(w.VKey))
			return
		}
		if !ed25519.Verify(ed25519.PublicKey(w.VKey), hash, w.Signature) {
			err = errors.Wrapf(ErrRejectedByNode, "witness %d: invalid signature for vkey %s", i, w.VKey)
			return
		}
		keyHash, err2 := w.VKey.Hash()
		if err2 != nil {
			err = err2
			return
		}
		signers = append(signers, keyHash)
	}
	return
}
