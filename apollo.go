package cardano

import (
	"strings"

	"github.com/Salvionied/apollo"
	"github.com/Salvionied/apollo/constants"
	apolloaddress "github.com/Salvionied/apollo/serialization/Address"
	apollometadata "github.com/Salvionied/apollo/serialization/Metadata"
	"github.com/Salvionied/apollo/serialization/TransactionInput"
	"github.com/Salvionied/apollo/serialization/TransactionOutput"
	"github.com/Salvionied/apollo/serialization/UTxO"
	"github.com/Salvionied/apollo/serialization/Value"
	"github.com/Salvionied/apollo/txBuilding/Backend/Base"
	"github.com/pkg/errors"
)

// ApolloNetwork is the network id the transaction builder's backends use.
func (n Network) ApolloNetwork() constants.Network {
	switch n {
	case NetworkMainNet:
		return constants.MAINNET
	case NetworkPreview:
		return constants.PREVIEW
	case NetworkPreProd:
		return constants.PREPROD
	default:
		return constants.TESTNET
	}
}

// ShelleyMary is the metadata in the form the transaction builder attaches.
func (m Metadata) ShelleyMary() apollometadata.ShelleyMaryMetadata {
	metadata := apollometadata.Metadata{}
	for label, value := range m {
		metadata[int(label)] = value
	}
	return apollometadata.ShelleyMaryMetadata{Metadata: metadata}
}

// assembly is one self-payment carrying metadata. Selection, fee balancing,
// serialization and signing are the builder's; assembly only feeds it.
type assembly struct {
	backend  Base.ChainContext
	key      *SigningKey
	address  string
	utxos    []Utxo
	amount   uint64
	metadata Metadata
	ttl      uint64
}

// spendable are the pure ada outputs, with their total.
func (a *assembly) spendable() (utxos []Utxo, total uint64) {
	for _, u := range a.utxos {
		if u.HasAssets {
			continue
		}
		utxos = append(utxos, u)
		total += u.Amount
	}
	return
}

// build returns the signed transaction bytes.
func (a *assembly) build() (raw []byte, err error) {
	utxos, total := a.spendable()
	if total < a.amount {
		err = errors.Wrapf(ErrNotEnoughFunds, "%s holds %d spendable lovelace, %d needed before fees", a.address, total, a.amount)
		return
	}

	addr, err := apolloaddress.DecodeAddress(a.address)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidAddress, "%s: %v", a.address, err)
	}

	loaded := make([]UTxO.UTxO, 0, len(utxos))
	for _, u := range utxos {
		loaded = append(loaded, UTxO.UTxO{
			Input: TransactionInput.TransactionInput{
				TransactionId: append([]byte{}, u.TxHash...),
				Index:         int(u.Index),
			},
			Output: TransactionOutput.SimpleTransactionOutput(addr, Value.PureLovelaceValue(int64(u.Amount))),
		})
	}

	defer func() {
		if r := recover(); r != nil {
			raw = nil
			err = errors.Wrapf(ErrTxBuild, "builder panicked: %v", r)
		}
	}()

	builder, err := apollo.New(a.backend).
		AddLoadedUTxOs(loaded...).
		PayToAddress(addr, int(a.amount)).
		SetChangeAddress(addr).
		SetShelleyMetadata(a.metadata.ShelleyMary()).
		SetTtl(int64(a.ttl)).
		Complete()
	if err != nil {
		return nil, builderError(err)
	}

	vkey, skey := a.key.Keys()
	if builder, err = builder.SignWithSkey(vkey, skey); err != nil {
		return nil, errors.Wrapf(ErrInvalidSigningKey, "signing: %v", err)
	}

	raw, err = builder.GetTx().Bytes()
	if err != nil {
		return nil, errors.Wrapf(ErrSerialization, "tx: %v", err)
	}
	return
}

// builderError classifies a balancing failure. The builder reports them as
// plain errors, so only the wording tells a shortfall apart.
func builderError(err error) error {
	message := strings.ToLower(err.Error())
	for _, shortfall := range []string{"not enough", "insufficient", "no utxo"} {
		if strings.Contains(message, shortfall) {
			return errors.Wrap(ErrNotEnoughFunds, err.Error())
		}
	}
	return errors.Wrap(ErrTxBuild, err.Error())
}
