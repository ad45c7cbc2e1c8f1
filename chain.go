package cardano

import (
	"context"
	"fmt"

	"github.com/Salvionied/apollo/txBuilding/Backend/Base"
)

// ChainContext abstracts queries against, and submission to, a Cardano
// network through a remote indexing service.
type ChainContext interface {
	// Backend is the chain context the transaction builder prices and
	// balances transactions against.
	Backend(ctx context.Context) (Base.ChainContext, error)
	// Utxos returns every output currently held by the bech32 address. An
	// address that has never been used has no outputs, which is not an error.
	Utxos(ctx context.Context, address string) ([]Utxo, error)
	Tip(ctx context.Context) (*Tip, error)
	// SubmitTx sends a signed, serialized transaction and returns its id.
	SubmitTx(ctx context.Context, tx []byte) (txID string, err error)
}

// TxConfirmer is implemented by chain contexts that can report whether a
// transaction has made it into a block.
type TxConfirmer interface {
	TxConfirmed(ctx context.Context, txID string) (bool, error)
}

// MetadataReader is implemented by chain contexts that index transaction
// metadata.
type MetadataReader interface {
	TxMetadata(ctx context.Context, txID string) (Metadata, error)
}

type Utxo struct {
	TxHash  HexBytes `json:"txHash"`
	Index   uint32   `json:"index"`
	Address string   `json:"address"`
	Amount  uint64   `json:"amount"`
	// HasAssets is set when the output carries native tokens besides ada.
	HasAssets bool `json:"hasAssets,omitempty"`
}

func (u Utxo) Ref() string {
	return fmt.Sprintf("%s#%d", u.TxHash, u.Index)
}

func (u Utxo) Input() TxInput {
	return TxInput{TxHash: u.TxHash, Index: u.Index}
}

type Tip struct {
	Slot   uint64 `json:"slot"`
	Height uint64 `json:"height"`
	Hash   string `json:"hash"`
}
