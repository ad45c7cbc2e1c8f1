package emulator

import (
	"fmt"

	. "github.com/alexdcox/cardano-uer"
	_ "github.com/mattn/go-sqlite3"
)

var ErrUtxoNotFound = fmt.Errorf("utxo not found or already spent")

type Block struct {
	Height uint64 `json:"height"`
	Slot   uint64 `json:"slot"`
	Hash   string `json:"hash"`
	Time   int64  `json:"time"`
}

// TxRecord is a transaction the emulator has applied to its ledger.
type TxRecord struct {
	Hash    string
	Block   Block
	Fee     uint64
	Size    int
	Inputs  []Utxo
	Outputs []Utxo
	AuxData []byte
}

func (r *TxRecord) OutputTotal() (total uint64) {
	for _, o := range r.Outputs {
		total += o.Amount
	}
	return
}

// Database is the emulator's ledger. ApplyTx is atomic: every input is spent
// and every output created, or nothing changes.
type Database interface {
	GetTip() (Block, error)
	GetUtxosForAddress(address string) ([]Utxo, error)
	GetUtxo(txHash string, index uint32) (Utxo, error)
	GetTx(hash string) (*TxRecord, error)
	ApplyTx(record *TxRecord) error
	Close() error
}
