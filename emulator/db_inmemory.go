package emulator

import (
	"fmt"
	"sort"
	"sync"

	. "github.com/alexdcox/cardano-uer"
	"github.com/pkg/errors"
)

type utxoState struct {
	utxo    Utxo
	spentBy string
}

type InMemoryDatabase struct {
	blocks []Block
	txs    map[string]*TxRecord
	utxos  map[string]*utxoState
	mu     sync.RWMutex
}

var _ Database = &InMemoryDatabase{}

func NewInMemoryDatabase() *InMemoryDatabase {
	return &InMemoryDatabase{
		txs:   make(map[string]*TxRecord),
		utxos: make(map[string]*utxoState),
	}
}

func utxoKey(txHash string, index uint32) string {
	return fmt.Sprintf("%s#%d", txHash, index)
}

func (db *InMemoryDatabase) GetTip() (Block, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if len(db.blocks) == 0 {
		return genesisBlock(), nil
	}
	return db.blocks[len(db.blocks)-1], nil
}

func (db *InMemoryDatabase) GetUtxosForAddress(address string) (utxos []Utxo, err error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	for _, state := range db.utxos {
		if state.spentBy == "" && state.utxo.Address == address {
			utxos = append(utxos, state.utxo)
		}
	}

	sort.Slice(utxos, func(i, j int) bool {
		return utxos[i].Ref() < utxos[j].Ref()
	})

	return
}

func (db *InMemoryDatabase) GetUtxo(txHash string, index uint32) (utxo Utxo, err error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	state, ok := db.utxos[utxoKey(txHash, index)]
	if !ok || state.spentBy != "" {
		err = errors.Wrapf(ErrUtxoNotFound, "%s#%d", txHash, index)
		return
	}

	return state.utxo, nil
}

func (db *InMemoryDatabase) GetTx(hash string) (record *TxRecord, err error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	record, ok := db.txs[hash]
	if !ok {
		err = errors.Wrapf(ErrTransactionNotFound, "tx not found by hash %s", hash)
		return nil, err
	}

	return record, nil
}

func (db *InMemoryDatabase) ApplyTx(record *TxRecord) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, exists := db.txs[record.Hash]; exists {
		return errors.Errorf("tx %s already applied", record.Hash)
	}

	for _, input := range record.Inputs {
		state, ok := db.utxos[utxoKey(input.TxHash.String(), input.Index)]
		if !ok || state.spentBy != "" {
			return errors.Wrapf(ErrUtxoNotFound, "%s", input.Ref())
		}
	}

	for _, input := range record.Inputs {
		db.utxos[utxoKey(input.TxHash.String(), input.Index)].spentBy = record.Hash
	}
	for _, output := range record.Outputs {
		db.utxos[utxoKey(record.Hash, output.Index)] = &utxoState{utxo: output}
	}

	db.txs[record.Hash] = record
	db.blocks = append(db.blocks, record.Block)

	return nil
}

func (db *InMemoryDatabase) Close() error {
	return nil
}
