package emulator

import (
	"database/sql"
	"sync"

	. "github.com/alexdcox/cardano-uer"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

type SqlLiteDatabase struct {
	db *sql.DB
	mu sync.Mutex
}

var _ Database = &SqlLiteDatabase{}

func NewSqlLiteDatabase(path string) (db *SqlLiteDatabase, err error) {
	log.Info().Msgf("opening sqlite db at: '%s'", path)

	sqldb, err := sql.Open("sqlite3", path)
	if err != nil {
		err = errors.Wrap(err, "failed to open database")
		return
	}

	if err = sqldb.Ping(); err != nil {
		_ = sqldb.Close()
		err = errors.Wrap(err, "failed to ping database")
		return
	}

	db = &SqlLiteDatabase{db: sqldb}
	if err = db.initTables(); err != nil {
		_ = sqldb.Close()
		err = errors.Wrap(err, "failed to init tables")
		return
	}

	return
}

func (s *SqlLiteDatabase) initTables() (err error) {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS block (
			height INTEGER PRIMARY KEY,
			slot INTEGER NOT NULL,
			hash TEXT NOT NULL,
			time INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS tx (
			txhash TEXT PRIMARY KEY,
			block_height INTEGER NOT NULL,
			fee INTEGER NOT NULL,
			size INTEGER NOT NULL,
			aux BLOB
		)`,
		`CREATE TABLE IF NOT EXISTS utxo (
			txhash TEXT,
			idx INTEGER,
			address TEXT NOT NULL,
			amount INTEGER NOT NULL,
			spent_by TEXT,
			PRIMARY KEY (txhash, idx)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_utxo_address ON utxo(address)`,
		`CREATE INDEX IF NOT EXISTS idx_utxo_spent_by ON utxo(spent_by)`,
	}

	for i, query := range queries {
		_, err = s.db.Exec(query)
		if err != nil {
			err = errors.Wrapf(err, "failed to execute query: %d", i)
			return
		}
	}

	return
}

func (s *SqlLiteDatabase) GetTip() (tip Block, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	err = s.db.QueryRow("SELECT height, slot, hash, time FROM block ORDER BY height DESC LIMIT 1").
		Scan(&tip.Height, &tip.Slot, &tip.Hash, &tip.Time)
	if errors.Is(err, sql.ErrNoRows) {
		return genesisBlock(), nil
	}
	err = errors.WithStack(err)

	return
}

func (s *SqlLiteDatabase) GetUtxosForAddress(address string) (utxos []Utxo, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.queryUtxos(`
		SELECT txhash, idx, address, amount
		FROM utxo
		WHERE address = ? AND spent_by IS NULL
		ORDER BY txhash, idx`,
		address)
}

func (s *SqlLiteDatabase) GetUtxo(txHash string, index uint32) (utxo Utxo, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	utxos, err := s.queryUtxos(`
		SELECT txhash, idx, address, amount
		FROM utxo
		WHERE txhash = ? AND idx = ? AND spent_by IS NULL`,
		txHash, index)
	if err != nil {
		return
	}
	if len(utxos) == 0 {
		err = errors.Wrapf(ErrUtxoNotFound, "%s#%d", txHash, index)
		return
	}

	return utxos[0], nil
}

func (s *SqlLiteDatabase) queryUtxos(query string, args ...interface{}) (utxos []Utxo, err error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		err = errors.Wrap(err, "failed to query utxos")
		return
	}
	defer rows.Close()

	for rows.Next() {
		var txHash string
		utxo := Utxo{}
		if err = rows.Scan(&txHash, &utxo.Index, &utxo.Address, &utxo.Amount); err != nil {
			err = errors.Wrap(err, "failed to scan row")
			return
		}
		utxo.TxHash = HexString(txHash).Bytes()
		utxos = append(utxos, utxo)
	}

	if err = rows.Err(); err != nil {
		err = errors.Wrap(err, "error during row iteration")
		return
	}

	return
}

func (s *SqlLiteDatabase) GetTx(hash string) (record *TxRecord, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record = &TxRecord{Hash: hash}
	err = s.db.QueryRow(`
		SELECT tx.fee, tx.size, tx.aux, block.height, block.slot, block.hash, block.time
		FROM tx JOIN block ON block.height = tx.block_height
		WHERE tx.txhash = ?`,
		hash).
		Scan(&record.Fee, &record.Size, &record.AuxData, &record.Block.Height, &record.Block.Slot, &record.Block.Hash, &record.Block.Time)
	if errors.Is(err, sql.ErrNoRows) {
		err = errors.Wrapf(ErrTransactionNotFound, "tx not found by hash %s", hash)
		return nil, err
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if record.Inputs, err = s.queryUtxos(`
		SELECT txhash, idx, address, amount FROM utxo WHERE spent_by = ? ORDER BY txhash, idx`,
		hash); err != nil {
		return nil, err
	}

	if record.Outputs, err = s.queryUtxos(`
		SELECT txhash, idx, address, amount FROM utxo WHERE txhash = ? ORDER BY idx`,
		hash); err != nil {
		return nil, err
	}

	return
}

func (s *SqlLiteDatabase) ApplyTx(record *TxRecord) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return errors.WithStack(err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		"INSERT INTO block (height, slot, hash, time) VALUES (?, ?, ?, ?)",
		record.Block.Height, record.Block.Slot, record.Block.Hash, record.Block.Time)
	if err != nil {
		return errors.Wrap(err, "failed to insert block")
	}

	_, err = tx.Exec(
		"INSERT INTO tx (txhash, block_height, fee, size, aux) VALUES (?, ?, ?, ?, ?)",
		record.Hash, record.Block.Height, record.Fee, record.Size, record.AuxData)
	if err != nil {
		return errors.Wrapf(err, "failed to insert tx %s", record.Hash)
	}

	for _, input := range record.Inputs {
		result, err2 := tx.Exec(
			"UPDATE utxo SET spent_by = ? WHERE txhash = ? AND idx = ? AND spent_by IS NULL",
			record.Hash, input.TxHash.String(), input.Index)
		if err2 != nil {
			return errors.WithStack(err2)
		}
		if n, _ := result.RowsAffected(); n != 1 {
			return errors.Wrapf(ErrUtxoNotFound, "%s", input.Ref())
		}
	}

	for _, output := range record.Outputs {
		_, err = tx.Exec(
			"INSERT INTO utxo (txhash, idx, address, amount) VALUES (?, ?, ?, ?)",
			record.Hash, output.Index, output.Address, output.Amount)
		if err != nil {
			return errors.Wrapf(err, "failed to insert utxo %s#%d", record.Hash, output.Index)
		}
	}

	return errors.WithStack(tx.Commit())
}

func (s *SqlLiteDatabase) Close() error {
	return errors.WithStack(s.db.Close())
}
