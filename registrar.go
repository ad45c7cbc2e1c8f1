package cardano

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Registrar records a voter registration on chain: a self-payment from the
// key's enterprise address carrying the registration metadata.
type Registrar struct {
	config *Config
	chain  ChainContext
	log    *zerolog.Logger
}

type RegistrationResult struct {
	TxID      string   `json:"txId"`
	Network   Network  `json:"network"`
	Address   string   `json:"address"`
	Fee       uint64   `json:"fee"`
	Change    uint64   `json:"change"`
	Ttl       uint64   `json:"ttl"`
	Inputs    []string `json:"inputs"`
	Metadata  Metadata `json:"metadata"`
	CborHex   string   `json:"cborHex"`
	Submitted bool     `json:"submitted"`
	Confirmed bool     `json:"confirmed"`
}

func NewRegistrar(config *Config, chain ChainContext) (registrar *Registrar, err error) {
	if config == nil {
		return nil, errors.Wrap(ErrInvalidConfig, "registrar requires a config")
	}
	if chain == nil {
		return nil, errors.Wrap(ErrInvalidConfig, "registrar requires a chain context")
	}
	if err = config.Network.Validate(); err != nil {
		return
	}
	if config.PaymentAmount == 0 {
		return nil, errors.Wrap(ErrInvalidConfig, "payment amount must be positive")
	}

	registrar = &Registrar{
		config: config,
		chain:  chain,
		log:    Log(),
	}
	return
}

// Metadata is the payload the registrar attaches to every transaction.
func (r *Registrar) Metadata() Metadata {
	return RegistrationMetadata(r.config.Label, r.config.Registration)
}

// Address loads the configured key and returns its enterprise address.
func (r *Registrar) Address() (address string, err error) {
	key, err := LoadSigningKey(r.config.KeyPath)
	if err != nil {
		return
	}
	_, address, err = r.address(key)
	return
}

func (r *Registrar) address(key *SigningKey) (addr Address, encoded string, err error) {
	addr, err = key.VerificationKey().Address(r.config.Network)
	if err != nil {
		return
	}
	encoded, err = addr.Bech32String(r.config.Network)
	return
}

// Register runs the whole workflow. The key is loaded before the chain
// context is touched, so a missing key file never causes network activity.
// Assembly is delegated to the transaction builder.
func (r *Registrar) Register(ctx context.Context) (result *RegistrationResult, err error) {
	key, err := LoadSigningKey(r.config.KeyPath)
	if err != nil {
		return
	}

	_, encoded, err := r.address(key)
	if err != nil {
		return
	}
	r.log.Info().Msgf("registering from %s on %s", encoded, r.config.Network)

	metadata := r.Metadata()

	backend, err := r.chain.Backend(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load protocol parameters")
	}

	utxos, err := r.chain.Utxos(ctx, encoded)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch utxos for %s", encoded)
	}
	r.log.Debug().Msgf("%s holds %d utxos", encoded, len(utxos))

	tip, err := r.chain.Tip(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch chain tip")
	}

	raw, err := (&assembly{
		backend:  backend,
		key:      key,
		address:  encoded,
		utxos:    utxos,
		amount:   r.config.PaymentAmount,
		metadata: metadata,
		ttl:      tip.Slot + r.config.TtlOffset,
	}).build()
	if err != nil {
		return
	}

	result, err = r.describe(raw, encoded, metadata)
	if err != nil {
		return nil, err
	}

	if r.config.DryRun {
		r.log.Info().Msgf("dry run, not submitting %s", result.TxID)
		return
	}

	txID, err := r.chain.SubmitTx(ctx, raw)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to submit %s", result.TxID)
	}
	if txID != result.TxID {
		r.log.Warn().Msgf("chain context reported tx id %s, computed %s", txID, result.TxID)
	}
	result.Submitted = true
	r.log.Info().Msgf("submitted %s", result.TxID)

	if r.config.WaitTimeout > 0 {
		result.Confirmed, err = r.waitForConfirmation(ctx, result.TxID)
	}

	return
}

// describe reads the result back out of the built transaction.
func (r *Registrar) describe(raw []byte, address string, metadata Metadata) (result *RegistrationResult, err error) {
	tx, err := DecodeTx(raw)
	if err != nil {
		return
	}
	body, err := tx.DecodeBody()
	if err != nil {
		return
	}

	result = &RegistrationResult{
		TxID:     tx.ID(),
		Network:  r.config.Network,
		Address:  address,
		Fee:      body.Fee,
		Ttl:      body.Ttl,
		Metadata: metadata,
		CborHex:  hex.EncodeToString(raw),
	}
	if total := body.OutputTotal(); total > r.config.PaymentAmount {
		result.Change = total - r.config.PaymentAmount
	}
	for _, input := range body.Inputs {
		result.Inputs = append(result.Inputs, input.Ref())
	}

	r.log.Debug().Msgf("built %s: %d inputs, fee %d, change %d", result.TxID, len(result.Inputs), result.Fee, result.Change)
	return
}

// waitForConfirmation polls until the transaction is seen in a block. A
// timeout is not an error; the transaction was already accepted.
func (r *Registrar) waitForConfirmation(ctx context.Context, txID string) (confirmed bool, err error) {
	confirmer, ok := r.chain.(TxConfirmer)
	if !ok {
		r.log.Warn().Msg("chain context cannot report confirmations, not waiting")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, r.config.WaitTimeout)
	defer cancel()

	ticker := time.NewTicker(r.config.WaitInterval)
	defer ticker.Stop()

	for {
		confirmed, err = confirmer.TxConfirmed(ctx, txID)
		if err == nil && confirmed {
			r.log.Info().Msgf("%s confirmed", txID)
			return
		}
		if err != nil {
			r.log.Debug().Msgf("confirmation check for %s failed: %v", txID, err)
			err = nil
		}

		select {
		case <-ctx.Done():
			r.log.Warn().Msgf("%s not confirmed within %s", txID, r.config.WaitTimeout)
			return false, nil
		case <-ticker.C:
		}
	}
}

// LookupRegistration reads a registration record back from a transaction's
// metadata.
func LookupRegistration(ctx context.Context, chain ChainContext, txID string, label uint64) (record VoterRegistration, err error) {
	reader, ok := chain.(MetadataReader)
	if !ok {
		err = errors.Wrap(ErrInvalidConfig, "chain context does not index metadata")
		return
	}

	metadata, err := reader.TxMetadata(ctx, txID)
	if err != nil {
		return
	}

	value, ok := metadata[label]
	if !ok {
		err = errors.Wrapf(ErrTransactionNotFound, "%s has no metadata under label %d", txID, label)
		return
	}

	return VoterRegistrationFromMetadatum(value)
}
