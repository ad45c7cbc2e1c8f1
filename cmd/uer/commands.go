package main

import (
	"encoding/json"
	"path/filepath"
	"strings"

	. "github.com/alexdcox/cardano-uer"
	"github.com/alexdcox/cardano-uer/blockfrost"
	"github.com/btcsuite/btcutil/bech32"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

var registerCommand = &cli.Command{
	Name:  "register",
	Usage: "Submit a voter registration transaction",
	Flags: append([]cli.Flag{
		flagDryRun,
		flagWait,
		flagWaitInterval,
		flagAmount,
		flagTtlOffset,
		flagJson,
	}, registrationFlags...),
	Action: register,
}

var addressCommand = &cli.Command{
	Name:   "address",
	Usage:  "Print the enterprise address of the signing key",
	Action: address,
}

var metadataCommand = &cli.Command{
	Name:   "metadata",
	Usage:  "Print the registration metadata as cardano-cli json",
	Flags:  registrationFlags,
	Action: metadata,
}

var keygenCommand = &cli.Command{
	Name:   "keygen",
	Usage:  "Generate a new payment signing key",
	Flags:  []cli.Flag{flagOut},
	Action: keygen,
}

var lookupCommand = &cli.Command{
	Name:      "lookup",
	Usage:     "Read a registration back from a submitted transaction",
	ArgsUsage: "TXID",
	Flags:     []cli.Flag{flagLabel, flagJson},
	Action:    lookup,
}

func chainContext(config *Config) (*blockfrost.Client, error) {
	return blockfrost.NewClient(&blockfrost.ClientOptions{
		Network:   config.Network,
		ProjectID: config.ProjectID,
		BaseURL:   config.BaseURL,
		Timeout:   config.RequestTimeout,
	})
}

func register(cCtx *cli.Context) error {
	config, err := loadConfig(cCtx)
	if err != nil {
		return err
	}

	applyRegistrationFlags(cCtx, config)
	if cCtx.IsSet(flagDryRun.Name) {
		config.DryRun = cCtx.Bool(flagDryRun.Name)
	}
	if cCtx.IsSet(flagWait.Name) {
		config.WaitTimeout = cCtx.Duration(flagWait.Name)
	}
	if cCtx.IsSet(flagWaitInterval.Name) {
		config.WaitInterval = cCtx.Duration(flagWaitInterval.Name)
	}
	if cCtx.IsSet(flagAmount.Name) {
		config.PaymentAmount = cCtx.Uint64(flagAmount.Name)
	}
	if cCtx.IsSet(flagTtlOffset.Name) {
		config.TtlOffset = cCtx.Uint64(flagTtlOffset.Name)
	}

	// a missing key is reported before the config is checked for network
	// settings, so it never depends on a project id being present
	if !FileExists(config.KeyPath) {
		return errors.Wrapf(ErrKeyFileNotFound, "%s (generate one with 'uer keygen')", config.KeyPath)
	}

	if err = config.Validate(); err != nil {
		return err
	}

	chain, err := chainContext(config)
	if err != nil {
		return err
	}

	registrar, err := NewRegistrar(config, chain)
	if err != nil {
		return err
	}

	result, err := registrar.Register(cCtx.Context)
	if err != nil {
		return err
	}

	if cCtx.Bool(flagJson.Name) {
		return printJson(result)
	}

	switch {
	case !result.Submitted:
		printf("Registration transaction built (dry run, not submitted)\n")
	case result.Confirmed:
		printf("Registration transaction submitted and confirmed\n")
	default:
		printf("Registration transaction submitted\n")
	}
	printf("tx id:     %s\n", result.TxID)
	printf("network:   %s\n", result.Network)
	printf("address:   %s\n", result.Address)
	printf("inputs:    %s\n", strings.Join(result.Inputs, ", "))
	printf("fee:       %d lovelace\n", result.Fee)
	printf("ttl:       %d\n", result.Ttl)
	if !result.Submitted {
		printf("cbor:      %s\n", result.CborHex)
	}

	return nil
}

func address(cCtx *cli.Context) error {
	config, err := loadConfig(cCtx)
	if err != nil {
		return err
	}

	key, err := LoadSigningKey(config.KeyPath)
	if err != nil {
		return err
	}

	addr, err := key.VerificationKey().Address(config.Network)
	if err != nil {
		return err
	}

	encoded, err := addr.Bech32String(config.Network)
	if err != nil {
		return err
	}

	header, err := addr.Header()
	if err != nil {
		return err
	}

	// round trip through the raw bech32 decoder as an independent check of
	// the checksum and 5 to 8 bit conversion
	_, data, err := bech32.Decode(encoded)
	if err != nil {
		return errors.Wrap(ErrInvalidAddress, err.Error())
	}
	converted, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return errors.Wrap(ErrInvalidAddress, err.Error())
	}

	keyHash, err := key.VerificationKey().Hash()
	if err != nil {
		return err
	}

	printf("network:           %s\n", config.Network)
	printf("public key:        %s\n", key.VerificationKey())
	printf("key hash:          %x\n", keyHash)
	printf("addr header byte:  %s\n", header)
	printf("addr (8-bit):      %x\n", converted)
	printf("addr (bech32):     %s\n", encoded)

	return nil
}

func metadata(cCtx *cli.Context) error {
	config, err := loadConfig(cCtx)
	if err != nil {
		return err
	}
	applyRegistrationFlags(cCtx, config)

	return printJson(RegistrationMetadata(config.Label, config.Registration))
}

func keygen(cCtx *cli.Context) error {
	config, err := loadConfig(cCtx)
	if err != nil {
		return err
	}

	out := config.KeyPath
	if cCtx.IsSet(flagOut.Name) {
		out = cCtx.String(flagOut.Name)
	}
	vkeyOut := strings.TrimSuffix(out, filepath.Ext(out)) + ".vkey"

	for _, path := range []string{out, vkeyOut} {
		if FileExists(path) {
			return errors.Wrapf(ErrInvalidConfig, "refusing to overwrite %s", path)
		}
	}

	key, err := GenerateSigningKey()
	if err != nil {
		return err
	}

	skeyEnvelope, err := key.Envelope()
	if err != nil {
		return err
	}
	vkeyEnvelope, err := key.VerificationKey().Envelope()
	if err != nil {
		return err
	}

	if err = writeEnvelope(out, skeyEnvelope); err != nil {
		return err
	}
	if err = writeEnvelope(vkeyOut, vkeyEnvelope); err != nil {
		return err
	}

	printf("signing key:       %s\n", out)
	printf("verification key:  %s\n", vkeyOut)
	printf("public key:        %s\n", key.VerificationKey())

	for _, net := range AllNetworks {
		addr, err2 := key.VerificationKey().Address(net)
		if err2 != nil {
			return err2
		}
		encoded, err2 := addr.Bech32String(net)
		if err2 != nil {
			return err2
		}
		printf("%-19s%s\n", string(net)+":", encoded)
	}

	return nil
}

func lookup(cCtx *cli.Context) error {
	txID := cCtx.Args().First()
	if len(HexString(txID).Bytes()) != TxHashSize {
		return errors.Wrapf(ErrInvalidConfig, "'%s' is not a transaction id", txID)
	}

	config, err := loadConfig(cCtx)
	if err != nil {
		return err
	}
	applyRegistrationFlags(cCtx, config)

	if err = config.Validate(); err != nil {
		return err
	}

	chain, err := chainContext(config)
	if err != nil {
		return err
	}

	record, err := LookupRegistration(cCtx.Context, chain, txID, config.Label)
	if err != nil {
		return err
	}

	if cCtx.Bool(flagJson.Name) {
		return printJson(record)
	}

	printf("action:      %s\n", record.Action)
	printf("voter name:  %s\n", record.VoterName)
	printf("ward:        %s\n", record.Ward)
	printf("status:      %s\n", record.Status)

	return nil
}

func writeEnvelope(path string, envelope TextEnvelope) error {
	encoded, err := json.MarshalIndent(envelope, "", "    ")
	if err != nil {
		return errors.Wrap(ErrSerialization, err.Error())
	}
	if err = writeFile(path, append(encoded, '\n')); err != nil {
		return errors.Wrapf(ErrInvalidConfig, "unable to write %s: %v", path, err)
	}
	return nil
}

func printJson(v any) error {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(ErrSerialization, err.Error())
	}
	printf("%s\n", encoded)
	return nil
}
