package cardano

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"

	"github.com/cosmos/cosmos-sdk/types/bech32"
	"github.com/pkg/errors"
)

// Address is the raw (header byte + credential hashes) form of a Shelley
// address. Use Bech32String for the human readable form.
type Address []byte

func (a Address) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf(`"%s"`, a)), nil
}

func (a Address) String() string {
	return hex.EncodeToString(a)
}

func (a Address) Header() (header AddressHeader, err error) {
	if len(a) == 0 {
		err = errors.Wrap(ErrInvalidAddress, "cannot get header for empty address")
		return
	}
	header = AddressHeader(a[0])
	return
}

func (a Address) Type() (typ AddressType, err error) {
	header, err := a.Header()
	if err != nil {
		return
	}
	return header.Type()
}

func (a Address) Network() (net AddressHeaderNetwork, err error) {
	header, err := a.Header()
	if err != nil {
		return
	}
	return header.Network()
}

// PaymentKeyHash returns the 28 byte payment credential of a key-hash
// address.
func (a Address) PaymentKeyHash() (hash []byte, err error) {
	typ, err := a.Type()
	if err != nil {
		return
	}
	if !typ.HasPaymentKey() {
		err = errors.Wrapf(ErrInvalidAddress, "%s address has no payment key hash", typ)
		return
	}
	if len(a) < 1+KeyHashSize {
		err = errors.Wrapf(ErrInvalidAddress, "address too short: %d bytes", len(a))
		return
	}
	return a[1 : 1+KeyHashSize], nil
}

func (a Address) Bech32String(network Network) (encoded string, err error) {
	params, err := network.Params()
	if err != nil {
		return
	}

	encoded, err = bech32.ConvertAndEncode(params.AddressPrefix, a)
	if err != nil {
		err = errors.Wrapf(ErrInvalidAddress, "failed to convert to bech32: %+v", err)
		return
	}

	return
}

func (a *Address) ParseBech32String(encoded string, network Network) (err error) {
	params, err := network.Params()
	if err != nil {
		return
	}

	prefix, addr, err := bech32.DecodeAndConvert(encoded)
	if err != nil {
		return errors.Wrapf(ErrInvalidAddress, "failed to decode bech32 address: %+v", err)
	}

	if prefix != params.AddressPrefix {
		return errors.Wrapf(
			ErrInvalidAddress,
			"invalid payment prefix for %s: expected '%s', got '%s'",
			network,
			params.AddressPrefix,
			prefix,
		)
	}

	header, err := Address(addr).Header()
	if err != nil {
		return
	}
	if err = header.Validate(); err != nil {
		return
	}
	if header.NetworkBits() != params.HeaderNetwork {
		return errors.Wrapf(ErrInvalidAddress, "address header %s is not for network %s", header, network)
	}

	*a = addr
	return nil
}

// DecodeAddress accepts a Bech32 address string and parses it into a Cardano
// Address.
func DecodeAddress(address string, network Network) (decoded Address, err error) {
	addr := &Address{}
	err = addr.ParseBech32String(address, network)
	decoded = *addr
	return
}

// EncodeAddress accepts an Ed25519 public key and returns the Cardano address
// carrying its key hash. Only single-credential types can be built from one
// key.
func EncodeAddress(publicKey []byte, net Network, typ AddressType) (addr Address, err error) {
	params, err := net.Params()
	if err != nil {
		return
	}

	if typ != AddressTypePayment {
		err = errors.Wrapf(ErrInvalidAddress, "cannot build %s address from a single key", typ)
		return
	}

	if len(publicKey) != ed25519.PublicKeySize {
		err = errors.Wrapf(
			ErrInvalidPublicKeyType,
			"expected a %d length ed25519 public key, got %d bytes",
			ed25519.PublicKeySize,
			len(publicKey))
		return
	}

	hash, err := Blake2bSum224(publicKey)
	if err != nil {
		return
	}

	header := NewAddressHeader(typ, params.HeaderNetwork)

	addr = append([]byte{byte(header)}, hash...)

	return
}

// AddressType is the high nibble of the address header byte.
type AddressType byte

const (
	AddressTypePaymentAndStake   AddressType = 0x0
	AddressTypeScriptAndStake    AddressType = 0x1
	AddressTypePaymentAndScript  AddressType = 0x2
	AddressTypeScriptAndScript   AddressType = 0x3
	AddressTypePaymentAndPointer AddressType = 0x4
	AddressTypeScriptAndPointer  AddressType = 0x5
	AddressTypePayment           AddressType = 0x6
	AddressTypeScript            AddressType = 0x7
	AddressTypeStakeReward       AddressType = 0xe
	AddressTypeScriptReward      AddressType = 0xf
)

var addressTypeNames = map[AddressType]string{
	AddressTypePaymentAndStake:   "payment and stake",
	AddressTypeScriptAndStake:    "script and stake",
	AddressTypePaymentAndScript:  "payment and script",
	AddressTypeScriptAndScript:   "script and script",
	AddressTypePaymentAndPointer: "payment and pointer",
	AddressTypeScriptAndPointer:  "script and pointer",
	AddressTypePayment:           "payment",
	AddressTypeScript:            "script",
	AddressTypeStakeReward:       "stake reward",
	AddressTypeScriptReward:      "script reward",
}

func (a AddressType) String() string {
	if name, ok := addressTypeNames[a]; ok {
		return name
	}
	return "invalid"
}

func (a AddressType) Valid() bool {
	_, ok := addressTypeNames[a]
	return ok
}

// HasPaymentKey reports whether the first credential is a key hash.
func (a AddressType) HasPaymentKey() bool {
	switch a {
	case AddressTypePaymentAndStake,
		AddressTypePaymentAndScript,
		AddressTypePaymentAndPointer,
		AddressTypePayment:
		return true
	}
	return false
}

// AddressHeaderNetwork is the low nibble of the address header byte.
type AddressHeaderNetwork byte

const (
	AddressHeaderNetworkTestnet AddressHeaderNetwork = 0x0
	AddressHeaderNetworkMainnet AddressHeaderNetwork = 0x1
)

func (a AddressHeaderNetwork) String() string {
	switch a {
	case AddressHeaderNetworkTestnet:
		return "testnet"
	case AddressHeaderNetworkMainnet:
		return "mainnet"
	default:
		return "unknown"
	}
}

type AddressHeader byte

func NewAddressHeader(typ AddressType, network AddressHeaderNetwork) AddressHeader {
	return AddressHeader(byte(typ)<<4 | byte(network)&0x0f)
}

func (a AddressHeader) TypeBits() AddressType {
	return AddressType(a >> 4)
}

func (a AddressHeader) NetworkBits() AddressHeaderNetwork {
	return AddressHeaderNetwork(a & 0x0f)
}

func (a AddressHeader) String() string {
	typ, err := a.Type()
	if err != nil {
		return fmt.Sprintf("%08b (invalid)", byte(a))
	}
	network, err := a.Network()
	if err != nil {
		return fmt.Sprintf("%08b (invalid)", byte(a))
	}
	return fmt.Sprintf("%s/%s | 0x%02x | %08b", typ, network, byte(a), byte(a))
}

func (a AddressHeader) Network() (network AddressHeaderNetwork, err error) {
	network = a.NetworkBits()
	if network != AddressHeaderNetworkMainnet && network != AddressHeaderNetworkTestnet {
		err = errors.Wrapf(ErrInvalidAddress, "invalid network bits in address header: %08b", byte(a))
	}
	return
}

func (a AddressHeader) Type() (typ AddressType, err error) {
	typ = a.TypeBits()
	if !typ.Valid() {
		err = errors.Wrapf(ErrInvalidAddress, "invalid type bits in address header: %08b", byte(a))
	}
	return
}

func (a AddressHeader) Validate() (err error) {
	if _, networkErr := a.Network(); networkErr != nil {
		return networkErr
	}
	if _, typeErr := a.Type(); typeErr != nil {
		return typeErr
	}
	return
}

func (a AddressHeader) Valid() bool {
	return a.Validate() == nil
}
