package cardano

import "github.com/pkg/errors"

func init() {
	MainNetParams.Name = NetworkMainNet
	MainNetParams.Magic = NetworkMagicMainNet
	MainNetParams.HeaderNetwork = AddressHeaderNetworkMainnet
	MainNetParams.AddressPrefix = "addr"
	MainNetParams.DelegationPrefix = "stake"
	MainNetParams.BlockfrostURL = "https://cardano-mainnet.blockfrost.io/api/v0"

	PreProdParams.Name = NetworkPreProd
	PreProdParams.Magic = NetworkMagicPreProd
	PreProdParams.HeaderNetwork = AddressHeaderNetworkTestnet
	PreProdParams.AddressPrefix = "addr_test"
	PreProdParams.DelegationPrefix = "stake_test"
	PreProdParams.BlockfrostURL = "https://cardano-preprod.blockfrost.io/api/v0"

	PreviewParams.Name = NetworkPreview
	PreviewParams.Magic = NetworkMagicPreview
	PreviewParams.HeaderNetwork = AddressHeaderNetworkTestnet
	PreviewParams.AddressPrefix = "addr_test"
	PreviewParams.DelegationPrefix = "stake_test"
	PreviewParams.BlockfrostURL = "https://cardano-preview.blockfrost.io/api/v0"

	PrivateNetParams.Name = NetworkPrivateNet
	PrivateNetParams.Magic = NetworkMagicPrivateNet
	PrivateNetParams.HeaderNetwork = AddressHeaderNetworkTestnet
	PrivateNetParams.AddressPrefix = "addr_test"
	PrivateNetParams.DelegationPrefix = "stake_test"
	PrivateNetParams.BlockfrostURL = "http://localhost:3002/api/v0"
}

type NetworkParams struct {
	Name             Network
	Magic            NetworkMagic
	HeaderNetwork    AddressHeaderNetwork
	AddressPrefix    string
	DelegationPrefix string
	// BlockfrostURL is the default chain context endpoint. For privnet this
	// points at a locally running emulator.
	BlockfrostURL string
}

var MainNetParams = NetworkParams{}
var PreProdParams = NetworkParams{}
var PreviewParams = NetworkParams{}
var PrivateNetParams = NetworkParams{}

const (
	NetworkMainNet    Network = "mainnet"
	NetworkPreProd    Network = "preprod"
	NetworkPreview    Network = "preview"
	NetworkPrivateNet Network = "privnet"
)

var AllNetworks = []Network{
	NetworkMainNet,
	NetworkPreProd,
	NetworkPreview,
	NetworkPrivateNet,
}

type Network string

func (n Network) Valid() bool {
	for _, known := range AllNetworks {
		if n == known {
			return true
		}
	}
	return false
}

func (n Network) Validate() (err error) {
	if !n.Valid() {
		err = errors.Wrapf(ErrNetworkInvalid, "'%s'", n)
	}
	return
}

func (n Network) Params() (params *NetworkParams, err error) {
	if err = n.Validate(); err != nil {
		return
	}

	switch n {
	case NetworkMainNet:
		return &MainNetParams, nil
	case NetworkPreProd:
		return &PreProdParams, nil
	case NetworkPreview:
		return &PreviewParams, nil
	case NetworkPrivateNet:
		return &PrivateNetParams, nil
	}

	return
}

type NetworkMagic uint64

const (
	NetworkMagicMainNet    NetworkMagic = 764824073
	NetworkMagicPreProd    NetworkMagic = 1
	NetworkMagicPreview    NetworkMagic = 2
	NetworkMagicPrivateNet NetworkMagic = 42
)
