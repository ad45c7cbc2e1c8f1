package cardano

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrKeyFileNotFound      = fmt.Errorf("signing key file not found")
	ErrInvalidSigningKey    = fmt.Errorf("invalid signing key")
	ErrInvalidPublicKeyType = fmt.Errorf("invalid public key type")
	ErrNetworkInvalid       = fmt.Errorf("invalid network")
	ErrInvalidConfig        = fmt.Errorf("invalid config")
	ErrInvalidAddress       = fmt.Errorf("invalid address")
	ErrNotEnoughFunds       = fmt.Errorf("not enough funds")
	ErrOutputTooSmall       = fmt.Errorf("output below minimum utxo value")
	ErrTxTooLarge           = fmt.Errorf("transaction exceeds max tx size")
	ErrTxBuild              = fmt.Errorf("transaction could not be built")
	ErrNetworkUnavailable   = fmt.Errorf("chain context unreachable")
	ErrRemoteService        = fmt.Errorf("chain context request failed")
	ErrUnauthorized         = fmt.Errorf("chain context rejected project id")
	ErrRejectedByNode       = fmt.Errorf("transaction rejected by node")
	ErrSerialization        = fmt.Errorf("serialization failed")
	ErrTransactionNotFound  = fmt.Errorf("transaction not found")
)

// AllErrors lists every sentinel a remote error message may be matched back to.
var AllErrors = []error{
	ErrKeyFileNotFound,
	ErrInvalidSigningKey,
	ErrInvalidPublicKeyType,
	ErrNetworkInvalid,
	ErrInvalidConfig,
	ErrInvalidAddress,
	ErrNotEnoughFunds,
	ErrOutputTooSmall,
	ErrTxTooLarge,
	ErrTxBuild,
	ErrNetworkUnavailable,
	ErrRemoteService,
	ErrUnauthorized,
	ErrRejectedByNode,
	ErrSerialization,
	ErrTransactionNotFound,
}

type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindPrecondition
	KindInvalidConfig
	KindInsufficientFunds
	KindNetwork
	KindRejectedByNode
	KindSerialization
	KindInvalidTransaction
)

func (k ErrorKind) String() string {
	switch k {
	case KindPrecondition:
		return "precondition"
	case KindInvalidConfig:
		return "invalid config"
	case KindInsufficientFunds:
		return "insufficient funds"
	case KindNetwork:
		return "network"
	case KindRejectedByNode:
		return "rejected by node"
	case KindSerialization:
		return "serialization"
	case KindInvalidTransaction:
		return "invalid transaction"
	default:
		return "unknown"
	}
}

// ExitCode is the process exit status the CLI reports for an error of this
// kind. Zero is never returned.
func (k ErrorKind) ExitCode() int {
	return int(k) + 1
}

var errorKinds = []struct {
	kind  ErrorKind
	match []error
}{
	{KindPrecondition, []error{ErrKeyFileNotFound, ErrInvalidSigningKey}},
	{KindInvalidConfig, []error{ErrInvalidConfig, ErrNetworkInvalid, ErrInvalidAddress, ErrUnauthorized}},
	{KindInsufficientFunds, []error{ErrNotEnoughFunds}},
	{KindRejectedByNode, []error{ErrRejectedByNode}},
	{KindNetwork, []error{ErrNetworkUnavailable, ErrRemoteService}},
	{KindSerialization, []error{ErrSerialization}},
	{KindInvalidTransaction, []error{ErrOutputTooSmall, ErrTxTooLarge, ErrTxBuild, ErrInvalidPublicKeyType}},
}

// KindOf classifies err by the first sentinel found in its chain.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	for _, k := range errorKinds {
		for _, match := range k.match {
			if errors.Is(err, match) {
				return k.kind
			}
		}
	}
	return KindUnknown
}
