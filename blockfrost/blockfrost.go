package blockfrost

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Salvionied/apollo/txBuilding/Backend/Base"
	"github.com/Salvionied/apollo/txBuilding/Backend/BlockFrostChainContext"
	. "github.com/alexdcox/cardano-uer"
	bfgo "github.com/blockfrost/blockfrost-go"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	ProjectIDHeader = "project_id"
	DefaultTimeout  = 30 * time.Second

	utxoPageSize = 100
)

// Doer is satisfied by *http.Client. Tests substitute an in-process server.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type ClientOptions struct {
	Network   Network
	ProjectID string
	// BaseURL overrides the network's hosted endpoint.
	BaseURL    string
	Timeout    time.Duration
	HttpClient Doer
}

func (o *ClientOptions) setDefaults() {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}

	if o.HttpClient == nil {
		o.HttpClient = &http.Client{Timeout: o.Timeout}
	}
}

// NewClient validates the options and returns a chain context. It performs
// no network activity.
func NewClient(options *ClientOptions) (client *Client, err error) {
	if options == nil {
		options = &ClientOptions{}
	}
	options.setDefaults()

	params, err := options.Network.Params()
	if err != nil {
		return
	}

	if options.ProjectID == "" {
		err = errors.Wrap(ErrInvalidConfig, "blockfrost project id is empty")
		return
	}
	if err = ValidateProjectID(options.ProjectID, options.Network); err != nil {
		return
	}

	baseURL := options.BaseURL
	if baseURL == "" {
		baseURL = params.BlockfrostURL
	}
	if baseURL, err = ValidateBaseURL(baseURL); err != nil {
		return
	}

	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidConfig, "blockfrost url: %v", err)
	}

	client = &Client{
		options: options,
		baseURL: baseURL,
		params:  params,
		log:     Log(),
	}

	client.api = bfgo.NewAPIClient(bfgo.APIClientOptions{
		ProjectID: options.ProjectID,
		Server:    baseURL,
		Client: &recorder{
			doer:     options.HttpClient,
			basePath: strings.TrimSuffix(parsed.Path, "/"),
			log:      client.log,
		},
	})

	return
}

// Client answers chain queries through the Blockfrost SDK. The transaction
// builder's backend is apollo's Blockfrost chain context on the same
// endpoint, created on first use.
type Client struct {
	options *ClientOptions
	baseURL string
	params  *NetworkParams
	api     bfgo.APIClient
	log     *zerolog.Logger

	mu      sync.Mutex
	backend Base.ChainContext
}

var _ ChainContext = &Client{}
var _ TxConfirmer = &Client{}
var _ MetadataReader = &Client{}

// Backend queries the endpoint for the current epoch, genesis and protocol
// parameters the first time it is called.
func (c *Client) Backend(ctx context.Context) (Base.ChainContext, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(ErrNetworkUnavailable, err.Error())
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.backend != nil {
		return c.backend, nil
	}

	bfc, err := BlockFrostChainContext.NewBlockfrostChainContext(c.baseURL, int(c.params.Name.ApolloNetwork()), c.options.ProjectID)
	if err != nil {
		return nil, errors.Wrapf(ErrRemoteService, "blockfrost chain context at %s: %v", c.baseURL, err)
	}

	c.backend = &bfc
	return c.backend, nil
}

// Utxos pages through every output held by address. Blockfrost answers 404
// for an address it has never seen, which is an empty set here.
func (c *Client) Utxos(ctx context.Context, address string) (utxos []Utxo, err error) {
	for page := 1; ; page++ {
		var items []bfgo.AddressUTXO
		err = c.call(ctx, func(ctx context.Context) (err error) {
			items, err = c.api.AddressUTXOs(ctx, address, bfgo.APIQueryParams{Count: utxoPageSize, Page: page})
			return
		})
		if err != nil {
			if StatusCode(err) == http.StatusNotFound {
				return utxos, nil
			}
			return nil, err
		}

		for _, item := range items {
			utxo, err2 := parseUtxo(address, item)
			if err2 != nil {
				return nil, err2
			}
			utxos = append(utxos, utxo)
		}

		if len(items) < utxoPageSize {
			return utxos, nil
		}
	}
}

func parseUtxo(address string, item bfgo.AddressUTXO) (utxo Utxo, err error) {
	txHash := HexString(item.TxHash).Bytes()
	if len(txHash) != TxHashSize {
		err = errors.Wrapf(ErrRemoteService, "utxo has invalid tx hash '%s'", item.TxHash)
		return
	}
	if item.OutputIndex < 0 {
		err = errors.Wrapf(ErrRemoteService, "utxo %s has negative output index", item.TxHash)
		return
	}

	utxo = Utxo{
		TxHash:  txHash,
		Index:   uint32(item.OutputIndex),
		Address: address,
	}

	for _, amount := range item.Amount {
		if amount.Unit != "lovelace" {
			utxo.HasAssets = true
			continue
		}
		quantity, err2 := strconv.ParseUint(amount.Quantity, 10, 64)
		if err2 != nil {
			err = errors.Wrapf(ErrRemoteService, "utxo %s has invalid lovelace quantity: %v", utxo.Ref(), err2)
			return
		}
		utxo.Amount = quantity
	}

	return
}

func (c *Client) Tip(ctx context.Context) (tip *Tip, err error) {
	var block bfgo.Block
	err = c.call(ctx, func(ctx context.Context) (err error) {
		block, err = c.api.BlockLatest(ctx)
		return
	})
	if err != nil {
		return
	}

	if block.Slot < 0 || block.Height < 0 {
		return nil, errors.Wrapf(ErrRemoteService, "latest block %s has a negative slot or height", block.Hash)
	}

	tip = &Tip{
		Slot:   uint64(block.Slot),
		Height: uint64(block.Height),
		Hash:   block.Hash,
	}
	return
}

// SubmitTx posts the raw transaction bytes. Blockfrost answers with the tx
// id; a 400 means the node refused the transaction.
func (c *Client) SubmitTx(ctx context.Context, tx []byte) (txID string, err error) {
	err = c.call(ctx, func(ctx context.Context) (err error) {
		txID, err = c.api.TransactionSubmit(ctx, tx)
		return
	})
	if err != nil {
		return
	}

	txID = strings.Trim(txID, "\"")
	if len(HexString(txID).Bytes()) != TxHashSize {
		err = errors.Wrapf(ErrRemoteService, "submit returned '%s', expected a tx id", truncate([]byte(txID)))
		return "", err
	}

	c.log.Debug().Msgf("blockfrost accepted %s", txID)
	return
}

// TxConfirmed reports whether the transaction is in a block.
func (c *Client) TxConfirmed(ctx context.Context, txID string) (confirmed bool, err error) {
	var content bfgo.TransactionContent
	err = c.call(ctx, func(ctx context.Context) (err error) {
		content, err = c.api.Transaction(ctx, txID)
		return
	})
	if err != nil {
		if StatusCode(err) == http.StatusNotFound {
			return false, nil
		}
		return
	}
	return content.Block != "" || content.BlockHeight > 0, nil
}

func (c *Client) TxMetadata(ctx context.Context, txID string) (metadata Metadata, err error) {
	var entries []bfgo.TransactionMetadata
	err = c.call(ctx, func(ctx context.Context) (err error) {
		entries, err = c.api.TransactionMetadata(ctx, txID)
		return
	})
	if err != nil {
		if StatusCode(err) == http.StatusNotFound {
			err = errors.Wrapf(ErrTransactionNotFound, "%s", txID)
		}
		return
	}

	metadata = Metadata{}
	for _, entry := range entries {
		label, err2 := strconv.ParseUint(entry.Label, 10, 64)
		if err2 != nil {
			err = errors.Wrapf(ErrRemoteService, "metadata label '%s' is not numeric", entry.Label)
			return nil, err
		}
		metadata[label] = entry.JsonMetadata
	}
	return
}

func truncate(data []byte) string {
	const limit = 256
	if len(data) > limit {
		return string(data[:limit]) + "..."
	}
	return string(data)
}
