package emulator

import (
	"encoding/hex"
	"net"
	"net/http"
	"sort"
	"strconv"
	"time"

	. "github.com/alexdcox/cardano-uer"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

const (
	BasePath    = "/api/v0"
	maxPageSize = 100
)

var log = Log()

type ServerOptions struct {
	HostPort string
	// ProjectID, when set, is the only project id accepted. Otherwise any
	// non-empty project id is.
	ProjectID string
}

func (o *ServerOptions) setDefaults() {
	if o.HostPort == "" {
		o.HostPort = "localhost:3002"
	}
}

// Server exposes a Ledger through the subset of the Blockfrost API the
// registrar uses, plus a faucet.
type Server struct {
	app     *fiber.App
	ledger  *Ledger
	options *ServerOptions
}

func NewServer(options *ServerOptions, ledger *Ledger) (server *Server, err error) {
	if ledger == nil {
		err = errors.Wrap(ErrInvalidConfig, "emulator server requires a ledger")
		return
	}
	if options == nil {
		options = &ServerOptions{}
	}
	options.setDefaults()

	server = &Server{
		ledger:  ledger,
		options: options,
	}

	server.app = fiber.New(fiber.Config{
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
		IdleTimeout:           120 * time.Second,
		DisableStartupMessage: true,
	})
	server.app.Use(recover.New())
	server.app.Use(func(c *fiber.Ctx) error {
		rsp := c.Next()
		log.Debug().Msgf("http response: [%d] %s - %s %s", c.Response().StatusCode(), c.IP(), c.Method(), c.Path())
		return rsp
	})

	api := server.app.Group(BasePath, server.authenticate)
	api.Get("/health", server.getHealth)
	api.Get("/genesis", server.getGenesis)
	api.Get("/epochs/latest", server.getLatestEpoch)
	api.Get("/epochs/latest/parameters", server.getParameters)
	api.Get("/blocks/latest", server.getLatestBlock)
	api.Get("/addresses/:address/utxos", server.getUtxosForAddress)
	api.Post("/tx/submit", server.postTransactionSubmit)
	api.Get("/txs/:hash", server.getTransaction)
	api.Get("/txs/:hash/metadata", server.getTransactionMetadata)
	api.Post("/emulator/fund", server.postFund)

	return
}

func (s *Server) Start() (err error) {
	log.Info().Msgf("emulator listening on %s%s", s.options.HostPort, BasePath)
	return errors.WithStack(s.app.Listen(s.options.HostPort))
}

// Serve accepts connections on ln until Stop is called.
func (s *Server) Serve(ln net.Listener) (err error) {
	log.Info().Msgf("emulator listening on %s%s", ln.Addr(), BasePath)
	return errors.WithStack(s.app.Listener(ln))
}

func (s *Server) Stop() (err error) {
	return errors.WithStack(s.app.Shutdown())
}

// Do serves req in-process, so the server can stand in for an http.Client.
func (s *Server) Do(req *http.Request) (*http.Response, error) {
	return s.app.Test(req, -1)
}

func (s *Server) authenticate(c *fiber.Ctx) error {
	projectID := c.Get("project_id")
	if projectID == "" {
		return s.statusResponse(c, http.StatusForbidden, "Missing project token. Please include project_id in your request.")
	}
	if s.options.ProjectID != "" && projectID != s.options.ProjectID {
		return s.statusResponse(c, http.StatusForbidden, "Invalid project token.")
	}
	return c.Next()
}

func (s *Server) statusResponse(c *fiber.Ctx, statusCode int, message string) error {
	return c.Status(statusCode).JSON(map[string]any{
		"status_code": statusCode,
		"error":       http.StatusText(statusCode),
		"message":     message,
	})
}

func (s *Server) errorResponse(c *fiber.Ctx, err error) error {
	statusCode := http.StatusInternalServerError

	for _, match := range []struct {
		err    error
		status int
	}{
		{ErrTransactionNotFound, http.StatusNotFound},
		{ErrRejectedByNode, http.StatusBadRequest},
		{ErrSerialization, http.StatusBadRequest},
		{ErrInvalidPublicKeyType, http.StatusBadRequest},
		{ErrUtxoNotFound, http.StatusBadRequest},
		{ErrInvalidAddress, http.StatusBadRequest},
		{ErrOutputTooSmall, http.StatusBadRequest},
		{ErrInvalidConfig, http.StatusBadRequest},
	} {
		if errors.Is(err, match.err) {
			statusCode = match.status
			break
		}
	}

	if statusCode == http.StatusInternalServerError {
		log.Error().Msgf("%+v", err)
	}

	return s.statusResponse(c, statusCode, err.Error())
}

func (s *Server) getHealth(c *fiber.Ctx) error {
	return c.JSON(map[string]any{"is_healthy": true})
}

// genesis is fixed for the emulated network: one epoch is SlotsPerEpoch one
// second slots, starting at the first block.
func (s *Server) getGenesis(c *fiber.Ctx) error {
	return c.JSON(map[string]any{
		"active_slots_coefficient": 0.05,
		"update_quorum":            5,
		"max_lovelace_supply":      strconv.FormatUint(MaxLovelaceSupply, 10),
		"network_magic":            s.ledger.network.Magic,
		"epoch_length":             SlotsPerEpoch,
		"system_start":             s.ledger.start.Unix(),
		"slots_per_kes_period":     129600,
		"slot_length":              1,
		"max_kes_evolutions":       62,
		"security_param":           2160,
	})
}

func (s *Server) getLatestEpoch(c *fiber.Ctx) error {
	tip, err := s.ledger.Tip()
	if err != nil {
		return s.errorResponse(c, err)
	}

	epoch := tip.Slot / SlotsPerEpoch
	start := s.ledger.start.Unix() + int64(epoch*SlotsPerEpoch)
	return c.JSON(map[string]any{
		"epoch":            epoch,
		"start_time":       start,
		"end_time":         start + SlotsPerEpoch,
		"first_block_time": start,
		"last_block_time":  tip.Time,
		"block_count":      tip.Height,
		"tx_count":         tip.Height,
		"output":           "0",
		"fees":             "0",
		"active_stake":     nil,
	})
}

// getParameters answers with every field of the Blockfrost epoch parameters
// object, typed the way Blockfrost types them. Only the fee, size and utxo
// cost fields are enforced by the ledger.
func (s *Server) getParameters(c *fiber.Ctx) error {
	tip, err := s.ledger.Tip()
	if err != nil {
		return s.errorResponse(c, err)
	}

	params := s.ledger.Params()
	coinsPerUtxoByte := strconv.FormatUint(params.CoinsPerUtxoByte, 10)
	return c.JSON(map[string]any{
		"epoch":                  tip.Slot / SlotsPerEpoch,
		"min_fee_a":              params.MinFeeA,
		"min_fee_b":              params.MinFeeB,
		"max_block_size":         90112,
		"max_tx_size":            params.MaxTxSize,
		"max_block_header_size":  1100,
		"key_deposit":            "2000000",
		"pool_deposit":           "500000000",
		"e_max":                  18,
		"n_opt":                  500,
		"a0":                     0.3,
		"rho":                    0.003,
		"tau":                    0.2,
		"decentralisation_param": 0,
		"extra_entropy":          nil,
		"protocol_major_ver":     8,
		"protocol_minor_ver":     0,
		"min_utxo":               coinsPerUtxoByte,
		"min_pool_cost":          "170000000",
		"nonce":                  hex.EncodeToString(make([]byte, 32)),
		"price_mem":              0.0577,
		"price_step":             0.0000721,
		"max_tx_ex_mem":          "14000000",
		"max_tx_ex_steps":        "10000000000",
		"max_block_ex_mem":       "62000000",
		"max_block_ex_steps":     "20000000000",
		"max_val_size":           "5000",
		"collateral_percent":     150,
		"max_collateral_inputs":  3,
		"coins_per_utxo_size":    coinsPerUtxoByte,
		"coins_per_utxo_word":    coinsPerUtxoByte,
		"cost_models":            map[string]any{"PlutusV1": map[string]int{}, "PlutusV2": map[string]int{}},
	})
}

func blockResponse(block Block) map[string]any {
	return map[string]any{
		"hash":   block.Hash,
		"height": block.Height,
		"slot":   block.Slot,
		"epoch":  block.Slot / SlotsPerEpoch,
		"time":   block.Time,
	}
}

func (s *Server) getLatestBlock(c *fiber.Ctx) error {
	tip, err := s.ledger.Tip()
	if err != nil {
		return s.errorResponse(c, err)
	}
	return c.JSON(blockResponse(tip))
}

func lovelace(amount uint64) []map[string]string {
	return []map[string]string{{
		"unit":     "lovelace",
		"quantity": strconv.FormatUint(amount, 10),
	}}
}

func (s *Server) getUtxosForAddress(c *fiber.Ctx) error {
	address := c.Params("address")

	utxos, err := s.ledger.Utxos(address)
	if err != nil {
		return s.errorResponse(c, err)
	}

	page := c.QueryInt("page", 1)
	count := c.QueryInt("count", maxPageSize)
	if page < 1 || count < 1 || count > maxPageSize {
		return s.statusResponse(c, http.StatusBadRequest, "Invalid pagination parameters.")
	}

	if len(utxos) == 0 && page == 1 {
		return s.statusResponse(c, http.StatusNotFound, "The requested component has not been found.")
	}

	response := []any{}
	start := (page - 1) * count
	for i := start; i < len(utxos) && i < start+count; i++ {
		u := utxos[i]
		response = append(response, map[string]any{
			"address":               u.Address,
			"tx_hash":               u.TxHash.String(),
			"tx_index":              u.Index,
			"output_index":          u.Index,
			"amount":                lovelace(u.Amount),
			"block":                 "",
			"data_hash":             nil,
			"inline_datum":          nil,
			"reference_script_hash": nil,
		})
	}

	return c.JSON(response)
}

func (s *Server) postTransactionSubmit(c *fiber.Ctx) error {
	if c.Get(fiber.HeaderContentType) != "application/cbor" {
		return s.statusResponse(c, http.StatusUnsupportedMediaType, "Content-Type must be application/cbor.")
	}

	raw := append([]byte{}, c.Body()...)
	txID, err := s.ledger.Submit(raw)
	if err != nil {
		return s.errorResponse(c, err)
	}

	return c.JSON(txID)
}

func (s *Server) getTransaction(c *fiber.Ctx) error {
	record, err := s.ledger.Tx(c.Params("hash"))
	if err != nil {
		return s.errorResponse(c, err)
	}

	return c.JSON(map[string]any{
		"hash":           record.Hash,
		"block":          record.Block.Hash,
		"block_height":   record.Block.Height,
		"block_time":     record.Block.Time,
		"slot":           record.Block.Slot,
		"index":          0,
		"output_amount":  lovelace(record.OutputTotal()),
		"fees":           strconv.FormatUint(record.Fee, 10),
		"size":           record.Size,
		"utxo_count":     len(record.Inputs) + len(record.Outputs),
		"valid_contract": true,
	})
}

func (s *Server) getTransactionMetadata(c *fiber.Ctx) error {
	record, err := s.ledger.Tx(c.Params("hash"))
	if err != nil {
		return s.errorResponse(c, err)
	}

	response := []any{}
	if len(record.AuxData) == 0 {
		return c.JSON(response)
	}

	metadata, err := DecodeMetadata(record.AuxData)
	if err != nil {
		return s.errorResponse(c, err)
	}

	labels := make([]uint64, 0, len(metadata))
	for label := range metadata {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i] < labels[j] })

	for _, label := range labels {
		response = append(response, map[string]any{
			"label":         strconv.FormatUint(label, 10),
			"json_metadata": NormalizeMetadatum(metadata[label]),
		})
	}

	return c.JSON(response)
}

func (s *Server) postFund(c *fiber.Ctx) error {
	body := c.Body()
	if !gjson.ValidBytes(body) {
		return s.statusResponse(c, http.StatusBadRequest, "Request body must be json.")
	}

	in := gjson.ParseBytes(body)
	address := in.Get("address").String()
	amount := in.Get("amount").Uint()

	record, err := s.ledger.Fund(address, amount)
	if err != nil {
		return s.errorResponse(c, err)
	}

	return c.Status(http.StatusCreated).JSON(map[string]any{
		"tx_hash":      record.Hash,
		"output_index": 0,
		"address":      address,
		"amount":       lovelace(amount),
		"block_height": record.Block.Height,
	})
}
