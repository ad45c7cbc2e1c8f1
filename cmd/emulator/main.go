package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	. "github.com/alexdcox/cardano-uer"
	"github.com/alexdcox/cardano-uer/emulator"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

type _config struct {
	DatabasePath     string `json:"databasepath"`
	Network          string `json:"network"`
	HostPort         string `json:"hostport"`
	ProjectID        string `json:"projectid"`
	LogLevel         string `json:"loglevel"`
	MinFeeA          uint64 `json:"minfeea"`
	MinFeeB          uint64 `json:"minfeeb"`
	MaxTxSize        uint64 `json:"maxtxsize"`
	CoinsPerUtxoByte uint64 `json:"coinsperutxobyte"`
}

func (c *_config) Load() (err error) {
	flag.StringVar(&c.DatabasePath, "databasepath", "", "Path to the emulator sqlite database, in memory when empty")
	flag.StringVar(&c.Network, "network", string(NetworkPrivateNet), "Set network (mainnet|preprod|preview|privnet)")
	flag.StringVar(&c.HostPort, "hostport", "localhost:3002", "Set host:port for the http listener")
	flag.StringVar(&c.ProjectID, "projectid", "", "Only accept this project id (default: accept any)")
	flag.StringVar(&c.LogLevel, "loglevel", "", "Set the log level (trace|debug|info|warn|error|fatal) Can also be set via the CARDANO_EMULATOR_LOG_LEVEL environment variable")
	flag.Uint64Var(&c.MinFeeA, "minfeea", emulator.DefaultProtocolParams.MinFeeA, "Fee per transaction byte")
	flag.Uint64Var(&c.MinFeeB, "minfeeb", emulator.DefaultProtocolParams.MinFeeB, "Constant fee per transaction")
	flag.Uint64Var(&c.MaxTxSize, "maxtxsize", emulator.DefaultProtocolParams.MaxTxSize, "Maximum transaction size in bytes")
	flag.Uint64Var(&c.CoinsPerUtxoByte, "coinsperutxobyte", emulator.DefaultProtocolParams.CoinsPerUtxoByte, "Lovelace per output byte for the minimum utxo value")
	flag.Parse()

	if err = Network(c.Network).Validate(); err != nil {
		return
	}

	return
}

var log = Log()

var config *_config

func main() {
	config = &_config{}

	if err := config.Load(); err != nil {
		log.Fatal().Msgf("%+v", err)
	}

	if config.LogLevel == "" {
		envLogLevel := os.Getenv("CARDANO_EMULATOR_LOG_LEVEL")
		if envLogLevel != "" {
			config.LogLevel = envLogLevel
		} else {
			config.LogLevel = "info"
		}
	}
	logLevel, err := zerolog.ParseLevel(config.LogLevel)
	if err != nil {
		log.Fatal().Msgf("%+v", errors.WithStack(err))
	}

	log.Info().Msgf("setting log level to: '%s'", logLevel)
	zerolog.SetGlobalLevel(logLevel)

	var db emulator.Database
	if config.DatabasePath == "" {
		log.Info().Msg("using in memory ledger, state is lost on shutdown")
		db = emulator.NewInMemoryDatabase()
	} else {
		db, err = emulator.NewSqlLiteDatabase(config.DatabasePath)
		if err != nil {
			log.Fatal().Msgf("%+v", err)
		}
	}

	ledger, err := emulator.NewLedger(db, Network(config.Network), emulator.ProtocolParams{
		MinFeeA:          config.MinFeeA,
		MinFeeB:          config.MinFeeB,
		MaxTxSize:        config.MaxTxSize,
		CoinsPerUtxoByte: config.CoinsPerUtxoByte,
	})
	if err != nil {
		log.Fatal().Msgf("%+v", err)
	}

	server, err := emulator.NewServer(&emulator.ServerOptions{
		HostPort:  config.HostPort,
		ProjectID: config.ProjectID,
	}, ledger)
	if err != nil {
		log.Fatal().Msgf("%+v", err)
	}

	go func() {
		if err := server.Start(); err != nil {
			log.Fatal().Msgf("%+v", err)
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	<-c

	log.Info().Msg("caught interrupt/terminate signal, attempting graceful shutdown...")

	if err = server.Stop(); err != nil {
		log.Fatal().Msgf("%+v", err)
	}

	if err = db.Close(); err != nil {
		log.Fatal().Msgf("%+v", err)
	}

	log.Info().Msg("graceful shutdown complete")
}
