package main

import (
	. "github.com/alexdcox/cardano-uer"
	"github.com/urfave/cli/v2"
)

var flagConfig = &cli.StringFlag{
	Name:    "config",
	Usage:   "Path to a yaml config file",
	EnvVars: []string{"UER_CONFIG"},
}

var flagNetwork = &cli.StringFlag{
	Name:    "network",
	Value:   string(NetworkPreProd),
	Usage:   "Cardano network (mainnet|preprod|preview|privnet)",
	EnvVars: []string{"UER_NETWORK"},
}

var flagProjectID = &cli.StringFlag{
	Name:    "project-id",
	Usage:   "Blockfrost project id",
	EnvVars: []string{"BLOCKFROST_PROJECT_ID"},
}

var flagBaseURL = &cli.StringFlag{
	Name:    "base-url",
	Usage:   "Override the blockfrost api url, e.g. a local emulator",
	EnvVars: []string{"UER_BASE_URL"},
}

var flagKeyPath = &cli.StringFlag{
	Name:    "key",
	Value:   "winning_voter.skey",
	Usage:   "Path to the cardano-cli payment signing key",
	EnvVars: []string{"UER_KEY_PATH"},
}

var flagLogLevel = &cli.StringFlag{
	Name:    "log-level",
	Usage:   "Log level (trace|debug|info|warn|error|fatal)",
	EnvVars: []string{"UER_LOG_LEVEL"},
}

var flagRequestTimeout = &cli.DurationFlag{
	Name:    "request-timeout",
	Usage:   "Timeout for each blockfrost request",
	EnvVars: []string{"UER_REQUEST_TIMEOUT"},
}

var flagDryRun = &cli.BoolFlag{
	Name:  "dry-run",
	Usage: "Build and sign the transaction without submitting it",
}

var flagWait = &cli.DurationFlag{
	Name:  "wait",
	Usage: "Wait up to this long for the transaction to be confirmed",
}

var flagWaitInterval = &cli.DurationFlag{
	Name:  "wait-interval",
	Usage: "How often to check for confirmation while waiting",
}

var flagAmount = &cli.Uint64Flag{
	Name:  "amount",
	Usage: "Lovelace sent back to the registering address",
}

var flagTtlOffset = &cli.Uint64Flag{
	Name:  "ttl-offset",
	Usage: "Slots after the current tip before the transaction expires",
}

var flagLabel = &cli.Uint64Flag{
	Name:  "label",
	Usage: "Metadata label the registration is recorded under",
}

var flagAction = &cli.StringFlag{
	Name:  "action",
	Usage: "Registration action field",
}

var flagVoterName = &cli.StringFlag{
	Name:  "voter-name",
	Usage: "Registration voter name field",
}

var flagWard = &cli.StringFlag{
	Name:  "ward",
	Usage: "Registration ward field",
}

var flagStatus = &cli.StringFlag{
	Name:  "status",
	Usage: "Registration status field",
}

var flagJson = &cli.BoolFlag{
	Name:  "json",
	Usage: "Print the result as json",
}

var flagOut = &cli.StringFlag{
	Name:  "out",
	Usage: "Where to write the new signing key, defaults to --key",
}

var registrationFlags = []cli.Flag{
	flagLabel,
	flagAction,
	flagVoterName,
	flagWard,
	flagStatus,
}

// applyRegistrationFlags overlays the record and label flags onto config.
func applyRegistrationFlags(cCtx *cli.Context, config *Config) {
	if cCtx.IsSet(flagLabel.Name) {
		config.Label = cCtx.Uint64(flagLabel.Name)
	}
	if cCtx.IsSet(flagAction.Name) {
		config.Registration.Action = cCtx.String(flagAction.Name)
	}
	if cCtx.IsSet(flagVoterName.Name) {
		config.Registration.VoterName = cCtx.String(flagVoterName.Name)
	}
	if cCtx.IsSet(flagWard.Name) {
		config.Registration.Ward = cCtx.String(flagWard.Name)
	}
	if cCtx.IsSet(flagStatus.Name) {
		config.Registration.Status = cCtx.String(flagStatus.Name)
	}
}
