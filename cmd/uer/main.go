package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	. "github.com/alexdcox/cardano-uer"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

var log = Log()

// stdout receives command output.
var stdout io.Writer = os.Stdout

func newApp() *cli.App {
	return &cli.App{
		Name:           "uer",
		Usage:          "record voter registrations on the cardano blockchain",
		DefaultCommand: "register",
		Flags: []cli.Flag{
			flagConfig,
			flagNetwork,
			flagProjectID,
			flagBaseURL,
			flagKeyPath,
			flagLogLevel,
			flagRequestTimeout,
		},
		Before: before,
		Commands: []*cli.Command{
			registerCommand,
			addressCommand,
			metadataCommand,
			keygenCommand,
			lookupCommand,
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	err := run(ctx, newApp(), os.Args)
	stop()

	if code := exitCode(err); code != 0 {
		os.Exit(code)
	}
}

// exitCode logs err and returns the status its kind maps to, zero on success.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	kind := KindOf(err)
	log.Error().Msgf("%s error: %v", kind, err)
	log.Debug().Msgf("%+v", err)
	return kind.ExitCode()
}

func run(ctx context.Context, app *cli.App, args []string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("unexpected failure: %v", r)
		}
	}()
	return app.RunContext(ctx, args)
}

func before(cCtx *cli.Context) error {
	logger := Log().With().Str("run", uuid.NewString()[:8]).Logger()
	SetLogger(logger)
	return SetLogLevel(cCtx.String(flagLogLevel.Name))
}

// loadConfig layers defaults, the optional config file, then any flag or
// environment variable that was explicitly set.
func loadConfig(cCtx *cli.Context) (config *Config, err error) {
	config = DefaultConfig()
	if path := cCtx.String(flagConfig.Name); path != "" {
		if config, err = LoadConfigFile(path); err != nil {
			return
		}
	}

	if cCtx.IsSet(flagNetwork.Name) {
		config.Network = Network(cCtx.String(flagNetwork.Name))
	}
	if cCtx.IsSet(flagProjectID.Name) {
		config.ProjectID = cCtx.String(flagProjectID.Name)
	}
	if cCtx.IsSet(flagBaseURL.Name) {
		config.BaseURL = cCtx.String(flagBaseURL.Name)
	}
	if cCtx.IsSet(flagKeyPath.Name) {
		config.KeyPath = cCtx.String(flagKeyPath.Name)
	}
	if cCtx.IsSet(flagLogLevel.Name) {
		config.LogLevel = cCtx.String(flagLogLevel.Name)
	}
	if cCtx.IsSet(flagRequestTimeout.Name) {
		config.RequestTimeout = cCtx.Duration(flagRequestTimeout.Name)
	}

	if config.LogLevel != "" {
		if err = SetLogLevel(config.LogLevel); err != nil {
			return
		}
	}

	err = config.Network.Validate()
	return
}

func printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(stdout, format, args...)
}

// writeFile creates path with owner-only permissions and fails if it exists.
func writeFile(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return errors.WithStack(err)
	}
	if _, err = f.Write(data); err != nil {
		_ = f.Close()
		return errors.WithStack(err)
	}
	return errors.WithStack(f.Close())
}
