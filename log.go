package cardano

import (
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
)

var log = zerolog.New(nil).Output(zerolog.ConsoleWriter{
	Out:        os.Stderr,
	TimeFormat: time.TimeOnly,
}).With().Timestamp().Logger()

func Log() *zerolog.Logger {
	return &log
}

// SetLogger replaces the package logger. Loggers already handed out by Log
// see the change.
func SetLogger(logger zerolog.Logger) {
	log = logger
}

func init() {
	zerolog.TimeFieldFormat = time.TimeOnly
	zerolog.ErrorStackMarshaler = MarshalStack
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

// SetLogLevel parses level (trace|debug|info|warn|error|fatal) and applies it
// globally. An empty level leaves the current setting untouched.
func SetLogLevel(level string) (err error) {
	if level == "" {
		return
	}
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		return errors.Wrapf(ErrInvalidConfig, "log level '%s': %v", level, err)
	}
	zerolog.SetGlobalLevel(parsed)
	return
}

func MarshalStack(err error) interface{} {
	return pkgerrors.MarshalStack(err)
}

func StackTracerMessage(err error) string {
	type StackTracer interface {
		StackTrace() errors.StackTrace
	}

	var errString string

	if err != nil {
		if stackTracer, isStackTracer := err.(StackTracer); isStackTracer {
			for _, f := range stackTracer.StackTrace() {
				errString += fmt.Sprintf("%+v\n", f)
			}
		}
	}

	return errString
}
