package blockfrost

import (
	"fmt"
	"net/http"
	"strings"

	. "github.com/alexdcox/cardano-uer"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

// Error is the JSON body Blockfrost returns with every non-2xx response,
// alongside the error the SDK reported for it.
type Error struct {
	StatusCode int    `json:"status_code"`
	Err        string `json:"error"`
	Message    string `json:"message"`

	kind error
	sdk  error
}

func newError(statusCode int, path string, body []byte, sdk error) *Error {
	e := &Error{StatusCode: statusCode, sdk: sdk}

	if gjson.ValidBytes(body) {
		parsed := gjson.ParseBytes(body)
		e.Err = parsed.Get("error").String()
		e.Message = parsed.Get("message").String()
	}
	if e.Err == "" {
		e.Err = http.StatusText(statusCode)
	}
	if e.Message == "" {
		e.Message = truncate(body)
	}
	if e.Message == "" && sdk != nil {
		e.Message = sdk.Error()
	}

	e.kind = e.StdErr(path)
	return e
}

func (e *Error) Error() string {
	return fmt.Sprintf("blockfrost %d %s: %s", e.StatusCode, e.Err, e.Message)
}

// Unwrap exposes the sentinel the status maps to, so errors.Is and
// cardano.KindOf work on the wrapped error.
func (e *Error) Unwrap() error {
	return e.kind
}

// SDKError is the error the Blockfrost SDK returned for the response.
func (e *Error) SDKError() error {
	return e.sdk
}

// StdErr maps the response onto the shared sentinel errors.
func (e *Error) StdErr(path string) error {
	switch {
	case e.StatusCode == http.StatusBadRequest && strings.HasPrefix(path, "/tx/submit"):
		return ErrRejectedByNode
	case e.StatusCode == http.StatusUnauthorized, e.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case e.StatusCode == http.StatusNotFound && strings.HasPrefix(path, "/txs/"):
		return ErrTransactionNotFound
	default:
		return ErrRemoteService
	}
}

// StatusCode returns the http status of a Blockfrost error in err's chain,
// or zero.
func StatusCode(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode
	}
	return 0
}
