package blockfrost

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"

	. "github.com/alexdcox/cardano-uer"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

type exchangeKey struct{}

// exchange is what the recorder saw of the request an SDK call made.
type exchange struct {
	method    string
	path      string
	status    int
	body      []byte
	transport error
}

// recorder sits between the SDK and the http client. It keeps the status and
// body of failed responses so that errors can be classified by what
// Blockfrost actually answered, then hands the response on unchanged.
type recorder struct {
	doer     Doer
	basePath string
	log      *zerolog.Logger
}

func (r *recorder) Do(req *http.Request) (*http.Response, error) {
	r.log.Trace().Msgf("blockfrost request: %s %s", req.Method, req.URL.Path)

	ex, _ := req.Context().Value(exchangeKey{}).(*exchange)
	if ex != nil {
		ex.method = req.Method
		ex.path = strings.TrimPrefix(req.URL.Path, r.basePath)
		ex.status, ex.body, ex.transport = 0, nil, nil
	}

	rsp, err := r.doer.Do(req)
	if ex == nil {
		return rsp, err
	}
	if err != nil {
		ex.transport = err
		return rsp, err
	}

	ex.status = rsp.StatusCode
	if rsp.StatusCode/100 != 2 {
		body, readErr := io.ReadAll(rsp.Body)
		_ = rsp.Body.Close()
		if readErr != nil {
			ex.transport = readErr
		}
		ex.body = body
		rsp.Body = io.NopCloser(bytes.NewReader(body))
	}
	return rsp, nil
}

// call runs one SDK request and maps its failure onto the shared sentinels.
func (c *Client) call(ctx context.Context, fn func(ctx context.Context) error) error {
	ex := &exchange{}
	err := fn(context.WithValue(ctx, exchangeKey{}, ex))
	if err == nil {
		return nil
	}

	switch {
	case ex.transport != nil:
		return errors.Wrapf(ErrNetworkUnavailable, "%s %s: %v", ex.method, ex.path, ex.transport)
	case ex.status != 0 && ex.status/100 != 2:
		return errors.WithStack(newError(ex.status, ex.path, ex.body, err))
	case ctx.Err() != nil:
		return errors.Wrap(ErrNetworkUnavailable, ctx.Err().Error())
	default:
		return errors.Wrapf(ErrRemoteService, "%s %s: %v", ex.method, ex.path, err)
	}
}
