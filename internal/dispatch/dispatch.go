// Package dispatch is the gate's handle on the wallet's signing/network service.
package dispatch

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// Dispatcher runs an authorized call. The gate never inspects the error beyond
// logging it.
type Dispatcher interface {
	Dispatch(ctx context.Context, method string, params []json.RawMessage) (json.RawMessage, error)
}

// Func adapts a function to Dispatcher.
type Func func(ctx context.Context, method string, params []json.RawMessage) (json.RawMessage, error)

func (f Func) Dispatch(ctx context.Context, method string, params []json.RawMessage) (json.RawMessage, error) {
	return f(ctx, method, params)
}

// Upstream forwards calls verbatim to a JSON-RPC endpoint (http(s) or ws(s)).
type Upstream struct {
	client *rpc.Client
	url    string
}

type UpstreamConfig struct {
	URL        string
	AuthHeader string
	AuthToken  string
}

func DialUpstream(ctx context.Context, cfg UpstreamConfig) (*Upstream, error) {
	url := strings.TrimSpace(cfg.URL)
	if url == "" {
		return nil, errors.New("upstream url is required")
	}

	var opts []rpc.ClientOption
	if cfg.AuthHeader != "" && cfg.AuthToken != "" {
		opts = append(opts, rpc.WithHeader(cfg.AuthHeader, cfg.AuthToken))
	}

	client, err := rpc.DialOptions(ctx, url, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "dial upstream %s", url)
	}
	return &Upstream{client: client, url: url}, nil
}

func (u *Upstream) Dispatch(ctx context.Context, method string, params []json.RawMessage) (json.RawMessage, error) {
	args := make([]any, len(params))
	for i, p := range params {
		args[i] = p
	}

	var result json.RawMessage
	if err := u.client.CallContext(ctx, &result, method, args...); err != nil {
		return nil, errors.Wrapf(err, "upstream %s", method)
	}
	if len(result) == 0 {
		result = json.RawMessage("null")
	}
	return result, nil
}

func (u *Upstream) Close() {
	u.client.Close()
}

// ChainID asks the upstream for its chain id, as a 0x quantity.
func (u *Upstream) ChainID(ctx context.Context) (string, error) {
	var id hexutil.Big
	if err := u.client.CallContext(ctx, &id, "eth_chainId"); err != nil {
		return "", errors.Wrapf(err, "eth_chainId from %s", u.url)
	}
	return id.String(), nil
}
