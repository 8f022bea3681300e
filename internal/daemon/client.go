// internal/daemon/client.go
//
// Package daemon talks to the blockchain daemon over JSON-RPC. The daemon also
// hosts the secure-messaging transport, so both surfaces share one client.
package daemon

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/url"

	"github.com/filecoin-project/go-jsonrpc"

	"github.com/javajoker/mpnode/internal/apperr"
	"github.com/javajoker/mpnode/internal/config"
)

// RPC is the raw method table. Field tags carry the daemon's method names.
type RPC struct {
	Internal struct {
		SmsgSend          func(ctx context.Context, from, to, msg string, paid bool, days int) (*SendResult, error) `rpc_method:"smsgsend"`
		SmsgInbox         func(ctx context.Context, mode string) (*inboxResult, error)                              `rpc_method:"smsginbox"`
		SmsgImportPrivKey func(ctx context.Context, key, label string) (interface{}, error)                         `rpc_method:"smsgimportprivkey"`
		SmsgLocalKeys     func(ctx context.Context) (*LocalKeys, error)                                             `rpc_method:"smsglocalkeys"`
		SmsgAddAddress    func(ctx context.Context, address, publicKey string) (*addAddressResult, error)           `rpc_method:"smsgaddaddress"`

		GetNetworkInfo               func(ctx context.Context) (*NetworkInfo, error)                                                `rpc_method:"getnetworkinfo"`
		GetNewAddress                func(ctx context.Context, label string, bech32, hardened, use256 bool) (string, error)         `rpc_method:"getnewaddress"`
		AddMultisigAddress           func(ctx context.Context, required int, keys []string, label string) (*MultisigAddress, error) `rpc_method:"addmultisigaddress"`
		CreateRawTransaction         func(ctx context.Context, inputs []Outpoint, outputs map[string]float64) (string, error)       `rpc_method:"createrawtransaction"`
		SignRawTransactionWithWallet func(ctx context.Context, hex string) (*SignedTransaction, error)                              `rpc_method:"signrawtransactionwithwallet"`
		SendRawTransaction           func(ctx context.Context, hex string) (string, error)                                          `rpc_method:"sendrawtransaction"`
		DecodeRawTransaction         func(ctx context.Context, hex string) (json.RawMessage, error)                                 `rpc_method:"decoderawtransaction"`
		ListUnspent                  func(ctx context.Context, minConf, maxConf int, addresses []string) ([]Unspent, error)         `rpc_method:"listunspent"`
	}
}

// Dial builds an HTTP JSON-RPC client for the daemon. The returned closer
// releases the client; HTTP clients hold no connection between calls.
func Dial(ctx context.Context, cfg config.DaemonConfig) (*RPC, jsonrpc.ClientCloser, error) {
	header := http.Header{}
	if cfg.User != "" || cfg.Password != "" {
		creds := base64.StdEncoding.EncodeToString([]byte(cfg.User + ":" + cfg.Password))
		header.Set("Authorization", "Basic "+creds)
	}

	var res RPC
	closer, err := jsonrpc.NewMergeClient(ctx, cfg.RPCURL, "Daemon",
		[]interface{}{
			&res.Internal,
		},
		header,
		jsonrpc.WithTimeout(cfg.CallTimeout),
	)
	if err != nil {
		return nil, nil, apperr.Transient(err, "failed to create daemon RPC client")
	}
	return &res, closer, nil
}

// classify marks connectivity failures as transient; anything the daemon
// itself answered with is returned unchanged.
func classify(err error, op string) error {
	if err == nil {
		return nil
	}
	var urlErr *url.Error
	var netErr net.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) ||
		errors.Is(err, context.DeadlineExceeded) {
		return apperr.Transient(err, "daemon unreachable during %s", op)
	}
	return apperr.Wrap(apperr.KindInternal, err, "daemon call %s failed", op)
}
