// internal/daemon/gateway.go
package daemon

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/javajoker/mpnode/internal/apperr"
	"github.com/javajoker/mpnode/internal/config"
)

// Inbox read modes understood by the transport.
const (
	InboxUnread = "unread"
	InboxAll    = "all"
	InboxClear  = "clear"
)

// Gateway is the facade the rest of the node uses for the transport and the
// daemon wallet. Transport calls are paced by a token bucket.
type Gateway struct {
	rpc     *RPC
	limiter *rate.Limiter
	paid    bool
	days    int
	log     *logrus.Entry
}

func NewGateway(rpc *RPC, cfg config.MessagingConfig) *Gateway {
	return &Gateway{
		rpc:     rpc,
		limiter: rate.NewLimiter(rate.Limit(cfg.SendsPerSecond), cfg.SendBurst),
		paid:    cfg.PaidMessages,
		days:    cfg.RetentionDays,
		log:     logrus.WithField("component", "gateway"),
	}
}

// Send delivers payload from one transport address to another. A response
// that reports a failure is returned as is, alongside a nil error.
func (g *Gateway) Send(ctx context.Context, from, to, payload string) (*SendResult, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, apperr.Transient(err, "send rate limiter")
	}

	res, err := g.rpc.Internal.SmsgSend(ctx, from, to, payload, g.paid, g.days)
	if err != nil {
		return nil, classify(err, "smsgsend")
	}

	g.log.WithFields(logrus.Fields{
		"from":   from,
		"to":     to,
		"msgid":  res.MsgID,
		"result": res.Result,
		"fee":    res.Fee,
	}).Debug("Message sent")
	return res, nil
}

// Inbox reads stored messages. InboxUnread marks the returned messages read.
func (g *Gateway) Inbox(ctx context.Context, mode string) ([]InboxMessage, error) {
	res, err := g.rpc.Internal.SmsgInbox(ctx, mode)
	if err != nil {
		return nil, classify(err, "smsginbox")
	}
	if res == nil {
		return nil, nil
	}
	return res.Messages, nil
}

func (g *Gateway) ImportPrivateKey(ctx context.Context, key, label string) (bool, error) {
	if _, err := g.rpc.Internal.SmsgImportPrivKey(ctx, key, label); err != nil {
		return false, classify(err, "smsgimportprivkey")
	}
	return true, nil
}

func (g *Gateway) LocalKeys(ctx context.Context) (*LocalKeys, error) {
	keys, err := g.rpc.Internal.SmsgLocalKeys(ctx)
	if err != nil {
		return nil, classify(err, "smsglocalkeys")
	}
	if keys == nil {
		keys = &LocalKeys{}
	}
	return keys, nil
}

// AddAddress publishes a public key for address. It reports false when the
// transport declined to store it.
func (g *Gateway) AddAddress(ctx context.Context, address, publicKey string) (bool, error) {
	res, err := g.rpc.Internal.SmsgAddAddress(ctx, address, publicKey)
	if err != nil {
		return false, classify(err, "smsgaddaddress")
	}
	if res == nil {
		return false, nil
	}
	result := strings.ToLower(res.Result)
	added := strings.Contains(result, "added") && !strings.Contains(result, "not added")
	if !added {
		g.log.WithFields(logrus.Fields{
			"address": address,
			"reason":  res.Reason,
		}).Warn("Transport did not add address")
	}
	return added, nil
}

func (g *Gateway) NetworkInfo(ctx context.Context) (*NetworkInfo, error) {
	info, err := g.rpc.Internal.GetNetworkInfo(ctx)
	if err != nil {
		return nil, classify(err, "getnetworkinfo")
	}
	return info, nil
}

type AddressOptions struct {
	Label    string
	Bech32   bool
	Hardened bool
	Use256   bool
}

func (g *Gateway) NewAddress(ctx context.Context, opts AddressOptions) (string, error) {
	address, err := g.rpc.Internal.GetNewAddress(ctx, opts.Label, opts.Bech32, opts.Hardened, opts.Use256)
	if err != nil {
		return "", classify(err, "getnewaddress")
	}
	return address, nil
}

func (g *Gateway) AddMultisigAddress(ctx context.Context, required int, keys []string, label string) (*MultisigAddress, error) {
	res, err := g.rpc.Internal.AddMultisigAddress(ctx, required, keys, label)
	if err != nil {
		return nil, classify(err, "addmultisigaddress")
	}
	return res, nil
}

func (g *Gateway) CreateRawTransaction(ctx context.Context, inputs []Outpoint, outputs map[string]float64) (string, error) {
	hex, err := g.rpc.Internal.CreateRawTransaction(ctx, inputs, outputs)
	if err != nil {
		return "", classify(err, "createrawtransaction")
	}
	return hex, nil
}

func (g *Gateway) SignRawTransactionWithWallet(ctx context.Context, hex string) (*SignedTransaction, error) {
	res, err := g.rpc.Internal.SignRawTransactionWithWallet(ctx, hex)
	if err != nil {
		return nil, classify(err, "signrawtransactionwithwallet")
	}
	return res, nil
}

func (g *Gateway) SendRawTransaction(ctx context.Context, hex string) (string, error) {
	txid, err := g.rpc.Internal.SendRawTransaction(ctx, hex)
	if err != nil {
		return "", classify(err, "sendrawtransaction")
	}
	return txid, nil
}

// DecodeRawTransaction returns the daemon's decoding untouched.
func (g *Gateway) DecodeRawTransaction(ctx context.Context, hex string) (json.RawMessage, error) {
	res, err := g.rpc.Internal.DecodeRawTransaction(ctx, hex)
	if err != nil {
		return nil, classify(err, "decoderawtransaction")
	}
	return res, nil
}

func (g *Gateway) ListUnspent(ctx context.Context, minConf, maxConf int, addresses []string) ([]Unspent, error) {
	res, err := g.rpc.Internal.ListUnspent(ctx, minConf, maxConf, addresses)
	if err != nil {
		return nil, classify(err, "listunspent")
	}
	return res, nil
}
