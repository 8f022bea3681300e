// internal/daemon/types.go
package daemon

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SendResult is passed through to callers unchanged.
type SendResult struct {
	Result string  `json:"result"`
	MsgID  string  `json:"msgid,omitempty"`
	Fee    float64 `json:"fee,omitempty"`
	Error  string  `json:"error,omitempty"`
}

// Sent reports whether the transport accepted the message.
func (r *SendResult) Sent() bool {
	return r != nil && r.Error == "" && strings.HasPrefix(strings.ToLower(r.Result), "sent")
}

type inboxResult struct {
	Messages []InboxMessage `json:"messages"`
	Result   string         `json:"result"`
}

// InboxMessage is one stored transport message.
type InboxMessage struct {
	MsgID         string    `json:"msgid"`
	Version       string    `json:"version"`
	Received      Timestamp `json:"received"`
	Sent          Timestamp `json:"sent"`
	Paid          bool      `json:"paid"`
	DaysRetention int       `json:"daysretention"`
	From          string    `json:"from"`
	To            string    `json:"to"`
	Text          string    `json:"text"`
}

type LocalKeys struct {
	WalletKeys []LocalKey `json:"wallet_keys"`
	SmsgKeys   []LocalKey `json:"smsg_keys"`
}

type LocalKey struct {
	Address   string `json:"address"`
	PublicKey string `json:"public_key"`
	Receive   string `json:"receive"`
	Anon      string `json:"anon"`
	Label     string `json:"label"`
}

// Has reports whether address is among the transport keys.
func (k *LocalKeys) Has(address string) bool {
	if k == nil {
		return false
	}
	for _, key := range k.SmsgKeys {
		if key.Address == address {
			return true
		}
	}
	return false
}

type addAddressResult struct {
	Result string `json:"result"`
	Reason string `json:"reason,omitempty"`
}

type NetworkInfo struct {
	Version         int    `json:"version"`
	Subversion      string `json:"subversion"`
	ProtocolVersion int    `json:"protocolversion"`
	Connections     int    `json:"connections"`
	NetworkActive   bool   `json:"networkactive"`
}

type MultisigAddress struct {
	Address      string `json:"address"`
	RedeemScript string `json:"redeemScript"`
}

type Outpoint struct {
	TxID string `json:"txid"`
	Vout int    `json:"vout"`
}

type SignedTransaction struct {
	Hex      string `json:"hex"`
	Complete bool   `json:"complete"`
}

type Unspent struct {
	TxID          string  `json:"txid"`
	Vout          int     `json:"vout"`
	Address       string  `json:"address"`
	ScriptPubKey  string  `json:"scriptPubKey"`
	Amount        float64 `json:"amount"`
	Confirmations int     `json:"confirmations"`
	Spendable     bool    `json:"spendable"`
}

// Timestamp accepts unix seconds or the daemon's formatted time strings.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02 15:04:05 MST",
	"2006-01-02 15:04:05",
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		return nil
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		t.Time = time.Unix(secs, 0).UTC()
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("unrecognised timestamp %q", s)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Unix())
}
