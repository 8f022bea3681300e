package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/mpnode/internal/apperr"
	"github.com/javajoker/mpnode/internal/config"
)

func testMessaging() config.MessagingConfig {
	return config.MessagingConfig{
		PaidMessages:   true,
		RetentionDays:  4,
		SendsPerSecond: 1000,
		SendBurst:      10,
	}
}

func TestSendPassesTransportOptions(t *testing.T) {
	rpc := &RPC{}
	var gotPaid bool
	var gotDays int
	rpc.Internal.SmsgSend = func(ctx context.Context, from, to, msg string, paid bool, days int) (*SendResult, error) {
		gotPaid, gotDays = paid, days
		assert.Equal(t, "pFrom", from)
		assert.Equal(t, "pTo", to)
		assert.Equal(t, `{"version":"0.1.0.0"}`, msg)
		return &SendResult{Result: "Sent.", MsgID: "abc", Fee: 0.0002}, nil
	}

	g := NewGateway(rpc, testMessaging())
	res, err := g.Send(context.Background(), "pFrom", "pTo", `{"version":"0.1.0.0"}`)
	require.NoError(t, err)

	assert.True(t, gotPaid)
	assert.Equal(t, 4, gotDays)
	assert.True(t, res.Sent())
	assert.Equal(t, "abc", res.MsgID)
}

func TestSendFailureResultIsPassedThrough(t *testing.T) {
	rpc := &RPC{}
	rpc.Internal.SmsgSend = func(context.Context, string, string, string, bool, int) (*SendResult, error) {
		return &SendResult{Result: "Send failed.", Error: "Unknown public key for address."}, nil
	}

	res, err := NewGateway(rpc, testMessaging()).Send(context.Background(), "a", "b", "{}")
	require.NoError(t, err)
	assert.False(t, res.Sent())
	assert.Equal(t, "Unknown public key for address.", res.Error)
}

func TestUnreachableDaemonIsTransient(t *testing.T) {
	rpc := &RPC{}
	rpc.Internal.GetNetworkInfo = func(context.Context) (*NetworkInfo, error) {
		return nil, &url.Error{Op: "Post", URL: "http://localhost:1", Err: errors.New("connection refused")}
	}

	_, err := NewGateway(rpc, testMessaging()).NetworkInfo(context.Background())
	assert.True(t, apperr.Is(err, apperr.KindTransient))
}

func TestDaemonErrorIsNotTransient(t *testing.T) {
	rpc := &RPC{}
	rpc.Internal.SmsgImportPrivKey = func(context.Context, string, string) (interface{}, error) {
		return nil, errors.New("Invalid private key encoding")
	}

	ok, err := NewGateway(rpc, testMessaging()).ImportPrivateKey(context.Background(), "bad", "market")
	assert.False(t, ok)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
}

func TestAddAddressResult(t *testing.T) {
	rpc := &RPC{}
	result := "Public key added to db."
	rpc.Internal.SmsgAddAddress = func(context.Context, string, string) (*addAddressResult, error) {
		return &addAddressResult{Result: result}, nil
	}
	g := NewGateway(rpc, testMessaging())

	added, err := g.AddAddress(context.Background(), "pAddr", "pub")
	require.NoError(t, err)
	assert.True(t, added)

	result = "Public key not added to db."
	added, err = g.AddAddress(context.Background(), "pAddr", "pub")
	require.NoError(t, err)
	assert.False(t, added)
}

func TestLocalKeysHas(t *testing.T) {
	keys := &LocalKeys{SmsgKeys: []LocalKey{{Address: "pA"}, {Address: "pB"}}}
	assert.True(t, keys.Has("pB"))
	assert.False(t, keys.Has("pC"))
	assert.False(t, (*LocalKeys)(nil).Has("pA"))
}

func TestTimestampFormats(t *testing.T) {
	var m InboxMessage
	require.NoError(t, json.Unmarshal([]byte(`{"msgid":"1","received":1700000000,"sent":"2023-11-14 22:13:20 UTC"}`), &m))

	assert.Equal(t, time.Unix(1700000000, 0).UTC(), m.Received.Time)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), m.Sent.Time)

	assert.Error(t, json.Unmarshal([]byte(`{"received":"yesterday"}`), &m))
}

type rpcRequest struct {
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
	ID     json.RawMessage   `json:"id"`
}

func TestDialUsesDaemonMethodNames(t *testing.T) {
	var methods []string
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")

		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		methods = append(methods, req.Method)

		var result interface{}
		switch req.Method {
		case "getnetworkinfo":
			result = map[string]interface{}{"version": 180100, "connections": 8, "networkactive": true}
		case "smsginbox":
			result = map[string]interface{}{
				"messages": []map[string]interface{}{{"msgid": "m1", "from": "pA", "to": "pB", "text": "{}", "received": 1700000000}},
				"result":   "1",
			}
		}

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  result,
		}))
	}))
	defer srv.Close()

	rpc, closer, err := Dial(context.Background(), config.DaemonConfig{
		RPCURL:      srv.URL,
		User:        "test",
		Password:    "secret",
		CallTimeout: 5 * time.Second,
	})
	require.NoError(t, err)
	defer closer()

	g := NewGateway(rpc, testMessaging())

	info, err := g.NetworkInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 8, info.Connections)

	msgs, err := g.Inbox(context.Background(), InboxUnread)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "m1", msgs[0].MsgID)

	assert.Equal(t, []string{"getnetworkinfo", "smsginbox"}, methods)
	assert.Equal(t, "Basic dGVzdDpzZWNyZXQ=", auth)
}
