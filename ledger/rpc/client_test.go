package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"xdao.co/trailproof/errdefs"
	"xdao.co/trailproof/ledger"
)

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type handlerFunc func(method string, params []json.RawMessage) (any, *rpcError)

func newNode(t *testing.T, h handlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     uint64            `json:"id"`
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		result, rerr := h(req.Method, req.Params)
		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		if rerr != nil {
			resp["error"] = rerr
		} else {
			resp["result"] = result
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return New(srv.URL, 5*time.Second)
}

func param(t *testing.T, raw json.RawMessage) string {
	var s string
	require.NoError(t, json.Unmarshal(raw, &s))
	return s
}

func TestStoragePresentAndAbsent(t *testing.T) {
	c := newNode(t, func(method string, params []json.RawMessage) (any, *rpcError) {
		require.Equal(t, "state_getStorage", method)
		if param(t, params[0]) == "0x0102" {
			return "0xdeadbeef", nil
		}
		return nil, nil
	})
	v, ok, err := c.Storage(context.Background(), []byte{1, 2})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, v)

	_, ok, err = c.Storage(context.Background(), []byte{9})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestKeysPaginates(t *testing.T) {
	all := []string{"0xaa01", "0xaa02", "0xaa03"}
	c := newNode(t, func(method string, params []json.RawMessage) (any, *rpcError) {
		require.Equal(t, "state_getKeysPaged", method)
		start := 0
		if string(params[2]) != "null" {
			last := param(t, params[2])
			for i, k := range all {
				if k == last {
					start = i + 1
				}
			}
		}
		end := start + 2
		if end > len(all) {
			end = len(all)
		}
		return all[start:end], nil
	})
	c.PageSize = 2
	ks, err := c.Keys(context.Background(), []byte{0xaa})
	require.NoError(t, err)
	require.Equal(t, [][]byte{{0xaa, 1}, {0xaa, 2}, {0xaa, 3}}, ks)
}

func TestRuntimeCallAndErrors(t *testing.T) {
	c := newNode(t, func(method string, params []json.RawMessage) (any, *rpcError) {
		switch param(t, params[0]) {
		case "Good_call":
			return "0x00", nil
		case "Bad_shape":
			return map[string]int{"x": 1}, nil
		default:
			return nil, &rpcError{Code: -32000, Message: "boom"}
		}
	})
	out, err := c.RuntimeCall(context.Background(), "Good_call", nil)
	require.NoError(t, err)
	require.Equal(t, []byte{0}, out)

	_, err = c.RuntimeCall(context.Background(), "Bad_shape", nil)
	require.True(t, errdefs.IsKind(err, errdefs.KindDecode), "got %v", err)

	_, err = c.RuntimeCall(context.Background(), "Other", nil)
	require.True(t, errdefs.IsKind(err, errdefs.KindNetwork))
	require.True(t, strings.Contains(err.Error(), "boom"))
}

func TestBlockTimestamp(t *testing.T) {
	ts := time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC)
	tsKey := toHex(ledger.TimestampKey())
	c := newNode(t, func(method string, params []json.RawMessage) (any, *rpcError) {
		switch method {
		case "chain_getBlockHash":
			if string(params[0]) == "42" {
				return "0xb10c", nil
			}
			return nil, nil
		case "state_getStorage":
			require.Equal(t, tsKey, param(t, params[0]))
			require.Equal(t, "0xb10c", param(t, params[1]))
			return toHex(ledger.EncodeMoment(ts)), nil
		}
		return nil, &rpcError{Code: -32601, Message: "method not found"}
	})
	got, err := c.BlockTimestamp(context.Background(), 42)
	require.NoError(t, err)
	require.True(t, ts.Equal(got))

	_, err = c.BlockTimestamp(context.Background(), 43)
	require.True(t, errdefs.IsKind(err, errdefs.KindNotFound))
}

func TestBlockTimestampPrunedState(t *testing.T) {
	c := newNode(t, func(method string, params []json.RawMessage) (any, *rpcError) {
		switch method {
		case "chain_getBlockHash":
			return "0xb10c", nil
		case "state_getStorage":
			return nil, &rpcError{Code: 4003, Message: "State already discarded for 0xb10c"}
		}
		return nil, &rpcError{Code: -32601, Message: "method not found"}
	})
	_, err := c.BlockTimestamp(context.Background(), 7)
	require.True(t, errdefs.IsKind(err, errdefs.KindNotFound), "got %v", err)
	require.Equal(t, "TP-RPC-012", errdefs.RuleID(err))
}

func TestTransportFailureIsNetwork(t *testing.T) {
	c := New("http://127.0.0.1:1", time.Second)
	_, _, err := c.Storage(context.Background(), []byte{1})
	require.True(t, errdefs.IsKind(err, errdefs.KindNetwork))
}
