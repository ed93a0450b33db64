// Package rpc implements ledger.Reader over a Substrate node's JSON-RPC
// endpoint using the go-substrate-rpc-client transport.
//
// Every result consumed is decoded into an explicit type; anything else is
// rejected with a Decode error rather than probed field by field.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	gsrpc "github.com/centrifuge/go-substrate-rpc-client/v4/client"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types/codec"

	"xdao.co/trailproof/errdefs"
	"xdao.co/trailproof/ledger"
)

// DefaultPageSize is the state_getKeysPaged page size.
const DefaultPageSize = 500

// Client is a ledger.Reader backed by one trusted RPC endpoint. The
// connection is opened on first use.
type Client struct {
	URL      string
	Timeout  time.Duration
	PageSize int

	mu   sync.Mutex
	conn gsrpc.Client
}

var _ ledger.Reader = (*Client)(nil)

// New returns a Client for url with a per-request timeout.
func New(url string, timeout time.Duration) *Client {
	return &Client{URL: url, Timeout: timeout}
}

// NewWithConn returns a Client over an already connected node.
func NewWithConn(conn gsrpc.Client, timeout time.Duration) *Client {
	return &Client{URL: conn.URL(), Timeout: timeout, conn: conn}
}

func (c *Client) connect() (gsrpc.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return c.conn, nil
	}
	conn, err := gsrpc.Connect(c.URL)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.KindNetwork, "TP-RPC-002", "connect "+c.URL, err)
	}
	c.conn = conn
	return conn, nil
}

// Close releases the node connection, if one was opened.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// codedError is the error shape the transport uses for JSON-RPC error objects.
type codedError interface {
	error
	ErrorCode() int
}

func (c *Client) call(ctx context.Context, method string, result any, params ...any) error {
	conn, err := c.connect()
	if err != nil {
		return err
	}
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	var raw json.RawMessage
	if err := conn.CallContext(ctx, &raw, method, params...); err != nil {
		var rerr codedError
		if errors.As(err, &rerr) {
			return errdefs.Newf(errdefs.KindNetwork, "TP-RPC-007", "%s: rpc error %d: %s", method, rerr.ErrorCode(), rerr.Error())
		}
		return errdefs.Wrap(errdefs.KindNetwork, "TP-RPC-003", method, err)
	}
	if err := json.Unmarshal(raw, result); err != nil {
		return errdefs.Wrap(errdefs.KindDecode, "TP-RPC-008", method+": unexpected result shape", err)
	}
	return nil
}

// hexBytes is a 0x-prefixed hex string result.
type hexBytes []byte

func (h *hexBytes) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if !strings.HasPrefix(s, "0x") {
		return fmt.Errorf("hex value %q lacks 0x prefix", s)
	}
	v, err := codec.HexDecodeString(s)
	if err != nil {
		return err
	}
	*h = v
	return nil
}

func toHex(b []byte) string { return codec.HexEncodeToString(b) }

func (c *Client) Storage(ctx context.Context, key []byte) ([]byte, bool, error) {
	return c.storageAt(ctx, key, "")
}

func (c *Client) storageAt(ctx context.Context, key []byte, blockHash string) ([]byte, bool, error) {
	var out *hexBytes
	params := []any{toHex(key)}
	if blockHash != "" {
		params = append(params, blockHash)
	}
	if err := c.call(ctx, "state_getStorage", &out, params...); err != nil {
		return nil, false, err
	}
	if out == nil {
		return nil, false, nil
	}
	return []byte(*out), true, nil
}

// Keys pages through state_getKeysPaged until a short page is returned.
func (c *Client) Keys(ctx context.Context, prefix []byte) ([][]byte, error) {
	size := c.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	var (
		all   [][]byte
		start any
	)
	for {
		var page []hexBytes
		if err := c.call(ctx, "state_getKeysPaged", &page, toHex(prefix), size, start); err != nil {
			return nil, err
		}
		for _, k := range page {
			all = append(all, []byte(k))
		}
		if len(page) < size {
			return all, nil
		}
		start = toHex(page[len(page)-1])
	}
}

func (c *Client) RuntimeCall(ctx context.Context, method string, args []byte) ([]byte, error) {
	var out hexBytes
	if err := c.call(ctx, "state_call", &out, method, toHex(args)); err != nil {
		return nil, err
	}
	return []byte(out), nil
}

// BlockTimestamp resolves block to its hash, then reads Timestamp.Now at that
// block. A node that has pruned the block's state reports NotFound.
func (c *Client) BlockTimestamp(ctx context.Context, block uint32) (time.Time, error) {
	var hash *string
	if err := c.call(ctx, "chain_getBlockHash", &hash, block); err != nil {
		return time.Time{}, err
	}
	if hash == nil {
		return time.Time{}, errdefs.Newf(errdefs.KindNotFound, "TP-RPC-010", "block %d not found", block)
	}
	v, ok, err := c.storageAt(ctx, ledger.TimestampKey(), *hash)
	if err != nil && strings.Contains(err.Error(), "discarded") {
		return time.Time{}, errdefs.Wrap(errdefs.KindNotFound, "TP-RPC-012", fmt.Sprintf("state for block %d was pruned", block), err)
	}
	if err != nil {
		return time.Time{}, err
	}
	if !ok {
		return time.Time{}, errdefs.Newf(errdefs.KindNotFound, "TP-RPC-011", "block %d has no timestamp", block)
	}
	return ledger.DecodeMoment(v)
}
