package grpccas

import (
	"context"
	"time"

	"github.com/ipfs/go-cid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"xdao.co/trailproof/storage"
)

// Client implements storage.CAS over a CAS gRPC service, typically a remote
// trailproof-casgrpcd shared by submitters and verifiers.
type Client struct {
	cc grpc.ClientConnInterface

	closer func() error

	// Timeout applies per RPC when non-zero.
	Timeout time.Duration
}

var _ storage.CAS = (*Client)(nil)

type DialOptions struct {
	// MaxMsgBytes sets both send/recv max sizes when non-zero.
	MaxMsgBytes int
}

// Dial creates a client for target. The connection is established lazily on
// the first call, so an unreachable daemon surfaces as ErrUnavailable there.
func Dial(target string, opts DialOptions) (*Client, error) {
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}
	if opts.MaxMsgBytes > 0 {
		dialOpts = append(dialOpts, grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(opts.MaxMsgBytes),
			grpc.MaxCallSendMsgSize(opts.MaxMsgBytes),
		))
	}
	cc, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		return nil, err
	}
	c := NewClient(cc)
	c.closer = cc.Close
	return c, nil
}

// NewClient wraps an existing connection; Close leaves it open.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) Close() error {
	if c == nil || c.closer == nil {
		return nil
	}
	return c.closer()
}

func (c *Client) Put(ctx context.Context, data []byte) (cid.Cid, error) {
	if c == nil || c.cc == nil {
		return cid.Undef, storage.ErrUnavailable
	}
	ctx, cancel := c.rpcContext(ctx)
	defer cancel()

	reply, err := invoke[wrapperspb.StringValue](ctx, c.cc, "Put", wrapperspb.Bytes(data))
	if err != nil {
		return cid.Undef, fromStatus(err)
	}
	id, err := parseID(reply.GetValue())
	if err != nil {
		return cid.Undef, err
	}
	if err := checkBlock(id, data); err != nil {
		return cid.Undef, err
	}
	return id, nil
}

func (c *Client) Get(ctx context.Context, id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, storage.ErrInvalidCID
	}
	if c == nil || c.cc == nil {
		return nil, storage.ErrUnavailable
	}
	ctx, cancel := c.rpcContext(ctx)
	defer cancel()

	reply, err := invoke[wrapperspb.BytesValue](ctx, c.cc, "Get", wrapperspb.String(id.String()))
	if err != nil {
		return nil, fromStatus(err)
	}
	if err := checkBlock(id, reply.GetValue()); err != nil {
		return nil, err
	}
	return reply.GetValue(), nil
}

func (c *Client) Has(ctx context.Context, id cid.Cid) (bool, error) {
	if !id.Defined() {
		return false, nil
	}
	if c == nil || c.cc == nil {
		return false, storage.ErrUnavailable
	}
	ctx, cancel := c.rpcContext(ctx)
	defer cancel()

	reply, err := invoke[wrapperspb.BoolValue](ctx, c.cc, "Has", wrapperspb.String(id.String()))
	if err != nil {
		return false, fromStatus(err)
	}
	return reply.GetValue(), nil
}

func (c *Client) rpcContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.Timeout)
}
