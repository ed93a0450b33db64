package grpccas

import (
	"context"

	"github.com/ipfs/go-cid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"xdao.co/trailproof/cidutil"
	"xdao.co/trailproof/storage"
)

// Server exposes a storage.CAS over the CAS gRPC service. Blocks are re-hashed
// in both directions, so a faulty backend cannot serve bytes under the wrong CID.
type Server struct {
	CAS storage.CAS
}

var _ CASServer = (*Server)(nil)

func (s *Server) backend() (storage.CAS, error) {
	if s == nil || s.CAS == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing CAS")
	}
	return s.CAS, nil
}

func (s *Server) Put(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.StringValue, error) {
	cas, err := s.backend()
	if err != nil {
		return nil, err
	}
	id, err := cas.Put(ctx, in.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}
	if err := checkBlock(id, in.GetValue()); err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.String(id.String()), nil
}

func (s *Server) Get(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	cas, err := s.backend()
	if err != nil {
		return nil, err
	}
	id, err := parseID(in.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}
	b, err := cas.Get(ctx, id)
	if err != nil {
		return nil, toStatus(err)
	}
	if err := checkBlock(id, b); err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.Bytes(b), nil
}

func (s *Server) Has(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	cas, err := s.backend()
	if err != nil {
		return nil, err
	}
	id, err := parseID(in.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}
	ok, err := cas.Has(ctx, id)
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.Bool(ok), nil
}

func parseID(s string) (cid.Cid, error) {
	id, err := cid.Decode(s)
	if err != nil || !id.Defined() {
		return cid.Undef, storage.ErrInvalidCID
	}
	return id, nil
}

// checkBlock reports ErrCIDMismatch unless b hashes to id.
func checkBlock(id cid.Cid, b []byte) error {
	got, err := cidutil.CIDv1RawSHA256CID(b)
	if err != nil {
		return err
	}
	if got != id {
		return storage.ErrCIDMismatch
	}
	return nil
}
