package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/ipfs/go-cid"
	"golang.org/x/sync/errgroup"

	"xdao.co/trailproof/cidutil"
)

// NamedCAS associates a CAS with a stable backend name.
type NamedCAS struct {
	Name string
	CAS  CAS
}

// ReplicatingCAS writes every block to all backends concurrently and reads
// from the first backend that has it. All backends must agree on the CID.
type ReplicatingCAS struct {
	Backends []NamedCAS
}

var _ CAS = ReplicatingCAS{}

// PutAll stores data on every backend and returns the expected CID together
// with what each backend reported, keyed by backend name.
func (r ReplicatingCAS) PutAll(ctx context.Context, data []byte) (cid.Cid, map[string]cid.Cid, error) {
	want, err := cidutil.CIDv1RawSHA256CID(data)
	if err != nil {
		return cid.Undef, nil, err
	}
	if len(r.Backends) == 0 {
		return cid.Undef, nil, fmt.Errorf("storage: ReplicatingCAS has no backends")
	}

	for _, b := range r.Backends {
		if b.CAS == nil {
			return cid.Undef, nil, fmt.Errorf("storage: nil CAS for backend %q", b.Name)
		}
	}

	var mu sync.Mutex
	got := make(map[string]cid.Cid, len(r.Backends))
	g, gctx := errgroup.WithContext(ctx)
	for _, b := range r.Backends {
		b := b
		g.Go(func() error {
			id, err := b.CAS.Put(gctx, data)
			if err != nil {
				return fmt.Errorf("storage: backend %q: %w", b.Name, err)
			}
			mu.Lock()
			got[b.Name] = id
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return cid.Undef, nil, err
	}
	for _, id := range got {
		if id != want {
			return cid.Undef, got, ErrCIDMismatch
		}
	}
	return want, got, nil
}

func (r ReplicatingCAS) Put(ctx context.Context, data []byte) (cid.Cid, error) {
	id, _, err := r.PutAll(ctx, data)
	return id, err
}

func (r ReplicatingCAS) adapters() MultiCAS {
	var m MultiCAS
	for _, b := range r.Backends {
		if b.CAS != nil {
			m.Adapters = append(m.Adapters, b.CAS)
		}
	}
	return m
}

func (r ReplicatingCAS) Get(ctx context.Context, id cid.Cid) ([]byte, error) {
	return r.adapters().Get(ctx, id)
}

func (r ReplicatingCAS) Has(ctx context.Context, id cid.Cid) (bool, error) {
	return r.adapters().Has(ctx, id)
}
