package storage

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ipfs/go-cid"

	"xdao.co/trailproof/cidutil"
)

// DefaultProbeTimeout bounds the availability probe of a primary backend.
const DefaultProbeTimeout = 2 * time.Second

// DefaultReprobeInterval is how long a failed probe keeps a primary demoted.
const DefaultReprobeInterval = 30 * time.Second

// probeCID names the empty object; any reachable backend can answer Has for it.
var probeCID = func() cid.Cid {
	id, _ := cidutil.CIDv1RawSHA256CID(nil)
	return id
}()

// FallbackCAS routes to Primary while it answers a short probe and to Fallback
// otherwise. A demoted primary is re-probed after ReprobeInterval.
type FallbackCAS struct {
	Primary  CAS
	Fallback CAS

	ProbeTimeout    time.Duration
	ReprobeInterval time.Duration
	Logger          *slog.Logger

	mu       sync.Mutex
	demoted  bool
	probedAt time.Time
	now      func() time.Time
}

var _ CAS = (*FallbackCAS)(nil)

func (f *FallbackCAS) logger() *slog.Logger {
	if f.Logger != nil {
		return f.Logger
	}
	return slog.New(slog.DiscardHandler)
}

func (f *FallbackCAS) clock() time.Time {
	if f.now != nil {
		return f.now()
	}
	return time.Now()
}

// Probe checks Primary within ProbeTimeout and records the outcome.
func (f *FallbackCAS) Probe(ctx context.Context) bool {
	timeout := f.ProbeTimeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	_, err := f.Primary.Has(pctx, probeCID)

	f.mu.Lock()
	f.demoted = err != nil
	f.probedAt = f.clock()
	f.mu.Unlock()
	if err != nil {
		f.logger().Warn("content storage primary unavailable, using fallback", "err", err)
	}
	return err == nil
}

func (f *FallbackCAS) active(ctx context.Context) (CAS, bool) {
	if f.Fallback == nil {
		return f.Primary, false
	}
	interval := f.ReprobeInterval
	if interval <= 0 {
		interval = DefaultReprobeInterval
	}
	f.mu.Lock()
	stale := f.probedAt.IsZero() || (f.demoted && f.clock().Sub(f.probedAt) >= interval)
	demoted := f.demoted
	f.mu.Unlock()
	if stale {
		demoted = !f.Probe(ctx)
	}
	if demoted {
		return f.Fallback, true
	}
	return f.Primary, false
}

func (f *FallbackCAS) Put(ctx context.Context, b []byte) (cid.Cid, error) {
	cas, _ := f.active(ctx)
	return cas.Put(ctx, b)
}

// Get also consults the other backend when the active one misses.
func (f *FallbackCAS) Get(ctx context.Context, id cid.Cid) ([]byte, error) {
	first, onFallback := f.active(ctx)
	b, err := first.Get(ctx, id)
	if err == nil || f.Fallback == nil {
		return b, err
	}
	other := f.Fallback
	if onFallback {
		other = f.Primary
	}
	if b2, err2 := other.Get(ctx, id); err2 == nil {
		return b2, nil
	}
	return nil, err
}

func (f *FallbackCAS) Has(ctx context.Context, id cid.Cid) (bool, error) {
	cas, _ := f.active(ctx)
	return cas.Has(ctx, id)
}
