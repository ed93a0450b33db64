package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/require"
)

type downCAS struct{ calls int }

var errDown = errors.New("connection refused")

func (d *downCAS) Put(context.Context, []byte) (cid.Cid, error) {
	d.calls++
	return cid.Undef, errDown
}

func (d *downCAS) Get(context.Context, cid.Cid) ([]byte, error) {
	d.calls++
	return nil, errDown
}

func (d *downCAS) Has(context.Context, cid.Cid) (bool, error) {
	d.calls++
	return false, errDown
}

type slowCAS struct{ *MemoryCAS }

func (s *slowCAS) Has(ctx context.Context, id cid.Cid) (bool, error) {
	<-ctx.Done()
	return false, ctx.Err()
}

func TestFallbackUsesPrimaryWhenHealthy(t *testing.T) {
	ctx := context.Background()
	primary, spare := NewMemory(), NewMemory()
	f := &FallbackCAS{Primary: primary, Fallback: spare}

	id, err := f.Put(ctx, []byte("x"))
	require.NoError(t, err)
	require.Equal(t, 1, primary.Len())
	require.Equal(t, 0, spare.Len())

	b, err := f.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, []byte("x"), b)
}

func TestFallbackDemotesUnreachablePrimary(t *testing.T) {
	ctx := context.Background()
	primary, spare := &downCAS{}, NewMemory()
	f := &FallbackCAS{Primary: primary, Fallback: spare}

	_, err := f.Put(ctx, []byte("y"))
	require.NoError(t, err)
	require.Equal(t, 1, spare.Len())
	require.Equal(t, 1, primary.calls)

	// Still demoted within the re-probe interval.
	_, err = f.Put(ctx, []byte("z"))
	require.NoError(t, err)
	require.Equal(t, 1, primary.calls)
}

func TestFallbackProbeTimesOut(t *testing.T) {
	f := &FallbackCAS{Primary: &slowCAS{MemoryCAS: NewMemory()}, Fallback: NewMemory(), ProbeTimeout: 20 * time.Millisecond}
	start := time.Now()
	require.False(t, f.Probe(context.Background()))
	require.Less(t, time.Since(start), time.Second)
}

func TestFallbackReprobesAfterInterval(t *testing.T) {
	now := time.Unix(0, 0)
	primary := &downCAS{}
	f := &FallbackCAS{Primary: primary, Fallback: NewMemory(), ReprobeInterval: time.Minute, now: func() time.Time { return now }}
	_, _ = f.Has(context.Background(), probeCID)
	require.Equal(t, 1, primary.calls)

	now = now.Add(2 * time.Minute)
	_, _ = f.Has(context.Background(), probeCID)
	require.Equal(t, 2, primary.calls)
}
