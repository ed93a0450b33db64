package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"xdao.co/trailproof/errdefs"
)

func TestMemoryStorageAndKeys(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	m.Put([]byte("ab1"), []byte{1})
	m.Put([]byte("ab0"), []byte{0})
	m.Put([]byte("zz"), []byte{2})

	v, ok, err := m.Storage(ctx, []byte("ab1"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte{1}, v)

	_, ok, err = m.Storage(ctx, []byte("missing"))
	require.NoError(t, err)
	require.False(t, ok)

	ks, err := m.Keys(ctx, []byte("ab"))
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("ab0"), []byte("ab1")}, ks)
	require.Equal(t, 3, m.Calls())
}

func TestMemoryRuntimeCall(t *testing.T) {
	m := NewMemory()
	m.HandleRuntime("Echo", func(args []byte) ([]byte, error) { return args, nil })

	out, err := m.RuntimeCall(context.Background(), "Echo", []byte{7})
	require.NoError(t, err)
	require.Equal(t, []byte{7}, out)

	_, err = m.RuntimeCall(context.Background(), "Nope", nil)
	require.True(t, errdefs.IsKind(err, errdefs.KindNetwork))
}

func TestMomentRoundTrip(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	got, err := DecodeMoment(EncodeMoment(ts))
	require.NoError(t, err)
	require.True(t, ts.Equal(got))

	_, err = DecodeMoment([]byte{1, 2, 3})
	require.True(t, errdefs.IsKind(err, errdefs.KindDecode))
}

type countingReader struct {
	*Memory
	mu     sync.Mutex
	blocks map[uint32]int
}

func (c *countingReader) BlockTimestamp(ctx context.Context, block uint32) (time.Time, error) {
	c.mu.Lock()
	c.blocks[block]++
	c.mu.Unlock()
	return c.Memory.BlockTimestamp(ctx, block)
}

func TestTimestampCacheDeduplicatesAndCaches(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemory()
	for _, b := range []uint32{100, 110, 120} {
		m.SetBlockTime(b, base.Add(time.Duration(b)*6*time.Second))
	}
	r := &countingReader{Memory: m, blocks: map[uint32]int{}}
	c := NewTimestampCache()

	got, err := c.Resolve(context.Background(), r, []uint32{100, 120, 110, 100, 120})
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.True(t, got[110].Equal(base.Add(660*time.Second)))
	require.Equal(t, map[uint32]int{100: 1, 110: 1, 120: 1}, r.blocks)
	require.Equal(t, 3, c.Len())

	_, err = c.Resolve(context.Background(), r, []uint32{100, 110})
	require.NoError(t, err)
	require.Equal(t, map[uint32]int{100: 1, 110: 1, 120: 1}, r.blocks)
}

func TestTimestampCacheSkipsUnknownBlocks(t *testing.T) {
	m := NewMemory()
	m.SetBlockTime(100, time.Unix(600, 0))
	c := NewTimestampCache()

	got, err := c.Resolve(context.Background(), m, []uint32{100, 5, 5})
	require.NoError(t, err)
	require.Len(t, got, 1)
	_, ok := got[5]
	require.False(t, ok)
	require.Equal(t, 1, c.Len())
}

func TestTimestampCachePropagatesErrors(t *testing.T) {
	c := NewTimestampCache()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Resolve(ctx, NewMemory(), []uint32{5})
	require.True(t, errdefs.IsKind(err, errdefs.KindNetwork))
	require.Equal(t, 0, c.Len())
}
