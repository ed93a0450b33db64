package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"xdao.co/trailproof/errdefs"
)

// DefaultFetchLimit bounds concurrent timestamp lookups.
const DefaultFetchLimit = 8

// TimestampCache is a process-lifetime, read-through cache of block timestamps.
//
// Entries are only ever added. Concurrent fills of the same block are harmless:
// the values are identical and the last write wins.
type TimestampCache struct {
	mu      sync.RWMutex
	entries map[uint32]time.Time

	// Limit bounds concurrent lookups in Resolve; zero means DefaultFetchLimit.
	Limit int
}

func NewTimestampCache() *TimestampCache {
	return &TimestampCache{entries: make(map[uint32]time.Time)}
}

func (c *TimestampCache) get(block uint32) (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ts, ok := c.entries[block]
	return ts, ok
}

func (c *TimestampCache) put(block uint32, ts time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = make(map[uint32]time.Time)
	}
	c.entries[block] = ts
}

// Len returns the number of cached blocks.
func (c *TimestampCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Resolve returns timestamps for blocks, deduplicating the request and fetching
// the uncached ones concurrently from r.
//
// A block the reader reports as NotFound is left out of the returned map and
// is not cached; a node that prunes old state can still serve the rest of the
// batch. Any other error aborts the whole lookup.
func (c *TimestampCache) Resolve(ctx context.Context, r Reader, blocks []uint32) (map[uint32]time.Time, error) {
	out := make(map[uint32]time.Time, len(blocks))
	var missing []uint32
	seen := make(map[uint32]bool, len(blocks))
	for _, b := range blocks {
		if seen[b] {
			continue
		}
		seen[b] = true
		if ts, ok := c.get(b); ok {
			out[b] = ts
			continue
		}
		missing = append(missing, b)
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })

	fetched := make([]time.Time, len(missing))
	resolved := make([]bool, len(missing))
	g, gctx := errgroup.WithContext(ctx)
	limit := c.Limit
	if limit <= 0 {
		limit = DefaultFetchLimit
	}
	g.SetLimit(limit)
	for i, b := range missing {
		i, b := i, b
		g.Go(func() error {
			ts, err := r.BlockTimestamp(gctx, b)
			if errdefs.IsKind(err, errdefs.KindNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			fetched[i], resolved[i] = ts, true
			c.put(b, ts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for i, b := range missing {
		if resolved[i] {
			out[b] = fetched[i]
		}
	}
	return out, nil
}
