package ledger

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"sort"
	"sync"
	"time"

	"xdao.co/trailproof/errdefs"
)

// RuntimeFunc answers one runtime API method for Memory.
type RuntimeFunc func(args []byte) ([]byte, error)

// Memory is an in-process Reader for tests and offline fixtures.
//
// It also records how many reads were issued, so callers can assert that
// rejected input never reached the ledger.
type Memory struct {
	mu      sync.RWMutex
	storage map[string][]byte
	blocks  map[uint32]time.Time
	runtime map[string]RuntimeFunc
	calls   int
}

var _ Reader = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		storage: make(map[string][]byte),
		blocks:  make(map[uint32]time.Time),
		runtime: make(map[string]RuntimeFunc),
	}
}

// Put stores value at key.
func (m *Memory) Put(key, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.storage[string(key)] = append([]byte(nil), value...)
}

// Delete removes key.
func (m *Memory) Delete(key []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.storage, string(key))
}

// SetBlockTime records the wall-clock time of block.
func (m *Memory) SetBlockTime(block uint32, ts time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocks[block] = ts
}

// HandleRuntime registers fn for method.
func (m *Memory) HandleRuntime(method string, fn RuntimeFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runtime[method] = fn
}

// Calls returns the number of Reader calls served so far.
func (m *Memory) Calls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}

func (m *Memory) count() {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
}

func (m *Memory) Storage(ctx context.Context, key []byte) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, errdefs.Wrap(errdefs.KindNetwork, "TP-NET-001", "storage query cancelled", err)
	}
	m.count()
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.storage[string(key)]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *Memory) Keys(ctx context.Context, prefix []byte) ([][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, errdefs.Wrap(errdefs.KindNetwork, "TP-NET-001", "key query cancelled", err)
	}
	m.count()
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out [][]byte
	for k := range m.storage {
		if bytes.HasPrefix([]byte(k), prefix) {
			out = append(out, []byte(k))
		}
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i], out[j]) < 0 })
	return out, nil
}

func (m *Memory) RuntimeCall(ctx context.Context, method string, args []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, errdefs.Wrap(errdefs.KindNetwork, "TP-NET-001", "runtime call cancelled", err)
	}
	m.count()
	m.mu.RLock()
	fn, ok := m.runtime[method]
	m.mu.RUnlock()
	if !ok {
		return nil, errdefs.Newf(errdefs.KindNetwork, "TP-NET-002", "runtime method %q not available", method)
	}
	return fn(args)
}

func (m *Memory) BlockTimestamp(ctx context.Context, block uint32) (time.Time, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, errdefs.Wrap(errdefs.KindNetwork, "TP-NET-001", "timestamp query cancelled", err)
	}
	m.count()
	m.mu.RLock()
	defer m.mu.RUnlock()
	ts, ok := m.blocks[block]
	if !ok {
		return time.Time{}, errdefs.Newf(errdefs.KindNotFound, "TP-NET-003", "block %d unknown", block)
	}
	return ts, nil
}

// EncodeMoment encodes ts as the u64 little-endian millisecond value stored
// under Timestamp.Now.
func EncodeMoment(ts time.Time) []byte {
	return binary.LittleEndian.AppendUint64(nil, uint64(ts.UnixMilli()))
}

// DecodeMoment is the inverse of EncodeMoment.
func DecodeMoment(b []byte) (time.Time, error) {
	if len(b) != 8 {
		return time.Time{}, errdefs.New(errdefs.KindDecode, "TP-DEC-020", fmt.Sprintf("timestamp value must be 8 bytes, got %d", len(b)))
	}
	return time.UnixMilli(int64(binary.LittleEndian.Uint64(b))).UTC(), nil
}
