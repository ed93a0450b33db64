// Package ledger defines the read-only view of the ledger that verification
// depends on. Implementations must never mutate ledger state.
package ledger

import (
	"context"
	"time"

	"xdao.co/trailproof/storagekey"
)

// Reader is the read-only ledger contract.
//
// Contract:
//   - Storage returns (nil, false, nil) when the key is absent; errors are reserved for transport failures.
//   - Keys returns every full storage key under prefix, in ledger order.
//   - RuntimeCall returns the raw encoded result of a runtime API method.
//   - BlockTimestamp returns the wall-clock time recorded for block.
type Reader interface {
	Storage(ctx context.Context, key []byte) ([]byte, bool, error)
	Keys(ctx context.Context, prefix []byte) ([][]byte, error)
	RuntimeCall(ctx context.Context, method string, args []byte) ([]byte, error)
	BlockTimestamp(ctx context.Context, block uint32) (time.Time, error)
}

// TimestampNamespace and TimestampMap address the per-block timestamp value
// (milliseconds since the Unix epoch, u64 little-endian).
const (
	TimestampNamespace = "Timestamp"
	TimestampMap       = "Now"
)

// TimestampKey is the storage key of the block timestamp value.
func TimestampKey() []byte {
	return storagekey.Prefix(TimestampNamespace, TimestampMap)
}
