// Package storage defines the content-addressed storage contract used for step
// payloads and step schemas, and composes adapters into fallback chains.
package storage

import (
	"context"

	"github.com/ipfs/go-cid"
)

// CAS is a minimal content-addressable storage interface.
//
// Contract:
// - Put MUST be idempotent.
// - Stored objects MUST be immutable.
// - CIDs MUST be CIDv1 raw + sha2-256 of the bytes written.
// - Get MUST return ErrNotFound when the CID is absent.
// - Has reports absence as (false, nil); errors mean the backend could not answer.
type CAS interface {
	Put(ctx context.Context, bytes []byte) (cid.Cid, error)
	Get(ctx context.Context, id cid.Cid) ([]byte, error)
	Has(ctx context.Context, id cid.Cid) (bool, error)
}
