// Package boltcas is a single-file storage.CAS on go.etcd.io/bbolt.
package boltcas

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/ipfs/go-cid"
	bolt "go.etcd.io/bbolt"

	"xdao.co/trailproof/cidutil"
	"xdao.co/trailproof/storage"
)

var bucket = []byte("blocks")

// CAS keys objects by their binary CID in one bucket.
type CAS struct {
	db *bolt.DB
}

var _ storage.CAS = (*CAS)(nil)

// Open opens or creates the database at path.
func Open(path string) (*CAS, error) {
	if path == "" {
		return nil, errors.New("boltcas: database path is required")
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &CAS{db: db}, nil
}

func (c *CAS) Close() error { return c.db.Close() }

func (c *CAS) Put(ctx context.Context, b []byte) (cid.Cid, error) {
	if err := ctx.Err(); err != nil {
		return cid.Undef, err
	}
	id, err := cidutil.CIDv1RawSHA256CID(b)
	if err != nil {
		return cid.Undef, err
	}
	err = c.db.Update(func(tx *bolt.Tx) error {
		bk := tx.Bucket(bucket)
		if existing := bk.Get(id.Bytes()); existing != nil {
			if !bytes.Equal(existing, b) {
				return storage.ErrImmutable
			}
			return nil
		}
		return bk.Put(id.Bytes(), b)
	})
	if err != nil {
		return cid.Undef, err
	}
	return id, nil
}

func (c *CAS) Get(ctx context.Context, id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, storage.ErrInvalidCID
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []byte
	err := c.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucket).Get(id.Bytes())
		if v == nil {
			return storage.ErrNotFound
		}
		// v is only valid for the life of the transaction.
		out = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	got, err := cidutil.CIDv1RawSHA256CID(out)
	if err != nil {
		return nil, err
	}
	if got != id {
		return nil, storage.ErrCIDMismatch
	}
	return out, nil
}

func (c *CAS) Has(ctx context.Context, id cid.Cid) (bool, error) {
	if !id.Defined() {
		return false, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	var ok bool
	err := c.db.View(func(tx *bolt.Tx) error {
		ok = tx.Bucket(bucket).Get(id.Bytes()) != nil
		return nil
	})
	return ok, err
}
