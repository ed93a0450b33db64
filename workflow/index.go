// Package workflow reads published workflow records and crypto trails from the ledger.
package workflow

import (
	"context"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"xdao.co/trailproof/errdefs"
	"xdao.co/trailproof/keys"
	"xdao.co/trailproof/ledger"
	"xdao.co/trailproof/record"
	"xdao.co/trailproof/scale"
	"xdao.co/trailproof/storagekey"
)

// Tag search bounds.
const (
	MaxTags   = 10
	MaxTagLen = 15
)

// DefaultFetchLimit bounds concurrent record fetches.
const DefaultFetchLimit = 16

// Namespaces names the ledger storage maps and runtime method the index reads.
type Namespaces struct {
	Pallet       string            `toml:"pallet"`
	Rags         string            `toml:"rags"`
	Trails       string            `toml:"trails"`
	ExchangeKeys string            `toml:"exchange_keys"`
	TagSearch    string            `toml:"tag_search"`
	Hasher       storagekey.Hasher `toml:"-"`
}

// DefaultNamespaces matches the reference runtime.
func DefaultNamespaces() Namespaces {
	return Namespaces{
		Pallet:       "RagStorage",
		Rags:         "RagRecords",
		Trails:       "CryptoTrails",
		ExchangeKeys: "ExchangeKeys",
		TagSearch:    "RagApi_find_by_tags",
		Hasher:       storagekey.Blake2_128Concat,
	}
}

// RagKey addresses a RagRecord.
func (n Namespaces) RagKey(h record.Hash) []byte {
	return storagekey.MapKey(n.Pallet, n.Rags, n.Hasher, h[:])
}

// TrailKey addresses the CryptoTrail anchoring content hash h.
func (n Namespaces) TrailKey(h record.Hash) []byte {
	return storagekey.MapKey(n.Pallet, n.Trails, n.Hasher, h[:])
}

// ExchangeKeyKey addresses an account's published X25519 key.
func (n Namespaces) ExchangeKeyKey(a keys.AccountID) []byte {
	return storagekey.MapKey(n.Pallet, n.ExchangeKeys, n.Hasher, a[:])
}

// Index resolves workflow records. The zero Namespaces is replaced by DefaultNamespaces.
type Index struct {
	Reader     ledger.Reader
	Namespaces Namespaces
	Limit      int
}

func New(r ledger.Reader, ns Namespaces) *Index {
	return &Index{Reader: r, Namespaces: ns}
}

func (x *Index) ns() Namespaces {
	if x.Namespaces.Pallet == "" {
		return DefaultNamespaces()
	}
	return x.Namespaces
}

func (x *Index) limit() int {
	if x.Limit <= 0 {
		return DefaultFetchLimit
	}
	return x.Limit
}

// Listing pairs a record with its hash.
type Listing struct {
	Hash   record.Hash
	Record *record.RagRecord
}

// Get returns the RagRecord stored under h. Absence is a NotFound error.
func (x *Index) Get(ctx context.Context, h record.Hash) (*record.RagRecord, error) {
	v, ok, err := x.Reader.Storage(ctx, x.ns().RagKey(h))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errdefs.Newf(errdefs.KindNotFound, "TP-WF-001", "rag record %s not found", h)
	}
	return record.DecodeRagRecord(v)
}

// List enumerates every published record, in ledger key order.
func (x *Index) List(ctx context.Context) ([]Listing, error) {
	ns := x.ns()
	prefix := storagekey.Prefix(ns.Pallet, ns.Rags)
	all, err := x.Reader.Keys(ctx, prefix)
	if err != nil {
		return nil, err
	}
	hashes := make([]record.Hash, len(all))
	for i, k := range all {
		suffix, err := storagekey.KeySuffix(k, len(prefix), ns.Hasher)
		if err != nil {
			return nil, err
		}
		if len(suffix) != len(hashes[i]) {
			return nil, errdefs.Newf(errdefs.KindDecode, "TP-WF-002", "rag key suffix must be 32 bytes, got %d", len(suffix))
		}
		copy(hashes[i][:], suffix)
	}
	return x.resolve(ctx, hashes)
}

func (x *Index) resolve(ctx context.Context, hashes []record.Hash) ([]Listing, error) {
	out := make([]Listing, len(hashes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(x.limit())
	for i, h := range hashes {
		i, h := i, h
		g.Go(func() error {
			r, err := x.Get(gctx, h)
			if err != nil {
				return err
			}
			out[i] = Listing{Hash: h, Record: r}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Resolved is a master record positioned at one of its steps.
type Resolved struct {
	RagHash  record.Hash
	StepHash record.Hash
	Master   *record.RagRecord

	// Steps holds the step records in master order; nil where a step record is absent.
	Steps        []*record.RagRecord
	CurrentIndex int
}

// Step returns the record of step i, or nil.
func (r *Resolved) Step(i int) *record.RagRecord {
	if i < 0 || i >= len(r.Steps) {
		return nil
	}
	return r.Steps[i]
}

// Master resolves ragHash to a master record and locates stepHash in its step list.
// A missing master, a non-master record, or a step outside the list is NotFound.
func (x *Index) Master(ctx context.Context, ragHash, stepHash record.Hash) (*Resolved, error) {
	m, err := x.Get(ctx, ragHash)
	if err != nil {
		return nil, err
	}
	if !m.IsMaster() {
		return nil, errdefs.Newf(errdefs.KindNotFound, "TP-WF-003", "rag record %s is not a workflow master", ragHash)
	}
	idx := m.StepIndex(stepHash)
	if idx < 0 {
		return nil, errdefs.Newf(errdefs.KindNotFound, "TP-WF-004", "step %s is not part of workflow %s", stepHash, ragHash)
	}

	steps := make([]*record.RagRecord, len(m.Steps))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(x.limit())
	for i, h := range m.Steps {
		i, h := i, h
		g.Go(func() error {
			r, err := x.Get(gctx, h)
			if errdefs.IsKind(err, errdefs.KindNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			steps[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &Resolved{RagHash: ragHash, StepHash: stepHash, Master: m, Steps: steps, CurrentIndex: idx}, nil
}

// Trail returns the CryptoTrail anchoring contentHash; ok is false when none exists.
func (x *Index) Trail(ctx context.Context, contentHash record.Hash) (*record.CryptoTrail, bool, error) {
	v, ok, err := x.Reader.Storage(ctx, x.ns().TrailKey(contentHash))
	if err != nil || !ok {
		return nil, false, err
	}
	t, err := record.DecodeCryptoTrail(v)
	if err != nil {
		return nil, false, err
	}
	return t, true, nil
}

// ExchangeKey returns the X25519 public key account has published.
func (x *Index) ExchangeKey(ctx context.Context, account keys.AccountID) ([32]byte, error) {
	var out [32]byte
	v, ok, err := x.Reader.Storage(ctx, x.ns().ExchangeKeyKey(account))
	if err != nil {
		return out, err
	}
	if !ok {
		return out, errdefs.Newf(errdefs.KindNotFound, "TP-WF-005", "%s has not published an exchange key", account)
	}
	if len(v) != len(out) {
		return out, errdefs.Newf(errdefs.KindDecode, "TP-WF-006", "exchange key must be 32 bytes, got %d", len(v))
	}
	copy(out[:], v)
	return out, nil
}

// ValidateTags checks tag search bounds: 1 to MaxTags tags of 1 to MaxTagLen characters.
func ValidateTags(tags []string) error {
	if len(tags) == 0 || len(tags) > MaxTags {
		return errdefs.Newf(errdefs.KindValidation, "TP-TAG-001", "tag search takes 1 to %d tags, got %d", MaxTags, len(tags))
	}
	for _, t := range tags {
		if n := utf8.RuneCountInString(t); n == 0 || n > MaxTagLen {
			return errdefs.Newf(errdefs.KindValidation, "TP-TAG-002", "tag %q must be 1 to %d characters", t, MaxTagLen)
		}
	}
	return nil
}

// EncodeTags encodes tags as the runtime call argument Vec<Vec<u8>>.
func EncodeTags(tags []string) ([]byte, error) {
	out, err := scale.AppendCompactLength(nil, uint64(len(tags)))
	if err != nil {
		return nil, err
	}
	for _, t := range tags {
		if out, err = scale.AppendBytes(out, []byte(t)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// FindByTags returns records carrying every tag. Bounds are checked before any
// ledger call; matching happens in the runtime.
func (x *Index) FindByTags(ctx context.Context, tags []string) ([]Listing, error) {
	if err := ValidateTags(tags); err != nil {
		return nil, err
	}
	args, err := EncodeTags(tags)
	if err != nil {
		return nil, err
	}
	res, err := x.Reader.RuntimeCall(ctx, x.ns().TagSearch, args)
	if err != nil {
		return nil, err
	}
	hashes, err := record.DecodeHashList(res)
	if err != nil {
		return nil, err
	}
	seen := make(map[record.Hash]bool, len(hashes))
	uniq := hashes[:0]
	for _, h := range hashes {
		if !seen[h] {
			seen[h] = true
			uniq = append(uniq, h)
		}
	}
	return x.resolve(ctx, uniq)
}
