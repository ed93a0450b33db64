// Package workflowtest builds in-memory ledgers holding published workflows,
// for tests of the index, verifier and submitter.
package workflowtest

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/blake2b"

	"xdao.co/trailproof/cidutil"
	"xdao.co/trailproof/keys"
	"xdao.co/trailproof/ledger"
	"xdao.co/trailproof/record"
	"xdao.co/trailproof/scale"
	"xdao.co/trailproof/storage"
	"xdao.co/trailproof/workflow"
)

// Genesis is the timestamp of block 0; each block adds BlockTime.
var (
	Genesis   = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	BlockTime = 6 * time.Second
)

// DefaultSchema accepts any JSON object.
var DefaultSchema = []byte(`{"type":"object"}`)

// TrailTTL is the expiry window assigned to anchored trails.
const TrailTTL = 100_000

// Chain is a Memory ledger plus the bookkeeping a node would do when it
// includes a trail: assign a block, record its timestamp, store the trail.
type Chain struct {
	*ledger.Memory
	NS    workflow.Namespaces
	Index *workflow.Index

	mu    sync.Mutex
	block uint32
	// NextBlocks, when non-empty, supplies the block of each subsequent anchor.
	NextBlocks []uint32
	tags       map[string][]record.Hash
}

func New() *Chain {
	ns := workflow.DefaultNamespaces()
	mem := ledger.NewMemory()
	c := &Chain{Memory: mem, NS: ns, Index: workflow.New(mem, ns), block: 100, tags: map[string][]record.Hash{}}
	mem.HandleRuntime(ns.TagSearch, c.findByTags)
	return c
}

// Publish stores r and returns its hash.
func (c *Chain) Publish(t testing.TB, r *record.RagRecord) record.Hash {
	t.Helper()
	b, err := record.EncodeRagRecord(r)
	if err != nil {
		t.Fatalf("encode rag record: %v", err)
	}
	h := record.Hash(blake2b.Sum256(b))
	c.Put(c.NS.RagKey(h), b)
	return h
}

// Step describes one step of a workflow built by PublishWorkflow.
type Step struct {
	Name   string
	Schema []byte
}

// Workflow is a published master and its steps.
type Workflow struct {
	RagHash record.Hash
	Steps   []record.Hash
	Schemas [][]byte
}

// PublishWorkflow publishes one step record per step, then the master.
func (c *Chain) PublishWorkflow(t testing.TB, name string, steps ...Step) Workflow {
	t.Helper()
	w := Workflow{}
	for _, s := range steps {
		schema := s.Schema
		if schema == nil {
			schema = DefaultSchema
		}
		w.Steps = append(w.Steps, c.Publish(t, newRecord(t, s.Name, schema, nil)))
		w.Schemas = append(w.Schemas, schema)
	}
	w.RagHash = c.Publish(t, newRecord(t, name, DefaultSchema, w.Steps))
	return w
}

// StoreSchemas puts every step schema into cas, so schema checks can fetch them.
func (w Workflow) StoreSchemas(t testing.TB, cas storage.CAS) {
	t.Helper()
	for _, schema := range w.Schemas {
		if _, err := cas.Put(context.Background(), schema); err != nil {
			t.Fatalf("store schema: %v", err)
		}
	}
}

func newRecord(t testing.TB, name string, schema []byte, steps []record.Hash) *record.RagRecord {
	t.Helper()
	instr, err := cidutil.CIDv1RawSHA256CID([]byte("instructions for " + name))
	if err != nil {
		t.Fatal(err)
	}
	res, err := cidutil.CIDv1RawSHA256CID([]byte("resources for " + name))
	if err != nil {
		t.Fatal(err)
	}
	sc, err := cidutil.CIDv1RawSHA256CID(schema)
	if err != nil {
		t.Fatal(err)
	}
	return &record.RagRecord{
		InstructionCID: instr,
		ResourceCID:    res,
		SchemaCID:      sc,
		Steps:          steps,
		CreatedAt:      1,
		ExpiresAt:      1_000_000,
		Staked:         big.NewInt(1_000_000_000_000),
		Name:           name,
		Description:    name + " description",
	}
}

// Tag makes FindByTags return h for tag.
func (c *Chain) Tag(h record.Hash, tags ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, tag := range tags {
		c.tags[tag] = append(c.tags[tag], h)
	}
}

func (c *Chain) findByTags(args []byte) ([]byte, error) {
	d := scale.NewDecoder(args)
	n, err := d.CompactLength()
	if err != nil {
		return nil, err
	}
	query := make([]string, 0, n)
	for i := uint64(0); i < n; i++ {
		s, err := d.Text()
		if err != nil {
			return nil, err
		}
		query = append(query, s)
	}
	if err := d.Finish(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	var out []record.Hash
	if len(query) > 0 {
	candidates:
		for _, h := range c.tags[query[0]] {
			for _, q := range query[1:] {
				if !contains(c.tags[q], h) {
					continue candidates
				}
			}
			out = append(out, h)
		}
	}
	return record.EncodeHashList(out)
}

func contains(hs []record.Hash, h record.Hash) bool {
	for _, x := range hs {
		if x == h {
			return true
		}
	}
	return false
}

// SetExchangeKey publishes account's X25519 public key.
func (c *Chain) SetExchangeKey(account keys.AccountID, pub [32]byte) {
	c.Put(c.NS.ExchangeKeyKey(account), pub[:])
}

// SubmitTrail includes t in the next block. CreatedAt and ExpiresAt are
// assigned here; the ledger timestamp of that block is recorded.
func (c *Chain) SubmitTrail(_ context.Context, t *record.CryptoTrail) (uint32, error) {
	c.mu.Lock()
	block := c.block
	if len(c.NextBlocks) > 0 {
		block, c.NextBlocks = c.NextBlocks[0], c.NextBlocks[1:]
	} else {
		c.block += 10
	}
	c.mu.Unlock()

	stored := *t
	stored.CreatedAt = block
	stored.ExpiresAt = block + TrailTTL
	c.Anchor(&stored)
	return block, nil
}

// Anchor stores t as is and records the timestamp of its block.
func (c *Chain) Anchor(t *record.CryptoTrail) {
	c.Put(c.NS.TrailKey(t.ContentHash), record.EncodeCryptoTrail(t))
	c.SetBlockTime(t.CreatedAt, BlockTimestamp(t.CreatedAt))
}

// BlockTimestamp is the timestamp Chain records for block.
func BlockTimestamp(block uint32) time.Time {
	return Genesis.Add(time.Duration(block) * BlockTime)
}
