package verifier

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"

	"github.com/ipfs/go-cid"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// schemaCache holds compiled step schemas by CID string. Schemas are
// content-addressed, so entries never go stale.
type schemaCache struct {
	mu      sync.RWMutex
	entries map[string]*jsonschema.Schema
}

func (c *schemaCache) get(key string) (*jsonschema.Schema, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.entries[key]
	return s, ok
}

func (c *schemaCache) put(key string, s *jsonschema.Schema) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = make(map[string]*jsonschema.Schema)
	}
	c.entries[key] = s
}

// checkSchema validates payload against the schema stored under id.
// Anything that prevents a determination (no content store, fetch timeout,
// uncompilable schema) yields Unknown.
func (v *Verifier) checkSchema(ctx context.Context, id cid.Cid, payload json.RawMessage) Tristate {
	if v.Content == nil || !id.Defined() {
		return Unknown
	}
	sch, err := v.compileSchema(ctx, id)
	if err != nil {
		v.logger().DebugContext(ctx, "schema unavailable", "cid", id.String(), "err", err)
		return Unknown
	}
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return False
	}
	if err := sch.Validate(doc); err != nil {
		v.logger().DebugContext(ctx, "schema violation", "cid", id.String(), "err", err)
		return False
	}
	return True
}

func (v *Verifier) compileSchema(ctx context.Context, id cid.Cid) (*jsonschema.Schema, error) {
	key := id.String()
	if s, ok := v.schemas.get(key); ok {
		return s, nil
	}
	pctx, cancel := context.WithTimeout(ctx, v.probeTimeout())
	defer cancel()
	b, err := v.Content.Get(pctx, id)
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	url := key + ".json"
	if err := c.AddResource(url, bytes.NewReader(b)); err != nil {
		return nil, err
	}
	s, err := c.Compile(url)
	if err != nil {
		return nil, err
	}
	v.schemas.put(key, s)
	return s, nil
}
