package proof

import (
	"bytes"
	"encoding/json"
	"io"

	"xdao.co/trailproof/errdefs"
	"xdao.co/trailproof/keys"
)

// TargetField is the payload field in which a step names the next holder.
const TargetField = "_targetAddress"

// Entry is one step's contribution to a Deliverable.
type Entry struct {
	Key     string
	Payload json.RawMessage
}

// Target returns the identity declared in the payload's TargetField.
// ok is false when the payload is not an object or declares nothing.
func (e Entry) Target() (keys.AccountID, bool, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(e.Payload, &fields); err != nil {
		return keys.AccountID{}, false, nil
	}
	raw, ok := fields[TargetField]
	if !ok {
		return keys.AccountID{}, false, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil || s == "" {
		return keys.AccountID{}, false, errdefs.Newf(errdefs.KindDecode, "TP-PRF-010", "step %q: %s must be a non-empty string", e.Key, TargetField)
	}
	id, err := keys.ParseAccount(s)
	if err != nil {
		return keys.AccountID{}, false, errdefs.Wrap(errdefs.KindDecode, "TP-PRF-011", "step "+e.Key+": "+TargetField, err)
	}
	return id, true, nil
}

// Deliverable is the ordered step-key to payload association list a workflow
// accumulates. Order is insertion order; a repeated key keeps its original
// position and takes the newest payload.
type Deliverable []Entry

// Merge overwrites key in place if present, else appends it. payload is
// validated and compacted.
func (d *Deliverable) Merge(key string, payload json.RawMessage) error {
	if key == "" {
		return errdefs.New(errdefs.KindValidation, "TP-PRF-001", "step key must not be empty")
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, payload); err != nil {
		return errdefs.Wrap(errdefs.KindDecode, "TP-PRF-002", "step "+key+": payload is not JSON", err)
	}
	p := json.RawMessage(buf.Bytes())
	for i := range *d {
		if (*d)[i].Key == key {
			(*d)[i].Payload = p
			return nil
		}
	}
	*d = append(*d, Entry{Key: key, Payload: p})
	return nil
}

// Prefix returns a copy of the first n entries.
func (d Deliverable) Prefix(n int) Deliverable {
	if n > len(d) {
		n = len(d)
	}
	if n < 0 {
		n = 0
	}
	out := make(Deliverable, n)
	copy(out, d[:n])
	return out
}

func (d Deliverable) Clone() Deliverable { return d.Prefix(len(d)) }

func (d Deliverable) Keys() []string {
	out := make([]string, len(d))
	for i, e := range d {
		out[i] = e.Key
	}
	return out
}

func (d Deliverable) Get(key string) (json.RawMessage, bool) {
	for _, e := range d {
		if e.Key == key {
			return e.Payload, true
		}
	}
	return nil, false
}

// MarshalJSON writes the entries as one JSON object in order.
func (d Deliverable) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range d {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := marshalNoEscape(e.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		if err := json.Compact(&buf, e.Payload); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object preserving key order. Duplicate keys are
// rejected since their order would be ambiguous.
func (d *Deliverable) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errdefs.New(errdefs.KindDecode, "TP-PRF-003", "deliverable must be a JSON object")
	}
	var out Deliverable
	seen := make(map[string]bool)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key := tok.(string)
		if seen[key] {
			return errdefs.Newf(errdefs.KindDecode, "TP-PRF-004", "deliverable repeats step key %q", key)
		}
		seen[key] = true
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return err
		}
		out = append(out, Entry{Key: key, Payload: buf.Bytes()})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return errdefs.New(errdefs.KindDecode, "TP-PRF-005", "trailing data after deliverable")
	}
	*d = out
	return nil
}

func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
