// Package proof models the portable proof document and its content hash.
package proof

import (
	"bytes"
	"encoding/json"
	"io"

	"golang.org/x/crypto/blake2b"

	"xdao.co/trailproof/errdefs"
	"xdao.co/trailproof/record"
)

// RagData binds a deliverable to a workflow position.
type RagData struct {
	RagHash     record.Hash `json:"ragHash"`
	StepHash    record.Hash `json:"stepHash"`
	Deliverable Deliverable `json:"deliverable"`
}

// Document is a proof. Documents without ragData are hashed whole.
type Document struct {
	RagData *RagData `json:"ragData,omitempty"`

	raw []byte
}

// IsWorkflow reports whether the document carries workflow data.
func (d *Document) IsWorkflow() bool { return d.RagData != nil }

// Parse decodes a proof document. Malformed JSON or hashes fail with a Decode error.
func Parse(raw []byte) (*Document, error) {
	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		return nil, errdefs.Wrap(errdefs.KindDecode, "TP-PRF-020", "proof is not valid JSON", err)
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(compact.Bytes(), &probe); err != nil || probe == nil {
		return nil, errdefs.Wrap(errdefs.KindDecode, "TP-PRF-021", "proof must be a JSON object", err)
	}
	doc := &Document{raw: compact.Bytes()}
	rd, ok := probe["ragData"]
	if !ok || string(rd) == "null" {
		return doc, nil
	}
	dec := json.NewDecoder(bytes.NewReader(rd))
	dec.DisallowUnknownFields()
	var data RagData
	if err := dec.Decode(&data); err != nil {
		if errdefs.KindOf(err) != "" {
			return nil, err
		}
		return nil, errdefs.Wrap(errdefs.KindDecode, "TP-PRF-022", "malformed ragData", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errdefs.New(errdefs.KindDecode, "TP-PRF-022", "malformed ragData")
	}
	doc.RagData = &data
	return doc, nil
}

// New returns a workflow proof.
func New(ragHash, stepHash record.Hash, d Deliverable) *Document {
	return &Document{RagData: &RagData{RagHash: ragHash, StepHash: stepHash, Deliverable: d}}
}

// Marshal renders the document canonically.
func (d *Document) Marshal() ([]byte, error) {
	if d.RagData == nil {
		if d.raw == nil {
			return nil, errdefs.New(errdefs.KindValidation, "TP-PRF-023", "empty proof document")
		}
		return append([]byte(nil), d.raw...), nil
	}
	return marshalNoEscape(d)
}

// ContentHash is blake2b-256 over the canonical deliverable for workflow
// proofs, and over the compacted document otherwise.
func (d *Document) ContentHash() (record.Hash, error) {
	if d.RagData != nil {
		return HashDeliverable(d.RagData.Deliverable)
	}
	if d.raw == nil {
		return record.Hash{}, errdefs.New(errdefs.KindValidation, "TP-PRF-023", "empty proof document")
	}
	return record.Hash(blake2b.Sum256(d.raw)), nil
}

// Canonical returns the bytes a deliverable's content hash covers.
func Canonical(d Deliverable) ([]byte, error) {
	b, err := d.MarshalJSON()
	if err != nil {
		return nil, errdefs.Wrap(errdefs.KindDecode, "TP-PRF-030", "canonicalize deliverable", err)
	}
	return b, nil
}

func HashDeliverable(d Deliverable) (record.Hash, error) {
	b, err := Canonical(d)
	if err != nil {
		return record.Hash{}, err
	}
	return record.Hash(blake2b.Sum256(b)), nil
}

// PrefixHash is the content hash anchored when the workflow had exactly n steps.
func PrefixHash(d Deliverable, n int) (record.Hash, error) {
	return HashDeliverable(d.Prefix(n))
}
