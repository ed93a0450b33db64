// Package record decodes the workflow records anchored on the ledger.
//
// Two layouts exist. A RagRecord is variable length and describes either a
// workflow master (non-empty step list) or a single step schema. A CryptoTrail
// is a fixed 244-byte anchor binding a content hash to its creator.
package record

import (
	"encoding/hex"
	"math/big"

	"github.com/ipfs/go-cid"

	"xdao.co/trailproof/cidutil"
	"xdao.co/trailproof/errdefs"
	"xdao.co/trailproof/keys"
	"xdao.co/trailproof/scale"
)

// Hash is a 32-byte ledger hash (record keys, content hashes, step hashes).
type Hash [32]byte

func (h Hash) Hex() string { return "0x" + hex.EncodeToString(h[:]) }

func (h Hash) String() string { return h.Hex() }

func (h Hash) IsZero() bool { return h == Hash{} }

func (h Hash) MarshalText() ([]byte, error) { return []byte(h.Hex()), nil }

func (h *Hash) UnmarshalText(b []byte) error {
	v, err := ParseHash(string(b))
	if err != nil {
		return err
	}
	*h = v
	return nil
}

// ParseHash decodes 0x-prefixed (or bare) hex into a Hash.
func ParseHash(s string) (Hash, error) {
	var h Hash
	b, err := cidutil.DecodeHex(s)
	if err != nil {
		return h, err
	}
	if len(b) != len(h) {
		return h, errdefs.Newf(errdefs.KindDecode, "TP-REC-001", "hash must be %d bytes, got %d", len(h), len(b))
	}
	copy(h[:], b)
	return h, nil
}

// RagRecord is a published workflow master or step schema.
type RagRecord struct {
	InstructionCID cid.Cid
	ResourceCID    cid.Cid
	SchemaCID      cid.Cid
	Steps          []Hash
	CreatedAt      uint32
	ExpiresAt      uint32
	Staked         *big.Int
	Publisher      keys.AccountID
	Name           string
	Description    string
}

// IsMaster reports whether r is a workflow template rather than a single step.
func (r *RagRecord) IsMaster() bool { return len(r.Steps) > 0 }

// StepIndex returns the position of step in r.Steps, or -1.
func (r *RagRecord) StepIndex(step Hash) int {
	for i, s := range r.Steps {
		if s == step {
			return i
		}
	}
	return -1
}

// Expired reports whether the record has expired at the given block.
// A zero ExpiresAt never expires.
func (r *RagRecord) Expired(block uint32) bool {
	return r.ExpiresAt != 0 && block >= r.ExpiresAt
}

// DecodeRagRecord decodes the variable-length layout:
// 3×36-byte CID ‖ compact vec of 32-byte hashes ‖ u32 createdAt ‖ u32 expiresAt ‖
// u128 staked ‖ 32-byte publisher ‖ compact UTF-8 name ‖ compact UTF-8 description.
func DecodeRagRecord(b []byte) (*RagRecord, error) {
	d := scale.NewDecoder(b)
	r := &RagRecord{}
	var err error
	for _, dst := range []*cid.Cid{&r.InstructionCID, &r.ResourceCID, &r.SchemaCID} {
		if *dst, err = readCID(d); err != nil {
			return nil, err
		}
	}
	steps, err := d.Hashes()
	if err != nil {
		return nil, err
	}
	r.Steps = make([]Hash, len(steps))
	for i := range steps {
		r.Steps[i] = Hash(steps[i])
	}
	if r.CreatedAt, err = d.U32(); err != nil {
		return nil, err
	}
	if r.ExpiresAt, err = d.U32(); err != nil {
		return nil, err
	}
	if r.Staked, err = d.U128(); err != nil {
		return nil, err
	}
	if err = d.FixedInto(r.Publisher[:]); err != nil {
		return nil, err
	}
	if r.Name, err = d.Text(); err != nil {
		return nil, err
	}
	if r.Description, err = d.Text(); err != nil {
		return nil, err
	}
	if err := d.Finish(); err != nil {
		return nil, err
	}
	return r, nil
}

// EncodeRagRecord is the inverse of DecodeRagRecord.
func EncodeRagRecord(r *RagRecord) ([]byte, error) {
	var out []byte
	for _, id := range []cid.Cid{r.InstructionCID, r.ResourceCID, r.SchemaCID} {
		b, err := cidutil.Encode(id)
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	out, err := scale.AppendCompactLength(out, uint64(len(r.Steps)))
	if err != nil {
		return nil, err
	}
	for _, s := range r.Steps {
		out = append(out, s[:]...)
	}
	out = scale.AppendU32(out, r.CreatedAt)
	out = scale.AppendU32(out, r.ExpiresAt)
	if out, err = scale.AppendU128(out, r.Staked); err != nil {
		return nil, err
	}
	out = append(out, r.Publisher[:]...)
	if out, err = scale.AppendBytes(out, []byte(r.Name)); err != nil {
		return nil, err
	}
	return scale.AppendBytes(out, []byte(r.Description))
}

func readCID(d *scale.Decoder) (cid.Cid, error) {
	b, err := d.Fixed(cidutil.BinarySize)
	if err != nil {
		return cid.Undef, err
	}
	return cidutil.Decode(append([]byte(nil), b...))
}

// DecodeHashList decodes a compact vector of 32-byte hashes with nothing trailing,
// the shape returned by the tag-search runtime call.
func DecodeHashList(b []byte) ([]Hash, error) {
	d := scale.NewDecoder(b)
	raw, err := d.Hashes()
	if err != nil {
		return nil, err
	}
	if err := d.Finish(); err != nil {
		return nil, err
	}
	out := make([]Hash, len(raw))
	for i := range raw {
		out[i] = Hash(raw[i])
	}
	return out, nil
}

// EncodeHashList is the inverse of DecodeHashList.
func EncodeHashList(hs []Hash) ([]byte, error) {
	out, err := scale.AppendCompactLength(nil, uint64(len(hs)))
	if err != nil {
		return nil, err
	}
	for _, h := range hs {
		out = append(out, h[:]...)
	}
	return out, nil
}
