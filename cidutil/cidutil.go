// Package cidutil converts content identifiers between the 36-byte binary form
// anchored on the ledger and the multibase string form used by content storage.
//
// Only CIDv1 with a single-byte codec (raw or dag-pb) and a sha2-256 multihash
// is accepted; that is the only shape that fits the fixed 36-byte slot.
package cidutil

import (
	"encoding/hex"
	"strings"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multibase"
	"github.com/multiformats/go-multihash"

	"xdao.co/trailproof/errdefs"
)

// BinarySize is the length of a binary CID as stored on the ledger.
const BinarySize = 36

const digestSize = 32

// CIDv1RawSHA256 returns a CIDv1 string using the "raw" multicodec
// and a sha2-256 multihash.
func CIDv1RawSHA256(data []byte) string {
	id, err := CIDv1RawSHA256CID(data)
	if err != nil {
		// multihash.Sum only errors for invalid inputs; with SHA2_256 and -1 length,
		// this should be unreachable.
		return ""
	}
	return String(id)
}

// CIDv1RawSHA256CID returns a CIDv1 (raw + sha2-256) derived from data.
func CIDv1RawSHA256CID(data []byte) (cid.Cid, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}

// FromContentHash wraps an existing 32-byte sha2-256 digest as a raw CIDv1.
func FromContentHash(digest []byte) (cid.Cid, error) {
	if len(digest) != digestSize {
		return cid.Undef, errdefs.Newf(errdefs.KindDecode, "TP-CID-001", "content hash must be %d bytes, got %d", digestSize, len(digest))
	}
	mh, err := multihash.Encode(digest, multihash.SHA2_256)
	if err != nil {
		return cid.Undef, errdefs.Wrap(errdefs.KindDecode, "TP-CID-002", "encode multihash", err)
	}
	return cid.NewCidV1(cid.Raw, mh), nil
}

// Decode parses the 36-byte ledger form.
func Decode(b []byte) (cid.Cid, error) {
	if len(b) != BinarySize {
		return cid.Undef, errdefs.Newf(errdefs.KindDecode, "TP-CID-003", "binary cid must be %d bytes, got %d", BinarySize, len(b))
	}
	id, err := cid.Cast(b)
	if err != nil {
		return cid.Undef, errdefs.Wrap(errdefs.KindDecode, "TP-CID-004", "malformed binary cid", err)
	}
	if err := checkShape(id); err != nil {
		return cid.Undef, err
	}
	return id, nil
}

// Encode returns the 36-byte ledger form of id.
func Encode(id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, errdefs.New(errdefs.KindDecode, "TP-CID-005", "undefined cid")
	}
	if err := checkShape(id); err != nil {
		return nil, err
	}
	b := id.Bytes()
	if len(b) != BinarySize {
		return nil, errdefs.Newf(errdefs.KindDecode, "TP-CID-003", "binary cid must be %d bytes, got %d", BinarySize, len(b))
	}
	return b, nil
}

// Parse parses the multibase string form.
func Parse(s string) (cid.Cid, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return cid.Undef, errdefs.New(errdefs.KindDecode, "TP-CID-006", "empty cid string")
	}
	id, err := cid.Decode(s)
	if err != nil {
		return cid.Undef, errdefs.Wrap(errdefs.KindDecode, "TP-CID-007", "malformed cid string", err)
	}
	if err := checkShape(id); err != nil {
		return cid.Undef, err
	}
	if len(id.Bytes()) != BinarySize {
		return cid.Undef, errdefs.New(errdefs.KindDecode, "TP-CID-003", "cid does not fit the 36-byte ledger form")
	}
	return id, nil
}

// String renders id as base32 lower multibase (the "b..." form).
func String(id cid.Cid) string {
	s, err := id.StringOfBase(multibase.Base32)
	if err != nil {
		// Only CIDv0 refuses non-base58 encodings; fall back to its canonical form.
		return id.String()
	}
	return s
}

// IsValid reports whether s parses as a ledger-compatible CID.
func IsValid(s string) bool {
	_, err := Parse(s)
	return err == nil
}

// HexToString converts a 0x-prefixed (or bare) hex binary CID into its string form.
func HexToString(h string) (string, error) {
	b, err := DecodeHex(h)
	if err != nil {
		return "", err
	}
	id, err := Decode(b)
	if err != nil {
		return "", err
	}
	return String(id), nil
}

// StringToHex converts a CID string into the 0x-prefixed lowercase hex binary form.
func StringToHex(s string) (string, error) {
	id, err := Parse(s)
	if err != nil {
		return "", err
	}
	b, err := Encode(id)
	if err != nil {
		return "", err
	}
	return "0x" + hex.EncodeToString(b), nil
}

// DecodeHex decodes hex with an optional 0x prefix.
func DecodeHex(h string) ([]byte, error) {
	h = strings.TrimSpace(h)
	h = strings.TrimPrefix(strings.TrimPrefix(h, "0x"), "0X")
	b, err := hex.DecodeString(h)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.KindDecode, "TP-HEX-001", "malformed hex", err)
	}
	return b, nil
}

func checkShape(id cid.Cid) error {
	if id.Version() != 1 {
		return errdefs.Newf(errdefs.KindDecode, "TP-CID-010", "unsupported cid version %d", id.Version())
	}
	switch id.Type() {
	case cid.Raw, cid.DagProtobuf:
	default:
		return errdefs.Newf(errdefs.KindDecode, "TP-CID-011", "unsupported cid codec 0x%x", id.Type())
	}
	dec, err := multihash.Decode(id.Hash())
	if err != nil {
		return errdefs.Wrap(errdefs.KindDecode, "TP-CID-012", "malformed multihash", err)
	}
	if dec.Code != multihash.SHA2_256 || dec.Length != digestSize {
		return errdefs.Newf(errdefs.KindDecode, "TP-CID-013", "unsupported multihash 0x%x/%d", dec.Code, dec.Length)
	}
	return nil
}
