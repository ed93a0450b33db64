package keys

import (
	"bytes"
	"encoding/hex"
	"strings"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"

	"xdao.co/trailproof/errdefs"
)

// DefaultSS58Prefix is the generic network prefix ("5..." addresses).
const DefaultSS58Prefix uint16 = 42

const checksumLen = 2

var ss58Pre = []byte("SS58PRE")

// AccountID is a 32-byte ledger identity (a public key).
type AccountID [32]byte

func (a AccountID) IsZero() bool { return a == AccountID{} }

// Hex returns the 0x-prefixed lowercase hex form.
func (a AccountID) Hex() string { return "0x" + hex.EncodeToString(a[:]) }

// Address returns the SS58 address under DefaultSS58Prefix.
func (a AccountID) Address() string {
	s, _ := EncodeAddress(a, DefaultSS58Prefix)
	return s
}

func (a AccountID) String() string { return a.Address() }

// MarshalText renders the account as an SS58 address.
func (a AccountID) MarshalText() ([]byte, error) { return []byte(a.Address()), nil }

// UnmarshalText accepts either an SS58 address or 0x-hex.
func (a *AccountID) UnmarshalText(b []byte) error {
	id, err := ParseAccount(string(b))
	if err != nil {
		return err
	}
	*a = id
	return nil
}

// ParseAccount accepts an SS58 address (any network prefix) or 0x-prefixed hex.
func ParseAccount(s string) (AccountID, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		b, err := hex.DecodeString(s[2:])
		if err != nil {
			return AccountID{}, errdefs.Wrap(errdefs.KindDecode, "TP-ACC-001", "malformed account hex", err)
		}
		return AccountFromBytes(b)
	}
	id, _, err := DecodeAddress(s)
	return id, err
}

// AccountFromBytes copies a 32-byte public key.
func AccountFromBytes(b []byte) (AccountID, error) {
	var id AccountID
	if len(b) != len(id) {
		return id, errdefs.Newf(errdefs.KindDecode, "TP-ACC-002", "account must be %d bytes, got %d", len(id), len(b))
	}
	copy(id[:], b)
	return id, nil
}

// EncodeAddress renders an account as an SS58 address.
func EncodeAddress(id AccountID, prefix uint16) (string, error) {
	pre, err := encodePrefix(prefix)
	if err != nil {
		return "", err
	}
	body := append(pre, id[:]...)
	sum := checksum(body)
	return base58.Encode(append(body, sum[:checksumLen]...)), nil
}

// DecodeAddress parses an SS58 address and verifies its checksum.
func DecodeAddress(s string) (AccountID, uint16, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return AccountID{}, 0, errdefs.Wrap(errdefs.KindDecode, "TP-ACC-003", "malformed ss58 address", err)
	}
	if len(raw) == 0 {
		return AccountID{}, 0, errdefs.New(errdefs.KindDecode, "TP-ACC-003", "empty ss58 address")
	}
	prefix, preLen, err := decodePrefix(raw)
	if err != nil {
		return AccountID{}, 0, err
	}
	if len(raw) != preLen+32+checksumLen {
		return AccountID{}, 0, errdefs.Newf(errdefs.KindDecode, "TP-ACC-004", "ss58 address has %d bytes, want %d", len(raw), preLen+32+checksumLen)
	}
	body := raw[:preLen+32]
	sum := checksum(body)
	if !bytes.Equal(sum[:checksumLen], raw[preLen+32:]) {
		return AccountID{}, 0, errdefs.New(errdefs.KindDecode, "TP-ACC-005", "ss58 checksum mismatch")
	}
	var id AccountID
	copy(id[:], raw[preLen:preLen+32])
	return id, prefix, nil
}

func checksum(body []byte) [64]byte {
	h, _ := blake2b.New512(nil)
	h.Write(ss58Pre)
	h.Write(body)
	var out [64]byte
	copy(out[:], h.Sum(nil))
	return out
}

func encodePrefix(p uint16) ([]byte, error) {
	switch {
	case p < 64:
		return []byte{byte(p)}, nil
	case p < 16384:
		first := byte((p&0b1111_1100)>>2) | 0b0100_0000
		second := byte(p>>8) | byte((p&0b11)<<6)
		return []byte{first, second}, nil
	default:
		return nil, errdefs.Newf(errdefs.KindDecode, "TP-ACC-006", "ss58 prefix %d out of range", p)
	}
}

func decodePrefix(raw []byte) (uint16, int, error) {
	switch {
	case raw[0] < 64:
		return uint16(raw[0]), 1, nil
	case raw[0] < 128:
		if len(raw) < 2 {
			return 0, 0, errdefs.New(errdefs.KindDecode, "TP-ACC-004", "truncated ss58 prefix")
		}
		lower := uint16(raw[0]&0b0011_1111)<<2 | uint16(raw[1]>>6)
		upper := uint16(raw[1] & 0b0011_1111)
		return lower | upper<<8, 2, nil
	default:
		return 0, 0, errdefs.Newf(errdefs.KindDecode, "TP-ACC-006", "reserved ss58 prefix byte 0x%x", raw[0])
	}
}
