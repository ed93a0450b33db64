// Package storagekey derives ledger storage addresses.
//
// A map entry lives at twox128(namespace) ‖ twox128(map) ‖ hasher(key). The
// concat hashers append the raw key after its hash so that keys enumerated under
// a prefix can be mapped back to the logical key.
package storagekey

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/crypto/blake2b"

	"xdao.co/trailproof/errdefs"
)

// Hasher selects how a map key is hashed into the storage address.
type Hasher int

const (
	Identity Hasher = iota
	Blake2_128
	Blake2_256
	Blake2_128Concat
	Twox64Concat
	Twox128
	Twox256
)

func (h Hasher) String() string {
	switch h {
	case Identity:
		return "Identity"
	case Blake2_128:
		return "Blake2_128"
	case Blake2_256:
		return "Blake2_256"
	case Blake2_128Concat:
		return "Blake2_128Concat"
	case Twox64Concat:
		return "Twox64Concat"
	case Twox128:
		return "Twox128"
	case Twox256:
		return "Twox256"
	default:
		return fmt.Sprintf("Hasher(%d)", int(h))
	}
}

// ParseHasher maps a hasher name (as printed by String) back to a Hasher.
func ParseHasher(s string) (Hasher, error) {
	for h := Identity; h <= Twox256; h++ {
		if h.String() == s {
			return h, nil
		}
	}
	return 0, errdefs.Newf(errdefs.KindValidation, "TP-KEY-001", "unknown storage hasher %q", s)
}

// hashLen is the digest length preceding the raw key for concat hashers.
func (h Hasher) hashLen() int {
	switch h {
	case Blake2_128Concat:
		return 16
	case Twox64Concat:
		return 8
	case Identity:
		return 0
	default:
		return -1
	}
}

// Reversible reports whether the raw key can be recovered from a derived address.
func (h Hasher) Reversible() bool { return h.hashLen() >= 0 }

// Hash applies h to key.
func (h Hasher) Hash(key []byte) []byte {
	switch h {
	case Identity:
		return append([]byte(nil), key...)
	case Blake2_128:
		return blake2(key, 16)
	case Blake2_256:
		return blake2(key, 32)
	case Blake2_128Concat:
		return append(blake2(key, 16), key...)
	case Twox64Concat:
		return append(TwoX(key, 1), key...)
	case Twox128:
		return TwoX(key, 2)
	case Twox256:
		return TwoX(key, 4)
	default:
		panic(fmt.Sprintf("storagekey: unknown hasher %d", int(h)))
	}
}

// TwoX concatenates rounds little-endian xxHash64 digests of data, seeded 0..rounds-1.
func TwoX(data []byte, rounds int) []byte {
	out := make([]byte, 0, 8*rounds)
	for seed := 0; seed < rounds; seed++ {
		d := xxhash.NewWithSeed(uint64(seed))
		_, _ = d.Write(data)
		out = binary.LittleEndian.AppendUint64(out, d.Sum64())
	}
	return out
}

func blake2(data []byte, size int) []byte {
	h, err := blake2b.New(size, nil)
	if err != nil {
		panic(err)
	}
	h.Write(data)
	return h.Sum(nil)
}

// Prefix returns twox128(namespace) ‖ twox128(mapName), the address shared by
// every entry of one map (and the full address of a plain value).
func Prefix(namespace, mapName string) []byte {
	out := TwoX([]byte(namespace), 2)
	return append(out, TwoX([]byte(mapName), 2)...)
}

// MapKey returns the address of one map entry.
func MapKey(namespace, mapName string, hasher Hasher, key []byte) []byte {
	return append(Prefix(namespace, mapName), hasher.Hash(key)...)
}

// KeySuffix recovers the raw map key from a full address produced by MapKey
// under a concat (or identity) hasher.
func KeySuffix(full []byte, prefixLen int, hasher Hasher) ([]byte, error) {
	n := hasher.hashLen()
	if n < 0 {
		return nil, errdefs.Newf(errdefs.KindValidation, "TP-KEY-002", "hasher %s does not retain the key", hasher)
	}
	if len(full) < prefixLen+n {
		return nil, errdefs.Newf(errdefs.KindDecode, "TP-KEY-003", "storage key of %d bytes shorter than prefix+hash %d", len(full), prefixLen+n)
	}
	key := full[prefixLen+n:]
	if got := hasher.Hash(key); string(got) != string(full[prefixLen:]) {
		return nil, errdefs.New(errdefs.KindDecode, "TP-KEY-004", "storage key hash does not match embedded key")
	}
	return append([]byte(nil), key...), nil
}

// Hex renders a key as 0x-prefixed lowercase hex, the RPC wire form.
func Hex(key []byte) string { return "0x" + hex.EncodeToString(key) }
