// Package scale reads and writes the compact binary encoding used by ledger
// storage records: little-endian fixed-width integers and length prefixes whose
// width is selected by the two low bits of the first byte.
package scale

import (
	"bytes"
	"encoding/binary"
	"math/big"

	gscale "github.com/centrifuge/go-substrate-rpc-client/v4/scale"

	"xdao.co/trailproof/errdefs"
)

// Compact length modes, selected by the two low bits of the first byte.
const (
	modeSingle = 0b00
	modeTwo    = 0b01
	modeFour   = 0b10
	modeBig    = 0b11
)

// Upper bounds (inclusive) for each compact mode.
const (
	MaxSingle = 1<<6 - 1
	MaxTwo    = 1<<14 - 1
	MaxFour   = 1<<30 - 1
)

func truncated(what string, off, need, have int) error {
	return errdefs.Newf(errdefs.KindDecode, "TP-DEC-001", "%s at offset %d needs %d bytes, %d available", what, off, need, have)
}

func available(b []byte, off int) int {
	if off < 0 || off > len(b) {
		return 0
	}
	return len(b) - off
}

// ReadU32 reads a little-endian uint32 at off.
func ReadU32(b []byte, off int) (uint32, error) {
	if available(b, off) < 4 {
		return 0, truncated("u32", off, 4, available(b, off))
	}
	return binary.LittleEndian.Uint32(b[off:]), nil
}

// ReadU64 reads a little-endian uint64 at off.
func ReadU64(b []byte, off int) (uint64, error) {
	if available(b, off) < 8 {
		return 0, truncated("u64", off, 8, available(b, off))
	}
	return binary.LittleEndian.Uint64(b[off:]), nil
}

// ReadU128 reads a little-endian 128-bit unsigned integer at off.
func ReadU128(b []byte, off int) (*big.Int, error) {
	if available(b, off) < 16 {
		return nil, truncated("u128", off, 16, available(b, off))
	}
	be := make([]byte, 16)
	for i := 0; i < 16; i++ {
		be[15-i] = b[off+i]
	}
	return new(big.Int).SetBytes(be), nil
}

// ReadCompactLength decodes a compact length prefix at off and reports how many
// bytes it occupied. The big-integer mode is not supported.
func ReadCompactLength(b []byte, off int) (uint64, int, error) {
	if available(b, off) < 1 {
		return 0, 0, truncated("compact length", off, 1, 0)
	}
	switch b[off] & 0b11 {
	case modeSingle:
		return uint64(b[off] >> 2), 1, nil
	case modeTwo:
		if available(b, off) < 2 {
			return 0, 0, truncated("compact length", off, 2, available(b, off))
		}
		return uint64(binary.LittleEndian.Uint16(b[off:]) >> 2), 2, nil
	case modeFour:
		if available(b, off) < 4 {
			return 0, 0, truncated("compact length", off, 4, available(b, off))
		}
		return uint64(binary.LittleEndian.Uint32(b[off:]) >> 2), 4, nil
	default:
		return 0, 0, errdefs.Newf(errdefs.KindDecode, "TP-DEC-002", "compact length at offset %d uses unsupported big-integer mode", off)
	}
}

// AppendCompactLength appends v in the smallest compact mode that holds it.
// Values beyond the 4-byte mode are rejected since ReadCompactLength cannot
// read them back.
func AppendCompactLength(dst []byte, v uint64) ([]byte, error) {
	if v > MaxFour {
		return dst, errdefs.Newf(errdefs.KindDecode, "TP-DEC-003", "compact length %d exceeds the 4-byte mode", v)
	}
	var buf bytes.Buffer
	if err := gscale.NewEncoder(&buf).EncodeUintCompact(*new(big.Int).SetUint64(v)); err != nil {
		return dst, errdefs.Wrap(errdefs.KindInternal, "TP-DEC-005", "encode compact length", err)
	}
	return append(dst, buf.Bytes()...), nil
}

// AppendU32 appends v little-endian.
func AppendU32(dst []byte, v uint32) []byte {
	return binary.LittleEndian.AppendUint32(dst, v)
}

// AppendU128 appends v as 16 little-endian bytes. A nil v encodes as zero.
func AppendU128(dst []byte, v *big.Int) ([]byte, error) {
	var le [16]byte
	if v != nil {
		if v.Sign() < 0 || v.BitLen() > 128 {
			return dst, errdefs.New(errdefs.KindDecode, "TP-DEC-004", "value does not fit in u128")
		}
		be := v.Bytes()
		for i := range be {
			le[i] = be[len(be)-1-i]
		}
	}
	return append(dst, le[:]...), nil
}

// AppendBytes appends a compact-length-prefixed byte sequence.
func AppendBytes(dst, v []byte) ([]byte, error) {
	dst, err := AppendCompactLength(dst, uint64(len(v)))
	if err != nil {
		return dst, err
	}
	return append(dst, v...), nil
}
