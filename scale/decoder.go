package scale

import (
	"math/big"
	"unicode/utf8"

	"xdao.co/trailproof/errdefs"
)

// Decoder walks a byte slice front to back.
//
// Every read either advances the offset or returns a Decode error; Finish
// rejects trailing bytes so over-long records do not decode silently.
type Decoder struct {
	buf []byte
	off int
}

func NewDecoder(b []byte) *Decoder {
	return &Decoder{buf: b}
}

// Offset returns the number of bytes consumed so far.
func (d *Decoder) Offset() int { return d.off }

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int { return len(d.buf) - d.off }

func (d *Decoder) Fixed(n int) ([]byte, error) {
	if d.Remaining() < n {
		return nil, truncated("fixed field", d.off, n, d.Remaining())
	}
	out := d.buf[d.off : d.off+n]
	d.off += n
	return out, nil
}

// FixedInto copies exactly len(dst) bytes into dst.
func (d *Decoder) FixedInto(dst []byte) error {
	b, err := d.Fixed(len(dst))
	if err != nil {
		return err
	}
	copy(dst, b)
	return nil
}

func (d *Decoder) U32() (uint32, error) {
	v, err := ReadU32(d.buf, d.off)
	if err != nil {
		return 0, err
	}
	d.off += 4
	return v, nil
}

func (d *Decoder) U64() (uint64, error) {
	v, err := ReadU64(d.buf, d.off)
	if err != nil {
		return 0, err
	}
	d.off += 8
	return v, nil
}

func (d *Decoder) U128() (*big.Int, error) {
	v, err := ReadU128(d.buf, d.off)
	if err != nil {
		return nil, err
	}
	d.off += 16
	return v, nil
}

func (d *Decoder) CompactLength() (uint64, error) {
	v, n, err := ReadCompactLength(d.buf, d.off)
	if err != nil {
		return 0, err
	}
	d.off += n
	return v, nil
}

// Bytes reads a compact-length-prefixed byte sequence.
func (d *Decoder) Bytes() ([]byte, error) {
	n, err := d.CompactLength()
	if err != nil {
		return nil, err
	}
	if n > uint64(d.Remaining()) {
		return nil, truncated("byte sequence", d.off, int(min(n, MaxFour)), d.Remaining())
	}
	return d.Fixed(int(n))
}

// Text reads a compact-length-prefixed UTF-8 string.
func (d *Decoder) Text() (string, error) {
	start := d.off
	b, err := d.Bytes()
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", errdefs.Newf(errdefs.KindDecode, "TP-DEC-005", "string at offset %d is not valid UTF-8", start)
	}
	return string(b), nil
}

// Hashes reads a compact-length-prefixed vector of 32-byte hashes.
func (d *Decoder) Hashes() ([][32]byte, error) {
	n, err := d.CompactLength()
	if err != nil {
		return nil, err
	}
	if n > uint64(d.Remaining()/32) {
		return nil, errdefs.Newf(errdefs.KindDecode, "TP-DEC-006", "hash vector of %d entries exceeds remaining %d bytes", n, d.Remaining())
	}
	out := make([][32]byte, n)
	for i := range out {
		if err := d.FixedInto(out[i][:]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Finish fails if any bytes remain unread.
func (d *Decoder) Finish() error {
	if d.Remaining() != 0 {
		return errdefs.Newf(errdefs.KindDecode, "TP-DEC-007", "%d trailing bytes after offset %d", d.Remaining(), d.off)
	}
	return nil
}
