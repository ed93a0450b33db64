package scale

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"xdao.co/trailproof/errdefs"
)

func TestCompactLengthBoundaries(t *testing.T) {
	cases := []struct {
		v     uint64
		width int
	}{
		{0, 1},
		{1, 1},
		{63, 1},
		{64, 2},
		{16383, 2},
		{16384, 4},
		{MaxFour, 4},
	}
	for _, tc := range cases {
		b, err := AppendCompactLength(nil, tc.v)
		require.NoError(t, err)
		require.Len(t, b, tc.width, "value %d", tc.v)

		got, n, err := ReadCompactLength(b, 0)
		require.NoError(t, err)
		require.Equal(t, tc.v, got)
		require.Equal(t, tc.width, n)
	}
}

func TestCompactLengthKnownBytes(t *testing.T) {
	v, n, err := ReadCompactLength([]byte{0xfc}, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(63), v)
	require.Equal(t, 1, n)

	v, n, err = ReadCompactLength([]byte{0x01, 0x01}, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(64), v)
	require.Equal(t, 2, n)

	v, n, err = ReadCompactLength([]byte{0x02, 0x00, 0x01, 0x00}, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(16384), v)
	require.Equal(t, 4, n)
}

func TestCompactLengthRejectsBigModeAndTruncation(t *testing.T) {
	_, _, err := ReadCompactLength([]byte{0x03, 0, 0, 0, 0}, 0)
	require.True(t, errdefs.IsKind(err, errdefs.KindDecode))
	require.Equal(t, "TP-DEC-002", errdefs.RuleID(err))

	for _, b := range [][]byte{nil, {0x01}, {0x02, 0x00, 0x00}} {
		_, _, err := ReadCompactLength(b, 0)
		require.True(t, errdefs.IsKind(err, errdefs.KindDecode), "input %x", b)
	}

	_, err = AppendCompactLength(nil, MaxFour+1)
	require.Error(t, err)
}

func TestFixedWidthReads(t *testing.T) {
	b := []byte{0x64, 0, 0, 0, 0xc8, 0, 0, 0}
	v, err := ReadU32(b, 0)
	require.NoError(t, err)
	require.Equal(t, uint32(100), v)
	v, err = ReadU32(b, 4)
	require.NoError(t, err)
	require.Equal(t, uint32(200), v)
	_, err = ReadU32(b, 5)
	require.Error(t, err)
	_, err = ReadU32(b, -1)
	require.Error(t, err)

	want, ok := new(big.Int).SetString("340282366920938463463374607431768211455", 10)
	require.True(t, ok)
	enc, err := AppendU128(nil, want)
	require.NoError(t, err)
	got, err := ReadU128(enc, 0)
	require.NoError(t, err)
	require.Equal(t, 0, want.Cmp(got))

	_, err = AppendU128(nil, new(big.Int).Lsh(big.NewInt(1), 128))
	require.Error(t, err)
}

func TestDecoderFinishRejectsTrailing(t *testing.T) {
	b, err := AppendBytes(nil, []byte("name"))
	require.NoError(t, err)
	b = append(b, 0xff)

	d := NewDecoder(b)
	s, err := d.Text()
	require.NoError(t, err)
	require.Equal(t, "name", s)
	require.Error(t, d.Finish())
}

func TestDecoderRejectsOverlongLength(t *testing.T) {
	b, err := AppendCompactLength(nil, 10)
	require.NoError(t, err)
	b = append(b, []byte("abc")...)
	_, err = NewDecoder(b).Bytes()
	require.True(t, errdefs.IsKind(err, errdefs.KindDecode))

	h, err := AppendCompactLength(nil, 2)
	require.NoError(t, err)
	h = append(h, make([]byte, 40)...)
	_, err = NewDecoder(h).Hashes()
	require.True(t, errdefs.IsKind(err, errdefs.KindDecode))
}
