package cidutil

import (
	"bytes"
	"crypto/sha256"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"xdao.co/trailproof/errdefs"
)

const sampleHex = "0x01551220b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"

func TestHexToStringRoundTrip(t *testing.T) {
	s, err := HexToString(sampleHex)
	require.NoError(t, err)
	require.Regexp(t, regexp.MustCompile(`^baf[a-z0-9]+$`), s)

	back, err := StringToHex(s)
	require.NoError(t, err)
	require.Equal(t, strings.ToLower(sampleHex), strings.ToLower(back))
}

func TestBinaryStringInverse(t *testing.T) {
	for _, payload := range []string{"", "a", "hello world", strings.Repeat("x", 4096)} {
		sum := sha256.Sum256([]byte(payload))
		id, err := FromContentHash(sum[:])
		require.NoError(t, err)

		b, err := Encode(id)
		require.NoError(t, err)
		require.Len(t, b, BinarySize)

		decoded, err := Decode(b)
		require.NoError(t, err)
		parsed, err := Parse(String(decoded))
		require.NoError(t, err)
		again, err := Encode(parsed)
		require.NoError(t, err)
		require.True(t, bytes.Equal(b, again), "encode(parse(toString(decode(b)))) != b")
	}
}

func TestFromContentHashMatchesSum(t *testing.T) {
	data := []byte("step payload")
	sum := sha256.Sum256(data)
	id, err := FromContentHash(sum[:])
	require.NoError(t, err)
	want, err := CIDv1RawSHA256CID(data)
	require.NoError(t, err)
	require.Equal(t, want, id)
	require.Equal(t, CIDv1RawSHA256(data), String(id))
}

func TestDecodeRejectsMalformed(t *testing.T) {
	good, err := DecodeHex(sampleHex)
	require.NoError(t, err)

	cases := map[string][]byte{
		"short":       good[:35],
		"long":        append(append([]byte(nil), good...), 0x00),
		"bad version": append([]byte{0x02}, good[1:]...),
		"bad codec":   append([]byte{0x01, 0x71}, good[2:]...),
		"bad digest":  append([]byte{0x01, 0x55, 0x13}, good[3:]...),
	}
	for name, b := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(b)
			require.Error(t, err)
			require.True(t, errdefs.IsKind(err, errdefs.KindDecode), "got %v", err)
		})
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, s := range []string{"", "   ", "not-a-cid", "bafyZZZ", "QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG"} {
		require.False(t, IsValid(s), "expected %q to be invalid", s)
		_, err := Parse(s)
		require.True(t, errdefs.IsKind(err, errdefs.KindDecode), "got %v", err)
	}
}

func TestHexToStringRejectsBadHex(t *testing.T) {
	_, err := HexToString("0xzz")
	require.True(t, errdefs.IsKind(err, errdefs.KindDecode))
	_, err = HexToString("0x0155")
	require.True(t, errdefs.IsKind(err, errdefs.KindDecode))
}
