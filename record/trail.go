package record

import (
	"encoding/binary"

	"xdao.co/trailproof/errdefs"
	"xdao.co/trailproof/keys"
)

// Field sizes of the CryptoTrail layout.
const (
	EncryptedCIDSize = 52
	PubKeySize       = 32
	NonceSize        = 12
	TrailSize        = 32 + EncryptedCIDSize + PubKeySize + NonceSize + NonceSize + 32 + keys.SignatureSize + 4 + 4
)

// Byte offsets within the CryptoTrail layout.
const (
	offCreator      = 0
	offEncryptedCID = 32
	offEphemeral    = 84
	offCIDNonce     = 116
	offContentNonce = 128
	offContentHash  = 140
	offSignature    = 172
	offCreatedAt    = 236
	offExpiresAt    = 240
)

// CryptoTrail anchors one step's content hash on the ledger.
type CryptoTrail struct {
	Creator         keys.AccountID
	EncryptedCID    [EncryptedCIDSize]byte
	EphemeralPubKey [PubKeySize]byte
	CIDNonce        [NonceSize]byte
	ContentNonce    [NonceSize]byte
	ContentHash     Hash
	Signature       [keys.SignatureSize]byte
	CreatedAt       uint32
	ExpiresAt       uint32
}

// Encrypted reports whether the trail carries a sealed CID pointer.
// Plaintext trails leave the ephemeral key zeroed.
func (t *CryptoTrail) Encrypted() bool {
	return t.EphemeralPubKey != [PubKeySize]byte{}
}

// DecodeCryptoTrail decodes exactly TrailSize bytes.
func DecodeCryptoTrail(b []byte) (*CryptoTrail, error) {
	if len(b) != TrailSize {
		return nil, errdefs.Newf(errdefs.KindDecode, "TP-REC-010", "crypto trail must be %d bytes, got %d", TrailSize, len(b))
	}
	t := &CryptoTrail{}
	copy(t.Creator[:], b[offCreator:offEncryptedCID])
	copy(t.EncryptedCID[:], b[offEncryptedCID:offEphemeral])
	copy(t.EphemeralPubKey[:], b[offEphemeral:offCIDNonce])
	copy(t.CIDNonce[:], b[offCIDNonce:offContentNonce])
	copy(t.ContentNonce[:], b[offContentNonce:offContentHash])
	copy(t.ContentHash[:], b[offContentHash:offSignature])
	copy(t.Signature[:], b[offSignature:offCreatedAt])
	t.CreatedAt = binary.LittleEndian.Uint32(b[offCreatedAt:])
	t.ExpiresAt = binary.LittleEndian.Uint32(b[offExpiresAt:])
	return t, nil
}

// EncodeCryptoTrail is the inverse of DecodeCryptoTrail.
func EncodeCryptoTrail(t *CryptoTrail) []byte {
	b := make([]byte, TrailSize)
	copy(b[offCreator:], t.Creator[:])
	copy(b[offEncryptedCID:], t.EncryptedCID[:])
	copy(b[offEphemeral:], t.EphemeralPubKey[:])
	copy(b[offCIDNonce:], t.CIDNonce[:])
	copy(b[offContentNonce:], t.ContentNonce[:])
	copy(b[offContentHash:], t.ContentHash[:])
	copy(b[offSignature:], t.Signature[:])
	binary.LittleEndian.PutUint32(b[offCreatedAt:], t.CreatedAt)
	binary.LittleEndian.PutUint32(b[offExpiresAt:], t.ExpiresAt)
	return b
}
