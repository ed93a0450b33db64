package keys

import (
	"crypto/ed25519"
	"encoding/hex"

	"github.com/ChainSafe/go-schnorrkel"

	"xdao.co/trailproof/errdefs"
)

// Scheme names a signature algorithm accepted for ledger identities.
type Scheme string

const (
	SchemeNone    Scheme = ""
	SchemeSr25519 Scheme = "sr25519"
	SchemeEd25519 Scheme = "ed25519"
)

// SignatureSize is the length of both sr25519 and ed25519 signatures.
const SignatureSize = 64

var (
	bytesOpen  = []byte("<Bytes>")
	bytesClose = []byte("</Bytes>")
	// sr25519 signing context used by wallet extensions.
	signingContext = []byte("substrate")
)

// WrapBytes returns the envelope wallets sign for raw byte payloads:
// "<Bytes>" ‖ data ‖ "</Bytes>". Already-wrapped input is returned unchanged.
func WrapBytes(data []byte) []byte {
	if hasWrap(data) {
		return append([]byte(nil), data...)
	}
	out := make([]byte, 0, len(bytesOpen)+len(data)+len(bytesClose))
	out = append(out, bytesOpen...)
	out = append(out, data...)
	return append(out, bytesClose...)
}

func hasWrap(data []byte) bool {
	n := len(bytesOpen) + len(bytesClose)
	if len(data) < n {
		return false
	}
	return string(data[:len(bytesOpen)]) == string(bytesOpen) &&
		string(data[len(data)-len(bytesClose):]) == string(bytesClose)
}

// WrappedHashHex is the Data field sent to a Signer for a content hash. Wallets
// decode the hex before wrapping, so the signed message is WrapBytes(hash[:]).
func WrappedHashHex(hash [32]byte) string {
	return "0x" + hex.EncodeToString(hash[:])
}

// VerifyWrapped verifies sig over WrapBytes(message) for signer.
//
// sr25519 is tried first since it is the wallet default; ed25519 is accepted as
// a fallback. The matched scheme is returned, or SchemeNone when neither verifies.
func VerifyWrapped(signer AccountID, message []byte, sig [SignatureSize]byte) Scheme {
	wrapped := WrapBytes(message)
	if verifySr25519(signer, wrapped, sig) {
		return SchemeSr25519
	}
	if ed25519.Verify(ed25519.PublicKey(signer[:]), wrapped, sig[:]) {
		return SchemeEd25519
	}
	return SchemeNone
}

// VerifyWrappedBytes is VerifyWrapped with length validation on untyped input.
func VerifyWrappedBytes(signer AccountID, message, sig []byte) (Scheme, error) {
	if len(sig) != SignatureSize {
		return SchemeNone, errdefs.Newf(errdefs.KindCrypto, "TP-SIG-001", "signature must be %d bytes, got %d", SignatureSize, len(sig))
	}
	var s [SignatureSize]byte
	copy(s[:], sig)
	return VerifyWrapped(signer, message, s), nil
}

func verifySr25519(signer AccountID, msg []byte, sig [SignatureSize]byte) bool {
	var pub schnorrkel.PublicKey
	if err := pub.Decode(signer); err != nil {
		return false
	}
	var s schnorrkel.Signature
	if err := s.Decode(sig); err != nil {
		return false
	}
	ok, err := pub.Verify(&s, schnorrkel.NewSigningContext(signingContext, msg))
	return err == nil && ok
}
