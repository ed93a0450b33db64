// Package hybrid encrypts step payloads for a single recipient who shares no
// prior channel with the sender: an ephemeral X25519 agreement against the
// recipient's published exchange key, then ChaCha20-Poly1305 under the shared
// secret.
package hybrid

import (
	"crypto/rand"
	"io"

	"github.com/cloudflare/circl/dh/x25519"
	"golang.org/x/crypto/chacha20poly1305"

	"xdao.co/trailproof/errdefs"
)

const (
	KeySize   = 32
	NonceSize = chacha20poly1305.NonceSize
	TagSize   = chacha20poly1305.Overhead
)

// Random is the entropy source; tests may replace it.
var Random io.Reader = rand.Reader

func checkLen(field string, b []byte, want int) error {
	if len(b) != want {
		return errdefs.Newf(errdefs.KindCrypto, "TP-CRY-001", "%s must be %d bytes, got %d", field, want, len(b))
	}
	return nil
}

// GenerateEphemeralKeypair returns a fresh X25519 key pair.
func GenerateEphemeralKeypair() (secret, public [KeySize]byte, err error) {
	var sk, pk x25519.Key
	if _, err = io.ReadFull(Random, sk[:]); err != nil {
		return secret, public, errdefs.Wrap(errdefs.KindCrypto, "TP-CRY-002", "read entropy", err)
	}
	x25519.KeyGen(&pk, &sk)
	copy(secret[:], sk[:])
	copy(public[:], pk[:])
	Zero(sk[:])
	return secret, public, nil
}

// PublicKey returns the X25519 public key for secret.
func PublicKey(secret []byte) ([KeySize]byte, error) {
	var out [KeySize]byte
	if err := checkLen("secret key", secret, KeySize); err != nil {
		return out, err
	}
	var sk, pk x25519.Key
	copy(sk[:], secret)
	x25519.KeyGen(&pk, &sk)
	Zero(sk[:])
	copy(out[:], pk[:])
	return out, nil
}

// DeriveSharedSecret performs X25519 between secret and peer. The result is
// symmetric: (A.secret, B.public) and (B.secret, A.public) agree. Low-order peer
// keys, which would force an all-zero secret, are rejected.
func DeriveSharedSecret(secret, peer []byte) ([KeySize]byte, error) {
	var out [KeySize]byte
	if err := checkLen("secret key", secret, KeySize); err != nil {
		return out, err
	}
	if err := checkLen("peer public key", peer, KeySize); err != nil {
		return out, err
	}
	var sk, pk, shared x25519.Key
	copy(sk[:], secret)
	copy(pk[:], peer)
	ok := x25519.Shared(&shared, &sk, &pk)
	Zero(sk[:])
	if !ok {
		return out, errdefs.New(errdefs.KindCrypto, "TP-CRY-003", "peer public key has low order")
	}
	copy(out[:], shared[:])
	Zero(shared[:])
	return out, nil
}

// NewNonce returns NonceSize fresh random bytes.
func NewNonce() ([NonceSize]byte, error) {
	var n [NonceSize]byte
	if _, err := io.ReadFull(Random, n[:]); err != nil {
		return n, errdefs.Wrap(errdefs.KindCrypto, "TP-CRY-002", "read entropy", err)
	}
	return n, nil
}

// Encrypt seals plaintext; the result is len(plaintext)+TagSize bytes.
func Encrypt(plaintext, key, nonce []byte) ([]byte, error) {
	if err := checkLen("key", key, KeySize); err != nil {
		return nil, err
	}
	if err := checkLen("nonce", nonce, NonceSize); err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.KindCrypto, "TP-CRY-004", "init cipher", err)
	}
	return aead.Seal(nil, nonce, plaintext, nil), nil
}

// Decrypt opens ciphertext. A wrong key, wrong nonce or tampered ciphertext fails
// with a Crypto error and no plaintext.
func Decrypt(ciphertext, key, nonce []byte) ([]byte, error) {
	if err := checkLen("key", key, KeySize); err != nil {
		return nil, err
	}
	if err := checkLen("nonce", nonce, NonceSize); err != nil {
		return nil, err
	}
	if len(ciphertext) < TagSize {
		return nil, errdefs.Newf(errdefs.KindCrypto, "TP-CRY-005", "ciphertext shorter than %d-byte tag", TagSize)
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.KindCrypto, "TP-CRY-004", "init cipher", err)
	}
	out, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, errdefs.New(errdefs.KindCrypto, "TP-CRY-006", "authentication failed (wrong key, wrong nonce or tampered data)")
	}
	return out, nil
}

// Zero overwrites b with zeros.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
