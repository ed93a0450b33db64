package hybrid

import (
	"encoding/json"

	"github.com/ipfs/go-cid"

	"xdao.co/trailproof/cidutil"
	"xdao.co/trailproof/errdefs"
)

// SealedCIDSize is a 36-byte binary CID plus the authentication tag.
const SealedCIDSize = cidutil.BinarySize + TagSize

// Envelope is everything a recipient needs, besides its own secret key, to
// recover a step payload and its storage pointer.
type Envelope struct {
	Ciphertext         []byte
	EphemeralPublicKey [KeySize]byte
	Nonce              [NonceSize]byte

	// CID addresses Ciphertext in content storage (raw + sha2-256 of the bytes).
	CID          cid.Cid
	EncryptedCID [SealedCIDSize]byte
	CIDNonce     [NonceSize]byte
}

// EncryptStepPayload JSON-encodes payload and seals it for recipient. The same
// shared secret, under a second nonce, seals the CID of the ciphertext so that
// only the recipient can locate and read the payload. The ephemeral secret and
// the shared secret are zeroed before returning.
func EncryptStepPayload(payload any, recipient []byte) (*Envelope, error) {
	plain, err := json.Marshal(payload)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.KindInternal, "TP-CRY-010", "encode payload", err)
	}
	return EncryptStepBytes(plain, recipient)
}

// EncryptStepBytes is EncryptStepPayload over already-serialized bytes.
func EncryptStepBytes(plain, recipient []byte) (*Envelope, error) {
	if err := checkLen("recipient exchange key", recipient, KeySize); err != nil {
		return nil, err
	}
	esk, epk, err := GenerateEphemeralKeypair()
	if err != nil {
		return nil, err
	}
	shared, err := DeriveSharedSecret(esk[:], recipient)
	Zero(esk[:])
	if err != nil {
		return nil, err
	}
	defer Zero(shared[:])

	env := &Envelope{EphemeralPublicKey: epk}
	if env.Nonce, err = NewNonce(); err != nil {
		return nil, err
	}
	if env.CIDNonce, err = NewNonce(); err != nil {
		return nil, err
	}
	if env.Ciphertext, err = Encrypt(plain, shared[:], env.Nonce[:]); err != nil {
		return nil, err
	}
	if env.CID, err = cidutil.CIDv1RawSHA256CID(env.Ciphertext); err != nil {
		return nil, errdefs.Wrap(errdefs.KindInternal, "TP-CRY-011", "derive ciphertext cid", err)
	}
	cidBytes, err := cidutil.Encode(env.CID)
	if err != nil {
		return nil, err
	}
	sealed, err := Encrypt(cidBytes, shared[:], env.CIDNonce[:])
	if err != nil {
		return nil, err
	}
	copy(env.EncryptedCID[:], sealed)
	return env, nil
}

// Opener is the recipient side of an Envelope. Close zeroes the shared secret.
type Opener struct {
	shared [KeySize]byte
}

// NewOpener derives the shared secret from the recipient's long-term exchange
// secret and the sender's ephemeral public key.
func NewOpener(secret, ephemeralPublic []byte) (*Opener, error) {
	shared, err := DeriveSharedSecret(secret, ephemeralPublic)
	if err != nil {
		return nil, err
	}
	return &Opener{shared: shared}, nil
}

// OpenCID recovers the storage pointer.
func (o *Opener) OpenCID(sealed, nonce []byte) (cid.Cid, error) {
	if err := checkLen("sealed cid", sealed, SealedCIDSize); err != nil {
		return cid.Undef, err
	}
	b, err := Decrypt(sealed, o.shared[:], nonce)
	if err != nil {
		return cid.Undef, err
	}
	return cidutil.Decode(b)
}

// OpenPayload decrypts ciphertext and JSON-decodes it into v.
func (o *Opener) OpenPayload(ciphertext, nonce []byte, v any) error {
	plain, err := Decrypt(ciphertext, o.shared[:], nonce)
	if err != nil {
		return err
	}
	defer Zero(plain)
	if err := json.Unmarshal(plain, v); err != nil {
		return errdefs.Wrap(errdefs.KindDecode, "TP-CRY-012", "decrypted payload is not JSON", err)
	}
	return nil
}

// OpenBytes decrypts ciphertext without decoding it.
func (o *Opener) OpenBytes(ciphertext, nonce []byte) ([]byte, error) {
	return Decrypt(ciphertext, o.shared[:], nonce)
}

func (o *Opener) Close() { Zero(o.shared[:]) }
