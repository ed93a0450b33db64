package keys

import (
	"context"
	"encoding/hex"
	"strings"

	"xdao.co/trailproof/errdefs"
)

// SignRawKind is the only payload kind requested from signers.
const SignRawKind = "bytes"

// SignRawRequest mirrors the wallet-extension signRaw payload.
type SignRawRequest struct {
	Address string `json:"address"`
	Data    string `json:"data"`
	Kind    string `json:"type"`
}

// SignRawResult carries a 0x-hex signature.
type SignRawResult struct {
	Signature string `json:"signature"`
}

// Signer is an external signing capability. It never exposes key material.
type Signer interface {
	SignRaw(ctx context.Context, req SignRawRequest) (SignRawResult, error)
}

// SignHash asks s to sign the wrapped content hash on behalf of address and
// checks the returned signature before handing it back.
func SignHash(ctx context.Context, s Signer, address string, hash [32]byte) ([SignatureSize]byte, error) {
	var sig [SignatureSize]byte
	if s == nil {
		return sig, errdefs.New(errdefs.KindInternal, "TP-SIG-010", "no signer configured")
	}
	account, err := ParseAccount(address)
	if err != nil {
		return sig, err
	}
	res, err := s.SignRaw(ctx, SignRawRequest{Address: address, Data: WrappedHashHex(hash), Kind: SignRawKind})
	if err != nil {
		return sig, errdefs.Wrap(errdefs.KindSignature, "TP-SIG-011", "signer refused request", err)
	}
	raw, err := decodeSignature(res.Signature)
	if err != nil {
		return sig, err
	}
	copy(sig[:], raw)
	if VerifyWrapped(account, hash[:], sig) == SchemeNone {
		return sig, errdefs.New(errdefs.KindSignature, "TP-SIG-012", "signer returned a signature that does not verify")
	}
	return sig, nil
}

func decodeSignature(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") {
		return nil, errdefs.New(errdefs.KindDecode, "TP-SIG-002", "signature must be 0x-prefixed hex")
	}
	b, err := decodeHex(s[2:])
	if err != nil {
		return nil, err
	}
	// Some signers prefix a one-byte scheme tag (MultiSignature).
	if len(b) == SignatureSize+1 {
		b = b[1:]
	}
	if len(b) != SignatureSize {
		return nil, errdefs.Newf(errdefs.KindCrypto, "TP-SIG-001", "signature must be %d bytes, got %d", SignatureSize, len(b))
	}
	return b, nil
}

func decodeHex(s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.KindDecode, "TP-HEX-001", "malformed hex", err)
	}
	return b, nil
}
