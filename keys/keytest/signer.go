// Package keytest provides in-process Signer implementations for tests and
// fixtures. Production code delegates signing to an external wallet instead.
package keytest

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"strings"
	"testing"

	"github.com/ChainSafe/go-schnorrkel"

	"xdao.co/trailproof/keys"
)

// Ed25519 signs with a deterministic seed.
type Ed25519 struct {
	priv ed25519.PrivateKey
}

// NewEd25519 derives a signer from a single repeated seed byte.
func NewEd25519(seedByte byte) *Ed25519 {
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = seedByte
	}
	return &Ed25519{priv: ed25519.NewKeyFromSeed(seed)}
}

func (s *Ed25519) Account() keys.AccountID {
	var id keys.AccountID
	copy(id[:], s.priv.Public().(ed25519.PublicKey))
	return id
}

func (s *Ed25519) Address() string { return s.Account().Address() }

func (s *Ed25519) SignRaw(_ context.Context, req keys.SignRawRequest) (keys.SignRawResult, error) {
	data, err := requestBytes(req, s.Account())
	if err != nil {
		return keys.SignRawResult{}, err
	}
	sig := ed25519.Sign(s.priv, keys.WrapBytes(data))
	return keys.SignRawResult{Signature: "0x" + hex.EncodeToString(sig)}, nil
}

// Sr25519 signs with a freshly generated schnorrkel key.
type Sr25519 struct {
	sk *schnorrkel.SecretKey
	pk *schnorrkel.PublicKey
}

func NewSr25519(t testing.TB) *Sr25519 {
	t.Helper()
	sk, pk, err := schnorrkel.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	return &Sr25519{sk: sk, pk: pk}
}

func (s *Sr25519) Account() keys.AccountID { return keys.AccountID(s.pk.Encode()) }

func (s *Sr25519) Address() string { return s.Account().Address() }

func (s *Sr25519) SignRaw(_ context.Context, req keys.SignRawRequest) (keys.SignRawResult, error) {
	data, err := requestBytes(req, s.Account())
	if err != nil {
		return keys.SignRawResult{}, err
	}
	sig, err := s.sk.Sign(schnorrkel.NewSigningContext([]byte("substrate"), keys.WrapBytes(data)))
	if err != nil {
		return keys.SignRawResult{}, err
	}
	enc := sig.Encode()
	return keys.SignRawResult{Signature: "0x" + hex.EncodeToString(enc[:])}, nil
}

func requestBytes(req keys.SignRawRequest, self keys.AccountID) ([]byte, error) {
	if req.Kind != keys.SignRawKind {
		return nil, fmt.Errorf("keytest: unsupported kind %q", req.Kind)
	}
	who, err := keys.ParseAccount(req.Address)
	if err != nil {
		return nil, err
	}
	if who != self {
		return nil, fmt.Errorf("keytest: no key for %s", req.Address)
	}
	return hex.DecodeString(strings.TrimPrefix(req.Data, "0x"))
}
