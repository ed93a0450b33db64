// Package testkit holds the conformance suite every storage.CAS adapter must pass.
package testkit

import (
	"bytes"
	"context"
	"testing"

	"github.com/ipfs/go-cid"

	"xdao.co/trailproof/cidutil"
	"xdao.co/trailproof/storage"
)

// NewCAS constructs a fresh, empty CAS instance for a test.
// The returned CAS MUST be isolated from other tests.
type NewCAS func(t *testing.T) storage.CAS

// RunCASConformance runs every conformance case against fresh instances from newCAS.
func RunCASConformance(t *testing.T, newCAS NewCAS) {
	t.Helper()
	cases := []struct {
		name string
		run  func(t *testing.T, cas storage.CAS)
	}{
		{"PutGetRoundTrip", putGetRoundTrip([]byte(`{"step":"harvest","kg":12}`))},
		{"BinaryRoundTrip", putGetRoundTrip(sealedLike())},
		{"PutIdempotent", putIdempotent},
		{"HasAndNotFound", hasAndNotFound},
		{"RejectUndefCID", rejectUndef},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) { tc.run(t, newCAS(t)) })
	}
}

// sealedLike returns bytes shaped like an AEAD ciphertext: every byte value, no text.
func sealedLike() []byte {
	b := make([]byte, 1024)
	for i := range b {
		b[i] = byte(i * 7)
	}
	return b
}

func putGetRoundTrip(want []byte) func(t *testing.T, cas storage.CAS) {
	return func(t *testing.T, cas storage.CAS) {
		ctx := context.Background()
		id, err := cas.Put(ctx, want)
		if err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		wantID, err := cidutil.CIDv1RawSHA256CID(want)
		if err != nil {
			t.Fatalf("CIDv1RawSHA256CID failed: %v", err)
		}
		if id != wantID {
			t.Fatalf("Put CID mismatch: got %s want %s", id, wantID)
		}
		got, err := cas.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("Get bytes mismatch")
		}
	}
}

func putIdempotent(t *testing.T, cas storage.CAS) {
	ctx := context.Background()
	b := []byte("same sealed payload")
	id1, err := cas.Put(ctx, b)
	if err != nil {
		t.Fatalf("Put(1) failed: %v", err)
	}
	id2, err := cas.Put(ctx, b)
	if err != nil {
		t.Fatalf("Put(2) failed: %v", err)
	}
	if id1 != id2 {
		t.Fatalf("Put not idempotent: %s vs %s", id1, id2)
	}
}

func hasAndNotFound(t *testing.T, cas storage.CAS) {
	ctx := context.Background()
	b := []byte("missing")
	id, err := cidutil.CIDv1RawSHA256CID(b)
	if err != nil {
		t.Fatalf("CIDv1RawSHA256CID failed: %v", err)
	}
	if ok, err := cas.Has(ctx, id); ok || err != nil {
		t.Fatalf("Has for missing CID: got (%v, %v) want (false, nil)", ok, err)
	}
	if _, err := cas.Get(ctx, id); !storage.IsNotFound(err) {
		t.Fatalf("Get missing: got err=%v want ErrNotFound", err)
	}
	if _, err := cas.Put(ctx, b); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if ok, err := cas.Has(ctx, id); !ok || err != nil {
		t.Fatalf("Has after Put: got (%v, %v) want (true, nil)", ok, err)
	}
}

func rejectUndef(t *testing.T, cas storage.CAS) {
	ctx := context.Background()
	if ok, _ := cas.Has(ctx, cid.Undef); ok {
		t.Fatalf("Has should be false for undefined CID")
	}
	if _, err := cas.Get(ctx, cid.Undef); err == nil {
		t.Fatalf("Get should fail for undefined CID")
	}
}
