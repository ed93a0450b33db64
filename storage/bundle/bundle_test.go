package bundle_test

import (
	"archive/tar"
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/ipfs/go-cid"

	"xdao.co/trailproof/cidutil"
	"xdao.co/trailproof/storage"
	"xdao.co/trailproof/storage/bundle"
	"xdao.co/trailproof/storage/localfs"
)

var proofJSON = []byte(`{"ragData":{"ragHash":"0x01","stepHash":"0x02","deliverable":{}}}`)

func TestBundle_ExportIsDeterministic(t *testing.T) {
	ctx := context.Background()
	cas, err := localfs.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	id1, err := cas.Put(ctx, []byte(`{"type":"object"}`))
	if err != nil {
		t.Fatal(err)
	}
	id2, err := cas.Put(ctx, []byte("sealed payload"))
	if err != nil {
		t.Fatal(err)
	}

	var outA, outB bytes.Buffer
	if err := bundle.Export(ctx, &outA, cas, []cid.Cid{id2, id1, id2}, bundle.ExportOptions{IncludeIndex: true, Proof: proofJSON}); err != nil {
		t.Fatal(err)
	}
	if err := bundle.Export(ctx, &outB, cas, []cid.Cid{id1, id2}, bundle.ExportOptions{IncludeIndex: true, Proof: proofJSON}); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(outA.Bytes(), outB.Bytes()) {
		t.Fatalf("expected deterministic bundle bytes")
	}
}

func TestBundle_ImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := storage.NewMemory()
	payload := []byte("payload")
	id, err := src.Put(ctx, payload)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := bundle.Export(ctx, &buf, src, []cid.Cid{id}, bundle.ExportOptions{IncludeIndex: true, Proof: proofJSON}); err != nil {
		t.Fatal(err)
	}

	dst := storage.NewMemory()
	got, err := bundle.Import(ctx, bytes.NewReader(buf.Bytes()), dst, bundle.ImportOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got.Proof, proofJSON) {
		t.Fatalf("proof mismatch: %s", got.Proof)
	}
	if len(got.Blocks) != 1 || got.Blocks[0] != id {
		t.Fatalf("blocks: %v", got.Blocks)
	}
	b, err := dst.Get(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(b, payload) {
		t.Fatalf("payload mismatch")
	}
}

func TestBundle_ExportRejectsMissingBlock(t *testing.T) {
	id, err := cidutil.CIDv1RawSHA256CID([]byte("absent"))
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	err = bundle.Export(context.Background(), &buf, storage.NewMemory(), []cid.Cid{id}, bundle.ExportOptions{})
	if !storage.IsNotFound(err) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestBundle_ImportRejectsCIDMismatch(t *testing.T) {
	good := []byte("good")
	otherCID, err := cidutil.CIDv1RawSHA256CID([]byte("other"))
	if err != nil {
		t.Fatal(err)
	}

	// Name says "otherCID" but bytes are "good" => computed CID mismatch.
	bundleBytes := makeDeterministicTar(t, "blocks/"+otherCID.String(), good)
	_, err = bundle.Import(context.Background(), bytes.NewReader(bundleBytes), storage.NewMemory(), bundle.ImportOptions{})
	if err != storage.ErrCIDMismatch {
		t.Fatalf("expected ErrCIDMismatch, got %v", err)
	}
}

func TestBundle_ImportUnknownEntry(t *testing.T) {
	b := makeDeterministicTar(t, "notes.txt", []byte("hi"))
	if _, err := bundle.Import(context.Background(), bytes.NewReader(b), storage.NewMemory(), bundle.ImportOptions{}); err == nil {
		t.Fatalf("expected unknown entry error")
	}
	if _, err := bundle.Import(context.Background(), bytes.NewReader(b), storage.NewMemory(), bundle.ImportOptions{IgnoreUnknown: true}); err != nil {
		t.Fatalf("IgnoreUnknown: %v", err)
	}
}

func makeDeterministicTar(t *testing.T, name string, content []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	h := &tar.Header{
		Name:     name,
		Mode:     0o644,
		Size:     int64(len(content)),
		ModTime:  time.Unix(0, 0).UTC(),
		Typeflag: tar.TypeReg,
	}
	if err := tw.WriteHeader(h); err != nil {
		t.Fatal(err)
	}
	if _, err := tw.Write(content); err != nil {
		t.Fatal(err)
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}
