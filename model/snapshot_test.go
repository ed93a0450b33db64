package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"xdao.co/trailproof/errdefs"
	"xdao.co/trailproof/keys"
	"xdao.co/trailproof/record"
	"xdao.co/trailproof/storage"
	"xdao.co/trailproof/verifier"
)

func TestSnapshot_VerifyRequest_JSONShape(t *testing.T) {
	req := VerifyRequest{
		Proof:      json.RawMessage(`{"ragData":null}`),
		Compliance: ComplianceStrict,
	}

	b, err := json.MarshalIndent(req, "", "  ")
	if err != nil {
		t.Fatalf("MarshalIndent failed: %v", err)
	}

	const want = "{\n" +
		"  \"proof\": {\n" +
		"    \"ragData\": null\n" +
		"  },\n" +
		"  \"compliance\": \"strict\"\n" +
		"}"

	if string(b) != want {
		t.Fatalf("snapshot mismatch:\n%s", string(b))
	}
}

func TestSnapshot_VerifyResponse_JSONShape(t *testing.T) {
	creator, err := keys.ParseAccount("5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY")
	if err != nil {
		t.Fatal(err)
	}
	res := &verifier.Result{
		ContentHash:    record.Hash{0xaa},
		Found:          true,
		Creator:        creator,
		Block:          100,
		SignatureValid: true,
		Scheme:         keys.SchemeEd25519,
		CurrentIndex:   -1,
		ChainOfTrust:   verifier.Unknown,
		Chronology:     verifier.Unknown,
		IsValid:        true,
		Stages:         []verifier.Stage{verifier.StageHash, verifier.StageLookup, verifier.StageSignature},
	}

	b, err := json.MarshalIndent(FromResult(res), "", "  ")
	if err != nil {
		t.Fatalf("MarshalIndent failed: %v", err)
	}

	const want = "{\n" +
		"  \"contentHash\": \"0xaa00000000000000000000000000000000000000000000000000000000000000\",\n" +
		"  \"workflow\": false,\n" +
		"  \"found\": true,\n" +
		"  \"creator\": \"5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY\",\n" +
		"  \"blockNumber\": 100,\n" +
		"  \"signatureValid\": true,\n" +
		"  \"scheme\": \"ed25519\",\n" +
		"  \"currentIndex\": -1,\n" +
		"  \"history\": [],\n" +
		"  \"chainOfTrustValid\": null,\n" +
		"  \"chainViolations\": [],\n" +
		"  \"chronologicalOrderValid\": null,\n" +
		"  \"chronologyViolations\": [],\n" +
		"  \"isValid\": true,\n" +
		"  \"stages\": [\n" +
		"    \"hash\",\n" +
		"    \"lookup\",\n" +
		"    \"signature\"\n" +
		"  ],\n" +
		"  \"reasons\": []\n" +
		"}"

	if string(b) != want {
		t.Fatalf("snapshot mismatch:\n%s", string(b))
	}
}

func TestFromResultHistory(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 10, 0, 0, time.UTC)
	res := &verifier.Result{
		Workflow:        true,
		CurrentIndex:    1,
		ChainOfTrust:    verifier.False,
		ChainViolations: []int{1},
		History: []verifier.HistoryStep{
			{Index: 0, StepKey: "harvest", Found: true, Block: 100, Timestamp: ts, SchemaValid: verifier.True},
			{Index: 1, StepKey: "ship", ChainOfTrust: verifier.False},
		},
		Reasons: []error{errdefs.New(errdefs.KindChainOfTrust, "TP-VER-040", "step 1 mismatch")},
	}
	out := FromResult(res)
	if len(out.History) != 2 || out.History[0].Timestamp != "2024-01-01T00:10:00Z" || out.History[1].Creator != "" {
		t.Fatalf("history: %+v", out.History)
	}
	if out.Reasons[0].Kind != "ChainOfTrust" || out.Reasons[0].RuleID != "TP-VER-040" {
		t.Fatalf("reasons: %+v", out.Reasons)
	}
	if out.RagHash == "" || out.ChainOfTrustValid != verifier.False {
		t.Fatalf("response: %+v", out)
	}
}

func TestMapError(t *testing.T) {
	cases := []struct {
		err  error
		want ErrorCode
	}{
		{errdefs.New(errdefs.KindDecode, "TP-PRF-020", "bad"), ErrInvalidProof},
		{errdefs.New(errdefs.KindNetwork, "TP-RPC-001", "down"), ErrUnavailable},
		{errdefs.New(errdefs.KindValidation, "TP-TAG-001", "tags"), ErrInvalidRequest},
		{storage.ErrNotFound, ErrNotFound},
		{errors.New("boom"), ErrInternal},
		{NewError(ErrCIDMismatch, "x"), ErrCIDMismatch},
	}
	for _, c := range cases {
		if got := MapError(c.err); got.Code != c.want {
			t.Fatalf("MapError(%v) = %s, want %s", c.err, got.Code, c.want)
		}
	}
	if MapError(nil) != nil {
		t.Fatalf("expected nil")
	}
}
