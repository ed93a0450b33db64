package submit_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"xdao.co/trailproof/errdefs"
	"xdao.co/trailproof/hybrid"
	"xdao.co/trailproof/keys"
	"xdao.co/trailproof/keys/keytest"
	"xdao.co/trailproof/proof"
	"xdao.co/trailproof/storage"
	"xdao.co/trailproof/submit"
	"xdao.co/trailproof/workflow/workflowtest"
)

type wallet map[keys.AccountID]keys.Signer

func (w wallet) SignRaw(ctx context.Context, req keys.SignRawRequest) (keys.SignRawResult, error) {
	id, err := keys.ParseAccount(req.Address)
	if err != nil {
		return keys.SignRawResult{}, err
	}
	s, ok := w[id]
	if !ok {
		return keys.SignRawResult{}, errdefs.Newf(errdefs.KindSignature, "TEST", "no key for %s", req.Address)
	}
	return s.SignRaw(ctx, req)
}

type fixture struct {
	chain   *workflowtest.Chain
	content *storage.MemoryCAS
	flow    workflowtest.Workflow
	sub     *submit.Submitter
	alice   *keytest.Ed25519
	bob     *keytest.Sr25519
	bobKey  [32]byte
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		chain:   workflowtest.New(),
		content: storage.NewMemory(),
		alice:   keytest.NewEd25519(1),
		bob:     keytest.NewSr25519(t),
	}
	f.flow = f.chain.PublishWorkflow(t, "cold chain", workflowtest.Step{Name: "harvest"}, workflowtest.Step{Name: "ship"})

	secret, public, err := hybrid.GenerateEphemeralKeypair()
	require.NoError(t, err)
	f.bobKey = secret
	f.chain.SetExchangeKey(f.bob.Account(), public)

	f.sub = &submit.Submitter{
		Index:       f.chain.Index,
		Content:     f.content,
		Signer:      wallet{f.alice.Account(): f.alice, f.bob.Account(): f.bob},
		Broadcaster: f.chain,
	}
	return f
}

func TestSubmitPlaintextThenSealed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.sub.Submit(ctx, submit.Request{
		Address:   f.alice.Address(),
		RagHash:   f.flow.RagHash,
		StepHash:  f.flow.Steps[0],
		StepKey:   "harvest",
		Payload:   json.RawMessage(`{"crates": 12, "field": "north"}`),
		Recipient: f.bob.Address(),
	})
	require.NoError(t, err)
	require.NotNil(t, first.Envelope)
	require.Equal(t, uint32(100), first.Block)
	require.Equal(t, []string{"harvest"}, first.Document.RagData.Deliverable.Keys())

	payload, _ := first.Document.RagData.Deliverable.Get("harvest")
	require.Equal(t, `{"crates":12,"field":"north","_targetAddress":"`+f.bob.Address()+`"}`, string(payload))

	anchored, ok, err := f.chain.Index.Trail(ctx, first.ContentHash)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, anchored.Encrypted())
	require.Equal(t, f.alice.Account(), anchored.Creator)

	opened, err := submit.Open(ctx, f.content, anchored, f.bobKey[:])
	require.NoError(t, err)
	h, err := opened.ContentHash()
	require.NoError(t, err)
	require.Equal(t, first.ContentHash, h)

	second, err := f.sub.Submit(ctx, submit.Request{
		Address:  f.bob.Address(),
		RagHash:  f.flow.RagHash,
		StepHash: f.flow.Steps[1],
		StepKey:  "ship",
		Payload:  json.RawMessage(`{"carrier":"acme"}`),
		Previous: opened,
	})
	require.NoError(t, err)
	require.Nil(t, second.Envelope)
	require.Equal(t, []string{"harvest", "ship"}, second.Document.RagData.Deliverable.Keys())

	anchored, ok, err = f.chain.Index.Trail(ctx, second.ContentHash)
	require.NoError(t, err)
	require.True(t, ok)
	require.False(t, anchored.Encrypted())
	plain, err := submit.Open(ctx, f.content, anchored, nil)
	require.NoError(t, err)
	require.Equal(t, second.Document.RagData.Deliverable, plain.RagData.Deliverable)
}

func TestOpenWithWrongSecretFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rec, err := f.sub.Submit(ctx, submit.Request{
		Address:   f.alice.Address(),
		RagHash:   f.flow.RagHash,
		StepHash:  f.flow.Steps[0],
		StepKey:   "harvest",
		Payload:   json.RawMessage(`{}`),
		Recipient: f.bob.Address(),
	})
	require.NoError(t, err)

	other, _, err := hybrid.GenerateEphemeralKeypair()
	require.NoError(t, err)
	_, err = submit.Open(ctx, f.content, rec.Trail, other[:])
	require.True(t, errdefs.IsKind(err, errdefs.KindCrypto))
}

func TestSubmitRejectsOutOfPositionSteps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.sub.Submit(ctx, submit.Request{
		Address:  f.alice.Address(),
		RagHash:  f.flow.RagHash,
		StepHash: f.flow.Steps[1],
		StepKey:  "ship",
		Payload:  json.RawMessage(`{}`),
	})
	require.Equal(t, "TP-SUB-002", errdefs.RuleID(err))

	first, err := f.sub.Submit(ctx, submit.Request{
		Address:  f.alice.Address(),
		RagHash:  f.flow.RagHash,
		StepHash: f.flow.Steps[0],
		StepKey:  "harvest",
		Payload:  json.RawMessage(`{}`),
	})
	require.NoError(t, err)

	_, err = f.sub.Submit(ctx, submit.Request{
		Address:  f.alice.Address(),
		RagHash:  f.flow.RagHash,
		StepHash: f.flow.Steps[0],
		StepKey:  "again",
		Payload:  json.RawMessage(`{}`),
		Previous: first.Document,
	})
	require.Equal(t, "TP-SUB-004", errdefs.RuleID(err))

	_, err = f.sub.Submit(ctx, submit.Request{
		Address:  f.alice.Address(),
		RagHash:  f.flow.RagHash,
		StepHash: f.flow.Steps[1],
		StepKey:  "harvest",
		Payload:  json.RawMessage(`{}`),
		Previous: first.Document,
	})
	require.Equal(t, "TP-SUB-005", errdefs.RuleID(err))

	_, err = f.sub.Submit(ctx, submit.Request{
		Address:  f.alice.Address(),
		RagHash:  f.flow.Steps[0],
		StepHash: f.flow.Steps[1],
		StepKey:  "ship",
		Payload:  json.RawMessage(`{}`),
		Previous: first.Document,
	})
	require.True(t, errdefs.IsKind(err, errdefs.KindNotFound))
}

func TestSubmitRecipientNeedsObjectPayloadAndExchangeKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := submit.Request{
		Address:   f.alice.Address(),
		RagHash:   f.flow.RagHash,
		StepHash:  f.flow.Steps[0],
		StepKey:   "harvest",
		Payload:   json.RawMessage(`[1,2]`),
		Recipient: f.bob.Address(),
	}
	_, err := f.sub.Submit(ctx, req)
	require.Equal(t, "TP-SUB-006", errdefs.RuleID(err))

	req.Payload = json.RawMessage(`{}`)
	req.Recipient = keytest.NewEd25519(9).Address()
	_, err = f.sub.Submit(ctx, req)
	require.Equal(t, "TP-WF-005", errdefs.RuleID(err))
	require.Equal(t, 0, f.content.Len())
}

func TestSubmitWithoutSignerKeyStoresNothingOnLedger(t *testing.T) {
	f := newFixture(t)
	stranger := keytest.NewEd25519(7)
	rec, err := f.sub.Submit(context.Background(), submit.Request{
		Address:  stranger.Address(),
		RagHash:  f.flow.RagHash,
		StepHash: f.flow.Steps[0],
		StepKey:  "harvest",
		Payload:  json.RawMessage(`{}`),
	})
	require.Nil(t, rec)
	require.True(t, errdefs.IsKind(err, errdefs.KindSignature))

	h, err := proof.HashDeliverable(proof.Deliverable{{Key: "harvest", Payload: json.RawMessage(`{}`)}})
	require.NoError(t, err)
	_, ok, err := f.chain.Index.Trail(context.Background(), h)
	require.NoError(t, err)
	require.False(t, ok)
}
