// Package submit appends a step to a workflow: it extends the deliverable,
// stores the new proof (sealed for the next holder when one is named),
// obtains the creator's signature and hands the trail to the ledger.
package submit

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/ipfs/go-cid"

	"xdao.co/trailproof/cidutil"
	"xdao.co/trailproof/errdefs"
	"xdao.co/trailproof/hybrid"
	"xdao.co/trailproof/keys"
	"xdao.co/trailproof/proof"
	"xdao.co/trailproof/record"
	"xdao.co/trailproof/storage"
	"xdao.co/trailproof/workflow"
)

// Broadcaster includes a trail in the ledger and reports the block it landed in.
// The ledger assigns CreatedAt and ExpiresAt.
type Broadcaster interface {
	SubmitTrail(ctx context.Context, t *record.CryptoTrail) (uint32, error)
}

// Request describes one step submission.
type Request struct {
	// Address is the SS58 identity of the step's creator; Signer signs on its behalf.
	Address  string
	RagHash  record.Hash
	StepHash record.Hash
	StepKey  string
	Payload  json.RawMessage
	// Recipient, when set, is the SS58 identity of the next holder. The
	// stored proof is then readable only with the recipient's exchange key.
	Recipient string
	// Previous is the proof of the preceding step; nil for the first step.
	Previous *proof.Document
}

// Receipt is the outcome of a submission.
type Receipt struct {
	Document    *proof.Document
	ContentHash record.Hash
	CID         cid.Cid
	// Envelope is nil for plaintext submissions.
	Envelope *hybrid.Envelope
	Trail    *record.CryptoTrail
	Block    uint32
}

type Submitter struct {
	Index       *workflow.Index
	Content     storage.CAS
	Signer      keys.Signer
	Broadcaster Broadcaster
	Logger      *slog.Logger
}

func (s *Submitter) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.Logger
}

// Submit appends req's step and anchors it.
func (s *Submitter) Submit(ctx context.Context, req Request) (*Receipt, error) {
	if s.Index == nil || s.Content == nil || s.Broadcaster == nil {
		return nil, errdefs.New(errdefs.KindInternal, "TP-SUB-001", "submitter is missing index, content storage or broadcaster")
	}
	creator, err := keys.ParseAccount(req.Address)
	if err != nil {
		return nil, err
	}
	deliverable, err := s.position(ctx, req)
	if err != nil {
		return nil, err
	}

	var recipient keys.AccountID
	payload := req.Payload
	if req.Recipient != "" {
		if recipient, err = keys.ParseAccount(req.Recipient); err != nil {
			return nil, err
		}
		if payload, err = withTarget(payload, recipient); err != nil {
			return nil, err
		}
	}
	if err := deliverable.Merge(req.StepKey, payload); err != nil {
		return nil, err
	}

	doc := proof.New(req.RagHash, req.StepHash, deliverable)
	hash, err := doc.ContentHash()
	if err != nil {
		return nil, err
	}
	body, err := doc.Marshal()
	if err != nil {
		return nil, err
	}

	out := &Receipt{Document: doc, ContentHash: hash}
	trail := &record.CryptoTrail{Creator: creator, ContentHash: hash}
	if req.Recipient != "" {
		exchangeKey, err := s.Index.ExchangeKey(ctx, recipient)
		if err != nil {
			return nil, err
		}
		env, err := hybrid.EncryptStepBytes(body, exchangeKey[:])
		if err != nil {
			return nil, err
		}
		if err := s.store(ctx, env.Ciphertext, env.CID); err != nil {
			return nil, err
		}
		out.Envelope, out.CID = env, env.CID
		trail.EncryptedCID = env.EncryptedCID
		trail.EphemeralPubKey = env.EphemeralPublicKey
		trail.CIDNonce = env.CIDNonce
		trail.ContentNonce = env.Nonce
	} else {
		id, err := cidutil.CIDv1RawSHA256CID(body)
		if err != nil {
			return nil, err
		}
		if err := s.store(ctx, body, id); err != nil {
			return nil, err
		}
		raw, err := cidutil.Encode(id)
		if err != nil {
			return nil, err
		}
		out.CID = id
		copy(trail.EncryptedCID[:], raw)
	}

	if trail.Signature, err = keys.SignHash(ctx, s.Signer, req.Address, hash); err != nil {
		return nil, err
	}
	block, err := s.Broadcaster.SubmitTrail(ctx, trail)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.KindNetwork, "TP-SUB-010", "broadcast trail", err)
	}
	out.Trail, out.Block = trail, block
	s.logger().InfoContext(ctx, "step submitted",
		"rag", req.RagHash.Hex(), "step", req.StepKey, "hash", hash.Hex(),
		"cid", out.CID.String(), "sealed", out.Envelope != nil, "block", block)
	return out, nil
}

// position checks that req.StepHash directly follows the previous proof's
// step and returns a copy of the previous deliverable.
func (s *Submitter) position(ctx context.Context, req Request) (proof.Deliverable, error) {
	resolved, err := s.Index.Master(ctx, req.RagHash, req.StepHash)
	if err != nil {
		return nil, err
	}
	if req.Previous == nil {
		if resolved.CurrentIndex != 0 {
			return nil, errdefs.Newf(errdefs.KindValidation, "TP-SUB-002", "step %s is at position %d and needs the previous proof", req.StepHash, resolved.CurrentIndex)
		}
		return nil, nil
	}
	prev := req.Previous.RagData
	if prev == nil || prev.RagHash != req.RagHash {
		return nil, errdefs.New(errdefs.KindValidation, "TP-SUB-003", "previous proof belongs to another workflow")
	}
	if at := resolved.Master.StepIndex(prev.StepHash); at != resolved.CurrentIndex-1 {
		return nil, errdefs.Newf(errdefs.KindValidation, "TP-SUB-004", "step %s does not follow step %s", req.StepHash, prev.StepHash)
	}
	if _, used := prev.Deliverable.Get(req.StepKey); used {
		return nil, errdefs.Newf(errdefs.KindValidation, "TP-SUB-005", "step key %q is already in the deliverable", req.StepKey)
	}
	return prev.Deliverable.Clone(), nil
}

func (s *Submitter) store(ctx context.Context, b []byte, want cid.Cid) error {
	got, err := s.Content.Put(ctx, b)
	if err != nil {
		return errdefs.Wrap(errdefs.KindNetwork, "TP-SUB-011", "upload proof", err)
	}
	if got != want {
		return errdefs.Wrap(errdefs.KindInternal, "TP-SUB-012", "upload proof", storage.ErrCIDMismatch)
	}
	return nil
}

// withTarget adds TargetField to a JSON object payload, keeping field order.
func withTarget(payload json.RawMessage, target keys.AccountID) (json.RawMessage, error) {
	var fields proof.Deliverable
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, errdefs.Wrap(errdefs.KindValidation, "TP-SUB-006", "a payload naming a recipient must be a JSON object", err)
	}
	addr, err := json.Marshal(target.Address())
	if err != nil {
		return nil, err
	}
	if err := fields.Merge(proof.TargetField, addr); err != nil {
		return nil, err
	}
	return fields.MarshalJSON()
}

// Open recovers the proof a trail points to. secret is the recipient's X25519
// exchange secret and is ignored for plaintext trails. The document must hash
// to the trail's content hash.
func Open(ctx context.Context, content storage.CAS, trail *record.CryptoTrail, secret []byte) (*proof.Document, error) {
	var body []byte
	if !trail.Encrypted() {
		id, err := cidutil.Decode(append([]byte(nil), trail.EncryptedCID[:cidutil.BinarySize]...))
		if err != nil {
			return nil, err
		}
		if body, err = content.Get(ctx, id); err != nil {
			return nil, errdefs.Wrap(errdefs.KindNetwork, "TP-SUB-020", "download proof", err)
		}
	} else {
		o, err := hybrid.NewOpener(secret, trail.EphemeralPubKey[:])
		if err != nil {
			return nil, err
		}
		defer o.Close()
		id, err := o.OpenCID(trail.EncryptedCID[:], trail.CIDNonce[:])
		if err != nil {
			return nil, err
		}
		ct, err := content.Get(ctx, id)
		if err != nil {
			return nil, errdefs.Wrap(errdefs.KindNetwork, "TP-SUB-020", "download proof", err)
		}
		if body, err = o.OpenBytes(ct, trail.ContentNonce[:]); err != nil {
			return nil, err
		}
	}
	doc, err := proof.Parse(body)
	if err != nil {
		return nil, err
	}
	h, err := doc.ContentHash()
	if err != nil {
		return nil, err
	}
	if h != trail.ContentHash {
		return nil, errdefs.Newf(errdefs.KindCrypto, "TP-SUB-021", "stored proof hashes to %s, trail anchors %s", h, trail.ContentHash)
	}
	return doc, nil
}
