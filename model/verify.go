package model

import (
	"bytes"
	"context"
	"time"

	"xdao.co/trailproof/compliance"
	"xdao.co/trailproof/errdefs"
	"xdao.co/trailproof/record"
	"xdao.co/trailproof/verifier"
)

// Verify runs v over req and projects the outcome. Malformed proofs and
// requests return a CodedError; a transport failure returns the partial
// response together with the error.
func Verify(ctx context.Context, v *verifier.Verifier, req VerifyRequest, defaultMode compliance.ComplianceMode) (*VerifyResponse, error) {
	if p := bytes.TrimSpace(req.Proof); len(p) == 0 || string(p) == "null" {
		return nil, NewError(ErrInvalidRequest, "missing proof")
	}
	mode, err := toCompliance(req.Compliance, defaultMode)
	if err != nil {
		return nil, err
	}
	res, err := v.Verify(ctx, req.Proof, verifier.Options{Mode: mode})
	if res == nil {
		return nil, MapError(err)
	}
	out := FromResult(res)
	if err != nil {
		return out, MapError(err)
	}
	return out, nil
}

func toCompliance(m ComplianceMode, def compliance.ComplianceMode) (compliance.ComplianceMode, error) {
	switch m {
	case "":
		return def, nil
	case CompliancePermissive:
		return compliance.Permissive, nil
	case ComplianceStrict:
		return compliance.Strict, nil
	default:
		return 0, NewError(ErrInvalidRequest, "invalid compliance mode")
	}
}

// FromResult projects a verifier result. Slices are never nil so the JSON
// shape is stable.
func FromResult(r *verifier.Result) *VerifyResponse {
	out := &VerifyResponse{
		ContentHash:             r.ContentHash.Hex(),
		Workflow:                r.Workflow,
		Found:                   r.Found,
		BlockNumber:             r.Block,
		SignatureValid:          r.SignatureValid,
		Scheme:                  string(r.Scheme),
		CurrentIndex:            r.CurrentIndex,
		History:                 make([]HistoryStep, 0, len(r.History)),
		Expired:                 r.Expired,
		ChainOfTrustValid:       r.ChainOfTrust,
		ChainViolations:         append([]int{}, r.ChainViolations...),
		ChronologicalOrderValid: r.Chronology,
		ChronologyViolations:    append([]int{}, r.ChronologyViolations...),
		IsValid:                 r.IsValid,
		Stages:                  make([]string, 0, len(r.Stages)),
		Reasons:                 make([]Reason, 0, len(r.Reasons)),
		Error:                   MapError(r.Error),
	}
	if r.Found {
		out.Creator = r.Creator.Address()
	}
	if r.Workflow {
		out.RagHash = r.RagHash.Hex()
		out.StepHash = r.StepHash.Hex()
	}
	for _, s := range r.History {
		h := HistoryStep{
			Index:             s.Index,
			StepKey:           s.StepKey,
			ContentHash:       s.ContentHash.Hex(),
			Found:             s.Found,
			ChainOfTrustValid: s.ChainOfTrust,
			SchemaValid:       s.SchemaValid,
		}
		if s.Found {
			h.Creator = s.Creator.Address()
			h.BlockNumber = s.Block
		}
		if !s.Timestamp.IsZero() {
			h.Timestamp = s.Timestamp.UTC().Format(time.RFC3339)
		}
		out.History = append(out.History, h)
	}
	for _, s := range r.Stages {
		out.Stages = append(out.Stages, string(s))
	}
	for _, e := range r.Reasons {
		out.Reasons = append(out.Reasons, Reason{Kind: string(errdefs.KindOf(e)), RuleID: errdefs.RuleID(e), Message: e.Error()})
	}
	return out
}

// FromRecord projects a ledger record.
func FromRecord(h record.Hash, r *record.RagRecord) Workflow {
	out := Workflow{
		Hash:           h.Hex(),
		Name:           r.Name,
		Description:    r.Description,
		Master:         r.IsMaster(),
		InstructionCID: r.InstructionCID.String(),
		ResourceCID:    r.ResourceCID.String(),
		SchemaCID:      r.SchemaCID.String(),
		Steps:          make([]string, 0, len(r.Steps)),
		CreatedAt:      r.CreatedAt,
		ExpiresAt:      r.ExpiresAt,
		Staked:         "0",
		Publisher:      r.Publisher.Address(),
	}
	if r.Staked != nil {
		out.Staked = r.Staked.String()
	}
	for _, s := range r.Steps {
		out.Steps = append(out.Steps, s.Hex())
	}
	return out
}
