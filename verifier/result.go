package verifier

import (
	"time"

	"xdao.co/trailproof/keys"
	"xdao.co/trailproof/record"
)

// Stage names one verification stage.
type Stage string

const (
	StageHash      Stage = "hash"
	StageLookup    Stage = "lookup"
	StageSignature Stage = "signature"
	StageWorkflow  Stage = "workflow"
	StageChain     Stage = "chain"
)

// HistoryStep is one reconstructed workflow step.
type HistoryStep struct {
	Index       int
	StepKey     string
	ContentHash record.Hash

	// Found is false when no trail anchors ContentHash; the fields below are then zero.
	Found     bool
	Trail     *record.CryptoTrail
	Creator   keys.AccountID
	Block     uint32
	Timestamp time.Time

	ChainOfTrust Tristate
	SchemaValid  Tristate
}

// Result is the outcome of Verify. Fields belonging to stages that did not
// run keep their zero values; Stages lists the ones that completed.
type Result struct {
	ContentHash record.Hash
	Workflow    bool

	Found   bool
	Trail   *record.CryptoTrail
	Creator keys.AccountID
	Block   uint32

	SignatureValid bool
	Scheme         keys.Scheme

	RagHash  record.Hash
	StepHash record.Hash
	// CurrentIndex is the proof's position in the workflow, or -1 when no
	// workflow was reconstructed.
	CurrentIndex int
	History      []HistoryStep
	// Expired is set when the workflow had expired by the proof's block.
	Expired bool

	ChainOfTrust         Tristate
	ChainViolations      []int
	Chronology           Tristate
	ChronologyViolations []int

	IsValid bool
	Stages  []Stage
	// Reasons explains negative or undeterminable verdicts, in stage order.
	Reasons []error
	// Error is set when a stage was halted by a transport failure.
	Error error
}

// Reconstructed reports whether stage 4 produced a workflow history.
func (r *Result) Reconstructed() bool { return r.CurrentIndex >= 0 }

// Completed reports whether stage s finished.
func (r *Result) Completed(s Stage) bool {
	for _, x := range r.Stages {
		if x == s {
			return true
		}
	}
	return false
}

func (r *Result) verdict() bool {
	return r.Found && r.SignatureValid && r.ChainOfTrust != False && r.Chronology != False
}
