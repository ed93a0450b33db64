package model

import (
	"encoding/json"

	"xdao.co/trailproof/verifier"
)

type ComplianceMode string

const (
	CompliancePermissive ComplianceMode = "permissive"
	ComplianceStrict     ComplianceMode = "strict"
)

// VerifyRequest carries a proof document verbatim; it is hashed as sent.
type VerifyRequest struct {
	Proof      json.RawMessage `json:"proof"`
	Compliance ComplianceMode  `json:"compliance,omitempty"`
}

// Reason explains a negative or undeterminable verdict.
type Reason struct {
	Kind    string `json:"kind"`
	RuleID  string `json:"ruleId"`
	Message string `json:"message"`
}

type HistoryStep struct {
	Index             int               `json:"index"`
	StepKey           string            `json:"stepKey"`
	ContentHash       string            `json:"contentHash"`
	Found             bool              `json:"found"`
	Creator           string            `json:"creator,omitempty"`
	BlockNumber       uint32            `json:"blockNumber,omitempty"`
	Timestamp         string            `json:"timestamp,omitempty"`
	ChainOfTrustValid verifier.Tristate `json:"chainOfTrustValid"`
	SchemaValid       verifier.Tristate `json:"schemaValid"`
}

type VerifyResponse struct {
	ContentHash    string `json:"contentHash"`
	Workflow       bool   `json:"workflow"`
	Found          bool   `json:"found"`
	Creator        string `json:"creator,omitempty"`
	BlockNumber    uint32 `json:"blockNumber,omitempty"`
	SignatureValid bool   `json:"signatureValid"`
	Scheme         string `json:"scheme,omitempty"`

	RagHash      string        `json:"ragHash,omitempty"`
	StepHash     string        `json:"stepHash,omitempty"`
	CurrentIndex int           `json:"currentIndex"`
	History      []HistoryStep `json:"history"`
	Expired      bool          `json:"workflowExpired,omitempty"`

	ChainOfTrustValid       verifier.Tristate `json:"chainOfTrustValid"`
	ChainViolations         []int             `json:"chainViolations"`
	ChronologicalOrderValid verifier.Tristate `json:"chronologicalOrderValid"`
	ChronologyViolations    []int             `json:"chronologyViolations"`

	IsValid bool        `json:"isValid"`
	Stages  []string    `json:"stages"`
	Reasons []Reason    `json:"reasons"`
	Error   *CodedError `json:"error,omitempty"`
}

// Workflow is a published workflow record.
type Workflow struct {
	Hash           string   `json:"hash"`
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	Master         bool     `json:"master"`
	InstructionCID string   `json:"instructionCid"`
	ResourceCID    string   `json:"resourceCid"`
	SchemaCID      string   `json:"schemaCid"`
	Steps          []string `json:"steps"`
	CreatedAt      uint32   `json:"createdAt"`
	ExpiresAt      uint32   `json:"expiresAt"`
	Staked         string   `json:"staked"`
	Publisher      string   `json:"publisher"`
}
