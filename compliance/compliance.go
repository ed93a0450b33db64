// Package compliance selects how verification treats verdicts that could not
// be determined.
package compliance

import (
	"fmt"
	"strings"
)

// ComplianceMode selects how aggressively a proof with undeterminable
// provenance is rejected.
//
// Permissive accepts a proof unless a check positively failed.
// Strict additionally requires a reconstructed workflow to prove both its
// chain of trust and its chronology.
type ComplianceMode int

const (
	Permissive ComplianceMode = iota
	Strict
)

func (m ComplianceMode) String() string {
	if m == Strict {
		return "strict"
	}
	return "permissive"
}

// Parse accepts "strict" or "permissive" (case-insensitive). Empty means Permissive.
func Parse(s string) (ComplianceMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "permissive":
		return Permissive, nil
	case "strict":
		return Strict, nil
	}
	return Permissive, fmt.Errorf("compliance: unknown mode %q", s)
}

func (m ComplianceMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *ComplianceMode) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}
