package verifier

import (
	"xdao.co/trailproof/errdefs"
	"xdao.co/trailproof/proof"
)

// CheckChainOfTrust compares the creator of each step with the recipient
// declared by the step before it. d must hold at least len(steps) entries.
//
// Steps whose predecessor declares nothing are Unknown, as are declared
// handoffs whose step was never anchored. The overall verdict is False on any
// mismatch, True when at least one handoff was declared and every declared
// handoff checked out, and Unknown otherwise.
func CheckChainOfTrust(steps []HistoryStep, d proof.Deliverable) (Tristate, []int, error) {
	if len(d) < len(steps) {
		return Unknown, nil, errdefs.Newf(errdefs.KindDecode, "TP-VER-010", "deliverable has %d entries for %d steps", len(d), len(steps))
	}
	var (
		violations []int
		matched    bool
		unresolved bool
	)
	for i := 1; i < len(steps); i++ {
		target, declared, err := d[i-1].Target()
		if err != nil {
			return Unknown, nil, err
		}
		switch {
		case !declared:
			steps[i].ChainOfTrust = Unknown
		case !steps[i].Found:
			steps[i].ChainOfTrust = Unknown
			unresolved = true
		case steps[i].Creator == target:
			steps[i].ChainOfTrust = True
			matched = true
		default:
			steps[i].ChainOfTrust = False
			violations = append(violations, i)
		}
	}
	switch {
	case len(violations) > 0:
		return False, violations, nil
	case matched && !unresolved:
		return True, nil, nil
	}
	return Unknown, nil, nil
}

// CheckChronology asserts that anchored steps appear in non-decreasing ledger
// order. Block numbers decide: a step anchored in an earlier block than the
// anchored step before it is a violation even when no timestamps are known.
// Timestamps, where both sides have one, must not run backwards either.
//
// Unanchored steps are skipped and the comparison carries over to the next
// anchored step; a clean result with skipped steps is Unknown.
func CheckChronology(steps []HistoryStep) (Tristate, []int) {
	if len(steps) < 2 {
		return Unknown, nil
	}
	var (
		violations []int
		skipped    bool
		prev       = -1
	)
	for i, cur := range steps {
		if !cur.Found {
			skipped = true
			continue
		}
		if prev >= 0 {
			p := steps[prev]
			switch {
			case cur.Block < p.Block:
				violations = append(violations, i)
			case !p.Timestamp.IsZero() && !cur.Timestamp.IsZero() && cur.Timestamp.Before(p.Timestamp):
				violations = append(violations, i)
			}
		}
		prev = i
	}
	switch {
	case len(violations) > 0:
		return False, violations
	case skipped:
		return Unknown, nil
	}
	return True, nil
}
