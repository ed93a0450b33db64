package verifier

import (
	"bytes"
	"fmt"
)

// Tristate is a verdict that may be undeterminable.
// It marshals to JSON null, true or false.
type Tristate int8

const (
	Unknown Tristate = iota
	True
	False
)

// TristateOf converts a definite answer.
func TristateOf(ok bool) Tristate {
	if ok {
		return True
	}
	return False
}

// Bool returns the value and whether it is known.
func (t Tristate) Bool() (value, known bool) {
	switch t {
	case True:
		return true, true
	case False:
		return false, true
	}
	return false, false
}

func (t Tristate) String() string {
	switch t {
	case True:
		return "true"
	case False:
		return "false"
	}
	return "unknown"
}

func (t Tristate) MarshalJSON() ([]byte, error) {
	switch t {
	case True:
		return []byte("true"), nil
	case False:
		return []byte("false"), nil
	}
	return []byte("null"), nil
}

func (t *Tristate) UnmarshalJSON(b []byte) error {
	switch string(bytes.TrimSpace(b)) {
	case "true":
		*t = True
	case "false":
		*t = False
	case "null":
		*t = Unknown
	default:
		return fmt.Errorf("verifier: tristate must be true, false or null, got %s", b)
	}
	return nil
}
