package model

import (
	"errors"
	"fmt"

	"xdao.co/trailproof/errdefs"
	"xdao.co/trailproof/storage"
)

type ErrorCode string

const (
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST"
	ErrInvalidProof   ErrorCode = "INVALID_PROOF"
	ErrInvalidCID     ErrorCode = "INVALID_CID"
	ErrCrypto         ErrorCode = "CRYPTO"
	ErrNotFound       ErrorCode = "NOT_FOUND"
	ErrCIDMismatch    ErrorCode = "CID_MISMATCH"
	ErrUnavailable    ErrorCode = "UNAVAILABLE"
	ErrInternal       ErrorCode = "INTERNAL"
)

// CodedError is a stable error with a machine-readable code and a human message.
type CodedError struct {
	Code    ErrorCode `json:"code"`
	RuleID  string    `json:"ruleId,omitempty"`
	Message string    `json:"message"`
}

func (e *CodedError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewError(code ErrorCode, message string) *CodedError {
	return &CodedError{Code: code, Message: message}
}

// MapError converts library errors to coded errors. nil stays nil.
func MapError(err error) *CodedError {
	if err == nil {
		return nil
	}
	var ce *CodedError
	if errors.As(err, &ce) {
		return ce
	}
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return NewError(ErrNotFound, err.Error())
	case errors.Is(err, storage.ErrCIDMismatch):
		return NewError(ErrCIDMismatch, err.Error())
	case errors.Is(err, storage.ErrInvalidCID):
		return NewError(ErrInvalidCID, err.Error())
	}
	code := ErrInternal
	switch errdefs.KindOf(err) {
	case errdefs.KindDecode:
		code = ErrInvalidProof
	case errdefs.KindValidation:
		code = ErrInvalidRequest
	case errdefs.KindCrypto:
		code = ErrCrypto
	case errdefs.KindNotFound:
		code = ErrNotFound
	case errdefs.KindNetwork:
		code = ErrUnavailable
	}
	return &CodedError{Code: code, RuleID: errdefs.RuleID(err), Message: err.Error()}
}
