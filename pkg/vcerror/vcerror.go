// Package vcerror carries the error contract shared by the issuer and the
// verifier. Every client facing failure is a VCError with a stable numeric
// code; messages describe the failure without exposing stack traces, library
// names or file paths.
package vcerror

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Messages for crypto failures are fixed so that signature internals never
// reach a client.
const (
	MsgVPValidationFailed = "VP validation failed"
	MsgVCValidationFailed = "VC validation failed"
	MsgOperationCancelled = "operation cancelled"
	MsgInternalError      = "internal error"
)

// VCError is the wire format for every error reply.
type VCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *VCError) Error() string {
	return fmt.Sprintf("%d: %s", e.Code, e.Message)
}

// New returns a VCError with the given code and client safe message.
func New(code int, message string) *VCError {
	return &VCError{Code: code, Message: message}
}

// Newf is New with formatting.
func Newf(code int, format string, a ...any) *VCError {
	return &VCError{Code: code, Message: fmt.Sprintf(format, a...)}
}

// Cancelled is the reply for a context cancelled mid operation.
func Cancelled() *VCError {
	return New(ErrUnknown, MsgOperationCancelled)
}

// FromError maps any error onto the contract. Unclassified errors collapse
// into ErrUnknown with a generic message so internals never leak.
func FromError(err error) *VCError {
	var vcErr *VCError
	if errors.As(err, &vcErr) {
		return vcErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Cancelled()
	}
	return New(ErrUnknown, MsgInternalError)
}

// Is lets errors.Is match on the code alone.
func (e *VCError) Is(target error) bool {
	var other *VCError
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

// HasCode reports whether err is a VCError with the given code.
func HasCode(err error, code int) bool {
	var vcErr *VCError
	if !errors.As(err, &vcErr) {
		return false
	}
	return vcErr.Code == code
}

// HTTPStatus maps the code onto the transport. Client mistakes are 400,
// unknown credentials are 404, everything else is 500.
func (e *VCError) HTTPStatus() int {
	switch e.Code {
	case ErrCredInvalidCredentialRequest,
		ErrCredStatusTransitionNotAllowed,
		ErrIllegalArgument,
		ErrPresInvalidPresentationValidationRequest:
		return http.StatusBadRequest
	case ErrCredCredentialNotFound:
		return http.StatusNotFound
	}
	if e.Code >= ErrCredValidateVCError && e.Code <= ErrCredVCUnsupportedAlgorithm {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
