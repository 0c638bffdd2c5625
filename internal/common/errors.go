package common

import "errors"

// Sentinel errors surfaced by package boundaries that must return a Go
// error. Internally the
// engine prefers the RejectReason value itself; these wrap it only where a
// plain error is required.
var (
	ErrArenaFull    = errors.New("arena has no free slot")
	ErrInvariant    = errors.New("invariant breach")
	ErrEngineFaulted = errors.New("engine is faulted")
	ErrUnknownSymbol = errors.New("unknown symbol")
)

// AdmissionError wraps a RejectReason so admission failures can still be
// returned as a plain Go error at package boundaries that need one, without
// making RejectReason itself an error type on the hot path.
type AdmissionError struct {
	Reason RejectReason
}

func (e *AdmissionError) Error() string {
	return "admission rejected: " + e.Reason.String()
}

// NewAdmissionError constructs an AdmissionError for the given reason.
func NewAdmissionError(reason RejectReason) *AdmissionError {
	return &AdmissionError{Reason: reason}
}
