package rfmsync

import (
	"errors"
	"fmt"
	"syscall"
)

// Error is a structured error carrying enough context to diagnose a
// cross-host synchronisation failure without string-matching.
type Error struct {
	Op     string        // Operation that failed (e.g. "Init", "Synchronise")
	NodeID uint32        // Node the error occurred on
	Code   ErrorCode     // High-level error category
	Errno  syscall.Errno // Kernel errno (0 if not applicable)
	Msg    string        // Human-readable message
	Inner  error         // Wrapped error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var parts []string
	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Op))
	}
	parts = append(parts, fmt.Sprintf("node=%d", e.NodeID))
	if e.Errno != 0 {
		parts = append(parts, fmt.Sprintf("errno=%d", e.Errno))
	}

	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}
	return fmt.Sprintf("rfmsync: %s (%s)", msg, parts[0])
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Inner
}

// Is lets errors.Is match on error code alone, so callers can write
// errors.Is(err, rfmsync.ErrSyncMissed) without caring about node/op.
func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == te.Code
}

// ErrorCode is the taxonomy of spec §7: every failure a host can observe
// falls into one of these categories.
type ErrorCode string

const (
	ErrCodeConfiguration       ErrorCode = "configuration"
	ErrCodeDevice              ErrorCode = "device"
	ErrCodeLayout              ErrorCode = "layout"
	ErrCodeSyncMissed          ErrorCode = "sync missed"
	ErrCodeMasterStepExhausted ErrorCode = "master step exhausted"
	ErrCodeTornRead            ErrorCode = "torn read"
)

// Sentinel errors for errors.Is comparisons against the three conditions
// that spec §7 says must never escape the per-cycle path. The orchestrator
// never returns them: Synchronise reports a missed sync or an exhausted
// master step as ok==false and through the Observer, and torn reads are
// retried inside internal/sync without being reported.
var (
	ErrSyncMissed          = &Error{Code: ErrCodeSyncMissed, Msg: "slave missed a synchronisation window"}
	ErrMasterStepExhausted = &Error{Code: ErrCodeMasterStepExhausted, Msg: "master step retries exhausted"}
	ErrTornRead            = &Error{Code: ErrCodeTornRead, Msg: "seq-lock read observed a torn update"}
)

// NewError creates a structured configuration/layout-style error with no
// errno attached.
func NewError(op string, nodeID uint32, code ErrorCode, msg string) *Error {
	return &Error{Op: op, NodeID: nodeID, Code: code, Msg: msg}
}

// NewDeviceError creates a structured error for a driver-level failure,
// mapping errno to ErrCodeDevice.
func NewDeviceError(op string, nodeID uint32, errno syscall.Errno, msg string) *Error {
	if msg == "" {
		msg = errno.Error()
	}
	return &Error{Op: op, NodeID: nodeID, Code: ErrCodeDevice, Errno: errno, Msg: msg}
}

// NewLayoutError creates a structured error for a peer-layout violation
// (non-contiguous writes, out-of-range offsets, bad NodeIdNumber).
func NewLayoutError(op string, nodeID uint32, msg string) *Error {
	return &Error{Op: op, NodeID: nodeID, Code: ErrCodeLayout, Msg: msg}
}

// WrapError wraps an existing error with synchronisation-core context. If
// inner is already a *Error, only Op is updated and the rest of its
// context is preserved.
func WrapError(op string, nodeID uint32, code ErrorCode, inner error) *Error {
	if inner == nil {
		return nil
	}
	if re, ok := inner.(*Error); ok {
		return &Error{Op: op, NodeID: re.NodeID, Code: re.Code, Errno: re.Errno, Msg: re.Msg, Inner: re.Inner}
	}
	if errno, ok := inner.(syscall.Errno); ok {
		return &Error{Op: op, NodeID: nodeID, Code: ErrCodeDevice, Errno: errno, Msg: errno.Error(), Inner: inner}
	}
	return &Error{Op: op, NodeID: nodeID, Code: code, Msg: inner.Error(), Inner: inner}
}

// IsCode reports whether err is a *Error (directly or wrapped) with the
// given code.
func IsCode(err error, code ErrorCode) bool {
	var re *Error
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}
