package types

import (
	"errors"
	"fmt"
)

// Backend lifecycle errors.
var (
	ErrBackendDetached = errors.New("backend is detached")
	ErrAlreadyAttached = errors.New("backend is already attached")
)

// Document operation errors.
var (
	ErrNotFound         = errors.New("document not found")
	ErrInvalidData      = errors.New("invalid document data")
	ErrInvalidFilter    = errors.New("invalid filter value type")
	ErrPermissionDenied = errors.New("permission denied")
	ErrUnavailable      = errors.New("backend unavailable")
	ErrAccessFailed     = errors.New("access failed")
)

// Demo session errors.
var (
	ErrNotDemo       = errors.New("no demo session is active")
	ErrInvalidSeed   = errors.New("invalid demo bootstrap snapshot")
	ErrSeedShape     = errors.New("seed value does not match locator kind")
	ErrStorageClosed = errors.New("session storage is closed")
)

// Operation names the kind of access that failed.
type Operation string

// Access operations.
const (
	OpGet    Operation = "get"
	OpList   Operation = "list"
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Code is the normalized failure class of an AccessError.
type Code string

// Access error codes.
const (
	CodePermissionDenied Code = "permission-denied"
	CodeNotFound         Code = "not-found"
	CodeUnavailable      Code = "unavailable"
	CodeInvalidData      Code = "invalid-data"
	CodeUnknown          Code = "unknown"
)

var codeSentinels = map[Code]error{
	CodePermissionDenied: ErrPermissionDenied,
	CodeNotFound:         ErrNotFound,
	CodeUnavailable:      ErrUnavailable,
	CodeInvalidData:      ErrInvalidData,
	CodeUnknown:          ErrAccessFailed,
}

// Sentinel returns the package error matching the code.
func (c Code) Sentinel() error {
	if err, ok := codeSentinels[c]; ok {
		return err
	}
	return ErrAccessFailed
}

// ErrorForCode builds an error for a code received over the wire so that
// errors.Is matches the code's sentinel.
func ErrorForCode(code Code, msg string) error {
	if msg == "" {
		return code.Sentinel()
	}
	return fmt.Errorf("%w: %s", code.Sentinel(), msg)
}

// AccessError is the single error kind surfaced by the data-access layer.
// It records which operation failed on which path; the lower-level error is
// reduced to a Code and a message and never retained.
type AccessError struct {
	Op      Operation `json:"operation"`
	Path    string    `json:"path"`
	Code    Code      `json:"code"`
	Message string    `json:"message,omitempty"`
}

func (e *AccessError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s %s: %s", e.Op, e.Path, e.Code)
	}
	return fmt.Sprintf("%s %s: %s: %s", e.Op, e.Path, e.Code, e.Message)
}

// Unwrap returns the sentinel for the error's code, so callers can write
// errors.Is(err, types.ErrPermissionDenied).
func (e *AccessError) Unwrap() error { return e.Code.Sentinel() }
