// Package access normalizes database failures into types.AccessError and
// provides demo-aware write helpers.
package access

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/amaralx48x/ama-imoveis-app-sub000/pkg/types"
)

// Classify converts a failure of op on loc into an AccessError. It returns
// nil for a nil error. The original error is reduced to a code and its
// message; the AccessError does not wrap it.
func Classify(op types.Operation, loc types.Locator, err error) *types.AccessError {
	if err == nil {
		return nil
	}
	return &types.AccessError{
		Op:      op,
		Path:    loc.Path(),
		Code:    codeOf(err),
		Message: messageOf(err),
	}
}

func codeOf(err error) types.Code {
	var ae *types.AccessError
	if errors.As(err, &ae) {
		return ae.Code
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.Is(err, types.ErrPermissionDenied):
		return types.CodePermissionDenied
	case errors.Is(err, types.ErrNotFound):
		return types.CodeNotFound
	case errors.Is(err, types.ErrUnavailable),
		errors.Is(err, types.ErrBackendDetached),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return types.CodeUnavailable
	case errors.Is(err, types.ErrInvalidData),
		errors.Is(err, types.ErrInvalidFilter),
		errors.Is(err, types.ErrInvalidPath),
		errors.Is(err, types.ErrNotDocPath),
		errors.Is(err, types.ErrNotCollection),
		errors.Is(err, types.ErrInvalidOperator),
		errors.Is(err, types.ErrInvalidOrder),
		errors.Is(err, types.ErrInvalidLimit),
		errors.As(err, &syntaxErr),
		errors.As(err, &typeErr):
		return types.CodeInvalidData
	default:
		return types.CodeUnknown
	}
}

func messageOf(err error) string {
	var ae *types.AccessError
	if errors.As(err, &ae) {
		return ae.Message
	}
	return err.Error()
}
