package server

import (
	"net/http"

	"github.com/amaralx48x/ama-imoveis-app-sub000/pkg/types"
)

// Routes shared with the remote client.
const (
	DocsPrefix        = "/v1/docs/"
	CollectionsPrefix = "/v1/collections/"
	QueryPath         = "/v1/query"
	WatchPath         = "/v1/watch"
	HealthPath        = "/healthz"
	BootstrapPath     = "/demo/bootstrap"
)

// ErrorBody is the JSON form of a failure.
type ErrorBody struct {
	Code    types.Code `json:"code"`
	Message string     `json:"message"`
}

// ErrorResponse wraps ErrorBody in every non-2xx response.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// CreateResponse is returned by POST on a collection.
type CreateResponse struct {
	ID string `json:"id"`
}

// Frame is one websocket message of a watch stream. Exactly one field is
// set. An error frame is the last frame of the stream.
type Frame struct {
	Doc   *types.DocSnapshot   `json:"doc,omitempty"`
	Query *types.QuerySnapshot `json:"query,omitempty"`
	Error *ErrorBody           `json:"error,omitempty"`
}

// StatusFor maps an error code to an HTTP status.
func StatusFor(code types.Code) int {
	switch code {
	case types.CodePermissionDenied:
		return http.StatusForbidden
	case types.CodeNotFound:
		return http.StatusNotFound
	case types.CodeInvalidData:
		return http.StatusBadRequest
	case types.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// CodeForStatus maps an HTTP status without a decodable body back to a code.
func CodeForStatus(status int) types.Code {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return types.CodePermissionDenied
	case http.StatusNotFound:
		return types.CodeNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return types.CodeInvalidData
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return types.CodeUnavailable
	default:
		return types.CodeUnknown
	}
}
