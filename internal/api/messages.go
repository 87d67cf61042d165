// Package api holds the JSON bodies shared by the REST handlers.
package api

import (
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type (
	// ErrorResponse contains error details for failed requests
	ErrorResponse struct {
		Error  string `json:"error"`
		Status int    `json:"status,omitempty"`
	}

	// PageResponse is one page of a cursor-paginated listing. NextCursor is null on the last page.
	PageResponse struct {
		Data       any     `json:"data"`
		NextCursor *string `json:"nextCursor"`
	}

	// HealthResponse is the body of GET /health
	HealthResponse struct {
		Service string            `json:"service"`
		Version string            `json:"version"`
		Status  string            `json:"status"`
		Checks  map[string]string `json:"checks,omitempty"`
	}
)

// NewError builds an ErrorResponse for status.
func NewError(code int, msg string) ErrorResponse {
	return ErrorResponse{Error: msg, Status: code}
}

// FromStatusError converts a gRPC status error (as returned by rbac checks) into an HTTP status
// code and ErrorResponse.
func FromStatusError(err error) (int, ErrorResponse) {
	st, _ := status.FromError(err)
	code := HTTPStatus(st.Code())
	return code, NewError(code, st.Message())
}

// HTTPStatus maps a gRPC code to the closest HTTP status.
func HTTPStatus(c codes.Code) int {
	switch c {
	case codes.OK:
		return http.StatusOK
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
		return http.StatusBadRequest
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.NotFound:
		return http.StatusNotFound
	case codes.AlreadyExists, codes.Aborted:
		return http.StatusConflict
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests
	case codes.Unimplemented:
		return http.StatusNotImplemented
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
