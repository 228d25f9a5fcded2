package errs

import "net/http"

// HTTPStatus maps an error code to the boundary status. Signaling-state
// outcomes (stale, glare, unreachable) ride on 200: they are protocol
// results the client reacts to, not transport failures.
func HTTPStatus(code int) int {
	switch code {
	case CodeInvalidRequest:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeStorageUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusOK
	}
}
