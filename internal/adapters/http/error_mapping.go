package httpadapter

import (
	"errors"
	"net/http"

	"github.com/kirillkom/health-report-analyzer/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytesErr):
		return http.StatusRequestEntityTooLarge
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case domain.IsKind(err, domain.ErrUnsupportedFileType):
		return http.StatusUnsupportedMediaType
	case domain.IsKind(err, domain.ErrDocumentTooLarge):
		return http.StatusRequestEntityTooLarge
	case domain.IsKind(err, domain.ErrValidation):
		return http.StatusUnprocessableEntity
	case domain.IsKind(err, domain.ErrInvalidTransition),
		domain.IsKind(err, domain.ErrResultNotReady):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrUnsupportedExportFormat):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrSessionNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrSessionClosed):
		return http.StatusGone
	case domain.IsKind(err, domain.ErrSessionLimit):
		return http.StatusTooManyRequests
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type errorResponse struct {
	Error  string                    `json:"error"`
	Fields []*domain.ValidationError `json:"fields,omitempty"`
}

func writeError(w http.ResponseWriter, err error) {
	status := mapErrorToHTTPStatus(err)
	writeJSON(w, status, errorResponse{Error: err.Error(), Fields: validationErrors(err)})
}

// validationErrors collects every field error in err's tree, including
// joined errors.
func validationErrors(err error) []*domain.ValidationError {
	var out []*domain.ValidationError
	var walk func(error)
	walk = func(e error) {
		if e == nil {
			return
		}
		if verr, ok := e.(*domain.ValidationError); ok {
			out = append(out, verr)
			return
		}
		switch u := e.(type) {
		case interface{ Unwrap() []error }:
			for _, inner := range u.Unwrap() {
				walk(inner)
			}
		case interface{ Unwrap() error }:
			walk(u.Unwrap())
		}
	}
	walk(err)
	return out
}
