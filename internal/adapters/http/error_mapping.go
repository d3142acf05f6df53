package httpadapter

import (
	"net/http"

	"github.com/akulikov/autograder/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrSubmissionNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrTransient), domain.IsKind(err, domain.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
