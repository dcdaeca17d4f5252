package httpx

import (
	"errors"
	"net/http"

	"github.com/clubs-council/members-service/internal/shared"
)

// RespondError maps the error taxonomy to HTTP responses using RFC7807.
// Unknown errors are reported without detail so internal causes never
// leak to callers.
func RespondError(w http.ResponseWriter, err error) {
	switch shared.KindOf(err) {
	case shared.KindAuthentication:
		Problem(w, http.StatusUnauthorized, "Not Authenticated", reasonOf(err))
	case shared.KindAuthorization:
		Problem(w, http.StatusForbidden, "Forbidden", reasonOf(err))
	case shared.KindValidation:
		Problem(w, http.StatusBadRequest, "Validation Failed", reasonOf(err))
	case shared.KindConflict:
		Problem(w, http.StatusConflict, "Conflict", reasonOf(err))
	case shared.KindNotFound:
		Problem(w, http.StatusNotFound, "Not Found", reasonOf(err))
	case shared.KindDependency:
		Problem(w, http.StatusBadGateway, "Dependency Unavailable", reasonOf(err))
	case shared.KindState:
		Problem(w, http.StatusUnprocessableEntity, "Invalid State", reasonOf(err))
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

// reasonOf returns the stable reason string, never the wrapped cause.
func reasonOf(err error) string {
	var e *shared.Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return err.Error()
}
