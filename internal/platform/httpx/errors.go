package httpx

import (
	"errors"
	"net/http"

	"github.com/LastCoderBoy/SIMS-Microservice-sub001/internal/shared"
)

// RespondError maps the shared error taxonomy to HTTP responses using
// RFC7807. Business-rule violations carry their detail; storage failures
// stay opaque to the caller.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrInsufficientStock):
		Problem(w, http.StatusUnprocessableEntity, "Insufficient Stock", err.Error())
	case errors.Is(err, shared.ErrInvalidToken):
		Problem(w, http.StatusGone, "Invalid Token", err.Error())
	case errors.Is(err, shared.ErrConflict):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
