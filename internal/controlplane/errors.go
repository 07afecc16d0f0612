package controlplane

import (
	"errors"
	"net/http"

	"github.com/fentz26/designboard/internal/config"
	"github.com/fentz26/designboard/internal/guard"
	"github.com/fentz26/designboard/internal/store"
)

// Sentinel errors for control plane operations.
var (
	ErrForbidden            = errors.New("actor may not perform this action")
	ErrConfirmationRequired = errors.New("completion must be confirmed")
	ErrNoActor              = errors.New("actor id required")
	ErrInvalidInput         = errors.New("invalid input")
)

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case guard.IsViolation(err, ""), errors.Is(err, store.ErrTerminalStatus):
		return http.StatusUnprocessableEntity
	case guard.IsAbort(err, ""):
		return http.StatusConflict
	case errors.Is(err, ErrConfirmationRequired):
		return http.StatusPreconditionRequired
	case errors.Is(err, store.ErrConcurrentModification):
		return http.StatusConflict
	case errors.Is(err, store.ErrTaskNotFound), errors.Is(err, store.ErrChangeRequestNotFound):
		return http.StatusNotFound
	case errors.Is(err, config.ErrUnknownActor), errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNoActor):
		return http.StatusUnauthorized
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
