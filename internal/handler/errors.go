package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/riteshkumar/bank-ledger/internal/errors"
	"github.com/riteshkumar/bank-ledger/internal/models"
	u "github.com/riteshkumar/bank-ledger/internal/utils"
)

// handleServiceError maps a service error to its HTTP status. Only storage
// and unknown failures are logged here; the services log the rest.
func handleServiceError(w http.ResponseWriter, logger *slog.Logger, err error, operation string) {
	var (
		validationErr *errors.ValidationError
		constraintErr *errors.ConstraintError
		storageErr    *errors.StorageError
	)

	switch {
	case errors.As(err, &validationErr):
		fields := make([]models.FieldIssue, 0, len(validationErr.Fields))
		for _, f := range validationErr.Fields {
			fields = append(fields, models.FieldIssue{Field: f.Field, Message: f.Message})
		}
		u.WriteFieldErrors(w, err.Error(), fields)
	case errors.IsInsufficientFunds(err):
		u.WriteError(w, http.StatusUnprocessableEntity, "insufficient funds", "source account does not have enough funds")
	case errors.IsForbidden(err):
		u.WriteError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.IsTransferRejection(err):
		u.WriteError(w, http.StatusBadRequest, "transfer rejected", err.Error())
	case errors.IsNotFound(err):
		u.WriteError(w, http.StatusNotFound, "not found", err.Error())
	case errors.As(err, &storageErr):
		logger.Error("storage error during "+operation, "error", err.Error(), "indeterminate", storageErr.Indeterminate())
		if storageErr.Indeterminate() {
			u.WriteError(w, http.StatusServiceUnavailable, "outcome unknown", "re-query before retrying the request")
			return
		}
		u.WriteError(w, http.StatusServiceUnavailable, "storage unavailable", "the request can be retried")
	case errors.As(err, &constraintErr):
		u.WriteError(w, http.StatusConflict, "constraint violation", constraintErr.Reason)
	case errors.IsAlreadyExists(err):
		u.WriteError(w, http.StatusConflict, "already exists", err.Error())
	default:
		logger.Error("internal server error during "+operation, "error", err.Error())
		u.WriteError(w, http.StatusInternalServerError, "internal server error", "")
	}
}

// handleDecodeError answers a request whose body could not be decoded.
func handleDecodeError(w http.ResponseWriter, logger *slog.Logger, err error, operation string) {
	logger.Warn("invalid "+operation+" request", "error", err.Error())

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		u.WriteError(w, http.StatusRequestEntityTooLarge, "request body too large",
			fmt.Sprintf("body must not exceed %d bytes", tooLarge.Limit))
		return
	}
	u.WriteError(w, http.StatusBadRequest, "invalid request payload", err.Error())
}
