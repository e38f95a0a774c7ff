package handlers

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/dvloznov/asset-tracker/internal/api/middleware"
	"github.com/dvloznov/asset-tracker/internal/app"
	"github.com/dvloznov/asset-tracker/internal/backup"
	"github.com/dvloznov/asset-tracker/internal/jobs"
	"github.com/dvloznov/asset-tracker/internal/profiles"
)

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var verrs validator.ValidationErrors
	switch {
	case errors.Is(err, profiles.ErrNotLoggedIn):
		return http.StatusUnauthorized
	case errors.Is(err, app.ErrAccountNotFound),
		errors.Is(err, app.ErrTransactionNotFound),
		errors.Is(err, jobs.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, app.ErrProfileNotLoaded):
		return http.StatusConflict
	case errors.Is(err, app.ErrInvalidAccount),
		errors.Is(err, app.ErrInvalidTransaction),
		errors.Is(err, app.ErrNotEditing),
		errors.Is(err, profiles.ErrMissingAccountID),
		errors.As(err, &verrs):
		return http.StatusBadRequest
	case errors.Is(err, backup.ErrNoBucket), errors.Is(err, jobs.ErrQueueClosed):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeError writes err with the status it maps to. Messages of 5xx errors
// are logged and replaced by fallback.
func writeError(w http.ResponseWriter, log zerolog.Logger, err error, fallback string) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Int("status", status).Msg(fallback)
		middleware.WriteError(w, status, fallback)
		return
	}
	middleware.WriteError(w, status, err.Error())
}
