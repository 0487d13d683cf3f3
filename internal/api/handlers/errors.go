package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"
	apiContext "shortr/internal/api/context"
	"shortr/internal/engine/idgen"
	"shortr/internal/engine/links"
	apperrors "shortr/internal/pkg/errors"
)

// retryAfterSeconds is advertised on 503s. Equal to lease.DefaultTTL.
const retryAfterSeconds = 5

// writeServiceError maps engine errors onto HTTP status codes and the JSON
// error envelope.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var tooLong *links.ValidationError

	switch {
	case errors.As(err, &tooLong):
		apperrors.WriteError(w, http.StatusBadRequest, apperrors.ErrCodeURLTooLong, tooLong.Error(),
			map[string]int{"length": tooLong.Length, "limit": tooLong.Limit})
	case errors.Is(err, links.ErrInvalidURL):
		apperrors.WriteError(w, http.StatusBadRequest, apperrors.ErrCodeInvalidInput, err.Error(), nil)
	case errors.Is(err, links.ErrInvalidQRSize):
		apperrors.WriteError(w, http.StatusBadRequest, apperrors.ErrCodeInvalidInput, err.Error(), nil)
	case errors.Is(err, links.ErrNotFound):
		apperrors.WriteError(w, http.StatusNotFound, apperrors.ErrCodeNotFound, "Short link not found", nil)
	case errors.Is(err, links.ErrGone):
		apperrors.WriteError(w, http.StatusGone, apperrors.ErrCodeGone, "Short link has expired", nil)
	case errors.Is(err, idgen.ErrAllocationTimeout), errors.Is(err, links.ErrCreationTimeout):
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("creation timed out")
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
		apperrors.WriteError(w, http.StatusServiceUnavailable, apperrors.ErrCodeUnavailable, "Service busy, please retry", nil)
	case errors.Is(err, links.ErrCreationFailed):
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("failed to create short link")
		apperrors.WriteError(w, http.StatusInternalServerError, apperrors.ErrCodeCreationFailed, "Failed to create short link", nil)
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("unhandled error")
		apperrors.WriteError(w, http.StatusInternalServerError, apperrors.ErrCodeInternal, "Internal server error", nil)
	}
}

func params(r *http.Request) httprouter.Params {
	ps, _ := r.Context().Value(apiContext.Params).(httprouter.Params)
	return ps
}
