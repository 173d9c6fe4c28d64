package api

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/dharsanguruparan/IngestDrop/internal/ingest"
	"github.com/dharsanguruparan/IngestDrop/internal/lifecycle"
	"github.com/dharsanguruparan/IngestDrop/internal/service"
)

// statusFor maps a service error to its HTTP status. Unknown errors are 500.
func statusFor(err error) int {
	var (
		invalid *ingest.ValidationError
		format  *ingest.FormatError
		empty   *ingest.EmptyContentError
		headers *ingest.MissingHeadersError
		dup     *ingest.DuplicateFileError
		policy  *lifecycle.PolicyError
		tooBig  *http.MaxBytesError
	)
	switch {
	case errors.As(err, &invalid), errors.As(err, &format), errors.As(err, &empty),
		errors.As(err, &headers), errors.As(err, &tooBig), errors.Is(err, lifecycle.ErrInvalidPatch):
		return http.StatusBadRequest
	case errors.As(err, &dup), errors.As(err, &policy):
		return http.StatusConflict
	case errors.Is(err, lifecycle.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		respondError(w, status, "internal server error")
		return
	}
	var dup *ingest.DuplicateFileError
	if errors.As(err, &dup) {
		respondJSON(w, status, map[string]string{"detail": dup.Error(), "job_id": dup.PriorJobID})
		return
	}
	respondError(w, status, err.Error())
}
