package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/jakechorley/drop-in-shifts/pkg/core/model"
	"github.com/jakechorley/drop-in-shifts/pkg/core/reconciler"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

func (s *Server) readJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	// An empty body decodes as the zero value
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid request body: %w", err)
	}
	if err := s.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("invalid field %s: failed %s", verrs[0].Field(), verrs[0].Tag())
		}
		return err
	}
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("Failed to write response", zap.String("path", r.URL.Path), zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	s.writeJSON(w, r, status, errorBody{Error: msg, RequestID: requestIDFrom(r)})
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("Internal server error",
		zap.String("request_id", requestIDFrom(r)),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err))
	s.writeError(w, r, http.StatusInternalServerError, "internal server error")
}

// respondErr maps domain errors to status codes
func (s *Server) respondErr(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		s.internalError(w, r, err)
		return
	}
	s.writeError(w, r, status, err.Error())
}

func errorStatus(err error) int {
	switch {
	case reconciler.IsValidationError(err),
		errors.Is(err, model.ErrInvalidPreference),
		errors.Is(err, model.ErrSubscriptionFields),
		errors.Is(err, model.ErrNotScheduled),
		errors.Is(err, model.ErrInvalidTimeOfDay):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrNotPermitted):
		return http.StatusForbidden
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrInvalidTransition),
		errors.Is(err, model.ErrSlotTaken),
		errors.Is(err, model.ErrShiftFull):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func idParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}
