package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/warp/benefit-engine/benefit"
	"github.com/warp/benefit-engine/generic"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error      string            `json:"error"`
	Code       string            `json:"code,omitempty"`
	Details    string            `json:"details,omitempty"`
	Fields     map[string]string `json:"fields,omitempty"`
	Resolution *ResolutionDTO    `json:"resolution,omitempty"`
	Allocation *AllocationDTO    `json:"allocation,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeServiceError maps the benefit error kinds to HTTP statuses:
// 400 validation, 422 policy, 403 authorization, 404 not found,
// 409 conflict, 500 otherwise.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var (
		validationErr *generic.ValidationError
		policyErr     *generic.PolicyError
		notFoundErr   *generic.NotFoundError
	)
	switch {
	case errors.As(err, &validationErr):
		resp := ErrorResponse{Error: validationErr.Error()}
		if validationErr.Field != "" {
			resp.Fields = map[string]string{validationErr.Field: validationErr.Message}
		}
		writeJSON(w, http.StatusBadRequest, resp)
	case errors.As(err, &policyErr):
		resp := ErrorResponse{Error: policyErr.Message, Code: policyErr.Code}
		switch d := policyErr.Detail.(type) {
		case benefit.Allocation:
			resp.Allocation = toAllocationDTO(&d)
		case benefit.Resolution:
			r := toResolutionDTO(d)
			resp.Resolution = &r
		}
		writeJSON(w, http.StatusUnprocessableEntity, resp)
	case errors.Is(err, generic.ErrUnauthorized):
		writeError(w, http.StatusForbidden, err.Error(), nil)
	case errors.As(err, &notFoundErr):
		writeError(w, http.StatusNotFound, notFoundErr.Error(), nil)
	case generic.IsRetryable(err):
		writeError(w, http.StatusConflict, "concurrent modification, retry", err)
	default:
		if logger != nil {
			logger.Error("request failed", slog.Any("error", err))
		}
		writeError(w, http.StatusInternalServerError, "internal error", nil)
	}
}

// writeValidationErrors reports struct tag failures field by field.
func writeValidationErrors(w http.ResponseWriter, err error) {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		writeError(w, http.StatusBadRequest, "invalid request", err)
		return
	}
	fields := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields[fe.Field()] = fe.Tag()
	}
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request", Fields: fields})
}
