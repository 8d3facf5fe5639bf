package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dennisdiepolder/monti/agentdesk/internal/alerts"
	"github.com/dennisdiepolder/monti/agentdesk/internal/crm"
	"github.com/dennisdiepolder/monti/agentdesk/internal/order"
	"github.com/dennisdiepolder/monti/agentdesk/internal/outcome"
	"github.com/dennisdiepolder/monti/agentdesk/internal/session"
	"github.com/go-playground/validator/v10"
)

// writeError maps domain errors to status codes
func (api *API) writeError(w http.ResponseWriter, err error) {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		fields := make(map[string]string, len(ve))
		for _, fe := range ve {
			fields[fieldName(fe)] = fieldMessage(fe)
		}
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_failed",
			Message: "Request validation failed",
			Fields:  fields,
		})
		return
	}

	var se *outcome.StepError
	if errors.As(err, &se) {
		code := "call_log_failed"
		switch se.Step {
		case outcome.StepOrder:
			code = "order_not_created"
		case outcome.StepSchedule:
			code = "schedule_failed"
		}
		api.logger.Warn().Err(err).Str("step", string(se.Step)).Msg("resolution step failed")
		writeJSON(w, http.StatusBadGateway, ErrorResponse{
			Error:   code,
			Message: err.Error(),
			Step:    string(se.Step),
		})
		return
	}

	status, code := http.StatusInternalServerError, "internal_error"
	switch {
	case errors.Is(err, outcome.ErrValidation),
		errors.Is(err, order.ErrVariantSelection),
		errors.Is(err, order.ErrUnknownVariant),
		errors.Is(err, order.ErrInvalidQuantity),
		errors.Is(err, order.ErrLineIndex):
		status, code = http.StatusUnprocessableEntity, "rejected"
	case errors.Is(err, session.ErrSessionActive):
		status, code = http.StatusConflict, "session_active"
	case errors.Is(err, session.ErrResolving):
		status, code = http.StatusConflict, "resolving"
	case errors.Is(err, session.ErrNoSession):
		status, code = http.StatusConflict, "no_session"
	case errors.Is(err, alerts.ErrAlertNotFound):
		status, code = http.StatusNotFound, "alert_not_found"
	}

	var crmErr *crm.StatusError
	if status == http.StatusInternalServerError && errors.As(err, &crmErr) {
		status, code = http.StatusBadGateway, "crm_error"
		if crmErr.Code == http.StatusNotFound {
			status, code = http.StatusNotFound, "not_found"
		}
	}

	if status >= 500 {
		api.logger.Error().Err(err).Msg("request failed")
	}
	writeJSON(w, status, ErrorResponse{Error: code, Message: err.Error()})
}

func fieldName(fe validator.FieldError) string {
	// Namespace is Type.Field.Sub; drop the root type
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	return ns
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "gt", "gte", "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max", "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	}
	return fmt.Sprintf("failed %s", fe.Tag())
}
