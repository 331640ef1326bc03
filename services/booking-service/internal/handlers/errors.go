package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/md-rashed-zaman/slotkeeper/libs/httpx"
	"github.com/md-rashed-zaman/slotkeeper/services/booking-service/internal/model"
)

// writeError is the single place domain errors become HTTP responses.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var (
		ve  *model.ValidationError
		sce *model.SlotConflictError
		ite *model.IllegalTransitionError
	)
	switch {
	case errors.As(err, &ve):
		details := make(map[string]any, len(ve.Fields))
		for k, v := range ve.Fields {
			details[k] = v
		}
		httpx.WriteError(w, r, http.StatusUnprocessableEntity, "validation_failed", "validation failed", details)
	case errors.As(err, &sce):
		httpx.WriteError(w, r, http.StatusConflict, "slot_conflict", "slot no longer available", map[string]any{
			"reason":     sce.Reason,
			"date":       sce.Date.String(),
			"start_time": sce.StartTime.String(),
		})
	case errors.As(err, &ite):
		httpx.WriteError(w, r, http.StatusConflict, "illegal_transition", ite.Error(), map[string]any{
			"channel": ite.Channel,
			"from":    ite.From,
			"to":      ite.To,
		})
	case errors.Is(err, model.ErrScheduleNotFound):
		httpx.WriteError(w, r, http.StatusNotFound, "schedule_not_found", "provider schedule not configured", nil)
	case errors.Is(err, model.ErrServiceNotFound):
		httpx.WriteError(w, r, http.StatusNotFound, "service_not_found", "service not found", nil)
	case errors.Is(err, model.ErrAppointmentNotFound):
		httpx.WriteError(w, r, http.StatusNotFound, "appointment_not_found", "appointment not found", nil)
	case errors.Is(err, model.ErrBreakNotFound):
		httpx.WriteError(w, r, http.StatusNotFound, "break_not_found", "break not found", nil)
	case errors.Is(err, model.ErrBlockNotFound):
		httpx.WriteError(w, r, http.StatusNotFound, "block_not_found", "blocked slot not found", nil)
	case errors.Is(err, model.ErrReviewAlreadyExists):
		httpx.WriteError(w, r, http.StatusConflict, "review_exists", "appointment already reviewed", nil)
	case errors.Is(err, model.ErrReviewNotAllowed):
		httpx.WriteError(w, r, http.StatusConflict, "review_not_allowed", "only completed appointments can be reviewed", nil)
	case errors.Is(err, model.ErrForbidden):
		httpx.WriteError(w, r, http.StatusForbidden, "forbidden", "forbidden", nil)
	case errors.Is(err, errUnauthenticated):
		httpx.WriteError(w, r, http.StatusUnauthorized, "unauthenticated", "missing or invalid credentials", nil)
	default:
		logger.Error("request failed", "path", r.URL.Path, "request_id", httpx.RequestIDFromContext(r.Context()), "err", err)
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal", "internal error", nil)
	}
}

func badRequest(w http.ResponseWriter, r *http.Request, msg string) {
	httpx.WriteError(w, r, http.StatusBadRequest, "bad_request", msg, nil)
}
