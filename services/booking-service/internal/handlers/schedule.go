package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/md-rashed-zaman/slotkeeper/libs/httpx"
	"github.com/md-rashed-zaman/slotkeeper/services/booking-service/internal/model"
)

func (h *BookingHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	s, err := h.engine.Schedule(r.Context(), chi.URLParam(r, "providerID"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, s)
}

type scheduleRequest struct {
	WorkingDays         []time.Weekday `json:"working_days"`
	StartTime           model.Clock    `json:"start_time"`
	EndTime             model.Clock    `json:"end_time"`
	SlotIntervalMinutes int            `json:"slot_interval_minutes"`
	Timezone            string         `json:"timezone"`
}

func (h *BookingHandler) PutSchedule(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req scheduleRequest
	if !decodeOrBadRequest(w, r, &req) {
		return
	}
	s, err := h.engine.PutSchedule(r.Context(), actor, model.ProviderSchedule{
		ProviderID:          chi.URLParam(r, "providerID"),
		WorkingDays:         req.WorkingDays,
		StartTime:           req.StartTime,
		EndTime:             req.EndTime,
		SlotIntervalMinutes: req.SlotIntervalMinutes,
		Timezone:            req.Timezone,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, s)
}

func (h *BookingHandler) ListBreaks(w http.ResponseWriter, r *http.Request) {
	items, err := h.engine.Breaks(r.Context(), chi.URLParam(r, "providerID"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if items == nil {
		items = []model.Break{}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

type breakRequest struct {
	Name        string        `json:"name"`
	StartTime   model.Clock   `json:"start_time"`
	EndTime     model.Clock   `json:"end_time"`
	IsRecurring bool          `json:"is_recurring"`
	DayOfWeek   *time.Weekday `json:"day_of_week"`
	Date        *model.Date   `json:"date"`
}

func (h *BookingHandler) AddBreak(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req breakRequest
	if !decodeOrBadRequest(w, r, &req) {
		return
	}
	b, err := h.engine.AddBreak(r.Context(), actor, model.Break{
		ProviderID:  chi.URLParam(r, "providerID"),
		Name:        req.Name,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		IsRecurring: req.IsRecurring,
		DayOfWeek:   req.DayOfWeek,
		Date:        req.Date,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, b)
}

func (h *BookingHandler) DeleteBreak(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	if err := h.engine.DeleteBreak(r.Context(), actor, chi.URLParam(r, "providerID"), chi.URLParam(r, "breakID")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *BookingHandler) ListBlocked(w http.ResponseWriter, r *http.Request) {
	date, ok := parseDateParam(w, r, r.URL.Query().Get("date"))
	if !ok {
		return
	}
	items, err := h.engine.Blocked(r.Context(), chi.URLParam(r, "providerID"), date)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if items == nil {
		items = []model.BlockedSlot{}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

type blockedRequest struct {
	Date      model.Date  `json:"date"`
	StartTime model.Clock `json:"start_time"`
	EndTime   model.Clock `json:"end_time"`
	Reason    string      `json:"reason"`
}

func (h *BookingHandler) AddBlocked(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req blockedRequest
	if !decodeOrBadRequest(w, r, &req) {
		return
	}
	b, err := h.engine.AddBlocked(r.Context(), actor, model.BlockedSlot{
		ProviderID: chi.URLParam(r, "providerID"),
		Date:       req.Date,
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
		Reason:     req.Reason,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, b)
}

func (h *BookingHandler) DeleteBlocked(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	if err := h.engine.DeleteBlocked(r.Context(), actor, chi.URLParam(r, "providerID"), chi.URLParam(r, "blockID")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *BookingHandler) GetService(w http.ResponseWriter, r *http.Request) {
	s, err := h.engine.Service(r.Context(), chi.URLParam(r, "serviceID"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, s)
}

type serviceRequest struct {
	Name            string `json:"name"`
	DurationMinutes int    `json:"duration_minutes"`
	BufferMinutes   int    `json:"buffer_minutes"`
	PriceCents      int64  `json:"price_cents"`
}

func (h *BookingHandler) PutService(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req serviceRequest
	if !decodeOrBadRequest(w, r, &req) {
		return
	}
	s, err := h.engine.PutService(r.Context(), actor, model.Service{
		ID:              chi.URLParam(r, "serviceID"),
		ProviderID:      actor.ID,
		Name:            req.Name,
		DurationMinutes: req.DurationMinutes,
		BufferMinutes:   req.BufferMinutes,
		PriceCents:      req.PriceCents,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, s)
}
