package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/md-rashed-zaman/slotkeeper/libs/httpx"
	"github.com/md-rashed-zaman/slotkeeper/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/slotkeeper/services/booking-service/internal/lifecycle"
	"github.com/md-rashed-zaman/slotkeeper/services/booking-service/internal/model"
)

type BookingHandler struct {
	engine  *booking.Engine
	machine *lifecycle.Machine
	actors  ActorResolver
	logger  *slog.Logger
}

func NewBookingHandler(engine *booking.Engine, machine *lifecycle.Machine, actors ActorResolver, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{engine: engine, machine: machine, actors: actors, logger: logger}
}

// Register mounts the API routes on r.
func (h *BookingHandler) Register(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Route("/providers/{providerID}", func(r chi.Router) {
			r.Get("/time-slots", h.TimeSlots)
			r.Get("/appointments", h.ProviderAppointments)
			r.Get("/schedule", h.GetSchedule)
			r.Put("/schedule", h.PutSchedule)
			r.Get("/breaks", h.ListBreaks)
			r.Post("/breaks", h.AddBreak)
			r.Delete("/breaks/{breakID}", h.DeleteBreak)
			r.Get("/blocked-slots", h.ListBlocked)
			r.Post("/blocked-slots", h.AddBlocked)
			r.Delete("/blocked-slots/{blockID}", h.DeleteBlocked)
		})
		r.Get("/services/{serviceID}", h.GetService)
		r.Put("/services/{serviceID}", h.PutService)
		r.Post("/appointments", h.Reserve)
		r.Route("/appointments/{appointmentID}", func(r chi.Router) {
			r.Get("/", h.GetAppointment)
			r.Post("/transition", h.Transition)
			r.Post("/payment-status", h.SetPaymentStatus)
			r.Post("/review", h.Review)
		})
	})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected data after JSON body")
	}
	return nil
}

func decodeOrBadRequest(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := decodeJSON(r, v); err != nil {
		if errors.Is(err, io.EOF) {
			badRequest(w, r, "request body is required")
			return false
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			httpx.WriteError(w, r, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large", nil)
			return false
		}
		badRequest(w, r, "invalid json body: "+err.Error())
		return false
	}
	return true
}

func (h *BookingHandler) actor(w http.ResponseWriter, r *http.Request) (model.Actor, bool) {
	actor, err := h.actors.Resolve(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return model.Actor{}, false
	}
	return actor, true
}

func parseDateParam(w http.ResponseWriter, r *http.Request, raw string) (model.Date, bool) {
	d, err := model.ParseDate(strings.TrimSpace(raw))
	if err != nil {
		writeError(w, r, nil, model.NewValidationError("date", "must be YYYY-MM-DD"))
		return model.Date{}, false
	}
	return d, true
}

type timeSlotsResponse struct {
	booking.Availability
	Count int `json:"count"`
}

// TimeSlots answers GET /api/providers/{providerID}/time-slots?date=&serviceId=&duration=&mode=&preview=
func (h *BookingHandler) TimeSlots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	date, ok := parseDateParam(w, r, q.Get("date"))
	if !ok {
		return
	}
	query := booking.Query{
		ProviderID: chi.URLParam(r, "providerID"),
		ServiceID:  strings.TrimSpace(q.Get("serviceId")),
		Date:       date,
		Mode:       strings.ToLower(strings.TrimSpace(q.Get("mode"))),
	}
	if raw := strings.TrimSpace(q.Get("duration")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, r, h.logger, model.NewValidationError("duration", "must be a positive number of minutes"))
			return
		}
		query.DurationMinutes = n
	}
	if raw := strings.TrimSpace(q.Get("preview")); raw != "" {
		preview, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, r, h.logger, model.NewValidationError("preview", "must be true or false"))
			return
		}
		query.Preview = preview
	}

	res, err := h.engine.Availability(r.Context(), query)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if res.Slots == nil {
		res.Slots = []model.TimeSlot{}
	}
	httpx.WriteJSON(w, http.StatusOK, timeSlotsResponse{Availability: res, Count: len(res.Slots)})
}

type reserveRequest struct {
	ProviderID string      `json:"provider_id"`
	ServiceID  string      `json:"service_id"`
	ClientID   string      `json:"client_id,omitempty"`
	Date       model.Date  `json:"date"`
	StartTime  model.Clock `json:"start_time"`
	Discount   *int        `json:"discount,omitempty"`
}

// Reserve answers POST /api/appointments. Clients book for themselves; a provider may book
// on behalf of a client for its own calendar.
func (h *BookingHandler) Reserve(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req reserveRequest
	if !decodeOrBadRequest(w, r, &req) {
		return
	}
	clientID := strings.TrimSpace(req.ClientID)
	switch actor.Role {
	case model.RoleClient:
		if clientID != "" && clientID != actor.ID {
			writeError(w, r, h.logger, model.ErrForbidden)
			return
		}
		clientID = actor.ID
	case model.RoleProvider:
		if actor.ID != req.ProviderID {
			writeError(w, r, h.logger, model.ErrForbidden)
			return
		}
	default:
		writeError(w, r, h.logger, model.ErrForbidden)
		return
	}

	appt, err := h.engine.Reserve(r.Context(), booking.ReserveRequest{
		ProviderID: strings.TrimSpace(req.ProviderID),
		ClientID:   clientID,
		ServiceID:  strings.TrimSpace(req.ServiceID),
		Date:       req.Date,
		StartTime:  req.StartTime,
		Discount:   req.Discount,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.Header().Set("Location", "/api/appointments/"+appt.ID)
	httpx.WriteJSON(w, http.StatusCreated, appt)
}

func (h *BookingHandler) GetAppointment(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	appt, err := h.engine.Appointment(r.Context(), actor, chi.URLParam(r, "appointmentID"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, appt)
}

func (h *BookingHandler) ProviderAppointments(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	date, ok := parseDateParam(w, r, r.URL.Query().Get("date"))
	if !ok {
		return
	}
	items, err := h.engine.ProviderDay(r.Context(), actor, chi.URLParam(r, "providerID"), date)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if items == nil {
		items = []model.Appointment{}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

type transitionRequest struct {
	Status model.Status `json:"status"`
}

func (h *BookingHandler) Transition(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req transitionRequest
	if !decodeOrBadRequest(w, r, &req) {
		return
	}
	if !req.Status.Valid() {
		writeError(w, r, h.logger, model.NewValidationError("status", "unknown status"))
		return
	}
	appt, err := h.machine.Transition(r.Context(), chi.URLParam(r, "appointmentID"), req.Status, actor)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, appt)
}

type paymentStatusRequest struct {
	PaymentStatus model.PaymentStatus `json:"payment_status"`
}

func (h *BookingHandler) SetPaymentStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req paymentStatusRequest
	if !decodeOrBadRequest(w, r, &req) {
		return
	}
	if !req.PaymentStatus.Valid() {
		writeError(w, r, h.logger, model.NewValidationError("payment_status", "unknown payment status"))
		return
	}
	appt, err := h.machine.SetPaymentStatus(r.Context(), chi.URLParam(r, "appointmentID"), req.PaymentStatus, actor)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, appt)
}

type reviewRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

func (h *BookingHandler) Review(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req reviewRequest
	if !decodeOrBadRequest(w, r, &req) {
		return
	}
	review, err := h.machine.AddReview(r.Context(), chi.URLParam(r, "appointmentID"), actor, req.Rating, req.Comment)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, review)
}
