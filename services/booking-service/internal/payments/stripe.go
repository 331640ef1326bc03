// Package payments adapts the payment gateway's callbacks to appointment payment status
// changes.
package payments

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/md-rashed-zaman/slotkeeper/libs/httpx"
	"github.com/md-rashed-zaman/slotkeeper/services/booking-service/internal/inbox"
	"github.com/md-rashed-zaman/slotkeeper/services/booking-service/internal/model"
)

// MetadataAppointmentID is the PaymentIntent/Charge metadata key naming the appointment.
const MetadataAppointmentID = "appointment_id"

const maxWebhookBody = 1 << 20

type PaymentSetter interface {
	SetPaymentStatus(ctx context.Context, appointmentID string, target model.PaymentStatus, actor model.Actor) (model.Appointment, error)
}

type StripeWebhook struct {
	secret    string
	tolerance time.Duration
	setter    PaymentSetter
	seen      inbox.Inbox
	logger    *slog.Logger
}

func NewStripeWebhook(secret string, tolerance time.Duration, setter PaymentSetter, seen inbox.Inbox, logger *slog.Logger) *StripeWebhook {
	if tolerance <= 0 {
		tolerance = webhook.DefaultTolerance
	}
	return &StripeWebhook{secret: secret, tolerance: tolerance, setter: setter, seen: seen, logger: logger}
}

// statusFor maps a Stripe event to the payment status it reports, if any.
func statusFor(evt stripe.Event) (model.PaymentStatus, string, error) {
	var metadata map[string]string
	var target model.PaymentStatus
	switch string(evt.Type) {
	case "payment_intent.succeeded", "payment_intent.payment_failed":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(evt.Data.Raw, &pi); err != nil {
			return "", "", err
		}
		metadata = pi.Metadata
		target = model.PaymentPaid
		if string(evt.Type) == "payment_intent.payment_failed" {
			target = model.PaymentFailed
		}
	case "charge.refunded":
		var ch stripe.Charge
		if err := json.Unmarshal(evt.Data.Raw, &ch); err != nil {
			return "", "", err
		}
		metadata = ch.Metadata
		target = model.PaymentRefunded
	default:
		return "", "", nil
	}
	return target, strings.TrimSpace(metadata[MetadataAppointmentID]), nil
}

// ServeHTTP verifies the signature and applies the reported status as the system actor.
// Non-2xx responses make Stripe redeliver, so only transient failures return 5xx.
func (h *StripeWebhook) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if strings.TrimSpace(h.secret) == "" {
		httpx.WriteError(w, r, http.StatusServiceUnavailable, "not_configured", "stripe webhook not configured", nil)
		return
	}
	sigHeader := r.Header.Get("Stripe-Signature")
	if strings.TrimSpace(sigHeader) == "" {
		httpx.WriteError(w, r, http.StatusBadRequest, "missing_signature", "missing Stripe-Signature header", nil)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "invalid_body", "failed to read request body", nil)
		return
	}
	evt, err := webhook.ConstructEventWithOptions(body, sigHeader, h.secret, webhook.ConstructEventOptions{
		Tolerance:                h.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "invalid_signature", "invalid signature", nil)
		return
	}

	logger := h.logger.With("provider_event_id", evt.ID, "event_type", string(evt.Type))
	target, appointmentID, err := statusFor(evt)
	if err != nil {
		logger.Error("stripe: invalid event payload", "err", err)
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"status": "ignored"})
		return
	}
	if target == "" {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"status": "ignored"})
		return
	}
	if appointmentID == "" {
		logger.Warn("stripe: missing appointment_id metadata")
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"status": "ignored"})
		return
	}

	ctx := r.Context()
	fresh, err := h.seen.Record(ctx, evt.ID, string(evt.Type))
	if err != nil {
		logger.Error("stripe: inbox record failed", "err", err)
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal", "failed to record event", nil)
		return
	}
	if !fresh {
		logger.Info("stripe: duplicate event ignored")
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"status": "duplicate"})
		return
	}

	_, err = h.setter.SetPaymentStatus(ctx, appointmentID, target, model.SystemActor)
	var ite *model.IllegalTransitionError
	switch {
	case err == nil:
		logger.Info("stripe: payment status applied", "appointment_id", appointmentID, "payment_status", string(target))
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	case errors.As(err, &ite) && ite.From == ite.To:
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"status": "unchanged"})
	case errors.Is(err, model.ErrIllegalTransition), errors.Is(err, model.ErrAppointmentNotFound):
		logger.Warn("stripe: payment status rejected", "appointment_id", appointmentID, "err", err)
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"status": "ignored"})
	default:
		if relErr := h.seen.Release(ctx, evt.ID); relErr != nil {
			logger.Error("stripe: inbox release failed", "err", relErr)
		}
		logger.Error("stripe: payment status failed", "appointment_id", appointmentID, "err", err)
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal", "failed to apply payment status", nil)
	}
}
