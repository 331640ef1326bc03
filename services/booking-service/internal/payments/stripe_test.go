package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/md-rashed-zaman/slotkeeper/services/booking-service/internal/inbox"
	"github.com/md-rashed-zaman/slotkeeper/services/booking-service/internal/model"
)

const testSecret = "whsec_test_secret"

type fakeSetter struct {
	calls []string
	err   error
}

func (s *fakeSetter) SetPaymentStatus(_ context.Context, id string, target model.PaymentStatus, actor model.Actor) (model.Appointment, error) {
	s.calls = append(s.calls, id+":"+string(target)+":"+string(actor.Role))
	if s.err != nil {
		return model.Appointment{}, s.err
	}
	return model.Appointment{ID: id, PaymentStatus: target}, nil
}

func eventJSON(t *testing.T, id, eventType, object, appointmentID string) []byte {
	t.Helper()
	b, err := json.Marshal(map[string]any{
		"id":          id,
		"object":      "event",
		"created":     time.Now().Unix(),
		"type":        eventType,
		"api_version": "2020-08-27",
		"data": map[string]any{
			"object": map[string]any{
				"id":       "obj_test_1",
				"object":   object,
				"metadata": map[string]any{MetadataAppointmentID: appointmentID},
			},
		},
	})
	require.NoError(t, err)
	return b
}

func post(t *testing.T, h http.Handler, payload []byte, secret string) *httptest.ResponseRecorder {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", signed.Header)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func newWebhook(t *testing.T, setter PaymentSetter) *StripeWebhook {
	t.Helper()
	seen, err := inbox.NewMemory(32)
	require.NoError(t, err)
	return NewStripeWebhook(testSecret, 0, setter, seen, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestStripeWebhookMapsEvents(t *testing.T) {
	cases := []struct {
		eventType string
		object    string
		want      string
	}{
		{"payment_intent.succeeded", "payment_intent", "a1:paid:system"},
		{"payment_intent.payment_failed", "payment_intent", "a1:failed:system"},
		{"charge.refunded", "charge", "a1:refunded:system"},
	}
	for i, tc := range cases {
		t.Run(tc.eventType, func(t *testing.T) {
			setter := &fakeSetter{}
			h := newWebhook(t, setter)
			rec := post(t, h, eventJSON(t, "evt_"+string(rune('a'+i)), tc.eventType, tc.object, "a1"), testSecret)
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, []string{tc.want}, setter.calls)
		})
	}
}

func TestStripeWebhookRejectsBadSignature(t *testing.T) {
	setter := &fakeSetter{}
	h := newWebhook(t, setter)
	rec := post(t, h, eventJSON(t, "evt_1", "payment_intent.succeeded", "payment_intent", "a1"), "whsec_other")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, setter.calls)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader([]byte(`{}`)))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStripeWebhookDeduplicatesAndIgnores(t *testing.T) {
	setter := &fakeSetter{}
	h := newWebhook(t, setter)
	payload := eventJSON(t, "evt_dup", "payment_intent.succeeded", "payment_intent", "a1")

	assert.Equal(t, http.StatusOK, post(t, h, payload, testSecret).Code)
	rec := post(t, h, payload, testSecret)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "duplicate")
	assert.Len(t, setter.calls, 1)

	rec = post(t, h, eventJSON(t, "evt_other", "customer.created", "customer", "a1"), testSecret)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ignored")

	rec = post(t, h, eventJSON(t, "evt_nometa", "payment_intent.succeeded", "payment_intent", ""), testSecret)
	assert.Contains(t, rec.Body.String(), "ignored")
	assert.Len(t, setter.calls, 1)
}

func TestStripeWebhookRetriesTransientFailures(t *testing.T) {
	setter := &fakeSetter{err: errors.New("database unavailable")}
	h := newWebhook(t, setter)
	payload := eventJSON(t, "evt_retry", "payment_intent.succeeded", "payment_intent", "a1")

	assert.Equal(t, http.StatusInternalServerError, post(t, h, payload, testSecret).Code)
	setter.err = nil
	assert.Equal(t, http.StatusOK, post(t, h, payload, testSecret).Code)
	assert.Len(t, setter.calls, 2)

	setter.err = &model.IllegalTransitionError{Channel: model.ChannelPayment, From: "refunded", To: "paid", Role: model.RoleSystem}
	rec := post(t, h, eventJSON(t, "evt_illegal", "payment_intent.succeeded", "payment_intent", "a1"), testSecret)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ignored")
}

func TestStripeWebhookNotConfigured(t *testing.T) {
	seen, _ := inbox.NewMemory(1)
	h := NewStripeWebhook("", 0, &fakeSetter{}, seen, slog.New(slog.NewTextHandler(io.Discard, nil)))
	rec := post(t, h, []byte(`{}`), testSecret)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
