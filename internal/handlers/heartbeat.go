package handlers

import (
	"errors"
	"net/http"

	"github.com/benmeehan/heartbeat-agent/internal/notifications"
)

// Heartbeat records a ping from the site.
func (h *Handler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	h.alert.RecordHeartbeat()
	writeMessage(w, "Heartbeat received.")
}

// Status returns the alert state.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.alert.Status())
}

// Enable turns the heartbeat monitor on.
func (h *Handler) Enable(w http.ResponseWriter, r *http.Request) {
	h.alert.SetEnabled(true)
	writeMessage(w, "Heartbeat monitor enabled.")
}

// Disable turns the heartbeat monitor off. No alerts are sent while disabled.
func (h *Handler) Disable(w http.ResponseWriter, r *http.Request) {
	h.alert.SetEnabled(false)
	writeMessage(w, "Heartbeat monitor disabled.")
}

// TestEmail sends a test alert by email.
func (h *Handler) TestEmail(w http.ResponseWriter, r *http.Request) {
	h.sendTest(w, r, "email", "Email sent.")
}

// TestSlack sends a test alert to Slack.
func (h *Handler) TestSlack(w http.ResponseWriter, r *http.Request) {
	h.sendTest(w, r, "slack", "Slack notification sent.")
}

// sendTest maps missing configuration to 400 and delivery failures to 502.
func (h *Handler) sendTest(w http.ResponseWriter, r *http.Request, name, sent string) {
	err := h.alert.SendTest(r.Context(), name)
	switch {
	case err == nil:
		writeMessage(w, sent)
	case errors.Is(err, notifications.ErrConfigurationMissing):
		writeDetail(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error().Err(err).Str("notifier", name).Msg("Test notification failed")
		writeDetail(w, http.StatusBadGateway, err.Error())
	}
}
