package http

import (
	"encoding/json"
	"net/http"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/uitrace/gateway/internal/gateway/domain"
	"github.com/uitrace/gateway/internal/gateway/hub"
	"github.com/uitrace/gateway/pkg/httpx"
	"github.com/uitrace/gateway/pkg/slogx"
)

// ExtensionHandler serves the event ingestion and status endpoints used
// by authenticated extension clients.
type ExtensionHandler struct {
	Hub     *hub.Hub
	Version string
}

// HandleRecordAction accepts a recorded browser interaction, assigns it
// an id, and fans it out through the hub: every listener sees it, and
// the originating session additionally gets a targeted copy.
func (h *ExtensionHandler) HandleRecordAction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var action domain.Action
	if err := json.NewDecoder(r.Body).Decode(&action); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "Invalid action payload")
		return
	}
	if !validAction(action) {
		httpx.WriteError(w, http.StatusBadRequest, "Invalid action payload")
		return
	}

	action.ID = uuid.NewString()
	if action.Timestamp == 0 {
		action.Timestamp = time.Now().UnixMilli()
	}

	h.Hub.Broadcast(domain.EventAction, action)
	if action.Metadata.SessionID != "" {
		h.Hub.SendToSession(action.Metadata.SessionID, domain.EventAction, action)
	}

	slogx.FromContext(ctx).Info("action recorded",
		"action_id", action.ID,
		"action_type", action.Type,
		"session_id", action.Metadata.SessionID,
	)
	httpx.WriteJSON(w, http.StatusCreated, action)
}

// HandleSubmitFeedback accepts a rating for a previously recorded
// action and fans it out the same way actions are.
func (h *ExtensionHandler) HandleSubmitFeedback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var feedback domain.Feedback
	if err := json.NewDecoder(r.Body).Decode(&feedback); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "Invalid feedback payload")
		return
	}
	if feedback.ActionID == "" || feedback.Rating < 1 || feedback.Rating > 5 {
		httpx.WriteError(w, http.StatusBadRequest, "Invalid feedback payload")
		return
	}
	if feedback.Metadata.Timestamp == 0 {
		feedback.Metadata.Timestamp = time.Now().UnixMilli()
	}

	h.Hub.Broadcast(domain.EventFeedback, feedback)
	if feedback.Metadata.SessionID != "" {
		h.Hub.SendToSession(feedback.Metadata.SessionID, domain.EventFeedback, feedback)
	}

	slogx.FromContext(ctx).Info("feedback submitted",
		"action_id", feedback.ActionID,
		"rating", feedback.Rating,
		"session_id", feedback.Metadata.SessionID,
	)
	httpx.WriteJSON(w, http.StatusCreated, feedback)
}

// HandleStatus reports the gateway's capability document.
func (h *ExtensionHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, domain.ExtensionStatus{
		Version:  h.Version,
		IsActive: true,
		LastSync: time.Now().UnixMilli(),
		Features: []string{"action-recording", "feedback", "session-events"},
		Settings: domain.StatusSettings{
			RecordingEnabled: true,
			FeedbackEnabled:  true,
			SyncInterval:     5000,
		},
	})
}

func validAction(a domain.Action) bool {
	if !slices.Contains(domain.ActionTypes, a.Type) {
		return false
	}
	if a.Target.TagName == "" {
		return false
	}
	return a.Metadata.PageURL != "" && a.Metadata.SessionID != ""
}
