package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/uitrace/gateway/internal/gateway/domain"
	"github.com/uitrace/gateway/internal/gateway/hub"
)

const validActionBody = `{
	"type": "click",
	"target": {"tagName": "BUTTON", "id": "submit"},
	"timestamp": 1700000000000,
	"metadata": {"pageUrl": "https://example.com/checkout", "sessionId": "sess-1"}
}`

func newExtensionHandler() (*ExtensionHandler, *hub.Hub) {
	h := hub.New(slog.Default())
	return &ExtensionHandler{Hub: h, Version: "v0.1.0"}, h
}

// recvAll pulls every event currently queued for the connection.
func recvAll(c *hub.Conn) []domain.Event {
	var out []domain.Event
	for {
		select {
		case ev := <-c.Events():
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestHandleRecordAction(t *testing.T) {
	t.Parallel()

	t.Run("valid action fans out", func(t *testing.T) {
		handler, eventHub := newExtensionHandler()
		member := eventHub.Connect()
		eventHub.JoinSession(member, "sess-1")
		outsider := eventHub.Connect()

		req := httptest.NewRequest(http.MethodPost, "/v1/extension/actions",
			strings.NewReader(validActionBody))
		rec := httptest.NewRecorder()
		handler.HandleRecordAction(rec, req)

		require.Equal(t, http.StatusCreated, rec.Code)

		var action domain.Action
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &action))
		require.NotEmpty(t, action.ID, "server assigns the action id")
		require.Equal(t, "click", action.Type)

		// Session member sees the broadcast copy and the targeted copy.
		require.Len(t, recvAll(member), 2)
		// A connection in no session still sees the broadcast.
		require.Len(t, recvAll(outsider), 1)
	})

	t.Run("unknown action type", func(t *testing.T) {
		handler, _ := newExtensionHandler()
		req := httptest.NewRequest(http.MethodPost, "/v1/extension/actions",
			strings.NewReader(`{"type":"drag","target":{"tagName":"DIV"},"metadata":{"pageUrl":"x","sessionId":"s"}}`))
		rec := httptest.NewRecorder()
		handler.HandleRecordAction(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, "Invalid action payload", errorMessage(t, rec))
	})

	t.Run("missing target", func(t *testing.T) {
		handler, _ := newExtensionHandler()
		req := httptest.NewRequest(http.MethodPost, "/v1/extension/actions",
			strings.NewReader(`{"type":"click","metadata":{"pageUrl":"x","sessionId":"s"}}`))
		rec := httptest.NewRecorder()
		handler.HandleRecordAction(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		handler, _ := newExtensionHandler()
		req := httptest.NewRequest(http.MethodPost, "/v1/extension/actions",
			strings.NewReader(`not json`))
		rec := httptest.NewRecorder()
		handler.HandleRecordAction(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleSubmitFeedback(t *testing.T) {
	t.Parallel()

	t.Run("valid feedback fans out", func(t *testing.T) {
		handler, eventHub := newExtensionHandler()
		member := eventHub.Connect()
		eventHub.JoinSession(member, "sess-1")

		req := httptest.NewRequest(http.MethodPost, "/v1/extension/feedback",
			strings.NewReader(`{"actionId":"a-1","rating":4,"comment":"ok","metadata":{"sessionId":"sess-1"}}`))
		rec := httptest.NewRecorder()
		handler.HandleSubmitFeedback(rec, req)

		require.Equal(t, http.StatusCreated, rec.Code)
		require.Len(t, recvAll(member), 2)
	})

	t.Run("rating out of range", func(t *testing.T) {
		handler, _ := newExtensionHandler()
		for _, rating := range []int{0, 6, -1} {
			req := httptest.NewRequest(http.MethodPost, "/v1/extension/feedback",
				strings.NewReader(`{"actionId":"a-1","rating":`+strconv.Itoa(rating)+`,"metadata":{"sessionId":"s"}}`))
			rec := httptest.NewRecorder()
			handler.HandleSubmitFeedback(rec, req)
			require.Equal(t, http.StatusBadRequest, rec.Code, "rating %d", rating)
		}
	})

	t.Run("missing action id", func(t *testing.T) {
		handler, _ := newExtensionHandler()
		req := httptest.NewRequest(http.MethodPost, "/v1/extension/feedback",
			strings.NewReader(`{"rating":3,"metadata":{"sessionId":"s"}}`))
		rec := httptest.NewRecorder()
		handler.HandleSubmitFeedback(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleStatus(t *testing.T) {
	t.Parallel()

	handler, _ := newExtensionHandler()
	req := httptest.NewRequest(http.MethodGet, "/v1/extension/status", nil)
	rec := httptest.NewRecorder()
	handler.HandleStatus(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var status domain.ExtensionStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	require.Equal(t, "v0.1.0", status.Version)
	require.True(t, status.IsActive)
	require.True(t, status.Settings.RecordingEnabled)
	require.NotZero(t, status.LastSync)
}
