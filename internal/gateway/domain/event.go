package domain

// Event is the envelope every hub delivery uses, for both the global
// broadcast audience and session-scoped sends.
type Event struct {
	Type      string `json:"type"`
	Data      any    `json:"data"`
	Timestamp int64  `json:"timestamp"` // epoch millis
}

// Event types pushed through the hub.
const (
	EventAction   = "action"
	EventFeedback = "feedback"
	EventStatus   = "status"
)

// Action is a recorded browser interaction reported by an extension.
type Action struct {
	ID        string         `json:"id,omitempty"`
	Type      string         `json:"type"`
	Target    ActionTarget   `json:"target"`
	Timestamp int64          `json:"timestamp"`
	Metadata  ActionMetadata `json:"metadata"`
}

// ActionTypes enumerates the interactions the extension records.
var ActionTypes = []string{"click", "input", "navigation", "scroll", "hover"}

type ActionTarget struct {
	TagName   string `json:"tagName"`
	ID        string `json:"id,omitempty"`
	ClassName string `json:"className,omitempty"`
	Text      string `json:"text,omitempty"`
	URL       string `json:"url,omitempty"`
}

type ActionMetadata struct {
	PageURL     string       `json:"pageUrl"`
	SessionID   string       `json:"sessionId"`
	UserID      string       `json:"userId,omitempty"`
	BrowserInfo *BrowserInfo `json:"browserInfo,omitempty"`
}

type BrowserInfo struct {
	UserAgent string `json:"userAgent"`
	Platform  string `json:"platform"`
	Language  string `json:"language"`
}

// Feedback is a user rating attached to a previously recorded action.
type Feedback struct {
	ActionID string           `json:"actionId"`
	Rating   int              `json:"rating"` // 1..5
	Comment  string           `json:"comment,omitempty"`
	Metadata FeedbackMetadata `json:"metadata"`
}

type FeedbackMetadata struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// ExtensionStatus is the static capability document served to clients.
type ExtensionStatus struct {
	Version  string         `json:"version"`
	IsActive bool           `json:"isActive"`
	LastSync int64          `json:"lastSync"`
	Features []string       `json:"features"`
	Settings StatusSettings `json:"settings"`
}

type StatusSettings struct {
	RecordingEnabled bool `json:"recordingEnabled"`
	FeedbackEnabled  bool `json:"feedbackEnabled"`
	SyncInterval     int  `json:"syncInterval"`
}
