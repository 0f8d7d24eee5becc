package webhook

import "strings"

// Event envelope types from the Slack Events API.
const (
	TypeURLVerification = "url_verification"
	TypeEventCallback   = "event_callback"
)

// Envelope is one inbound delivery. It is owned by the dispatcher for the
// duration of a single dispatch.
type Envelope struct {
	Type      string       `json:"type"`
	Challenge string       `json:"challenge,omitempty"`
	TeamID    string       `json:"team_id,omitempty"`
	EventID   string       `json:"event_id,omitempty"`
	EventTime int64        `json:"event_time,omitempty"`
	Event     MessageEvent `json:"event,omitempty"`
}

// MessageEvent is the nested event body for message-style callbacks.
type MessageEvent struct {
	Type        string      `json:"type"`
	Subtype     string      `json:"subtype,omitempty"`
	User        string      `json:"user,omitempty"`
	BotID       string      `json:"bot_id,omitempty"`
	Channel     string      `json:"channel,omitempty"`
	ChannelType string      `json:"channel_type,omitempty"`
	Text        string      `json:"text,omitempty"`
	TS          string      `json:"ts,omitempty"`
	ThreadTS    string      `json:"thread_ts,omitempty"`
	Files       []EventFile `json:"files,omitempty"`
}

// EventFile is an attachment reference on a message event.
type EventFile struct {
	Name  string `json:"name,omitempty"`
	Title string `json:"title,omitempty"`
}

// IsUserMessage reports whether the event is a message authored by a human
// user, filtering out this system's own outbound replies and other bot
// traffic by actor kind.
func (e MessageEvent) IsUserMessage() bool {
	if e.Type != "message" {
		return false
	}
	if strings.TrimSpace(e.BotID) != "" || e.Subtype == "bot_message" {
		return false
	}
	return true
}
