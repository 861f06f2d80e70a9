// Package dto contains the queue-event payloads exchanged over the transport
package dto

// Queue event actions. The action field is the discriminator of the tagged
// union; unknown actions are a configuration error, not a crash.
const (
	ActionActivate      = "activate"
	ActionInboundText   = "inbound-text"
	ActionInboundStatus = "inbound-status"
	ActionAnnounce      = "announce"
	ActionPage          = "page"
	ActionLoginCode     = "login-code"
	ActionTranscription = "transcription-complete"
)

// Envelope is decoded first to pick the concrete payload type
type Envelope struct {
	Action string `json:"action" validate:"required"`
	ID     string `json:"id,omitempty"`
}

// ActivateEvent marks a member active in one department and welcomes them
type ActivateEvent struct {
	Action     string `json:"action"`
	ID         string `json:"id,omitempty"`
	Phone      string `json:"phone" validate:"required,min=10"`
	Department string `json:"department" validate:"required"`
}

// InboundTextEvent is the raw provider payload for a text received on one of
// the configured numbers
type InboundTextEvent struct {
	Action    string   `json:"action"`
	ID        string   `json:"id,omitempty"`
	From      string   `json:"from" validate:"required"`
	To        string   `json:"to" validate:"required"`
	Body      string   `json:"body"`
	MediaURLs []string `json:"media_urls,omitempty"`
}

// InboundStatusEvent is a delivery-status callback relayed from the provider
type InboundStatusEvent struct {
	Action     string `json:"action"`
	ID         string `json:"id,omitempty"`
	MessageKey int64  `json:"message_key" validate:"required"`
	Status     string `json:"status" validate:"required"`
	To         string `json:"to" validate:"required"`
	From       string `json:"from"`
}

// AnnounceEvent is an API-originated administrative announcement
type AnnounceEvent struct {
	Action     string  `json:"action"`
	ID         string  `json:"id,omitempty"`
	Sender     string  `json:"sender" validate:"required"`
	Body       string  `json:"body" validate:"required"`
	Department *string `json:"department,omitempty"`
	Talkgroup  *int64  `json:"talkgroup,omitempty"`
	Test       bool    `json:"test"`
}

// PageEvent is an inbound radio page captured by the monitoring hardware
type PageEvent struct {
	Action    string  `json:"action"`
	ID        string  `json:"id,omitempty"`
	FileKey   string  `json:"file_key" validate:"required"`
	Talkgroup int64   `json:"talkgroup" validate:"required"`
	Duration  float64 `json:"duration,omitempty"`
	Test      bool    `json:"test"`
}

// LoginCodeEvent asks for a one-time login code text
type LoginCodeEvent struct {
	Action string `json:"action"`
	ID     string `json:"id,omitempty"`
	Phone  string `json:"phone" validate:"required,min=10"`
}

// TranscriptionEvent signals a finished transcription job. Tags carry the
// file key and talkgroup the job was started with.
type TranscriptionEvent struct {
	Action     string            `json:"action"`
	ID         string            `json:"id,omitempty"`
	JobID      string            `json:"job_id" validate:"required"`
	Transcript string            `json:"transcript"`
	Tags       map[string]string `json:"tags,omitempty"`
}

// NewInboundStatusEvent builds a status event ready for publishing
func NewInboundStatusEvent(id string, key int64, status, to, from string) InboundStatusEvent {
	return InboundStatusEvent{
		Action:     ActionInboundStatus,
		ID:         id,
		MessageKey: key,
		Status:     status,
		To:         to,
		From:       from,
	}
}
