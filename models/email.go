package models

import (
	"time"
)

// Email is an immutable snapshot of a single Microsoft Graph message.
// SourceID is the volatile, folder-scoped identifier returned by the
// listing call; MessageID is the immutable identifier and stays empty
// until ID translation has run for this message.
type Email struct {
	Subject         string    `json:"subject"`
	Sender          string    `json:"sender"`
	Receivers       []string  `json:"receivers"`
	CC              []string  `json:"cc"`
	BCC             []string  `json:"bcc"`
	Body            string    `json:"body"`
	ConversationID  string    `json:"conversation_id,omitempty"`
	IsRead          bool      `json:"is_read"`
	HasAttachments  bool      `json:"has_attachments"`
	ReceivedDate    time.Time `json:"received_date"`
	MessageID       string    `json:"message_id,omitempty"`
	SourceID        string    `json:"source_id"`
	AttachmentTypes []string  `json:"attachment_types,omitempty"`
	AttachmentCount int       `json:"attachment_count"`
}

// AttachmentInfo describes one attachment of a message, without its content.
type AttachmentInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
	IsInline    bool   `json:"is_inline"`
}
