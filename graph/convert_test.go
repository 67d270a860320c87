package graph

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestToEmailDefaults(t *testing.T) {
	m := Message{ID: "src-1"}
	email := m.ToEmailWithoutID()

	assert.Equal(t, "No Subject", email.Subject)
	assert.Equal(t, "Unknown", email.Sender)
	assert.Empty(t, email.MessageID)
	assert.Equal(t, "src-1", email.SourceID)
}

func TestToEmailFullMessage(t *testing.T) {
	received := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	m := Message{
		ID:      "src-2",
		Subject: "quarterly numbers",
		From: &Recipient{EmailAddress: EmailAddress{
			Name: "Ada Lovelace", Address: "ada@example.com",
		}},
		ToRecipients: []Recipient{
			{EmailAddress: EmailAddress{Name: "Grace Hopper"}},
			{EmailAddress: EmailAddress{Address: "noreply@example.com"}},
		},
		CcRecipients:     []Recipient{{EmailAddress: EmailAddress{Name: "Alan Turing"}}},
		Body:             &ItemBody{ContentType: "html", Content: "<p>see attached</p>"},
		ConversationID:   "conv-1",
		IsRead:           true,
		HasAttachments:   true,
		ReceivedDateTime: received,
		Attachments: []Attachment{
			{ODataType: fileAttachmentType, ID: "a1", ContentType: "application/pdf"},
			{ODataType: fileAttachmentType, ID: "a2", ContentType: "application/pdf"},
			{ODataType: "#microsoft.graph.itemAttachment", ID: "a3", ContentType: "message/rfc822"},
		},
	}

	email := m.ToEmail("imm-2")
	assert.Equal(t, "quarterly numbers", email.Subject)
	assert.Equal(t, "Ada Lovelace", email.Sender)
	assert.Equal(t, []string{"Grace Hopper", "noreply@example.com"}, email.Receivers)
	assert.Equal(t, []string{"Alan Turing"}, email.CC)
	assert.Equal(t, "imm-2", email.MessageID)
	assert.Equal(t, received, email.ReceivedDate)
	assert.True(t, email.HasAttachments)
	// Item attachments do not count; duplicate content types collapse.
	assert.Equal(t, 2, email.AttachmentCount)
	assert.Equal(t, []string{"application/pdf"}, email.AttachmentTypes)
}

func TestToEmailSenderFallsBackToAddress(t *testing.T) {
	m := Message{
		ID:     "src-3",
		Sender: &Recipient{EmailAddress: EmailAddress{Address: "bot@example.com"}},
	}
	assert.Equal(t, "bot@example.com", m.ToEmailWithoutID().Sender)
}

func TestToEmailInlineImagesCountAsAttachments(t *testing.T) {
	m := Message{
		ID:   "src-4",
		Body: &ItemBody{Content: `<html><body><img src="cid:logo123"></body></html>`},
	}
	assert.True(t, m.ToEmailWithoutID().HasAttachments)

	plain := Message{
		ID:   "src-5",
		Body: &ItemBody{Content: "<p>no images here</p>"},
	}
	assert.False(t, plain.ToEmailWithoutID().HasAttachments)
}

func TestToEmailInlineFlagOnAttachment(t *testing.T) {
	m := Message{
		ID: "src-6",
		Attachments: []Attachment{
			{ODataType: fileAttachmentType, ID: "a1", IsInline: true, ContentType: "image/png"},
		},
	}
	email := m.ToEmailWithoutID()
	assert.True(t, email.HasAttachments)
	assert.Equal(t, 1, email.AttachmentCount)
}
