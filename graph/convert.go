package graph

import (
	"strings"

	"mailbridge/models"
	"mailbridge/utils"
)

// ToEmail converts a wire message into the domain email, stamping the
// already-translated immutable ID. Pass an empty string when the
// translation for this message failed; the email stays usable and is
// simply not persistable until translated.
func (m Message) ToEmail(immutableID string) models.Email {
	email := models.Email{
		Subject:        m.Subject,
		Receivers:      recipientNames(m.ToRecipients),
		CC:             recipientNames(m.CcRecipients),
		BCC:            recipientNames(m.BccRecipients),
		ConversationID: m.ConversationID,
		IsRead:         m.IsRead,
		ReceivedDate:   m.ReceivedDateTime,
		MessageID:      immutableID,
		SourceID:       m.ID,
	}
	if email.Subject == "" {
		email.Subject = "No Subject"
	}
	email.Sender = senderAddress(m)
	if m.Body != nil {
		email.Body = m.Body.Content
	}
	email.HasAttachments = m.hasRealAttachments()
	for _, a := range m.Attachments {
		if a.ODataType != fileAttachmentType {
			continue
		}
		email.AttachmentCount++
		if a.ContentType != "" {
			email.AttachmentTypes = appendUnique(email.AttachmentTypes, a.ContentType)
		}
	}
	return email
}

// ToEmailWithoutID converts a wire message that has not been through ID
// translation yet.
func (m Message) ToEmailWithoutID() models.Email {
	return m.ToEmail("")
}

// hasRealAttachments works around Graph's hasAttachments flag being
// false for messages whose only attachments are inline images.
func (m Message) hasRealAttachments() bool {
	if m.HasAttachments {
		return true
	}
	for _, a := range m.Attachments {
		if a.IsInline {
			return true
		}
	}
	if m.Body != nil && m.Body.Content != "" {
		return utils.HasInlineAttachments(m.Body.Content)
	}
	return false
}

func senderAddress(m Message) string {
	for _, r := range []*Recipient{m.From, m.Sender} {
		if r == nil {
			continue
		}
		if name := strings.TrimSpace(r.EmailAddress.Name); name != "" {
			return name
		}
		if addr := strings.TrimSpace(r.EmailAddress.Address); addr != "" {
			return addr
		}
	}
	return "Unknown"
}

func recipientNames(recipients []Recipient) []string {
	names := make([]string, 0, len(recipients))
	for _, r := range recipients {
		name := strings.TrimSpace(r.EmailAddress.Name)
		if name == "" {
			name = strings.TrimSpace(r.EmailAddress.Address)
		}
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
