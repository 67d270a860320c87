package storage

import (
	"strings"

	"mailbridge/models"
)

// ToEmailRecord maps a collected email onto an emails row with the
// attribution from the ingest request. The caller must only pass
// emails whose immutable message ID is set; the unique constraint on
// graph_message_id is what makes duplicate detection work.
func ToEmailRecord(email models.Email, req models.IngestRequest) *EmailRecord {
	return &EmailRecord{
		RefType:             req.RefType,
		RefID:               req.RefID,
		FromAddr:            email.Sender,
		ToAddr:              strings.Join(email.Receivers, "; "),
		CcAddr:              strings.Join(email.CC, "; "),
		BccAddr:             strings.Join(email.BCC, "; "),
		Subject:             email.Subject,
		Body:                email.Body,
		EmailDate:           email.ReceivedDate,
		GraphMessageID:      email.MessageID,
		GraphSourceID:       email.SourceID,
		GraphConversationID: email.ConversationID,
		IsRead:              email.IsRead,
		HasAttachments:      email.HasAttachments,
		CreatedBy:           req.CreatedBy,
	}
}

// RecipientRecords expands an email's three recipient lists into rows
// bound to an already-saved email ID.
func RecipientRecords(email models.Email, emailID, createdBy int64) []RecipientRecord {
	var records []RecipientRecord
	appendAll := func(names []string, t RecipientType) {
		for _, name := range names {
			if name == "" {
				continue
			}
			records = append(records, RecipientRecord{
				EmailID:   emailID,
				Type:      t,
				Name:      name,
				CreatedBy: createdBy,
			})
		}
	}
	appendAll(email.Receivers, RecipientTo)
	appendAll(email.CC, RecipientCc)
	appendAll(email.BCC, RecipientBcc)
	return records
}
