package storage

import "time"

// EmailRecord is one row of the emails table, ready to insert.
type EmailRecord struct {
	EmailID             int64
	RefType             string
	RefID               int64
	FromAddr            string
	ToAddr              string
	CcAddr              string
	BccAddr             string
	Subject             string
	Body                string
	EmailDate           time.Time
	GraphMessageID      string
	GraphSourceID       string
	GraphConversationID string
	IsRead              bool
	HasAttachments      bool
	CreatedBy           int64
}

// RecipientType distinguishes the three recipient lists of an email.
type RecipientType string

const (
	RecipientTo  RecipientType = "TO"
	RecipientCc  RecipientType = "CC"
	RecipientBcc RecipientType = "BCC"
)

// RecipientRecord is one row of the email_recipients table.
type RecipientRecord struct {
	EmailID   int64
	Type      RecipientType
	Name      string
	CreatedBy int64
}
