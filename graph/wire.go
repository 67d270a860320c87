package graph

import (
	"time"
)

// collection is the Graph OData collection envelope. Value is a
// pointer so a structurally broken response (envelope present, value
// array missing) is distinguishable from an empty folder.
type collection[T any] struct {
	Count    *int   `json:"@odata.count"`
	NextLink string `json:"@odata.nextLink"`
	Value    *[]T   `json:"value"`
}

// EmailAddress is the inner address object of a Graph recipient.
type EmailAddress struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// Recipient is a Graph recipient wrapper.
type Recipient struct {
	EmailAddress EmailAddress `json:"emailAddress"`
}

// ItemBody is a Graph message body.
type ItemBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

// Message is the Graph wire shape of a mail message. The ID field holds
// whatever ID type the request preferred; the pipeline fetches volatile
// IDs and translates them separately.
type Message struct {
	ID               string       `json:"id"`
	Subject          string       `json:"subject"`
	From             *Recipient   `json:"from"`
	Sender           *Recipient   `json:"sender"`
	ToRecipients     []Recipient  `json:"toRecipients"`
	CcRecipients     []Recipient  `json:"ccRecipients"`
	BccRecipients    []Recipient  `json:"bccRecipients"`
	Body             *ItemBody    `json:"body"`
	BodyPreview      string       `json:"bodyPreview"`
	ConversationID   string       `json:"conversationId"`
	IsRead           bool         `json:"isRead"`
	HasAttachments   bool         `json:"hasAttachments"`
	ReceivedDateTime time.Time    `json:"receivedDateTime"`
	Attachments      []Attachment `json:"attachments"`
}

// Attachment is the Graph wire shape of a message attachment. The OData
// type discriminates file, item and reference attachments.
type Attachment struct {
	ODataType    string `json:"@odata.type"`
	ID           string `json:"id"`
	Name         string `json:"name"`
	ContentType  string `json:"contentType"`
	Size         int    `json:"size"`
	IsInline     bool   `json:"isInline"`
	ContentBytes string `json:"contentBytes,omitempty"`
}

const fileAttachmentType = "#microsoft.graph.fileAttachment"

// mailFolder is the Graph wire shape of a mail folder.
type mailFolder struct {
	ID               string `json:"id"`
	DisplayName      string `json:"displayName"`
	ParentFolderID   string `json:"parentFolderId"`
	ChildFolderCount int    `json:"childFolderCount"`
	TotalItemCount   int    `json:"totalItemCount"`
	UnreadItemCount  int    `json:"unreadItemCount"`
	IsHidden         bool   `json:"isHidden"`
}
