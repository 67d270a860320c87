package graph

import (
	"context"
	"fmt"
	"net/url"

	"mailbridge/utils"
)

// messageSelectFields is the projection every message fetch asks for.
var messageSelectFields = []string{
	"id", "subject", "from", "sender", "toRecipients", "ccRecipients",
	"bccRecipients", "body", "conversationId", "isRead", "hasAttachments",
	"receivedDateTime",
}

// DefaultMessageQuery returns the query for one collection page.
func DefaultMessageQuery(top, skip int, withCount bool) MessageQuery {
	return MessageQuery{
		Top:    top,
		Skip:   skip,
		Select: messageSelectFields,
		Expand: []string{"attachments($select=id,name,contentType,size,isInline)"},
		Count:  withCount,
	}
}

// MessagePage is one page of a folder's messages. TotalCount is -1
// unless the query asked for a count.
type MessagePage struct {
	Messages   []Message
	TotalCount int
}

// ListMessages fetches one page of a folder's messages.
func (c *Client) ListMessages(ctx context.Context, folderID string, q MessageQuery) (*MessagePage, error) {
	path := c.userPath + "/mailFolders/" + url.PathEscape(folderID) + "/messages"
	var out collection[Message]
	if err := c.get(ctx, path, q.values(), &out); err != nil {
		return nil, err
	}
	if out.Value == nil {
		return nil, utils.NewGraphResponseError(fmt.Sprintf("message listing %s returned no value array", path))
	}
	page := &MessagePage{Messages: *out.Value, TotalCount: -1}
	if out.Count != nil {
		page.TotalCount = *out.Count
	}
	return page, nil
}

// GetMessage fetches a single message by ID.
func (c *Client) GetMessage(ctx context.Context, messageID string) (*Message, error) {
	path := c.userPath + "/messages/" + url.PathEscape(messageID)
	q := url.Values{}
	q.Set("$expand", "attachments($select=id,name,contentType,size,isInline)")
	var out Message
	if err := c.get(ctx, path, q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
