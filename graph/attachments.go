package graph

import (
	"context"
	"fmt"
	"net/url"

	"mailbridge/utils"
)

// ListAttachments returns the attachment metadata of a message.
func (c *Client) ListAttachments(ctx context.Context, messageID string) ([]Attachment, error) {
	path := c.userPath + "/messages/" + url.PathEscape(messageID) + "/attachments"
	q := url.Values{}
	q.Set("$select", "id,name,contentType,size,isInline")
	var out collection[Attachment]
	if err := c.get(ctx, path, q, &out); err != nil {
		return nil, err
	}
	if out.Value == nil {
		return nil, utils.NewGraphResponseError(fmt.Sprintf("attachment listing for %s returned no value array", messageID))
	}
	return *out.Value, nil
}

// GetAttachment fetches one attachment including its base64 content.
func (c *Client) GetAttachment(ctx context.Context, messageID, attachmentID string) (*Attachment, error) {
	path := c.userPath + "/messages/" + url.PathEscape(messageID) +
		"/attachments/" + url.PathEscape(attachmentID)
	var out Attachment
	if err := c.get(ctx, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetAttachmentContent fetches an attachment's raw bytes via $value.
func (c *Client) GetAttachmentContent(ctx context.Context, messageID, attachmentID string) ([]byte, error) {
	path := c.userPath + "/messages/" + url.PathEscape(messageID) +
		"/attachments/" + url.PathEscape(attachmentID) + "/$value"
	return c.getRaw(ctx, path)
}
