package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"mailbridge/graph"
	"mailbridge/models"
	"mailbridge/retry"
	"mailbridge/utils"
)

// AttachmentClient is the attachment surface of the Graph client.
type AttachmentClient interface {
	ListAttachments(ctx context.Context, messageID string) ([]graph.Attachment, error)
	GetAttachment(ctx context.Context, messageID, attachmentID string) (*graph.Attachment, error)
	GetAttachmentContent(ctx context.Context, messageID, attachmentID string) ([]byte, error)
}

// AttachmentService lists and downloads message attachments. Downloads
// land in a configured directory under a collision-free name.
type AttachmentService struct {
	client AttachmentClient
	retry  *retry.Service
	dir    string
	log    *log.Entry
}

// NewAttachmentService builds the attachment service. The retry
// service should use the fast profile.
func NewAttachmentService(client AttachmentClient, retrySvc *retry.Service, dir string, logger *log.Entry) *AttachmentService {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &AttachmentService{client: client, retry: retrySvc, dir: dir, log: logger}
}

// ListAttachments returns a message's attachment metadata.
func (s *AttachmentService) ListAttachments(ctx context.Context, messageID string) ([]models.AttachmentInfo, error) {
	attachments, err := retry.Do(ctx, s.retry, retry.Context[[]graph.Attachment]{
		ErrorMsg: fmt.Sprintf("list attachments of %s", messageID),
		Op: func(ctx context.Context) ([]graph.Attachment, error) {
			return s.client.ListAttachments(ctx, messageID)
		},
		Wrap: func(err error) error {
			if utils.IsKind(err, utils.KindAPI) {
				return err
			}
			return utils.NewAttachmentError(messageID, "listing attachments", err)
		},
	})
	if err != nil {
		return nil, err
	}
	infos := make([]models.AttachmentInfo, 0, len(attachments))
	for _, a := range attachments {
		infos = append(infos, models.AttachmentInfo{
			ID:          a.ID,
			Name:        a.Name,
			ContentType: a.ContentType,
			Size:        a.Size,
			IsInline:    a.IsInline,
		})
	}
	return infos, nil
}

// DownloadAttachment fetches an attachment's bytes and writes them to
// the attachment directory. It returns the path of the written file.
func (s *AttachmentService) DownloadAttachment(ctx context.Context, messageID, attachmentID string) (string, error) {
	meta, err := retry.Do(ctx, s.retry, retry.Context[*graph.Attachment]{
		ErrorMsg: fmt.Sprintf("fetch attachment %s", attachmentID),
		Op: func(ctx context.Context) (*graph.Attachment, error) {
			return s.client.GetAttachment(ctx, messageID, attachmentID)
		},
		Wrap: func(err error) error {
			if utils.IsKind(err, utils.KindAPI) {
				return err
			}
			return utils.NewAttachmentError(messageID, "fetching attachment metadata", err)
		},
	})
	if err != nil {
		return "", err
	}

	content, err := retry.Do(ctx, s.retry, retry.Context[[]byte]{
		ErrorMsg: fmt.Sprintf("download attachment %s", attachmentID),
		Op: func(ctx context.Context) ([]byte, error) {
			return s.client.GetAttachmentContent(ctx, messageID, attachmentID)
		},
		Wrap: func(err error) error {
			if utils.IsKind(err, utils.KindAPI) {
				return err
			}
			return utils.NewAttachmentError(messageID, "downloading attachment content", err)
		},
	})
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", utils.NewAttachmentError(messageID, "creating attachment directory", err)
	}
	path := filepath.Join(s.dir, uuid.NewString()+"_"+safeFileName(meta.Name))
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", utils.NewAttachmentError(messageID, "writing attachment file", err)
	}
	s.log.WithFields(log.Fields{
		"message_id": messageID,
		"name":       meta.Name,
		"size":       len(content),
	}).Info("attachment downloaded")
	return path, nil
}

// safeFileName strips path separators and traversal sequences from an
// attachment name supplied by the mailbox.
func safeFileName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == ".." || name == "/" || name == "" {
		return "attachment"
	}
	return name
}
