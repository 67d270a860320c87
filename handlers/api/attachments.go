package api

import (
	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"

	"mailbridge/services"
)

// AttachmentHandler serves message attachment metadata and downloads.
type AttachmentHandler struct {
	attachments *services.AttachmentService
	log         *log.Entry
}

// NewAttachmentHandler creates an attachment handler.
func NewAttachmentHandler(attachments *services.AttachmentService, logger *log.Entry) *AttachmentHandler {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &AttachmentHandler{attachments: attachments, log: logger}
}

// ListAttachments handles GET /api/messages/:id/attachments.
func (h *AttachmentHandler) ListAttachments(c *fiber.Ctx) error {
	messageID := c.Params("id")
	if messageID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "message id is required",
		})
	}
	infos, err := h.attachments.ListAttachments(c.UserContext(), messageID)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(fiber.Map{"attachments": infos})
}

// DownloadAttachment handles GET /api/messages/:id/attachments/:attachmentId/download.
func (h *AttachmentHandler) DownloadAttachment(c *fiber.Ctx) error {
	messageID := c.Params("id")
	attachmentID := c.Params("attachmentId")
	if messageID == "" || attachmentID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "message id and attachment id are required",
		})
	}
	path, err := h.attachments.DownloadAttachment(c.UserContext(), messageID, attachmentID)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.Download(path)
}
