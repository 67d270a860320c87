package api

import (
	"bufio"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"

	"mailbridge/models"
	"mailbridge/services"
)

// EmailHandler serves folder browsing and the two persistence flows:
// the streaming recursive ingestion and the selective persist.
type EmailHandler struct {
	paginated     *services.PaginatedEmailService
	recursive     *services.RecursiveEmailService
	selection     *services.SelectEmailService
	notifications *NotificationHandler
	log           *log.Entry
}

// NewEmailHandler creates the email handler.
func NewEmailHandler(paginated *services.PaginatedEmailService, recursive *services.RecursiveEmailService, selection *services.SelectEmailService, notifications *NotificationHandler, logger *log.Entry) *EmailHandler {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &EmailHandler{
		paginated:     paginated,
		recursive:     recursive,
		selection:     selection,
		notifications: notifications,
		log:           logger,
	}
}

// GetEmailsPage handles GET /api/folders/:id/emails.
func (h *EmailHandler) GetEmailsPage(c *fiber.Ctx) error {
	folderID := c.Params("id")
	if folderID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "folder id is required",
		})
	}
	page := queryInt(c, "page", 0)
	perPage := queryInt(c, "per_page", 0)
	subject := c.Query("subject")

	result, err := h.paginated.GetEmailsPage(c.UserContext(), folderID, page, perPage, subject)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(result)
}

// IngestRecursive handles POST /api/folders/:id/emails/recursive. The
// response is an SSE stream of status events ending with either the
// persistence summary or an error event; the stream never just drops
// without a final event.
func (h *EmailHandler) IngestRecursive(c *fiber.Ctx) error {
	folderID := c.Params("id")
	if folderID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "folder id is required",
		})
	}
	var req models.IngestRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	setSSEHeaders(c)
	ctx := c.Context()
	ctx.SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		for event := range h.recursive.GetAllEmailsRecursively(ctx, folderID, req) {
			switch event.Kind {
			case services.StreamStatus:
				h.notifications.Broadcast(event.Status)
				if err := writeSSE(w, event.Status); err != nil {
					h.log.WithField("folder_id", folderID).
						WithError(err).Warn("SSE client gone, abandoning stream")
					return
				}
			case services.StreamError:
				final := models.StatusEvent{
					Status:   models.StatusError,
					Message:  event.Err.Error(),
					FolderID: folderID,
				}
				h.notifications.Broadcast(final)
				writeSSE(w, final)
				return
			}
		}
	}))
	return nil
}

// PersistSelection handles POST /api/folders/:id/emails/select.
func (h *EmailHandler) PersistSelection(c *fiber.Ctx) error {
	folderID := c.Params("id")
	if folderID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "folder id is required",
		})
	}
	var sel models.EmailSelection
	if err := c.BodyParser(&sel); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}
	if err := sel.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	summary, err := h.selection.PersistSelection(c.UserContext(), folderID, sel)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(models.StatusEvent{
		Status:   models.StatusPersistenceComplete,
		Message:  "selection persisted",
		FolderID: folderID,
		Data:     summary,
	})
}
