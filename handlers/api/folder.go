package api

import (
	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"

	"mailbridge/services"
)

// FolderHandler serves the mailbox folder directory.
type FolderHandler struct {
	folders *services.FolderService
	log     *log.Entry
}

// NewFolderHandler creates a folder handler.
func NewFolderHandler(folders *services.FolderService, logger *log.Entry) *FolderHandler {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &FolderHandler{folders: folders, log: logger}
}

// ListRootFolders handles GET /api/folders.
func (h *FolderHandler) ListRootFolders(c *fiber.Ctx) error {
	folders, err := h.folders.GetRootFolders(c.UserContext())
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(fiber.Map{"folders": folders})
}

// GetFolder handles GET /api/folders/:id.
func (h *FolderHandler) GetFolder(c *fiber.Ctx) error {
	folderID := c.Params("id")
	if folderID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "folder id is required",
		})
	}
	folder, err := h.folders.GetFolder(c.UserContext(), folderID)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(folder)
}

// ListChildFolders handles GET /api/folders/:id/children.
func (h *FolderHandler) ListChildFolders(c *fiber.Ctx) error {
	folderID := c.Params("id")
	if folderID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "folder id is required",
		})
	}
	children, err := h.folders.GetChildFolders(c.UserContext(), folderID)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(fiber.Map{"folders": children})
}
