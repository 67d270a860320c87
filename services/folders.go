// Package services implements the ingestion pipeline: folder
// directory, paged collection, ID translation, recursive orchestration
// and selective persistence.
package services

import (
	"context"

	log "github.com/sirupsen/logrus"

	"mailbridge/models"
	"mailbridge/retry"
	"mailbridge/utils"
)

// FolderClient is the folder surface of the Graph client.
type FolderClient interface {
	ListRootFolders(ctx context.Context) ([]models.Folder, error)
	ListChildFolders(ctx context.Context, folderID string) ([]models.Folder, error)
	GetFolder(ctx context.Context, folderID string) (models.Folder, error)
}

// FolderService resolves mailbox folders with retries.
type FolderService struct {
	client FolderClient
	retry  *retry.Service
	log    *log.Entry
}

// NewFolderService builds a folder directory over the Graph client.
func NewFolderService(client FolderClient, retrySvc *retry.Service, logger *log.Entry) *FolderService {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &FolderService{client: client, retry: retrySvc, log: logger}
}

// GetRootFolders lists the mailbox's top-level folders.
func (s *FolderService) GetRootFolders(ctx context.Context) ([]models.Folder, error) {
	return retry.Do(ctx, s.retry, retry.Context[[]models.Folder]{
		ErrorMsg: "list root folders",
		Op: func(ctx context.Context) ([]models.Folder, error) {
			return s.client.ListRootFolders(ctx)
		},
		Wrap: func(err error) error {
			return wrapFolderErr("", "listing root folders", err)
		},
	})
}

// GetChildFolders lists a folder's direct children.
func (s *FolderService) GetChildFolders(ctx context.Context, folderID string) ([]models.Folder, error) {
	return retry.Do(ctx, s.retry, retry.Context[[]models.Folder]{
		ErrorMsg: "list child folders",
		Op: func(ctx context.Context) ([]models.Folder, error) {
			return s.client.ListChildFolders(ctx, folderID)
		},
		Wrap: func(err error) error {
			return wrapFolderErr(folderID, "listing child folders", err)
		},
	})
}

// GetFolder fetches one folder by ID.
func (s *FolderService) GetFolder(ctx context.Context, folderID string) (models.Folder, error) {
	return retry.Do(ctx, s.retry, retry.Context[models.Folder]{
		ErrorMsg: "get folder",
		Op: func(ctx context.Context) (models.Folder, error) {
			return s.client.GetFolder(ctx, folderID)
		},
		Wrap: func(err error) error {
			return wrapFolderErr(folderID, "fetching folder", err)
		},
	})
}

// wrapFolderErr keeps API errors intact so abort classification still
// sees them, and wraps everything else as a folder failure.
func wrapFolderErr(folderID, message string, err error) error {
	if utils.IsKind(err, utils.KindAPI) {
		return err
	}
	return utils.NewFolderError(folderID, message, err)
}
