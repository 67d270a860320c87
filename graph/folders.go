package graph

import (
	"context"
	"fmt"
	"net/url"

	"mailbridge/models"
	"mailbridge/utils"
)

func (f mailFolder) toModel() models.Folder {
	return models.Folder{
		ID:               f.ID,
		DisplayName:      f.DisplayName,
		ParentFolderID:   f.ParentFolderID,
		ChildFolderCount: f.ChildFolderCount,
		TotalItemCount:   f.TotalItemCount,
		UnreadItemCount:  f.UnreadItemCount,
		IsHidden:         f.IsHidden,
	}
}

// ListRootFolders returns the mailbox's top-level folders, hidden ones
// included.
func (c *Client) ListRootFolders(ctx context.Context) ([]models.Folder, error) {
	return c.listFolders(ctx, c.userPath+"/mailFolders")
}

// ListChildFolders returns the direct children of a folder.
func (c *Client) ListChildFolders(ctx context.Context, folderID string) ([]models.Folder, error) {
	return c.listFolders(ctx, c.userPath+"/mailFolders/"+url.PathEscape(folderID)+"/childFolders")
}

func (c *Client) listFolders(ctx context.Context, path string) ([]models.Folder, error) {
	query := url.Values{}
	query.Set("includeHiddenFolders", "true")
	query.Set("$top", "100")

	var out collection[mailFolder]
	if err := c.get(ctx, path, query, &out); err != nil {
		return nil, err
	}
	if out.Value == nil {
		return nil, utils.NewGraphResponseError(fmt.Sprintf("folder listing %s returned no value array", path))
	}
	folders := make([]models.Folder, 0, len(*out.Value))
	for _, f := range *out.Value {
		folders = append(folders, f.toModel())
	}
	return folders, nil
}

// GetFolder fetches a single folder by ID.
func (c *Client) GetFolder(ctx context.Context, folderID string) (models.Folder, error) {
	var out mailFolder
	path := c.userPath + "/mailFolders/" + url.PathEscape(folderID)
	if err := c.get(ctx, path, nil, &out); err != nil {
		return models.Folder{}, err
	}
	if out.ID == "" {
		return models.Folder{}, utils.NewGraphResponseError(fmt.Sprintf("folder %s response missing id", folderID))
	}
	return out.toModel(), nil
}
