package models

// Folder is a read-only mirror of a Graph mailFolder. Folder IDs are
// globally unique and never need ID translation.
type Folder struct {
	ID               string `json:"id"`
	DisplayName      string `json:"display_name"`
	ParentFolderID   string `json:"parent_folder_id,omitempty"`
	ChildFolderCount int    `json:"child_folder_count"`
	TotalItemCount   int    `json:"total_item_count"`
	UnreadItemCount  int    `json:"unread_item_count"`
	IsHidden         bool   `json:"is_hidden"`
}
