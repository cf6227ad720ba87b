package dto

type DriveFolderResponse struct {
	Id          string `json:"id"`
	Name        string `json:"name"`
	WebViewLink string `json:"webViewLink,omitempty"`
}

type SyncedFolderResponse struct {
	Id   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

type DriveSyncRequest struct {
	FolderIds []string `json:"folder_ids" validate:"required,min=1"`
}

type DriveSyncResponse struct {
	Status        string `json:"status"`
	FoldersQueued int    `json:"folders_queued"`
}

type DriveUnsyncRequest struct {
	FolderIds []string `json:"folder_ids" validate:"required,min=1"`
}

type DriveUnsyncResponse struct {
	Status           string `json:"status"`
	MaterialsRemoved int    `json:"materials_removed"`
}
