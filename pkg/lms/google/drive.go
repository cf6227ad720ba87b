package google

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/Voldemort0731/fiwb-mvp/internal/pkg/logger"
	"github.com/Voldemort0731/fiwb-mvp/pkg/lms"
	"github.com/Voldemort0731/fiwb-mvp/pkg/textextract"
)

const folderMimeType = "application/vnd.google-apps.folder"

// syncableMimeTypes limits folder ingestion to content we can extract or at
// least meaningfully reference.
var syncableMimeTypes = []string{
	"application/pdf", "text/plain",
	"application/vnd.google-apps.document",
	"application/vnd.google-apps.spreadsheet",
	"application/vnd.google-apps.presentation",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation",
	"text/html", "text/csv", "text/markdown",
}

type driveClient struct {
	http      *http.Client
	extractor *textextract.Extractor
	logger    logger.ILogger
}

type driveFileList struct {
	NextPageToken string `json:"nextPageToken"`
	Files         []struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		MimeType    string `json:"mimeType"`
		WebViewLink string `json:"webViewLink"`
	} `json:"files"`
}

func (c *driveClient) list(ctx context.Context, query url.Values) (*driveFileList, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, driveBaseURL+"/files?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("drive list returned %d: %s", resp.StatusCode, string(body))
	}

	var payload driveFileList
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (c *driveClient) GetFileMetadata(ctx context.Context, fileID string) (*lms.DriveFileMeta, error) {
	u := fmt.Sprintf("%s/files/%s?fields=id,name,mimeType,webViewLink", driveBaseURL, url.PathEscape(fileID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("drive metadata for %s returned %d: %s", fileID, resp.StatusCode, string(body))
	}

	var meta struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		MimeType    string `json:"mimeType"`
		WebViewLink string `json:"webViewLink"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return nil, err
	}
	return &lms.DriveFileMeta{
		ID:          meta.ID,
		Name:        meta.Name,
		MimeType:    meta.MimeType,
		WebViewLink: meta.WebViewLink,
	}, nil
}

// GetFileContent downloads and extracts plain text. Native Google formats are
// exported, everything else is downloaded as-is. An unextractable file yields
// an empty string, not an error.
func (c *driveClient) GetFileContent(ctx context.Context, meta lms.DriveFileMeta) (string, error) {
	var u string
	if strings.Contains(meta.MimeType, "google-apps") {
		target := "text/csv"
		if strings.Contains(meta.MimeType, "document") || strings.Contains(meta.MimeType, "presentation") {
			target = "text/plain"
		}
		u = fmt.Sprintf("%s/files/%s/export?mimeType=%s", driveBaseURL, url.PathEscape(meta.ID), url.QueryEscape(target))
	} else {
		u = fmt.Sprintf("%s/files/%s?alt=media", driveBaseURL, url.PathEscape(meta.ID))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("lms", "drive download failed", map[string]interface{}{
			"file_id": meta.ID,
			"status":  resp.StatusCode,
		})
		return "", nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	if meta.MimeType == "application/pdf" {
		return c.extractor.Extract(ctx, meta.Name+".pdf", data)
	}
	return string(data), nil
}

func (c *driveClient) ListRootFolders(ctx context.Context) ([]lms.DriveFileMeta, error) {
	query := url.Values{
		"q":        {fmt.Sprintf("mimeType = '%s' and 'root' in parents and trashed = false", folderMimeType)},
		"fields":   {"files(id, name, webViewLink)"},
		"pageSize": {"50"},
	}
	payload, err := c.list(ctx, query)
	if err != nil {
		return nil, err
	}

	folders := make([]lms.DriveFileMeta, 0, len(payload.Files))
	for _, f := range payload.Files {
		folders = append(folders, lms.DriveFileMeta{
			ID:          f.ID,
			Name:        f.Name,
			MimeType:    folderMimeType,
			WebViewLink: f.WebViewLink,
		})
	}
	return folders, nil
}

// ListFilesRecursive walks a folder tree breadth-first and returns the
// syncable files it contains.
func (c *driveClient) ListFilesRecursive(ctx context.Context, folderID string) ([]lms.DriveFileMeta, error) {
	var mimeClauses []string
	for _, mt := range syncableMimeTypes {
		mimeClauses = append(mimeClauses, fmt.Sprintf("mimeType = '%s'", mt))
	}
	mimeQuery := strings.Join(mimeClauses, " or ")

	var allFiles []lms.DriveFileMeta
	pending := []string{folderID}
	visited := map[string]bool{}

	for len(pending) > 0 {
		current := pending[0]
		pending = pending[1:]
		if visited[current] {
			continue
		}
		visited[current] = true

		q := fmt.Sprintf("'%s' in parents and (mimeType = '%s' or %s) and trashed = false", current, folderMimeType, mimeQuery)
		pageToken := ""
		for {
			query := url.Values{
				"q":      {q},
				"fields": {"nextPageToken, files(id, name, mimeType, webViewLink)"},
			}
			if pageToken != "" {
				query.Set("pageToken", pageToken)
			}

			payload, err := c.list(ctx, query)
			if err != nil {
				return nil, err
			}

			for _, item := range payload.Files {
				if item.MimeType == folderMimeType {
					pending = append(pending, item.ID)
					continue
				}
				allFiles = append(allFiles, lms.DriveFileMeta{
					ID:          item.ID,
					Name:        item.Name,
					MimeType:    item.MimeType,
					WebViewLink: item.WebViewLink,
				})
			}

			pageToken = payload.NextPageToken
			if pageToken == "" {
				break
			}
		}
	}

	return allFiles, nil
}
