package watcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxDownloadBytes caps a single file download. Documents past this size
// are refused rather than buffered wholesale.
const maxDownloadBytes = 32 << 20

// HTTPDriveClient implements DriveClient against a Drive-style REST API.
// The http.Client typically comes from NewAuthenticatedClient so every
// request carries the OAuth2 bearer token.
type HTTPDriveClient struct {
	baseURL string
	hc      *http.Client
}

var _ DriveClient = (*HTTPDriveClient)(nil)

// NewHTTPDriveClient creates a client for the API at baseURL.
// A nil http.Client falls back to a default with a request timeout.
func NewHTTPDriveClient(baseURL string, hc *http.Client) *HTTPDriveClient {
	if hc == nil {
		hc = &http.Client{Timeout: 60 * time.Second}
	}
	return &HTTPDriveClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		hc:      hc,
	}
}

// driveFile mirrors the wire format of a listing entry.
type driveFile struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
	Revision string `json:"headRevisionId"`
	Size     int64  `json:"size,string"`
}

// driveListResponse mirrors the wire format of a folder listing.
type driveListResponse struct {
	Files         []driveFile `json:"files"`
	NextPageToken string      `json:"nextPageToken"`
}

// ListFolder returns the immediate children of a folder, following
// pagination until the listing is complete.
func (c *HTTPDriveClient) ListFolder(ctx context.Context, folderID string) ([]DriveEntry, error) {
	var entries []DriveEntry
	pageToken := ""

	for {
		query := url.Values{}
		query.Set("q", fmt.Sprintf("'%s' in parents and trashed = false", folderID))
		query.Set("fields", "nextPageToken, files(id, name, mimeType, headRevisionId, size)")
		if pageToken != "" {
			query.Set("pageToken", pageToken)
		}

		var page driveListResponse
		if err := c.getJSON(ctx, "/files?"+query.Encode(), &page); err != nil {
			return nil, err
		}

		for _, f := range page.Files {
			entries = append(entries, DriveEntry{
				ID:       f.ID,
				Name:     f.Name,
				MimeType: f.MimeType,
				Revision: f.Revision,
				Size:     f.Size,
			})
		}

		if page.NextPageToken == "" {
			return entries, nil
		}
		pageToken = page.NextPageToken
	}
}

// Download retrieves the raw content of a file.
func (c *HTTPDriveClient) Download(ctx context.Context, fileID string) ([]byte, error) {
	resp, err := c.get(ctx, "/files/"+url.PathEscape(fileID)+"?alt=media")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	content, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", fileID, err)
	}
	if len(content) > maxDownloadBytes {
		return nil, fmt.Errorf("download %s: file exceeds %d bytes", fileID, maxDownloadBytes)
	}
	return content, nil
}

func (c *HTTPDriveClient) getJSON(ctx context.Context, path string, out any) error {
	resp, err := c.get(ctx, path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response for %s: %w", path, err)
	}
	return nil
}

func (c *HTTPDriveClient) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		resp.Body.Close()
		return nil, fmt.Errorf("drive api %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return resp, nil
}
