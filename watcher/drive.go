// Copyright 2025 Dynamous Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dynamous/ragpipe/core"
)

// FolderMimeType marks a drive entry as a folder rather than a file.
const FolderMimeType = "application/vnd.google-apps.folder"

// DriveEntry is one entry of a remote folder listing.
type DriveEntry struct {
	ID       string
	Name     string
	MimeType string
	Revision string
	Size     int64
}

// IsFolder reports whether the entry is a folder.
func (e DriveEntry) IsFolder() bool {
	return e.MimeType == FolderMimeType
}

// DriveClient is the transport a DriveSource lists and downloads through.
// HTTPDriveClient is the production implementation; tests use fakes.
type DriveClient interface {
	// ListFolder returns the immediate children of a folder.
	ListFolder(ctx context.Context, folderID string) ([]DriveEntry, error)

	// Download retrieves the raw content of a file.
	Download(ctx context.Context, fileID string) ([]byte, error)
}

// DriveSource watches a remote drive folder tree. The fingerprint revision
// is the revision id reported by the drive, so no content download is
// needed to detect changes.
type DriveSource struct {
	client       DriveClient
	rootFolderID string
	logger       *slog.Logger
}

var (
	_ Source         = (*DriveSource)(nil)
	_ ContentFetcher = (*DriveSource)(nil)
)

// NewDriveSource creates a source watching the folder tree under rootFolderID.
func NewDriveSource(client DriveClient, rootFolderID string) (*DriveSource, error) {
	if client == nil {
		return nil, fmt.Errorf("drive client is required")
	}
	if rootFolderID == "" {
		return nil, fmt.Errorf("root folder id is required")
	}

	return &DriveSource{
		client:       client,
		rootFolderID: rootFolderID,
		logger:       slog.Default().With("component", "drive-watcher"),
	}, nil
}

// CheckForChanges lists the folder tree and diffs it against the checkpoint.
// A folder that fails to list yields a warning; its files are simply absent
// from this cycle's listing and candidate, and removal detection is
// suppressed so they are not mistaken for deletions.
func (s *DriveSource) CheckForChanges(ctx context.Context, cp *core.SyncCheckpoint) (*Result, error) {
	items, warnings, err := s.listTree(ctx)
	if err != nil {
		return nil, err
	}

	changes := computeDiff(cp, items, len(warnings) == 0)

	s.logger.Debug("change check complete",
		"items", len(items),
		"added", len(changes.Added),
		"modified", len(changes.Modified),
		"removed", len(changes.Removed),
		"warnings", len(warnings))

	return &Result{
		Changes:   changes,
		Candidate: buildCandidate(items, time.Now().UTC()),
		Warnings:  warnings,
	}, nil
}

// Fetch downloads the content of an item discovered by this source.
func (s *DriveSource) Fetch(ctx context.Context, item core.SourceItem) ([]byte, error) {
	return s.client.Download(ctx, item.ID)
}

// listTree walks the folder tree breadth-first from the root.
func (s *DriveSource) listTree(ctx context.Context) ([]core.SourceItem, []error, error) {
	var items []core.SourceItem
	var warnings []error

	pending := []string{s.rootFolderID}
	for len(pending) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		folderID := pending[0]
		pending = pending[1:]

		entries, err := s.client.ListFolder(ctx, folderID)
		if err != nil {
			if folderID == s.rootFolderID {
				return nil, nil, fmt.Errorf("list root folder: %w", err)
			}
			s.logger.Warn("folder listing failed", "folder", folderID, "err", err)
			warnings = append(warnings, fmt.Errorf("list folder %s: %w", folderID, err))
			continue
		}

		for _, entry := range entries {
			if entry.IsFolder() {
				pending = append(pending, entry.ID)
				continue
			}
			items = append(items, core.SourceItem{
				ID:       entry.ID,
				Name:     entry.Name,
				MimeType: entry.MimeType,
				Fingerprint: core.ItemFingerprint{
					SourceID: entry.ID,
					Revision: entry.Revision,
					Size:     entry.Size,
				},
			})
		}
	}
	return items, warnings, nil
}
