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
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dynamous/ragpipe/core"
)

// mimeByExtension maps the file extensions the pipeline understands.
// Unknown extensions get application/octet-stream and are later rejected
// by the processor as unsupported.
var mimeByExtension = map[string]string{
	".txt":      "text/plain",
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".html":     "text/html",
	".htm":      "text/html",
}

// LocalSource watches a directory tree on the local filesystem.
// Item IDs are slash-separated paths relative to the root. The fingerprint
// revision is a BLAKE2b hash of the file content, so touch-only changes
// (mtime updated, content identical) do not trigger reprocessing.
type LocalSource struct {
	root   string
	logger *slog.Logger
}

var (
	_ Source         = (*LocalSource)(nil)
	_ ContentFetcher = (*LocalSource)(nil)
)

// NewLocalSource creates a source watching the directory at root.
func NewLocalSource(root string) (*LocalSource, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("watch root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch root %s is not a directory", abs)
	}

	return &LocalSource{
		root:   abs,
		logger: slog.Default().With("component", "local-watcher"),
	}, nil
}

// CheckForChanges walks the tree and diffs it against the checkpoint.
func (s *LocalSource) CheckForChanges(ctx context.Context, cp *core.SyncCheckpoint) (*Result, error) {
	items, warnings, err := s.listItems(ctx)
	if err != nil {
		return nil, err
	}

	// Removal detection needs a complete listing; unreadable files stay
	// out of the candidate and are revisited next cycle.
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

// Fetch reads the file for an item discovered by this source.
func (s *LocalSource) Fetch(ctx context.Context, item core.SourceItem) ([]byte, error) {
	path, err := s.resolve(item.ID)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

// listItems walks the root and fingerprints every regular file.
// Unreadable files produce warnings, not a failed cycle.
func (s *LocalSource) listItems(ctx context.Context) ([]core.SourceItem, []error, error) {
	var items []core.SourceItem
	var warnings []error

	err := filepath.WalkDir(s.root, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == s.root {
				return walkErr
			}
			warnings = append(warnings, fmt.Errorf("walk %s: %w", path, walkErr))
			if entry != nil && entry.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		name := entry.Name()
		if entry.IsDir() {
			if path != s.root && strings.HasPrefix(name, ".") {
				return fs.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || !entry.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		id := filepath.ToSlash(rel)

		content, err := os.ReadFile(path)
		if err != nil {
			warnings = append(warnings, fmt.Errorf("read %s: %w", id, err))
			return nil
		}

		items = append(items, core.SourceItem{
			ID:       id,
			Name:     name,
			MimeType: mimeForName(name),
			Fingerprint: core.ItemFingerprint{
				SourceID: id,
				Revision: core.ContentHash(content),
				Size:     int64(len(content)),
			},
		})
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return items, warnings, nil
}

// resolve maps an item ID back to an absolute path, rejecting IDs that
// escape the watch root.
func (s *LocalSource) resolve(id string) (string, error) {
	path := filepath.Join(s.root, filepath.FromSlash(id))
	if path != s.root && !strings.HasPrefix(path, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("item id %q escapes watch root", id)
	}
	return path, nil
}

// mimeForName derives the mime type from the file extension.
func mimeForName(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if mt, ok := mimeByExtension[ext]; ok {
		return mt
	}
	return "application/octet-stream"
}
