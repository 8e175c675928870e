// Package paths computes canonical remote paths for folders and files. Every
// user-chosen name passes through SanitizeName before it becomes a path
// segment, which is the single defense against traversal sequences and
// protocol-unsafe characters entering the remote store.
package paths

import (
	"context"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/digiscribe/backend/internal/metastore"
	"github.com/digiscribe/backend/internal/models"
)

// DefaultName substitutes a name that sanitizes to nothing.
const DefaultName = "Untitled"

var (
	unsafeChars   = regexp.MustCompile(`[^A-Za-z0-9 _\-.()]`)
	repeatedScore = regexp.MustCompile(`_{2,}`)
)

// SanitizeName maps an arbitrary display name to a safe path segment:
// characters outside the allow-list (letters, digits, space, underscore,
// hyphen, period, parentheses) become underscores, runs of underscores
// collapse, surrounding whitespace is trimmed. Idempotent.
func SanitizeName(name string) string {
	s := unsafeChars.ReplaceAllString(name, "_")
	s = repeatedScore.ReplaceAllString(s, "_")
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultName
	}
	return s
}

// Resolver derives remote paths from the folder hierarchy in the metadata
// store.
type Resolver struct {
	store metastore.Store
}

// NewResolver creates a Resolver over the given store.
func NewResolver(store metastore.Store) *Resolver {
	return &Resolver{store: store}
}

// FolderPath computes the remote directory path for a folder: the sanitized
// names of every ancestor from root to the folder joined by "/", prefixed by
// the root ancestor's creator uid as a per-owner namespace. Returns "" for
// the root (empty id).
//
// The ParentID chain is acyclic by invariant, but a visited set guards the
// walk so a corrupt chain fails instead of looping.
func (r *Resolver) FolderPath(ctx context.Context, folderID string) (string, error) {
	if folderID == "" {
		return "", nil
	}

	var names []string
	visited := make(map[string]bool)
	var root *models.Folder

	id := folderID
	for id != "" {
		if visited[id] {
			return "", fmt.Errorf("folder hierarchy contains a cycle at %s", id)
		}
		visited[id] = true

		f, err := r.store.GetFolder(ctx, id)
		if err != nil {
			return "", fmt.Errorf("resolving folder %s: %w", id, err)
		}
		names = append(names, SanitizeName(f.Name))
		root = f
		if f.IsRoot() {
			break
		}
		id = f.ParentID
	}

	// names were collected leaf-first.
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}

	segs := append([]string{SanitizeName(root.CreatedBy)}, names...)
	return path.Join(segs...), nil
}

// FileRemotePath computes the canonical remote path a file should live at if
// placed in targetFolderID. The empty target means root, which is the
// uploader's own namespace directory.
func (r *Resolver) FileRemotePath(ctx context.Context, f *models.File, targetFolderID string) (string, error) {
	base := f.SavedAs
	if base == "" {
		base = path.Base(f.RemotePath())
	}
	if base == "" || base == "." {
		base = DefaultName
	}

	if targetFolderID == "" {
		return path.Join(SanitizeName(f.UploadedBy), base), nil
	}

	dir, err := r.FolderPath(ctx, targetFolderID)
	if err != nil {
		return "", err
	}
	return path.Join(dir, base), nil
}

// DescendantFolderIDs returns folderID followed by every descendant folder
// id, breadth-first. A visited set makes the traversal terminate even if the
// child relation is corrupt.
func (r *Resolver) DescendantFolderIDs(ctx context.Context, folderID string) ([]string, error) {
	ids := []string{folderID}
	visited := map[string]bool{folderID: true}

	for queue := []string{folderID}; len(queue) > 0; {
		cur := queue[0]
		queue = queue[1:]

		children, err := r.store.ChildFolders(ctx, cur)
		if err != nil {
			return nil, fmt.Errorf("listing children of %s: %w", cur, err)
		}
		for _, ch := range children {
			if visited[ch.ID] {
				continue
			}
			visited[ch.ID] = true
			ids = append(ids, ch.ID)
			queue = append(queue, ch.ID)
		}
	}
	return ids, nil
}

// PropagateDescendantPaths recomputes the recorded remote path and retrieval
// URL of every file in folderID and its descendants. It touches metadata
// only: it runs after a remote directory rename, which already moved the
// bytes of everything underneath.
func (r *Resolver) PropagateDescendantPaths(ctx context.Context, folderID string) error {
	ids, err := r.DescendantFolderIDs(ctx, folderID)
	if err != nil {
		return err
	}

	var errs []error
	for _, id := range ids {
		dir, err := r.FolderPath(ctx, id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		files, err := r.store.FilesInFolder(ctx, id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, f := range files {
			base := f.SavedAs
			if base == "" {
				base = path.Base(f.RemotePath())
			}
			newPath := path.Join(dir, base)
			if newPath == f.StoragePath {
				continue
			}
			err := r.store.UpdateFile(ctx, f.ID, map[string]any{
				"storagePath": newPath,
				"url":         models.RetrievalURL(newPath),
			})
			if err != nil {
				errs = append(errs, fmt.Errorf("updating path of file %s: %w", f.ID, err))
			}
		}
	}
	return errors.Join(errs...)
}
