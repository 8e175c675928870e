package catalog

import (
	"context"
	"fmt"
	"path"

	"github.com/digiscribe/backend/internal/models"
)

// ArchiveEntry names one file inside a zip download and where its bytes live.
type ArchiveEntry struct {
	Name       string // zip-relative path
	RemotePath string
	Size       int64
}

// dedupeNames suffixes colliding zip entry names so archive/zip does not emit
// two entries at the same path.
func dedupeNames(entries []ArchiveEntry) {
	seen := make(map[string]int)
	for i, e := range entries {
		n := seen[e.Name]
		seen[e.Name]++
		if n == 0 {
			continue
		}
		ext := path.Ext(e.Name)
		entries[i].Name = fmt.Sprintf("%s (%d)%s", e.Name[:len(e.Name)-len(ext)], n, ext)
	}
}

// BulkArchiveEntries resolves a set of file ids into zip entries. Files the
// caller cannot see and url-sourced records (no bytes of ours) are skipped.
func (s *Service) BulkArchiveEntries(ctx context.Context, ident models.Identity, fileIDs []string) ([]ArchiveEntry, error) {
	var entries []ArchiveEntry
	for _, id := range fileIDs {
		f, err := s.store.GetFile(ctx, id)
		if err != nil {
			s.log.Warn().Str("file", id).Err(err).Msg("archive: record skipped")
			continue
		}
		if !ident.CanAccess(f.UploadedBy) || f.SourceType == models.SourceURL {
			continue
		}
		entries = append(entries, ArchiveEntry{
			Name:       f.OriginalName,
			RemotePath: f.RemotePath(),
			Size:       f.Size,
		})
	}
	dedupeNames(entries)
	return entries, nil
}

// FolderArchiveEntries resolves a folder subtree into zip entries whose names
// mirror the folder structure relative to the requested folder.
func (s *Service) FolderArchiveEntries(ctx context.Context, ident models.Identity, folderID string) (string, []ArchiveEntry, error) {
	folder, err := s.store.GetFolder(ctx, folderID)
	if err != nil {
		return "", nil, err
	}
	if !ident.CanAccess(folder.CreatedBy) {
		return "", nil, ErrAccessDenied
	}

	rootDir, err := s.resolver.FolderPath(ctx, folderID)
	if err != nil {
		return "", nil, err
	}

	ids, err := s.resolver.DescendantFolderIDs(ctx, folderID)
	if err != nil {
		return "", nil, err
	}

	var entries []ArchiveEntry
	for _, id := range ids {
		dir, err := s.resolver.FolderPath(ctx, id)
		if err != nil {
			return "", nil, err
		}
		rel := ""
		if dir != rootDir {
			rel = dir[len(rootDir)+1:]
		}

		files, err := s.store.FilesInFolder(ctx, id)
		if err != nil {
			return "", nil, err
		}
		for _, f := range files {
			if f.SourceType == models.SourceURL {
				continue
			}
			entries = append(entries, ArchiveEntry{
				Name:       path.Join(rel, f.OriginalName),
				RemotePath: f.RemotePath(),
				Size:       f.Size,
			})
		}
	}
	dedupeNames(entries)
	return folder.Name, entries, nil
}
