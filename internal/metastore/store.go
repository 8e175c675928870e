// Package metastore is the boundary to the document database holding Folder
// and File records. Business logic depends only on the interfaces here;
// production wiring uses the Mongo implementation and tests use the in-memory
// one.
package metastore

import (
	"context"
	"errors"

	"github.com/digiscribe/backend/internal/models"
)

// ErrNotFound is returned when a referenced record does not exist.
var ErrNotFound = errors.New("record not found")

// FolderStore provides document-collection access to Folder records.
type FolderStore interface {
	GetFolder(ctx context.Context, id string) (*models.Folder, error)
	AddFolder(ctx context.Context, f *models.Folder) (string, error)
	// UpdateFolder applies a partial update. Keys use the stored field names
	// (name, parentId, updatedAt).
	UpdateFolder(ctx context.Context, id string, fields map[string]any) error
	DeleteFolder(ctx context.Context, id string) error
	// ListFolders returns folders owned by ownerUID, or every folder when
	// ownerUID is empty.
	ListFolders(ctx context.Context, ownerUID string) ([]*models.Folder, error)
	// ChildFolders returns the direct children of parentID ("" = root).
	ChildFolders(ctx context.Context, parentID string) ([]*models.Folder, error)
}

// FileStore provides document-collection access to File records.
type FileStore interface {
	GetFile(ctx context.Context, id string) (*models.File, error)
	AddFile(ctx context.Context, f *models.File) (string, error)
	UpdateFile(ctx context.Context, id string, fields map[string]any) error
	DeleteFile(ctx context.Context, id string) error
	ListFiles(ctx context.Context, ownerUID string) ([]*models.File, error)
	// FilesInFolder returns files whose folderId equals folderID ("" = root).
	FilesInFolder(ctx context.Context, folderID string) ([]*models.File, error)
	// FileBatch returns up to limit files with id greater than afterID,
	// ordered by id. Used by the reconciliation sweep to rotate through the
	// whole collection across runs.
	FileBatch(ctx context.Context, afterID string, limit int) ([]*models.File, error)
}

// Store combines both collections.
type Store interface {
	FolderStore
	FileStore
}
