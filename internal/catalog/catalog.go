// Package catalog implements the folder and file metadata operations,
// keeping the metadata store and the remote store in lock-step. The metadata
// store is the user-facing source of truth: remote failures on
// organizational actions (rename, move, delete-folder) are logged and
// swallowed, leaving a temporary drift the reconciliation sweep repairs.
// Upload finalization and direct deletes are the exceptions — there the
// remote object is the product, so remote failures are hard errors.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/digiscribe/backend/internal/metastore"
	"github.com/digiscribe/backend/internal/models"
	"github.com/digiscribe/backend/internal/paths"
	"github.com/digiscribe/backend/internal/remote"
	"github.com/digiscribe/backend/internal/upload"
)

// Sentinel errors mapped to HTTP statuses by the API layer.
var (
	ErrAccessDenied = errors.New("access denied")
	ErrCircularMove = errors.New("move would create a folder cycle")
)

// ValidationError describes malformed caller input.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func invalidf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// Service wires the metadata store, path resolver, remote store and upload
// assembler into the operations the HTTP surface exposes.
type Service struct {
	store     metastore.Store
	remote    remote.Client
	resolver  *paths.Resolver
	assembler *upload.Manager
	log       zerolog.Logger
}

// NewService builds the catalog service.
func NewService(store metastore.Store, rc remote.Client, resolver *paths.Resolver, assembler *upload.Manager, log zerolog.Logger) *Service {
	return &Service{
		store:     store,
		remote:    rc,
		resolver:  resolver,
		assembler: assembler,
		log:       log.With().Str("component", "catalog").Logger(),
	}
}

// ownerScope returns the uid to filter listings by: admins see everything.
func ownerScope(ident models.Identity) string {
	if ident.IsAdmin() {
		return ""
	}
	return ident.UID
}

// CreateFolder records a new folder and best-effort creates its remote
// directory. A missing remote directory is harmless: uploads create parent
// directories on demand.
func (s *Service) CreateFolder(ctx context.Context, ident models.Identity, name, parentID string) (*models.Folder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalidf("folder name must not be empty")
	}

	if parentID != "" {
		parent, err := s.store.GetFolder(ctx, parentID)
		if err != nil {
			return nil, err
		}
		if !ident.CanAccess(parent.CreatedBy) {
			return nil, ErrAccessDenied
		}
	}

	now := time.Now()
	folder := &models.Folder{
		Name:           name,
		ParentID:       parentID,
		CreatedBy:      ident.UID,
		CreatedByEmail: ident.Email,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if _, err := s.store.AddFolder(ctx, folder); err != nil {
		return nil, err
	}

	if dir, err := s.resolver.FolderPath(ctx, folder.ID); err == nil {
		if err := s.remote.Mkdir(ctx, dir); err != nil {
			s.log.Warn().Str("folder", folder.ID).Str("dir", dir).Err(err).Msg("remote mkdir failed")
		}
	}
	return folder, nil
}

// ListFolders returns the caller's folders, or all folders for admins.
func (s *Service) ListFolders(ctx context.Context, ident models.Identity) ([]*models.Folder, error) {
	return s.store.ListFolders(ctx, ownerScope(ident))
}

// RenameFolder changes a folder's display name, renames its remote directory
// and cascades recorded paths to every descendant file.
func (s *Service) RenameFolder(ctx context.Context, ident models.Identity, folderID, newName string) (*models.Folder, error) {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return nil, invalidf("folder name must not be empty")
	}

	folder, err := s.store.GetFolder(ctx, folderID)
	if err != nil {
		return nil, err
	}
	if !ident.CanAccess(folder.CreatedBy) {
		return nil, ErrAccessDenied
	}

	oldPath, err := s.resolver.FolderPath(ctx, folderID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	err = s.store.UpdateFolder(ctx, folderID, map[string]any{"name": newName, "updatedAt": now})
	if err != nil {
		return nil, err
	}
	folder.Name = newName
	folder.UpdatedAt = now

	s.relocateFolderDir(ctx, folderID, oldPath)
	return folder, nil
}

// MoveFolder re-parents a folder, rejecting self-parenting and any target
// inside the folder's own subtree.
func (s *Service) MoveFolder(ctx context.Context, ident models.Identity, folderID, newParentID string) (*models.Folder, error) {
	folder, err := s.store.GetFolder(ctx, folderID)
	if err != nil {
		return nil, err
	}
	if !ident.CanAccess(folder.CreatedBy) {
		return nil, ErrAccessDenied
	}

	if newParentID == folderID {
		return nil, ErrCircularMove
	}
	if newParentID != "" {
		parent, err := s.store.GetFolder(ctx, newParentID)
		if err != nil {
			return nil, err
		}
		if !ident.CanAccess(parent.CreatedBy) {
			return nil, ErrAccessDenied
		}
		inSubtree, err := s.isSameOrDescendant(ctx, newParentID, folderID)
		if err != nil {
			return nil, err
		}
		if inSubtree {
			return nil, ErrCircularMove
		}
	}

	oldPath, err := s.resolver.FolderPath(ctx, folderID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	err = s.store.UpdateFolder(ctx, folderID, map[string]any{"parentId": newParentID, "updatedAt": now})
	if err != nil {
		return nil, err
	}
	folder.ParentID = newParentID
	folder.UpdatedAt = now

	s.relocateFolderDir(ctx, folderID, oldPath)
	return folder, nil
}

// isSameOrDescendant walks up from candidate to the root and reports whether
// ancestorID appears in the chain (candidate included).
func (s *Service) isSameOrDescendant(ctx context.Context, candidate, ancestorID string) (bool, error) {
	visited := make(map[string]bool)
	for id := candidate; id != ""; {
		if id == ancestorID {
			return true, nil
		}
		if visited[id] {
			return false, fmt.Errorf("folder hierarchy contains a cycle at %s", id)
		}
		visited[id] = true

		f, err := s.store.GetFolder(ctx, id)
		if err != nil {
			return false, err
		}
		id = f.ParentID
	}
	return false, nil
}

// relocateFolderDir renames the folder's remote directory from oldPath to its
// freshly resolved path and cascades recorded file paths. Remote failure is
// logged, never fatal: the metadata change has already committed, and the
// cascade still runs so metadata stays internally consistent while the sweep
// cleans up the drift.
func (s *Service) relocateFolderDir(ctx context.Context, folderID, oldPath string) {
	newPath, err := s.resolver.FolderPath(ctx, folderID)
	if err != nil {
		s.log.Error().Str("folder", folderID).Err(err).Msg("resolving new folder path")
		return
	}
	if newPath != oldPath {
		// Renaming the directory moves every remote object beneath it.
		if err := s.remote.Rename(ctx, oldPath, newPath); err != nil {
			s.log.Warn().Str("from", oldPath).Str("to", newPath).Err(err).Msg("remote directory rename failed")
		}
	}
	if err := s.resolver.PropagateDescendantPaths(ctx, folderID); err != nil {
		s.log.Error().Str("folder", folderID).Err(err).Msg("cascading descendant paths")
	}
}

// DeleteFolder removes a folder record. Children are re-parented to the
// deleted folder's parent, not deleted: direct files move up (remote object
// relocated, metadata-first on failure), direct child folders are re-parented
// and their subtrees cascaded. The emptied remote directory is removed
// best-effort.
func (s *Service) DeleteFolder(ctx context.Context, ident models.Identity, folderID string) error {
	folder, err := s.store.GetFolder(ctx, folderID)
	if err != nil {
		return err
	}
	if !ident.CanAccess(folder.CreatedBy) {
		return ErrAccessDenied
	}

	folderPath, err := s.resolver.FolderPath(ctx, folderID)
	if err != nil {
		return err
	}

	files, err := s.store.FilesInFolder(ctx, folderID)
	if err != nil {
		return err
	}
	for _, f := range files {
		s.moveFileRecord(ctx, f, folder.ParentID)
	}

	children, err := s.store.ChildFolders(ctx, folderID)
	if err != nil {
		return err
	}
	for _, child := range children {
		childOld, err := s.resolver.FolderPath(ctx, child.ID)
		if err != nil {
			s.log.Error().Str("folder", child.ID).Err(err).Msg("resolving child path before reparent")
			childOld = ""
		}
		err = s.store.UpdateFolder(ctx, child.ID, map[string]any{
			"parentId":  folder.ParentID,
			"updatedAt": time.Now(),
		})
		if err != nil {
			s.log.Error().Str("folder", child.ID).Err(err).Msg("reparenting child folder")
			continue
		}
		if childOld != "" {
			s.relocateFolderDir(ctx, child.ID, childOld)
		}
	}

	if err := s.store.DeleteFolder(ctx, folderID); err != nil {
		return err
	}

	// The directory should be empty now; if not (drift, races), the failure
	// is logged and the contents stay until reconciliation.
	if err := s.remote.Rmdir(ctx, folderPath); err != nil && !errors.Is(err, remote.ErrNotFound) {
		s.log.Warn().Str("dir", folderPath).Err(err).Msg("remote rmdir failed")
	}
	return nil
}

// moveFileRecord relocates one file's remote object to targetFolderID's
// directory and rewrites its metadata. Metadata-first: the folderId change
// commits even when the remote move fails.
func (s *Service) moveFileRecord(ctx context.Context, f *models.File, targetFolderID string) {
	newPath, err := s.resolver.FileRemotePath(ctx, f, targetFolderID)
	if err != nil {
		s.log.Error().Str("file", f.ID).Err(err).Msg("resolving target path")
		return
	}
	if newPath != f.RemotePath() {
		if err := s.remote.Rename(ctx, f.RemotePath(), newPath); err != nil {
			s.log.Warn().Str("file", f.ID).Str("to", newPath).Err(err).Msg("remote file move failed")
		}
	}
	err = s.store.UpdateFile(ctx, f.ID, map[string]any{
		"folderId":    targetFolderID,
		"storagePath": newPath,
		"url":         models.RetrievalURL(newPath),
	})
	if err != nil {
		s.log.Error().Str("file", f.ID).Err(err).Msg("updating moved file record")
	}
}

// MoveFile places a file into targetFolderID ("" = root).
func (s *Service) MoveFile(ctx context.Context, ident models.Identity, fileID, targetFolderID string) (*models.File, error) {
	f, err := s.store.GetFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if !ident.CanAccess(f.UploadedBy) {
		return nil, ErrAccessDenied
	}
	if targetFolderID != "" {
		folder, err := s.store.GetFolder(ctx, targetFolderID)
		if err != nil {
			return nil, err
		}
		if !ident.CanAccess(folder.CreatedBy) {
			return nil, ErrAccessDenied
		}
	}

	s.moveFileRecord(ctx, f, targetFolderID)
	return s.store.GetFile(ctx, fileID)
}

// RenameFile changes a file's display name, keeping the unique prefix of the
// stored basename (the upload timestamp) while replacing the readable part.
func (s *Service) RenameFile(ctx context.Context, ident models.Identity, fileID, newName string) (*models.File, error) {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return nil, invalidf("file name must not be empty")
	}

	f, err := s.store.GetFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if !ident.CanAccess(f.UploadedBy) {
		return nil, ErrAccessDenied
	}

	// Carry the old extension when the new name has none, so the MIME lookup
	// on download keeps working.
	if path.Ext(newName) == "" {
		if ext := path.Ext(f.OriginalName); ext != "" {
			newName += ext
		}
	}

	newSavedAs := renamedBasename(f.SavedAs, newName)
	oldRemote := f.RemotePath()
	newRemote := path.Join(path.Dir(oldRemote), newSavedAs)

	if newRemote != oldRemote {
		if err := s.remote.Rename(ctx, oldRemote, newRemote); err != nil {
			s.log.Warn().Str("file", f.ID).Str("to", newRemote).Err(err).Msg("remote rename failed")
		}
	}

	err = s.store.UpdateFile(ctx, fileID, map[string]any{
		"originalName": newName,
		"savedAs":      newSavedAs,
		"storagePath":  newRemote,
		"url":          models.RetrievalURL(newRemote),
	})
	if err != nil {
		return nil, err
	}
	return s.store.GetFile(ctx, fileID)
}

// renamedBasename swaps the human-readable portion of a stored basename,
// preserving a leading numeric unique prefix when present.
func renamedBasename(savedAs, newName string) string {
	safe := paths.SanitizeName(newName)
	if prefix, _, ok := strings.Cut(savedAs, "-"); ok && isDigits(prefix) {
		return prefix + "-" + safe
	}
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), safe)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// UpdateDescription sets a file's free-text description.
func (s *Service) UpdateDescription(ctx context.Context, ident models.Identity, fileID, description string) error {
	if len(description) > models.MaxDescriptionLen {
		return invalidf("description exceeds %d characters", models.MaxDescriptionLen)
	}
	f, err := s.store.GetFile(ctx, fileID)
	if err != nil {
		return err
	}
	if !ident.CanAccess(f.UploadedBy) {
		return ErrAccessDenied
	}
	return s.store.UpdateFile(ctx, fileID, map[string]any{"description": description})
}

// UpdateStatus moves a file through the transcription workflow. Privileged
// only; any of the three states may be set, so an admin can also step a file
// backward to correct a mistake.
func (s *Service) UpdateStatus(ctx context.Context, ident models.Identity, fileID string, status models.FileStatus) error {
	if !ident.IsAdmin() {
		return ErrAccessDenied
	}
	if !status.Valid() {
		return invalidf("invalid status %q", status)
	}
	if _, err := s.store.GetFile(ctx, fileID); err != nil {
		return err
	}
	return s.store.UpdateFile(ctx, fileID, map[string]any{"status": status})
}

// DeleteFile removes the remote object first, then the metadata record, so
// metadata never outlives its object on the happy path. Remote absence is
// tolerated; a remote transport failure aborts the delete.
func (s *Service) DeleteFile(ctx context.Context, ident models.Identity, fileID string) error {
	f, err := s.store.GetFile(ctx, fileID)
	if err != nil {
		return err
	}
	if !ident.CanAccess(f.UploadedBy) {
		return ErrAccessDenied
	}

	if err := s.remote.Remove(ctx, f.RemotePath()); err != nil {
		return err
	}
	return s.store.DeleteFile(ctx, fileID)
}

// GetFile returns a file record the caller may see.
func (s *Service) GetFile(ctx context.Context, ident models.Identity, fileID string) (*models.File, error) {
	f, err := s.store.GetFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if !ident.CanAccess(f.UploadedBy) {
		return nil, ErrAccessDenied
	}
	return f, nil
}

// ListFiles returns the caller's files, or all files for admins.
func (s *Service) ListFiles(ctx context.Context, ident models.Identity) ([]*models.File, error) {
	return s.store.ListFiles(ctx, ownerScope(ident))
}
