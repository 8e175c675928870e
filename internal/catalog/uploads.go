package catalog

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/digiscribe/backend/internal/models"
	"github.com/digiscribe/backend/internal/paths"
)

// mediaMIMETypes is the upload allow-list every caller gets.
var mediaMIMETypes = map[string]bool{
	"audio/mpeg":       true,
	"audio/mp3":        true,
	"audio/wav":        true,
	"audio/x-wav":      true,
	"audio/mp4":        true,
	"audio/aac":        true,
	"audio/ogg":        true,
	"audio/flac":       true,
	"audio/webm":       true,
	"video/mp4":        true,
	"video/quicktime":  true,
	"video/x-msvideo":  true,
	"video/x-matroska": true,
	"video/webm":       true,
	"image/jpeg":       true,
	"image/png":        true,
	"image/gif":        true,
	"image/webp":       true,
}

// documentMIMETypes extends the allow-list for privileged callers, who attach
// transcripts and supporting documents.
var documentMIMETypes = map[string]bool{
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"text/plain":      true,
	"application/rtf": true,
}

func mimeAllowed(mimeType string, ident models.Identity) bool {
	// Strip parameters like "; charset=utf-8".
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	mimeType = strings.TrimSpace(strings.ToLower(mimeType))
	if mediaMIMETypes[mimeType] {
		return true
	}
	return ident.IsAdmin() && documentMIMETypes[mimeType]
}

// CompleteUploadRequest carries the finalize parameters for a chunked upload.
type CompleteUploadRequest struct {
	UploadID        string
	FileName        string
	TotalChunks     int
	MimeType        string
	Size            int64
	ServiceCategory string
	Description     string
	FolderID        string
}

// savedBasename builds the stored basename: a millisecond timestamp prefix
// guarantees uniqueness within a directory, the sanitized display name keeps
// it readable on the server.
func savedBasename(displayName string) string {
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), paths.SanitizeName(displayName))
}

func (s *Service) validateUploadTarget(ctx context.Context, ident models.Identity, folderID string) error {
	if folderID == "" {
		return nil
	}
	folder, err := s.store.GetFolder(ctx, folderID)
	if err != nil {
		return err
	}
	if !ident.CanAccess(folder.CreatedBy) {
		return ErrAccessDenied
	}
	return nil
}

// CompleteUpload finalizes a chunked upload session and records the file.
// Failures here are hard errors: without the assembled remote object there is
// nothing to record, and a MissingChunkError tells the client what to resend
// before retrying this same call.
func (s *Service) CompleteUpload(ctx context.Context, ident models.Identity, req CompleteUploadRequest) (*models.File, error) {
	if req.UploadID == "" {
		return nil, invalidf("uploadId must not be empty")
	}
	if strings.TrimSpace(req.FileName) == "" {
		return nil, invalidf("fileName must not be empty")
	}
	if req.TotalChunks <= 0 {
		return nil, invalidf("totalChunks must be positive")
	}
	if len(req.Description) > models.MaxDescriptionLen {
		return nil, invalidf("description exceeds %d characters", models.MaxDescriptionLen)
	}
	if !mimeAllowed(req.MimeType, ident) {
		return nil, invalidf("file type %q is not allowed", req.MimeType)
	}
	if err := s.validateUploadTarget(ctx, ident, req.FolderID); err != nil {
		return nil, err
	}

	f := &models.File{
		OriginalName:    req.FileName,
		SavedAs:         savedBasename(req.FileName),
		Type:            req.MimeType,
		UploadedBy:      ident.UID,
		UploadedByEmail: ident.Email,
		Status:          models.StatusPending,
		Description:     req.Description,
		ServiceCategory: req.ServiceCategory,
		SourceType:      models.SourceFile,
		FolderID:        req.FolderID,
	}

	finalPath, err := s.resolver.FileRemotePath(ctx, f, req.FolderID)
	if err != nil {
		return nil, err
	}

	size, err := s.assembler.Finalize(ctx, req.UploadID, req.TotalChunks, finalPath)
	if err != nil {
		return nil, err
	}

	f.Size = size
	f.StoragePath = finalPath
	f.URL = models.RetrievalURL(finalPath)
	f.UploadedAt = time.Now()

	if _, err := s.store.AddFile(ctx, f); err != nil {
		return nil, err
	}
	s.log.Info().Str("file", f.ID).Str("path", finalPath).Int64("size", size).Msg("upload completed")
	return f, nil
}

// DirectUpload stores a single-request upload: the whole payload streams
// straight to the remote store, no chunk session involved. Used for small
// files where chunking is overhead.
func (s *Service) DirectUpload(ctx context.Context, ident models.Identity, fileName, mimeType string, size int64, folderID string, r io.Reader) (*models.File, error) {
	if strings.TrimSpace(fileName) == "" {
		return nil, invalidf("fileName must not be empty")
	}
	if !mimeAllowed(mimeType, ident) {
		return nil, invalidf("file type %q is not allowed", mimeType)
	}
	if err := s.validateUploadTarget(ctx, ident, folderID); err != nil {
		return nil, err
	}

	f := &models.File{
		OriginalName:    fileName,
		SavedAs:         savedBasename(fileName),
		Type:            mimeType,
		UploadedBy:      ident.UID,
		UploadedByEmail: ident.Email,
		Status:          models.StatusPending,
		SourceType:      models.SourceFile,
		FolderID:        folderID,
	}

	finalPath, err := s.resolver.FileRemotePath(ctx, f, folderID)
	if err != nil {
		return nil, err
	}
	if err := s.remote.Upload(ctx, r, finalPath); err != nil {
		return nil, err
	}

	f.Size = size
	f.StoragePath = finalPath
	f.URL = models.RetrievalURL(finalPath)
	f.UploadedAt = time.Now()

	if _, err := s.store.AddFile(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

// CreateURLRecord registers an externally hosted source (a link the client
// pasted) as a file record with no remote object. The reconciliation sweep
// skips url-sourced records since they have no bytes of ours to verify.
func (s *Service) CreateURLRecord(ctx context.Context, ident models.Identity, sourceURL, name, serviceCategory, folderID string) (*models.File, error) {
	u, err := url.Parse(sourceURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, invalidf("sourceUrl must be an absolute http(s) URL")
	}
	if strings.TrimSpace(name) == "" {
		name = u.Host
	}
	if err := s.validateUploadTarget(ctx, ident, folderID); err != nil {
		return nil, err
	}

	f := &models.File{
		OriginalName:    name,
		UploadedBy:      ident.UID,
		UploadedByEmail: ident.Email,
		UploadedAt:      time.Now(),
		Status:          models.StatusPending,
		ServiceCategory: serviceCategory,
		SourceType:      models.SourceURL,
		SourceURL:       sourceURL,
		FolderID:        folderID,
		URL:             sourceURL,
	}
	if _, err := s.store.AddFile(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}
