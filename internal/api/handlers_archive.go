// handlers_archive.go - Zip download handlers
package api

import (
	"archive/zip"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/digiscribe/backend/internal/catalog"
	"github.com/digiscribe/backend/internal/paths"
	"github.com/digiscribe/backend/internal/remote"
)

// ArchiveHandlerImpl implements the ArchiveHandler interface
type ArchiveHandlerImpl struct {
	catalog *catalog.Service
	remote  remote.Client
	log     zerolog.Logger
}

// NewArchiveHandler creates a new archive handler instance
func NewArchiveHandler(svc *catalog.Service, rc remote.Client, log zerolog.Logger) ArchiveHandler {
	return &ArchiveHandlerImpl{
		catalog: svc,
		remote:  rc,
		log:     log.With().Str("component", "archive").Logger(),
	}
}

type bulkDownloadRequest struct {
	FileIDs []string `json:"fileIds"`
}

// HandleBulkDownload streams the requested files as one zip archive
func (h *ArchiveHandlerImpl) HandleBulkDownload(c echo.Context) error {
	var req bulkDownloadRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if len(req.FileIDs) == 0 {
		return NewValidationError("fileIds")
	}

	entries, err := h.catalog.BulkArchiveEntries(c.Request().Context(), callerIdentity(c), req.FileIDs)
	if err != nil {
		return mapDomainError(err, "file")
	}
	if len(entries) == 0 {
		return NewNotFoundError("file", "none of the requested files are available")
	}

	return h.streamZip(c, "files.zip", entries)
}

// HandleDownloadFolder streams a folder subtree as a zip archive preserving
// its structure
func (h *ArchiveHandlerImpl) HandleDownloadFolder(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	name, entries, err := h.catalog.FolderArchiveEntries(c.Request().Context(), callerIdentity(c), id)
	if err != nil {
		return mapDomainError(err, "folder")
	}

	return h.streamZip(c, paths.SanitizeName(name)+".zip", entries)
}

// streamZip writes entries into a zip streamed straight to the response.
// Entries are stored uncompressed: the payloads are media files that do not
// deflate, and Store lets the zip writer stream without buffering.
func (h *ArchiveHandlerImpl) streamZip(c echo.Context, archiveName string, entries []catalog.ArchiveEntry) error {
	resp := c.Response()
	resp.Header().Set("Content-Type", "application/zip")
	resp.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", archiveName))
	resp.WriteHeader(http.StatusOK)

	zw := zip.NewWriter(resp)
	ctx := c.Request().Context()
	for _, e := range entries {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: e.Name, Method: zip.Store})
		if err != nil {
			h.log.Error().Str("entry", e.Name).Err(err).Msg("zip entry failed")
			break
		}
		_, err = h.remote.StreamDownload(ctx, e.RemotePath, w, remote.StreamOptions{})
		if err != nil {
			// Headers are out; skip the entry and keep the archive usable.
			h.log.Warn().Str("path", e.RemotePath).Err(err).Msg("zip entry transfer failed")
		}
	}
	if err := zw.Close(); err != nil {
		h.log.Error().Err(err).Msg("finalizing zip stream")
	}
	return nil
}
