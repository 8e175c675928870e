// handlers_files.go - File metadata operation handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/digiscribe/backend/internal/catalog"
	"github.com/digiscribe/backend/internal/models"
)

// FileHandlerImpl implements the FileHandler interface
type FileHandlerImpl struct {
	catalog *catalog.Service
}

// NewFileHandler creates a new file metadata handler instance
func NewFileHandler(svc *catalog.Service) FileHandler {
	return &FileHandlerImpl{catalog: svc}
}

type renameFileRequest struct {
	Name string `json:"name"`
}

type moveFileRequest struct {
	FolderID string `json:"folderId"`
}

type descriptionRequest struct {
	Description string `json:"description"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type bulkMoveRequest struct {
	FileIDs  []string `json:"fileIds"`
	FolderID string   `json:"folderId"`
}

type bulkDeleteRequest struct {
	FileIDs []string `json:"fileIds"`
}

type bulkStatusRequest struct {
	FileIDs []string `json:"fileIds"`
	Status  string   `json:"status"`
}

// HandleListFiles returns the caller's files (all files for admins)
func (h *FileHandlerImpl) HandleListFiles(c echo.Context) error {
	files, err := h.catalog.ListFiles(c.Request().Context(), callerIdentity(c))
	if err != nil {
		return mapDomainError(err, "file")
	}
	return c.JSON(http.StatusOK, files)
}

// HandleGetFile returns metadata for a specific file
func (h *FileHandlerImpl) HandleGetFile(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	f, err := h.catalog.GetFile(c.Request().Context(), callerIdentity(c), id)
	if err != nil {
		return mapDomainError(err, "file")
	}
	return c.JSON(http.StatusOK, f)
}

// HandleRenameFile updates a file's display name and remote basename
func (h *FileHandlerImpl) HandleRenameFile(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	var req renameFileRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}

	f, err := h.catalog.RenameFile(c.Request().Context(), callerIdentity(c), id, req.Name)
	if err != nil {
		return mapDomainError(err, "file")
	}
	return c.JSON(http.StatusOK, f)
}

// HandleMoveFile places a file into another folder (empty folderId = root)
func (h *FileHandlerImpl) HandleMoveFile(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	var req moveFileRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}

	f, err := h.catalog.MoveFile(c.Request().Context(), callerIdentity(c), id, req.FolderID)
	if err != nil {
		return mapDomainError(err, "file")
	}
	return c.JSON(http.StatusOK, f)
}

// HandleUpdateDescription sets a file's free-text description
func (h *FileHandlerImpl) HandleUpdateDescription(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	var req descriptionRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}

	err := h.catalog.UpdateDescription(c.Request().Context(), callerIdentity(c), id, req.Description)
	if err != nil {
		return mapDomainError(err, "file")
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleUpdateStatus moves a file through the transcription workflow
func (h *FileHandlerImpl) HandleUpdateStatus(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}

	err := h.catalog.UpdateStatus(c.Request().Context(), callerIdentity(c), id, models.FileStatus(req.Status))
	if err != nil {
		return mapDomainError(err, "file")
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleDeleteFile deletes the remote object and its record
func (h *FileHandlerImpl) HandleDeleteFile(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	err := h.catalog.DeleteFile(c.Request().Context(), callerIdentity(c), id)
	if err != nil {
		return mapDomainError(err, "file")
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleBulkMove moves several files, reporting per-item outcomes
func (h *FileHandlerImpl) HandleBulkMove(c echo.Context) error {
	var req bulkMoveRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if len(req.FileIDs) == 0 {
		return NewValidationError("fileIds")
	}

	res, err := h.catalog.BulkMove(c.Request().Context(), callerIdentity(c), req.FileIDs, req.FolderID)
	if err != nil {
		return mapDomainError(err, "folder")
	}
	return c.JSON(http.StatusOK, res)
}

// HandleBulkDelete deletes several files, reporting per-item outcomes
func (h *FileHandlerImpl) HandleBulkDelete(c echo.Context) error {
	var req bulkDeleteRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if len(req.FileIDs) == 0 {
		return NewValidationError("fileIds")
	}

	res, err := h.catalog.BulkDelete(c.Request().Context(), callerIdentity(c), req.FileIDs)
	if err != nil {
		return mapDomainError(err, "file")
	}
	return c.JSON(http.StatusOK, res)
}

// HandleBulkStatus sets the workflow status on several files
func (h *FileHandlerImpl) HandleBulkStatus(c echo.Context) error {
	var req bulkStatusRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if len(req.FileIDs) == 0 {
		return NewValidationError("fileIds")
	}

	res, err := h.catalog.BulkStatus(c.Request().Context(), callerIdentity(c), req.FileIDs, models.FileStatus(req.Status))
	if err != nil {
		return mapDomainError(err, "file")
	}
	return c.JSON(http.StatusOK, res)
}
