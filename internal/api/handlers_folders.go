// handlers_folders.go - Folder metadata operation handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/digiscribe/backend/internal/catalog"
)

// FolderHandlerImpl implements the FolderHandler interface
type FolderHandlerImpl struct {
	catalog *catalog.Service
}

// NewFolderHandler creates a new folder handler instance
func NewFolderHandler(svc *catalog.Service) FolderHandler {
	return &FolderHandlerImpl{catalog: svc}
}

type createFolderRequest struct {
	Name     string `json:"name"`
	ParentID string `json:"parentId"`
}

type renameFolderRequest struct {
	Name string `json:"name"`
}

type moveFolderRequest struct {
	ParentID string `json:"parentId"`
}

// HandleCreateFolder creates a folder under an optional parent
func (h *FolderHandlerImpl) HandleCreateFolder(c echo.Context) error {
	var req createFolderRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}

	folder, err := h.catalog.CreateFolder(c.Request().Context(), callerIdentity(c), req.Name, req.ParentID)
	if err != nil {
		return mapDomainError(err, "folder")
	}
	return c.JSON(http.StatusCreated, folder)
}

// HandleListFolders returns the caller's folders (all folders for admins)
func (h *FolderHandlerImpl) HandleListFolders(c echo.Context) error {
	folders, err := h.catalog.ListFolders(c.Request().Context(), callerIdentity(c))
	if err != nil {
		return mapDomainError(err, "folder")
	}
	return c.JSON(http.StatusOK, folders)
}

// HandleRenameFolder renames a folder and cascades recorded paths
func (h *FolderHandlerImpl) HandleRenameFolder(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	var req renameFolderRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}

	folder, err := h.catalog.RenameFolder(c.Request().Context(), callerIdentity(c), id, req.Name)
	if err != nil {
		return mapDomainError(err, "folder")
	}
	return c.JSON(http.StatusOK, folder)
}

// HandleMoveFolder re-parents a folder
func (h *FolderHandlerImpl) HandleMoveFolder(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	var req moveFolderRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}

	folder, err := h.catalog.MoveFolder(c.Request().Context(), callerIdentity(c), id, req.ParentID)
	if err != nil {
		return mapDomainError(err, "folder")
	}
	return c.JSON(http.StatusOK, folder)
}

// HandleDeleteFolder deletes a folder, re-parenting its children
func (h *FolderHandlerImpl) HandleDeleteFolder(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	err := h.catalog.DeleteFolder(c.Request().Context(), callerIdentity(c), id)
	if err != nil {
		return mapDomainError(err, "folder")
	}
	return c.NoContent(http.StatusNoContent)
}
