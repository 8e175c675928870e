// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"github.com/labstack/echo/v4"
)

// FolderHandler handles folder metadata operations
type FolderHandler interface {
	HandleCreateFolder(c echo.Context) error
	HandleListFolders(c echo.Context) error
	HandleRenameFolder(c echo.Context) error
	HandleMoveFolder(c echo.Context) error
	HandleDeleteFolder(c echo.Context) error
}

// FileHandler handles file metadata operations
type FileHandler interface {
	HandleListFiles(c echo.Context) error
	HandleGetFile(c echo.Context) error
	HandleRenameFile(c echo.Context) error
	HandleMoveFile(c echo.Context) error
	HandleUpdateDescription(c echo.Context) error
	HandleUpdateStatus(c echo.Context) error
	HandleDeleteFile(c echo.Context) error
	HandleBulkMove(c echo.Context) error
	HandleBulkDelete(c echo.Context) error
	HandleBulkStatus(c echo.Context) error
}

// UploadHandler handles file upload operations
type UploadHandler interface {
	HandleUploadChunk(c echo.Context) error
	HandleCompleteUpload(c echo.Context) error
	HandleUploadBinary(c echo.Context) error
	HandleCreateURLRecord(c echo.Context) error
}

// StreamHandler serves remote object bytes
type StreamHandler interface {
	HandleStreamFile(c echo.Context) error
}

// ArchiveHandler handles zip downloads
type ArchiveHandler interface {
	HandleBulkDownload(c echo.Context) error
	HandleDownloadFolder(c echo.Context) error
}

// AdminHandler handles administrative operations
type AdminHandler interface {
	HandleSync(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}
