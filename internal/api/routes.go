// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/digiscribe/backend/internal/catalog"
	"github.com/digiscribe/backend/internal/reconcile"
	"github.com/digiscribe/backend/internal/remote"
	"github.com/digiscribe/backend/internal/stream"
	"github.com/digiscribe/backend/internal/upload"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Catalog   *catalog.Service
	Assembler *upload.Manager
	Streamer  *stream.Service
	Remote    remote.Client
	Sweeper   *reconcile.Sweeper
	JWTSecret []byte
	Version   string
	Log       zerolog.Logger
}

// Handlers holds all handler instances
type Handlers struct {
	Health  HealthHandler
	Folder  FolderHandler
	File    FileHandler
	Upload  UploadHandler
	Stream  StreamHandler
	Archive ArchiveHandler
	Admin   AdminHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	return &Handlers{
		Health:  NewHealthHandler(deps.Version),
		Folder:  NewFolderHandler(deps.Catalog),
		File:    NewFileHandler(deps.Catalog),
		Upload:  NewUploadHandler(deps.Catalog, deps.Assembler),
		Stream:  NewStreamHandler(deps.Streamer),
		Archive: NewArchiveHandler(deps.Catalog, deps.Remote, deps.Log),
		Admin:   NewAdminHandler(deps.Sweeper),
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers, deps *Dependencies) {
	// Unauthenticated surface
	e.GET("/health", handlers.Health.HandleHealth)
	e.GET("/api/health", handlers.Health.HandleHealth)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	auth := AuthMiddleware(deps.JWTSecret)

	// Folder metadata routes
	folderGroup := e.Group("/api/folders", auth)
	folderGroup.POST("", handlers.Folder.HandleCreateFolder)
	folderGroup.GET("", handlers.Folder.HandleListFolders)
	folderGroup.PUT("/:id", handlers.Folder.HandleRenameFolder)
	folderGroup.PUT("/:id/move", handlers.Folder.HandleMoveFolder)
	folderGroup.DELETE("/:id", handlers.Folder.HandleDeleteFolder)
	folderGroup.GET("/:id/download", handlers.Archive.HandleDownloadFolder)

	// File metadata and transfer routes
	fileGroup := e.Group("/api/files", auth)
	fileGroup.GET("", handlers.File.HandleListFiles)
	fileGroup.GET("/meta/:id", handlers.File.HandleGetFile)
	fileGroup.PUT("/meta/:id", handlers.File.HandleRenameFile)
	fileGroup.PUT("/meta/:id/move", handlers.File.HandleMoveFile)
	fileGroup.PUT("/meta/:id/description", handlers.File.HandleUpdateDescription)
	fileGroup.PUT("/meta/:id/status", handlers.File.HandleUpdateStatus)
	fileGroup.DELETE("/meta/:id", handlers.File.HandleDeleteFile)
	fileGroup.POST("/bulk/move", handlers.File.HandleBulkMove)
	fileGroup.POST("/bulk/delete", handlers.File.HandleBulkDelete)
	fileGroup.POST("/bulk/status", handlers.File.HandleBulkStatus)
	fileGroup.POST("/bulk-download", handlers.Archive.HandleBulkDownload)

	// Upload routes
	fileGroup.POST("/upload/chunk", handlers.Upload.HandleUploadChunk)
	fileGroup.POST("/upload/complete", handlers.Upload.HandleCompleteUpload)
	fileGroup.POST("/upload/binary", handlers.Upload.HandleUploadBinary)
	fileGroup.POST("/upload/url", handlers.Upload.HandleCreateURLRecord)

	// Streaming proxy; the wildcard carries the remote path
	fileGroup.GET("/*", handlers.Stream.HandleStreamFile)

	// Administrative routes
	adminGroup := e.Group("/api/admin", auth)
	adminGroup.POST("/ftp-sync", handlers.Admin.HandleSync)
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo) {
	e.HTTPErrorHandler = ErrorHandler
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
}
