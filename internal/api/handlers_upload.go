// handlers_upload.go - File upload operation handlers
package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/digiscribe/backend/internal/catalog"
	"github.com/digiscribe/backend/internal/upload"
)

// UploadHandlerImpl implements the UploadHandler interface
type UploadHandlerImpl struct {
	catalog   *catalog.Service
	assembler *upload.Manager
}

// NewUploadHandler creates a new upload handler instance
func NewUploadHandler(svc *catalog.Service, assembler *upload.Manager) UploadHandler {
	return &UploadHandlerImpl{catalog: svc, assembler: assembler}
}

// HandleUploadChunk accepts one multipart chunk of a chunked upload.
// Form fields: uploadId, chunkIndex, chunk (the payload part).
func (h *UploadHandlerImpl) HandleUploadChunk(c echo.Context) error {
	uploadID := c.FormValue("uploadId")
	if uploadID == "" {
		return NewValidationError("uploadId")
	}
	chunkIndex, err := strconv.Atoi(c.FormValue("chunkIndex"))
	if err != nil || chunkIndex < 0 {
		return NewValidationError("chunkIndex")
	}

	part, err := c.FormFile("chunk")
	if err != nil {
		return NewBadRequestError("no chunk payload provided", err)
	}
	src, err := part.Open()
	if err != nil {
		return NewInternalError("failed to open chunk payload", err)
	}
	defer src.Close()

	if err := h.assembler.ReceiveChunk(c.Request().Context(), uploadID, chunkIndex, src); err != nil {
		return mapDomainError(err, "upload")
	}
	return c.NoContent(http.StatusAccepted)
}

type completeUploadRequest struct {
	UploadID        string `json:"uploadId"`
	FileName        string `json:"fileName"`
	TotalChunks     int    `json:"totalChunks"`
	MimeType        string `json:"mimeType"`
	Size            int64  `json:"size"`
	ServiceCategory string `json:"serviceCategory"`
	Description     string `json:"description"`
	FolderID        string `json:"folderId"`
}

// HandleCompleteUpload finalizes a chunked upload and records the file
func (h *UploadHandlerImpl) HandleCompleteUpload(c echo.Context) error {
	var req completeUploadRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}

	f, err := h.catalog.CompleteUpload(c.Request().Context(), callerIdentity(c), catalog.CompleteUploadRequest{
		UploadID:        req.UploadID,
		FileName:        req.FileName,
		TotalChunks:     req.TotalChunks,
		MimeType:        req.MimeType,
		Size:            req.Size,
		ServiceCategory: req.ServiceCategory,
		Description:     req.Description,
		FolderID:        req.FolderID,
	})
	if err != nil {
		return mapDomainError(err, "upload")
	}
	return c.JSON(http.StatusCreated, f)
}

// HandleUploadBinary accepts a whole file in one multipart request, for
// payloads small enough that chunking is not worth it
func (h *UploadHandlerImpl) HandleUploadBinary(c echo.Context) error {
	part, err := c.FormFile("file")
	if err != nil {
		return NewBadRequestError("no file provided", err)
	}
	src, err := part.Open()
	if err != nil {
		return NewInternalError("failed to open uploaded file", err)
	}
	defer src.Close()

	mimeType := part.Header.Get("Content-Type")
	f, err := h.catalog.DirectUpload(c.Request().Context(), callerIdentity(c),
		part.Filename, mimeType, part.Size, c.FormValue("folderId"), src)
	if err != nil {
		return mapDomainError(err, "upload")
	}
	return c.JSON(http.StatusCreated, f)
}

type urlRecordRequest struct {
	SourceURL       string `json:"sourceUrl"`
	Name            string `json:"name"`
	ServiceCategory string `json:"serviceCategory"`
	FolderID        string `json:"folderId"`
}

// HandleCreateURLRecord registers an externally hosted source as a record
func (h *UploadHandlerImpl) HandleCreateURLRecord(c echo.Context) error {
	var req urlRecordRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}

	f, err := h.catalog.CreateURLRecord(c.Request().Context(), callerIdentity(c),
		req.SourceURL, req.Name, req.ServiceCategory, req.FolderID)
	if err != nil {
		return mapDomainError(err, "upload")
	}
	return c.JSON(http.StatusCreated, f)
}
