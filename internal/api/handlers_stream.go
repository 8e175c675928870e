// handlers_stream.go - Remote object streaming handler
package api

import (
	"errors"

	"github.com/labstack/echo/v4"

	"github.com/digiscribe/backend/internal/remote"
	"github.com/digiscribe/backend/internal/stream"
)

// StreamHandlerImpl implements the StreamHandler interface
type StreamHandlerImpl struct {
	streamer *stream.Service
}

// NewStreamHandler creates a new streaming handler instance
func NewStreamHandler(svc *stream.Service) StreamHandler {
	return &StreamHandlerImpl{streamer: svc}
}

// HandleStreamFile proxies the remote object at the request path to the
// client, honoring Range. ?download=1 forces a save dialog.
func (h *StreamHandlerImpl) HandleStreamFile(c echo.Context) error {
	remotePath := stream.CleanPath(c.Param("*"))
	if remotePath == "" {
		return NewValidationError("path")
	}

	download := c.QueryParam("download") == "1" || c.QueryParam("download") == "true"
	rangeHeader := c.Request().Header.Get("Range")

	err := h.streamer.Serve(c.Request().Context(), c.Response(), remotePath, rangeHeader, download)
	if err != nil {
		if errors.Is(err, remote.ErrNotFound) {
			return NewNotFoundError("file", remotePath)
		}
		return NewRemoteError(err)
	}
	return nil
}
