// handlers_admin.go - Administrative operation handlers
package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/digiscribe/backend/internal/reconcile"
)

// AdminHandlerImpl implements the AdminHandler interface
type AdminHandlerImpl struct {
	sweeper *reconcile.Sweeper
}

// NewAdminHandler creates a new admin handler instance
func NewAdminHandler(sweeper *reconcile.Sweeper) AdminHandler {
	return &AdminHandlerImpl{sweeper: sweeper}
}

// HandleSync triggers one reconciliation pass and reports its counts
func (h *AdminHandlerImpl) HandleSync(c echo.Context) error {
	if !callerIdentity(c).IsAdmin() {
		return NewAccessDeniedError()
	}

	res, err := h.sweeper.RunOnce(c.Request().Context())
	if err != nil {
		if errors.Is(err, reconcile.ErrAlreadyRunning) {
			return &APIError{
				Status:  http.StatusConflict,
				Code:    "SWEEP_RUNNING",
				Message: "a reconciliation pass is already in progress",
			}
		}
		return mapDomainError(err, "sweep")
	}
	return c.JSON(http.StatusOK, res)
}
