// Package guest serves the guest API.
package guest

import (
	"context"
	"errors"
	"net/http"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	apperrors "github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/errors"
	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/guests"
	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/models"
)

// Service is the guest service as used by the handlers.
type Service interface {
	CreateGuest(ctx context.Context, req guests.CreateGuestRequest) (string, error)
	GetGuest(ctx context.Context, id string) (*models.GuestWithMetrics, error)
	RenameGuest(ctx context.Context, id, name string) (*models.PropagationResult, error)
	DeleteGuest(ctx context.Context, id string) error
	ListGuestsPage(ctx context.Context, req guests.ListRequest) (*guests.GuestPage, error)
	RepairGuest(ctx context.Context, id string, collections []string) (*models.PropagationResult, error)
	BulkRepairAllGuests(ctx context.Context) ([]*models.PropagationResult, error)
}

// Handler handles guest routes
type Handler struct {
	service Service
	logger  ectologger.Logger
}

func NewHandler(service Service, logger ectologger.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes registers the guest routes. Repair routes go on the admin group.
func (h *Handler) RegisterRoutes(g *echo.Group, admin *echo.Group) {
	g.POST("/guests", h.CreateGuest)
	g.GET("/guests", h.ListGuests)
	g.GET("/guests/:id", h.GetGuest)
	g.PUT("/guests/:id/name", h.RenameGuest)
	g.DELETE("/guests/:id", h.DeleteGuest)

	admin.POST("/guests/repair", h.RepairAllGuests)
	admin.POST("/guests/:id/repair", h.RepairGuest)
}

type createResponse struct {
	ID string `json:"id"`
}

// RepairRequest names the collections to re-sync; empty means all.
type RepairRequest struct {
	Collections []string `json:"collections"`
}

// RepairSummary reports a bulk repair run.
type RepairSummary struct {
	Guests         int                   `json:"guests"`
	UpdatedRecords models.UpdatedRecords `json:"updatedRecords"`
	Failed         []string              `json:"failed"`
	Cancelled      bool                  `json:"cancelled,omitempty"`
}

func (h *Handler) CreateGuest(c echo.Context) error {
	var req guests.CreateGuestRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.NewValidationError("", "invalid request body")
	}

	id, err := h.service.CreateGuest(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, createResponse{ID: id})
}

func (h *Handler) GetGuest(c echo.Context) error {
	g, err := h.service.GetGuest(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, g)
}

// RenameGuest answers 200 with the propagation result, also when some collections failed:
// the result carries success=false and the failures.
func (h *Handler) RenameGuest(c echo.Context) error {
	var req guests.RenameGuestRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.NewValidationError("", "invalid request body")
	}

	result, err := h.service.RenameGuest(c.Request().Context(), c.Param("id"), req.Name)
	return h.propagationResponse(c, result, err)
}

func (h *Handler) DeleteGuest(c echo.Context) error {
	if err := h.service.DeleteGuest(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListGuests(c echo.Context) error {
	var req guests.ListRequest
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &req); err != nil {
		return apperrors.NewValidationError("", "invalid query parameters")
	}

	page, err := h.service.ListGuestsPage(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, page)
}

func (h *Handler) RepairGuest(c echo.Context) error {
	var req RepairRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return apperrors.NewValidationError("", "invalid request body")
		}
	}

	result, err := h.service.RepairGuest(c.Request().Context(), c.Param("id"), req.Collections)
	return h.propagationResponse(c, result, err)
}

// RepairAllGuests runs a bulk repair within the request. A client disconnect cancels it and the
// partial summary is logged.
func (h *Handler) RepairAllGuests(c echo.Context) error {
	ctx := c.Request().Context()
	results, err := h.service.BulkRepairAllGuests(ctx)

	summary := RepairSummary{Guests: len(results), Failed: []string{}}
	for _, r := range results {
		summary.UpdatedRecords.Rewards += r.UpdatedRecords.Rewards
		summary.UpdatedRecords.Receipts += r.UpdatedRecords.Receipts
		summary.UpdatedRecords.Other += r.UpdatedRecords.Other
		if !r.Success {
			summary.Failed = append(summary.Failed, r.GuestID)
		}
	}

	if err != nil {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		summary.Cancelled = true
		h.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"guests": summary.Guests,
		}).Warn("Bulk repair interrupted")
	}
	return c.JSON(http.StatusOK, summary)
}

func (h *Handler) propagationResponse(c echo.Context, result *models.PropagationResult, err error) error {
	var partial *apperrors.PartialPropagationError
	if errors.Is(err, guests.ErrGuestBusy) {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	if err != nil && !(errors.As(err, &partial) && result != nil) {
		return err
	}
	if partial != nil {
		h.logger.WithContext(c.Request().Context()).WithFields(map[string]any{
			"guest_id": result.GuestID,
			"failed":   partial.Collections(),
		}).Warn("Propagation finished with failures")
	}
	return c.JSON(http.StatusOK, result)
}
