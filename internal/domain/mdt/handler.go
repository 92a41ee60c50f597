package mdt

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/ptl/internal/domain/pathway"
	"github.com/ehr/ptl/internal/platform/middleware"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/mdt-discussions", h.ListDiscussions)
	api.POST("/mdt-discussions", h.RecordDiscussion)
	api.PUT("/mdt-discussions/:id/outcome", h.RecordOutcome)
}

func (h *Handler) RecordDiscussion(c echo.Context) error {
	var d Discussion
	if err := c.Bind(&d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.RecordDiscussion(c.Request().Context(), &d, middleware.Actor(c)); err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) ListDiscussions(c echo.Context) error {
	patientID := c.QueryParam("patient_id")
	if patientID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "patient_id is required")
	}
	items, err := h.svc.ListByPatient(c.Request().Context(), patientID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []*Discussion{}
	}
	return c.JSON(http.StatusOK, items)
}

type outcomeRequest struct {
	Outcome string `json:"outcome"`
}

func (h *Handler) RecordOutcome(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req outcomeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d, err := h.svc.RecordOutcome(c.Request().Context(), id, req.Outcome)
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func serviceError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "mdt discussion not found")
	case errors.Is(err, pathway.ErrInvalid):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
