package pathway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/ptl/internal/platform/middleware"
	"github.com/ehr/ptl/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/pathways/:list")
	g.GET("", h.Worklist)
	g.GET("/summary", h.Summary)
	g.GET("/:id", h.GetEntry)
	g.POST("", h.CreateEntry)
	g.POST("/:id/events", h.AppendEvent)
	g.POST("/:id/clock-reset", h.ResetClock)
	g.DELETE("/:id", h.Archive)
}

func listParam(c echo.Context) (List, error) {
	l := List(c.Param("list"))
	if !l.Valid() {
		return "", echo.NewHTTPError(http.StatusNotFound, "unknown pathway list")
	}
	return l, nil
}

func idParam(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func storeError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "pathway entry not found")
	case errors.Is(err, ErrVersionConflict), errors.Is(err, ErrAlreadyExists):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalid):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

var createFields = map[string]bool{
	"patient_id": true, "display_name": true, "pathway_kind": true,
	"priority": true, "clock_start_date": true, "current_status_label": true,
	// server-owned, ignored on input
	"id": true, "list": true, "clock_status": true, "last_updated": true,
	"archived": true, "version": true, "events": true, "extensions": true,
}

// decodeEntry reads the known fields into an entity and keeps everything
// else in Extensions.
func decodeEntry(body []byte) (*TrackedEntity, error) {
	var e TrackedEntity
	if err := json.Unmarshal(body, &e); err != nil {
		return nil, err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	for k, v := range raw {
		if createFields[k] {
			continue
		}
		if e.Extensions == nil {
			e.Extensions = make(map[string]json.RawMessage)
		}
		e.Extensions[k] = v
	}
	return &TrackedEntity{
		PatientID:          e.PatientID,
		DisplayName:        e.DisplayName,
		PathwayKind:        e.PathwayKind,
		Priority:           e.Priority,
		ClockStartDate:     e.ClockStartDate,
		CurrentStatusLabel: e.CurrentStatusLabel,
		Extensions:         e.Extensions,
	}, nil
}

func (h *Handler) CreateEntry(c echo.Context) error {
	list, err := listParam(c)
	if err != nil {
		return err
	}
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	e, err := decodeEntry(body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateEntry(c.Request().Context(), list, e, middleware.Actor(c)); err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusCreated, e)
}

func (h *Handler) GetEntry(c echo.Context) error {
	list, err := listParam(c)
	if err != nil {
		return err
	}
	id, err := idParam(c)
	if err != nil {
		return err
	}
	v, err := h.svc.GetEntry(c.Request().Context(), list, id)
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) Worklist(c echo.Context) error {
	list, err := listParam(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, _, err := h.svc.Worklist(c.Request().Context(), list, Tier(c.QueryParam("tier")))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(pagination.Page(items, pg), len(items), pg.Limit, pg.Offset))
}

func (h *Handler) Summary(c echo.Context) error {
	list, err := listParam(c)
	if err != nil {
		return err
	}
	sum, err := h.svc.Summary(c.Request().Context(), list)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, sum)
}

func (h *Handler) AppendEvent(c echo.Context) error {
	list, err := listParam(c)
	if err != nil {
		return err
	}
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var u StatusUpdate
	if err := c.Bind(&u); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	e, err := h.svc.AppendEvent(c.Request().Context(), list, id, u, middleware.Actor(c))
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusOK, e)
}

type resetRequest struct {
	ClockStartDate time.Time `json:"clock_start_date"`
	Reason         string    `json:"reason"`
}

func (h *Handler) ResetClock(c echo.Context) error {
	list, err := listParam(c)
	if err != nil {
		return err
	}
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var req resetRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	e, err := h.svc.ResetClock(c.Request().Context(), list, id, req.ClockStartDate, req.Reason, middleware.Actor(c))
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) Archive(c echo.Context) error {
	list, err := listParam(c)
	if err != nil {
		return err
	}
	id, err := idParam(c)
	if err != nil {
		return err
	}
	if _, err := h.svc.Archive(c.Request().Context(), list, id, c.QueryParam("reason"), middleware.Actor(c)); err != nil {
		return storeError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
