package notification

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	recent     *MemorySender
	dispatcher *Dispatcher
}

func NewHandler(recent *MemorySender, dispatcher *Dispatcher) *Handler {
	return &Handler{recent: recent, dispatcher: dispatcher}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/alerts", h.ListAlerts)
}

// ListAlerts handles GET /alerts?limit=N.
func (h *Handler) ListAlerts(c echo.Context) error {
	limit := 100
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a non-negative integer")
		}
		limit = n
	}
	resp := map[string]interface{}{
		"alerts": h.recent.Recent(limit),
	}
	if h.dispatcher != nil {
		resp["stats"] = h.dispatcher.Stats()
	}
	return c.JSON(http.StatusOK, resp)
}
