package monitor

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	r *Reevaluator
}

func NewHandler(r *Reevaluator) *Handler {
	return &Handler{r: r}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/reevaluate", h.Reevaluate)
}

// Reevaluate runs one tick synchronously and reports its counts.
func (h *Handler) Reevaluate(c echo.Context) error {
	res, err := h.r.Tick(c.Request().Context(), h.r.now())
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	return c.JSON(http.StatusOK, res)
}
