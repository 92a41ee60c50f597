package resolver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	resolver *Resolver
}

func NewHandler(r *Resolver) *Handler {
	return &Handler{resolver: r}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/patients/:patientId", h.ResolvePatient)
}

func (h *Handler) ResolvePatient(c echo.Context) error {
	view, err := h.resolver.Resolve(c.Request().Context(), c.Param("patientId"))
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return c.JSON(http.StatusNotFound, map[string]interface{}{
			"message":             nf.Error(),
			"patient_id":          nf.PatientID,
			"unavailable_sources": nf.Unavailable,
		})
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, view)
}
