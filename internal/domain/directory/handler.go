package directory

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/AmalSalhi1/BeedicalApp/internal/platform/apperr"
	"github.com/AmalSalhi1/BeedicalApp/internal/platform/auth"
	"github.com/AmalSalhi1/BeedicalApp/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/doctors", h.SearchDoctors)
	api.GET("/doctors/:id", h.GetDoctor)
	api.GET("/cities", h.ListCities)
	api.GET("/specialties", h.ListSpecialties)

	admin := api.Group("/admin", auth.RequireRole("admin"))
	admin.PUT("/doctors/:id/availability", h.ReplaceAvailability)
}

func (h *Handler) SearchDoctors(c echo.Context) error {
	pg := pagination.FromContext(c)
	result, err := h.svc.Search(c.Request().Context(), SearchQuery{
		Query:    c.QueryParam("query"),
		Location: c.QueryParam("location"),
		Page:     pg.Page,
		PageSize: pg.PageSize,
	})
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) GetDoctor(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	d, err := h.svc.GetDoctor(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) ListCities(c echo.Context) error {
	cities, err := h.svc.ListCities(c.Request().Context(), c.QueryParam("query"))
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, cities)
}

func (h *Handler) ListSpecialties(c echo.Context) error {
	specialties, err := h.svc.ListSpecialties(c.Request().Context(), c.QueryParam("query"))
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, specialties)
}

func (h *Handler) ReplaceAvailability(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req struct {
		Windows []AvailabilityWindow `json:"windows"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.ReplaceAvailability(c.Request().Context(), id, req.Windows); err != nil {
		return apperr.HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
