package integration

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pankbase/functional/internal/domain/association"
	"github.com/pankbase/functional/internal/platform/auth"
	"github.com/pankbase/functional/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/integration")
	curator := auth.RequireRole(auth.RoleAdmin, auth.RoleCurator)

	g.GET("/sources", h.ListSources)
	g.POST("/sources", h.RegisterSource, curator)
	g.DELETE("/sources/:name", h.UnregisterSource, curator)
	g.POST("/analyze", h.Analyze)
	g.GET("/donors", h.ListDonors)
	g.POST("/validate", h.ValidateData)
}

// HTTPError maps integration errors onto HTTP errors.
func HTTPError(err error) error {
	var fetchErr *FetchError
	switch {
	case errors.Is(err, ErrSourceNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrDuplicateSource):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.As(err, &fetchErr):
		return echo.NewHTTPError(http.StatusBadGateway, fetchErr.Error())
	}
	return association.HTTPError(err)
}

func (h *Handler) ListSources(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListSources(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"sources":  items,
		"total":    total,
		"has_more": pg.HasNext(total),
	})
}

func (h *Handler) RegisterSource(c echo.Context) error {
	var src Source
	if err := c.Bind(&src); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&src); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	src.CreatedBy = auth.UserIDFromContext(c.Request().Context())
	if err := h.svc.RegisterSource(c.Request().Context(), &src); err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusCreated, &src)
}

func (h *Handler) UnregisterSource(c echo.Context) error {
	if err := h.svc.UnregisterSource(c.Request().Context(), c.Param("name")); err != nil {
		return HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Analyze(c echo.Context) error {
	var req AnalyzeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	resp, err := h.svc.Analyze(c.Request().Context(), req)
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) ListDonors(c echo.Context) error {
	list, err := h.svc.Donors(c.Request().Context())
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *Handler) ValidateData(c echo.Context) error {
	var data map[string]map[string]any
	if err := c.Bind(&data); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	rep, err := h.svc.Validate(c.Request().Context(), data)
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, rep)
}
