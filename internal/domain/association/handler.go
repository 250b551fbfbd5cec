package association

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pankbase/functional/internal/domain/cohort"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/analysis")
	g.GET("/variables", h.ListVariables)
	g.GET("/methods", h.ListMethods)
	g.GET("/traits", h.ListTraits)
	g.POST("/association", h.RunAssociation)
}

// HTTPError maps analysis errors onto HTTP errors. Dataset errors fall
// through to the cohort mapping.
func HTTPError(err error) error {
	var invalid *InvalidRequestError
	if errors.As(err, &invalid) {
		return echo.NewHTTPError(http.StatusBadRequest, invalid.Error())
	}
	return cohort.HTTPError(err)
}

func (h *Handler) ListVariables(c echo.Context) error {
	cat, err := h.svc.Variables(c.Request().Context())
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, cat)
}

func (h *Handler) ListMethods(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"methods": Methods()})
}

func (h *Handler) ListTraits(c echo.Context) error {
	cats, total, err := h.svc.TraitCategories(c.Request().Context())
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"categories":   cats,
		"total_traits": total,
	})
}

func (h *Handler) RunAssociation(c echo.Context) error {
	var req AssociationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	resp, err := h.svc.Associate(c.Request().Context(), req)
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, resp)
}
