package cohort

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

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
	filter := api.Group("/filter")
	filter.GET("/metadata", h.GetMetadata)
	filter.GET("/timeseries-types", h.ListSeriesTypes)
	filter.POST("/donors", h.FilterDonors)
	filter.POST("/traits", h.FilterTraits)
	filter.POST("/timeseries", h.FilterTimeSeries)
	filter.POST("/download", h.Download)

	admin := api.Group("/admin", auth.RequireRole(auth.RoleAdmin, auth.RoleCurator))
	admin.POST("/reload", h.Reload)
}

// HTTPError maps a cohort error onto an HTTP error.
func HTTPError(err error) error {
	var unknown *UnknownFieldError
	var invalid *InvalidFilterError
	var integrity *DataIntegrityError
	switch {
	case errors.As(err, &unknown):
		return echo.NewHTTPError(http.StatusBadRequest, unknown.Error())
	case errors.As(err, &invalid):
		return echo.NewHTTPError(http.StatusBadRequest, invalid.Error())
	case errors.As(err, &integrity):
		return echo.NewHTTPError(http.StatusConflict, map[string]any{
			"message":    "dataset failed integrity checks",
			"violations": integrity.Violations,
		})
	case errors.Is(err, ErrNotLoaded):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

func (h *Handler) GetMetadata(c echo.Context) error {
	md, err := h.svc.Metadata(c.Request().Context())
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, md)
}

func (h *Handler) ListSeriesTypes(c echo.Context) error {
	types, err := h.svc.SeriesTypes(c.Request().Context())
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"timeseries_types": types})
}

func (h *Handler) FilterDonors(c echo.Context) error {
	var crit Criteria
	if err := c.Bind(&crit); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid filter body")
	}
	p := pagination.FromContext(c)
	res, err := h.svc.Donors(c.Request().Context(), crit, p)
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) FilterTraits(c echo.Context) error {
	var req TraitsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	res, err := h.svc.Traits(c.Request().Context(), req)
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) FilterTimeSeries(c echo.Context) error {
	var req TimeSeriesRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	res, err := h.svc.TimeSeries(c.Request().Context(), req)
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, res)
}

// Download returns the filtered cohort as a zip of CSV files, or as a JSON
// bundle when format is json.
func (h *Handler) Download(c echo.Context) error {
	var req ExportRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	snap, err := h.svc.Snapshot()
	if err != nil {
		return HTTPError(err)
	}
	bundle, err := snap.Export(req)
	if err != nil {
		return HTTPError(err)
	}
	if req.Format == FormatJSON {
		return c.JSON(http.StatusOK, bundle)
	}

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "application/zip")
	resp.Header().Set(echo.HeaderContentDisposition, "attachment; filename=pankbase_data.zip")
	resp.WriteHeader(http.StatusOK)
	return bundle.WriteZip(resp, snap.MetadataColumns(), snap.seriesKeys)
}

func (h *Handler) Reload(c echo.Context) error {
	stats, err := h.svc.Reload(c.Request().Context())
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, stats)
}
