package growth

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/growthwatch/growthwatch/internal/platform/apperr"
	"github.com/growthwatch/growthwatch/internal/platform/auth"
	"github.com/growthwatch/growthwatch/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Caregivers are further limited to their own child in each handler.
	g := api.Group("", auth.RequireRole(auth.RoleCaregiver, auth.RoleExpert))
	g.POST("/measurements", h.RecordMeasurement)
	g.GET("/measurements/:id", h.GetMeasurement)
	g.GET("/patients/:id/measurements", h.History)
	g.GET("/patients/:id/growth-chart", h.GrowthChart)

	// Re-scoring backfilled rows – experts only
	expert := api.Group("", auth.RequireRole(auth.RoleExpert))
	expert.POST("/measurements/:id/score", h.ScoreMeasurement)
}

func (h *Handler) RecordMeasurement(c echo.Context) error {
	var in MeasurementInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if in.PatientID != uuid.Nil {
		if err := auth.AuthorizePatient(c.Request().Context(), in.PatientID); err != nil {
			return err
		}
	}
	res, err := h.svc.RecordMeasurement(c.Request().Context(), in)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, res)
}

func (h *Handler) GetMeasurement(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	m, err := h.svc.GetMeasurement(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	if err := auth.AuthorizePatient(c.Request().Context(), m.PatientID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) ScoreMeasurement(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	m, err := h.svc.ScoreMeasurement(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) History(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	if err := auth.AuthorizePatient(c.Request().Context(), patientID); err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.History(c.Request().Context(), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset).WithLinks(c.Request().URL.Path))
}

func (h *Handler) GrowthChart(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	if err := auth.AuthorizePatient(c.Request().Context(), patientID); err != nil {
		return err
	}
	chart, err := h.svc.GrowthChart(c.Request().Context(), patientID)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, chart)
}
