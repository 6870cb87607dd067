package followup

import (
	"fmt"
	"net/http"
	"time"

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
	// Read endpoints – caregivers (own child) and experts
	readGroup := api.Group("", auth.RequireRole(auth.RoleCaregiver, auth.RoleExpert))
	readGroup.GET("/patients/:id/follow-ups", h.ListByPatient)

	// Manual scheduling – experts only
	writeGroup := api.Group("", auth.RequireRole(auth.RoleExpert))
	writeGroup.POST("/follow-ups", h.Schedule)
}

func (h *Handler) Schedule(c echo.Context) error {
	var req ScheduleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	last, err := time.Parse(time.DateOnly, req.LastMeasuredOn)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("last_measured_on must be YYYY-MM-DD: %q", req.LastMeasuredOn))
	}
	n, err := h.svc.ScheduleFollowUp(c.Request().Context(), req.PatientID, last)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, n)
}

func (h *Handler) ListByPatient(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	if err := auth.AuthorizePatient(c.Request().Context(), patientID); err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByPatient(c.Request().Context(), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset).WithLinks(c.Request().URL.Path))
}
