package diagnosis

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
	// Catalog reads – any authenticated user
	api.GET("/symptoms", h.ListSymptoms)
	api.GET("/conditions", h.ListConditions)

	// Diagnosis – caregivers and experts
	shared := api.Group("", auth.RequireRole(auth.RoleCaregiver, auth.RoleExpert))
	shared.POST("/diagnoses", h.Infer)
	shared.GET("/diagnoses/:id", h.GetSession)

	// Knowledge base and history – experts only
	expert := api.Group("", auth.RequireRole(auth.RoleExpert))
	expert.GET("/patients/:id/diagnoses", h.ListSessionsByPatient)
	expert.GET("/rule-groups", h.ListRuleGroups)
	expert.POST("/rule-groups", h.CreateRuleGroup)
}

type inferRequest struct {
	PatientID uuid.UUID `json:"patient_id"`
	Symptoms  []string  `json:"symptoms"`
}

func (h *Handler) Infer(c echo.Context) error {
	var req inferRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.PatientID != uuid.Nil {
		if err := auth.AuthorizePatient(c.Request().Context(), req.PatientID); err != nil {
			return err
		}
	}
	result, err := h.svc.Infer(c.Request().Context(), req.PatientID, req.Symptoms)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, result)
}

func (h *Handler) GetSession(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	detail, err := h.svc.GetSession(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	if err := auth.AuthorizePatient(c.Request().Context(), detail.Session.PatientID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, detail)
}

func (h *Handler) ListSessionsByPatient(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListSessionsByPatient(c.Request().Context(), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset).WithLinks(c.Request().URL.Path))
}

func (h *Handler) ListSymptoms(c echo.Context) error {
	items, err := h.svc.ListSymptoms(c.Request().Context())
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) ListConditions(c echo.Context) error {
	items, err := h.svc.ListConditions(c.Request().Context())
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) ListRuleGroups(c echo.Context) error {
	groups, err := h.svc.ListRuleGroups(c.Request().Context())
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, groups)
}

func (h *Handler) CreateRuleGroup(c echo.Context) error {
	var in RuleGroupInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	group, err := h.svc.CreateRuleGroup(c.Request().Context(), in)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, group)
}
