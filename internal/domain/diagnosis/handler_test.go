package diagnosis

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/growthwatch/growthwatch/internal/platform/auth"
)

func newTestHandler() (*Handler, *fixture, *echo.Echo) {
	f := newFixture()
	return NewHandler(f.svc), f, echo.New()
}

func withRole(req *http.Request, role, patient string) *http.Request {
	ctx := auth.WithIdentity(req.Context(), "user-1", []string{role})
	if patient != "" {
		ctx = auth.WithPatient(ctx, patient)
	}
	return req.WithContext(ctx)
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return withRole(req, auth.RoleExpert, "")
}

func expertGet() *http.Request {
	return withRole(httptest.NewRequest(http.MethodGet, "/", nil), auth.RoleExpert, "")
}

func httpStatus(t *testing.T, err error) int {
	t.Helper()
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T (%v)", err, err)
	}
	return httpErr.Code
}

func TestHandler_Infer(t *testing.T) {
	h, f, e := newTestHandler()
	body := `{"patient_id":"` + f.patientID.String() + `","symptoms":["G01","G02"]}`
	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/api/v1/diagnoses", body), rec)

	if err := h.Infer(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var res InferenceResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Condition == nil || res.Condition.Code != "K01" {
		t.Errorf("expected K01, got %+v", res.Condition)
	}
}

func TestHandler_Infer_UnknownPatient(t *testing.T) {
	h, _, e := newTestHandler()
	body := `{"patient_id":"` + uuid.New().String() + `","symptoms":["G01"]}`
	c := e.NewContext(jsonRequest(http.MethodPost, "/", body), httptest.NewRecorder())

	if got := httpStatus(t, h.Infer(c)); got != http.StatusNotFound {
		t.Errorf("expected 404, got %d", got)
	}
}

func TestHandler_Infer_MissingPatient(t *testing.T) {
	h, _, e := newTestHandler()
	c := e.NewContext(jsonRequest(http.MethodPost, "/", `{"symptoms":["G01"]}`), httptest.NewRecorder())

	if got := httpStatus(t, h.Infer(c)); got != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", got)
	}
}

func TestHandler_GetSession(t *testing.T) {
	h, f, e := newTestHandler()
	res, _ := f.svc.Infer(context.Background(), f.patientID, []string{"G02", "G03", "G05"})

	rec := httptest.NewRecorder()
	c := e.NewContext(expertGet(), rec)
	c.SetParamNames("id")
	c.SetParamValues(res.SessionID.String())

	if err := h.GetSession(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"K02"`) {
		t.Errorf("expected K02 in body, got %s", rec.Body.String())
	}
}

func TestHandler_GetSession_BadID(t *testing.T) {
	h, _, e := newTestHandler()
	c := e.NewContext(expertGet(), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")

	if got := httpStatus(t, h.GetSession(c)); got != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", got)
	}
}

func TestHandler_ListSessionsByPatient(t *testing.T) {
	h, f, e := newTestHandler()
	_, _ = f.svc.Infer(context.Background(), f.patientID, []string{"G01", "G02"})
	_, _ = f.svc.Infer(context.Background(), f.patientID, nil)

	rec := httptest.NewRecorder()
	c := e.NewContext(expertGet(), rec)
	c.SetParamNames("id")
	c.SetParamValues(f.patientID.String())

	if err := h.ListSessionsByPatient(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body struct {
		Total int `json:"total"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Total != 2 {
		t.Errorf("expected 2 sessions, got %d", body.Total)
	}
}

func TestHandler_CreateRuleGroup(t *testing.T) {
	h, _, e := newTestHandler()
	rec := httptest.NewRecorder()
	body := `{"condition_code":"K01","group_code":"R03","symptoms":["G04","G02"]}`
	c := e.NewContext(jsonRequest(http.MethodPost, "/", body), rec)

	if err := h.CreateRuleGroup(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}

	c = e.NewContext(jsonRequest(http.MethodPost, "/", `{"condition_code":"K01"}`), httptest.NewRecorder())
	if got := httpStatus(t, h.CreateRuleGroup(c)); got != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", got)
	}
}

func TestHandler_ListCatalog(t *testing.T) {
	h, _, e := newTestHandler()

	rec := httptest.NewRecorder()
	if err := h.ListSymptoms(e.NewContext(expertGet(), rec)); err != nil {
		t.Fatalf("ListSymptoms: %v", err)
	}
	var symptoms []Symptom
	_ = json.Unmarshal(rec.Body.Bytes(), &symptoms)
	if len(symptoms) != 5 || symptoms[0].Code != "G01" {
		t.Errorf("unexpected symptoms %+v", symptoms)
	}

	rec = httptest.NewRecorder()
	if err := h.ListConditions(e.NewContext(expertGet(), rec)); err != nil {
		t.Fatalf("ListConditions: %v", err)
	}
	if !strings.Contains(rec.Body.String(), "Stunting Sedang") {
		t.Errorf("unexpected conditions body %s", rec.Body.String())
	}
}

func TestHandler_RoutesEnforceRoles(t *testing.T) {
	h, _, e := newTestHandler()
	api := e.Group("/api/v1", func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			c.SetRequest(req.WithContext(auth.WithIdentity(req.Context(), "parent-1", []string{auth.RoleCaregiver})))
			return next(c)
		}
	})
	h.RegisterRoutes(api)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/rule-groups", nil))
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected caregiver to be refused rule groups, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/symptoms", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected caregiver to read symptoms, got %d", rec.Code)
	}
}

func TestHandler_CaregiverBoundToOwnChild(t *testing.T) {
	h, f, e := newTestHandler()
	stranger := uuid.New().String()

	body := `{"patient_id":"` + f.patientID.String() + `","symptoms":["G01","G02"]}`
	req := jsonRequest(http.MethodPost, "/", body)
	req = withRole(req, auth.RoleCaregiver, f.patientID.String())
	rec := httptest.NewRecorder()
	if err := h.Infer(e.NewContext(req, rec)); err != nil {
		t.Fatalf("expected caregiver to diagnose own child, got %v", err)
	}
	var res InferenceResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}

	req = withRole(jsonRequest(http.MethodPost, "/", body), auth.RoleCaregiver, stranger)
	if got := httpStatus(t, h.Infer(e.NewContext(req, httptest.NewRecorder()))); got != http.StatusForbidden {
		t.Errorf("Infer: expected 403 for another child, got %d", got)
	}

	get := withRole(httptest.NewRequest(http.MethodGet, "/", nil), auth.RoleCaregiver, stranger)
	c := e.NewContext(get, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(res.SessionID.String())
	if got := httpStatus(t, h.GetSession(c)); got != http.StatusForbidden {
		t.Errorf("GetSession: expected 403 for another child, got %d", got)
	}
}
