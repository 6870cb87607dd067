package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/growthwatch/growthwatch/internal/config"
	"github.com/growthwatch/growthwatch/internal/platform/auth"
	"github.com/growthwatch/growthwatch/internal/platform/middleware"
)

const testKey = "0123456789abcdef0123456789abcdef"

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := rootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestZScoreCommand(t *testing.T) {
	out, err := runCmd(t, "zscore", "--birth", "2020-05-15", "--measured", "2024-05-14",
		"--sex", "L", "--weight", "18.2", "--height", "126.2")
	if err != nil {
		t.Fatalf("zscore: %v", err)
	}
	want := "age_months=48 weight_for_age=0.20 height_for_age=-1.00"
	if strings.TrimSpace(out) != want {
		t.Errorf("got %q, want %q", out, want)
	}
}

func TestZScoreCommand_Rejects(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"bad birth", []string{"--birth", "15/05/2020", "--sex", "male"}},
		{"unknown sex", []string{"--birth", "2020-05-15", "--sex", "x"}},
		{"measured before birth", []string{"--birth", "2020-05-15", "--measured", "2019-01-01", "--sex", "f", "--weight", "3", "--height", "50"}},
		{"negative weight", []string{"--birth", "2020-05-15", "--measured", "2021-01-01", "--sex", "f", "--weight", "-3", "--height", "50"}},
		{"missing weight", []string{"--birth", "2020-05-15", "--measured", "2021-01-01", "--sex", "f", "--height", "50"}},
		{"missing height", []string{"--birth", "2020-05-15", "--measured", "2021-01-01", "--sex", "f", "--weight", "3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := runCmd(t, append([]string{"zscore"}, tt.args...)...); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestTokenCommand(t *testing.T) {
	out, err := runCmd(t, "token", "--subject", "expert-1", "--role", "Expert", "--key", testKey, "--issuer", "growthwatch")
	if err != nil {
		t.Fatalf("token: %v", err)
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(out))
	c := e.NewContext(req, httptest.NewRecorder())

	var roles []string
	err = auth.JWTMiddleware(auth.JWTConfig{SigningKey: []byte(testKey), Issuer: "growthwatch"})(func(c echo.Context) error {
		roles = auth.RolesFromContext(c.Request().Context())
		return nil
	})(c)
	if err != nil {
		t.Fatalf("issued token rejected: %v", err)
	}
	if len(roles) != 1 || roles[0] != auth.RoleExpert {
		t.Errorf("expected normalised expert role, got %v", roles)
	}
}

func TestTokenCommand_Rejects(t *testing.T) {
	if _, err := runCmd(t, "token", "--subject", "u", "--key", "short"); err == nil {
		t.Error("expected short key to be rejected")
	}
	if _, err := runCmd(t, "token", "--subject", "u", "--key", testKey, "--role", "nurse"); err == nil {
		t.Error("expected unknown role to be rejected")
	}
	if _, err := runCmd(t, "token", "--subject", "u", "--key", testKey, "--role", "caregiver"); err == nil {
		t.Error("expected caregiver token without a patient to be rejected")
	}
	if _, err := runCmd(t, "token", "--subject", "u", "--key", testKey, "--patient", "child-1"); err == nil {
		t.Error("expected malformed patient id to be rejected")
	}
}

func TestTokenCommand_CaregiverPatient(t *testing.T) {
	const child = "6f1c2b4e-8d3a-4a7b-9c11-2e5f0a9d7b10"
	out, err := runCmd(t, "token", "--subject", "parent-1", "--key", testKey, "--issuer", "growthwatch", "--patient", child)
	if err != nil {
		t.Fatalf("token: %v", err)
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(out))
	c := e.NewContext(req, httptest.NewRecorder())

	var patient string
	err = auth.JWTMiddleware(auth.JWTConfig{SigningKey: []byte(testKey), Issuer: "growthwatch"})(func(c echo.Context) error {
		patient = auth.PatientFromContext(c.Request().Context())
		return nil
	})(c)
	if err != nil {
		t.Fatalf("issued token rejected: %v", err)
	}
	if patient != child {
		t.Errorf("expected patient claim %s, got %q", child, patient)
	}
}

type nopPinger struct{}

func (nopPinger) Ping(context.Context) error { return nil }
func (nopPinger) Stat() *pgxpool.Stat        { return nil }

type pingHandler struct{}

func (pingHandler) RegisterRoutes(api *echo.Group) {
	api.GET("/ping", func(c echo.Context) error {
		return c.String(http.StatusOK, auth.UserIDFromContext(c.Request().Context()))
	}, auth.RequireRole(auth.RoleExpert))
}

func testServer(env string) *echo.Echo {
	cfg := &config.Config{
		Env:            env,
		AuthSigningKey: testKey,
		AuthIssuer:     "growthwatch",
		CORSOrigins:    []string{"http://localhost:3000"},
		RateLimitRPS:   100,
		RateLimitBurst: 100,
		RequestTimeout: 5 * time.Second,
		BodyLimit:      "64K",
	}
	return newEcho(cfg, zerolog.Nop(), nopPinger{}, []routeHandler{pingHandler{}})
}

func serve(e *echo.Echo, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestServer_HealthIsPublic(t *testing.T) {
	rec := serve(testServer("production"), "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get(middleware.RequestIDHeader) == "" {
		t.Error("expected a request id header")
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected security headers")
	}
}

func TestServer_ProductionRequiresToken(t *testing.T) {
	e := testServer("production")

	if rec := serve(e, "/api/v1/ping", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", rec.Code)
	}

	caregiver, _ := auth.IssueToken([]byte(testKey), "growthwatch", "parent-1", "", []string{auth.RoleCaregiver}, time.Hour)
	if rec := serve(e, "/api/v1/ping", caregiver); rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for caregiver, got %d", rec.Code)
	}

	expert, _ := auth.IssueToken([]byte(testKey), "growthwatch", "expert-1", "", []string{auth.RoleExpert}, time.Hour)
	rec := serve(e, "/api/v1/ping", expert)
	if rec.Code != http.StatusOK || rec.Body.String() != "expert-1" {
		t.Errorf("expected 200 expert-1, got %d %q", rec.Code, rec.Body.String())
	}
}

func TestServer_DevelopmentDefaultsToExpert(t *testing.T) {
	rec := serve(testServer("development"), "/api/v1/ping", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "dev-user" {
		t.Errorf("expected dev user access, got %d %q", rec.Code, rec.Body.String())
	}
}
