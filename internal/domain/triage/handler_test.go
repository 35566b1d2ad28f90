package triage

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/otriage/otriage/internal/platform/auth"
	"github.com/otriage/otriage/internal/platform/registry"
)

func newTestServer(t *testing.T, opts ...HandlerOption) *echo.Echo {
	t.Helper()
	rules := registry.NewCached(registry.NewFileLoader(registry.EmbedSource{}, zerolog.Nop()))
	svc := NewService(rules, passthroughNormalizer{}, zerolog.Nop())

	e := echo.New()
	e.Use(auth.DevAuthMiddleware())
	NewHandler(svc, rules, opts...).RegisterRoutes(e.Group("/api/v1"))
	return e
}

func TestEvaluateEndpoint(t *testing.T) {
	e := newTestServer(t)

	body := `{"symptoms": ["rinorreia", "obstrucao_nasal"], "paciente_nome": "Ana"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/triage", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var res Result
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if len(res.Ranking) == 0 || res.Ranking[0].GlobalID != "uri_nasofaringite" {
		t.Errorf("ranking = %+v", res.Ranking)
	}
	if res.Outputs.Resumo.Paciente.Nome != "Ana" {
		t.Errorf("patient name lost: %+v", res.Outputs.Resumo.Paciente)
	}
}

func TestEvaluateRecordsCase(t *testing.T) {
	recorded := 0
	e := newTestServer(t, WithRecorder(func(context.Context, RawInput, *Result) error {
		recorded++
		return nil
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/triage",
		strings.NewReader(`{"symptoms": ["otalgia"]}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if recorded != 1 {
		t.Errorf("recorder called %d times, want 1", recorded)
	}
}

func TestEvaluateBadPayload(t *testing.T) {
	e := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/triage", strings.NewReader(`{not json`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestEvaluateForbiddenForUnknownRole(t *testing.T) {
	rules := registry.NewCached(registry.NewFileLoader(registry.EmbedSource{}, zerolog.Nop()))
	svc := NewService(rules, passthroughNormalizer{}, zerolog.Nop())

	e := echo.New()
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := context.WithValue(c.Request().Context(), auth.UserRolesKey, []string{"patient"})
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	})
	NewHandler(svc, rules).RegisterRoutes(e.Group("/api/v1"))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/triage",
		strings.NewReader(`{"symptoms": ["otalgia"]}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestRegistryWarningsEndpoint(t *testing.T) {
	e := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/registry/warnings", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if _, ok := body["count"]; !ok {
		t.Errorf("response missing count: %v", body)
	}
}

func TestReloadRegistryEndpoint(t *testing.T) {
	e := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/registry/reload", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}
