package cases

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/otriage/otriage/internal/domain/triage"
	"github.com/otriage/otriage/internal/platform/auth"
	"github.com/otriage/otriage/internal/platform/registry"
)

func newCaseServer(svc *Service) *echo.Echo {
	e := echo.New()
	e.Use(auth.DevAuthMiddleware())
	NewHandler(svc).RegisterRoutes(e.Group("/api/v1"))
	return e
}

func TestListCasesEndpoint(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := svc.Record(ctx, triage.RawInput{}, sampleResult()); err != nil {
			t.Fatal(err)
		}
	}
	e := newCaseServer(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cases?limit=2", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Data    []Case `json:"data"`
		Total   int    `json:"total"`
		HasMore bool   `json:"has_more"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Total != 3 || len(body.Data) != 2 || !body.HasMore {
		t.Errorf("page = %d items, total %d, has_more %v", len(body.Data), body.Total, body.HasMore)
	}
}

func TestListCasesFilteredByVia(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	emergency := sampleResult()
	emergency.Outputs.Via = registry.RouteEmergenciaGeral
	for _, res := range []*triage.Result{sampleResult(), emergency} {
		if _, err := svc.Record(ctx, triage.RawInput{}, res); err != nil {
			t.Fatal(err)
		}
	}
	e := newCaseServer(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cases?via=emergencia_geral", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var body struct {
		Total int `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Total != 1 {
		t.Errorf("total = %d, want 1", body.Total)
	}
}

func TestGetCaseEndpoint(t *testing.T) {
	svc := newTestService()
	c, err := svc.Record(context.Background(), triage.RawInput{}, sampleResult())
	if err != nil {
		t.Fatal(err)
	}
	e := newCaseServer(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cases/"+c.ID.String(), nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got Case
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.ID != c.ID {
		t.Errorf("id = %s, want %s", got.ID, c.ID)
	}
}

func TestGetCaseNotFound(t *testing.T) {
	e := newCaseServer(newTestService())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cases/6f1e2ab0-0000-0000-0000-000000000000", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestGetCaseBadID(t *testing.T) {
	e := newCaseServer(newTestService())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cases/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestCaseReportEndpoint(t *testing.T) {
	svc := newTestService()
	c, err := svc.Record(context.Background(), triage.RawInput{}, sampleResult())
	if err != nil {
		t.Fatal(err)
	}
	e := newCaseServer(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cases/"+c.ID.String()+"/report", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); !strings.HasPrefix(ct, "text/markdown") {
		t.Errorf("content type = %s", ct)
	}
	if !strings.Contains(rec.Body.String(), "Relatório de Triagem") {
		t.Error("report body missing title")
	}
}

func TestDeleteCaseEndpoint(t *testing.T) {
	svc := newTestService()
	c, err := svc.Record(context.Background(), triage.RawInput{}, sampleResult())
	if err != nil {
		t.Fatal(err)
	}
	e := newCaseServer(svc)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/cases/"+c.ID.String(), nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if _, err := svc.Get(context.Background(), c.ID); err != ErrNotFound {
		t.Errorf("case still present after delete: %v", err)
	}
}
