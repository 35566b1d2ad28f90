package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func newRoleTestContext(roles []string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if roles != nil {
		ctx := context.WithValue(req.Context(), UserRolesKey, roles)
		req = req.WithContext(ctx)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec)
}

func TestRequireRoleAllowsMatchingRole(t *testing.T) {
	mw := RequireRole("physician", "nurse")
	handler := mw(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	c := newRoleTestContext([]string{"nurse"})
	if err := handler(c); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRequireRoleAdminAlwaysPasses(t *testing.T) {
	mw := RequireRole("physician")
	handler := mw(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	c := newRoleTestContext([]string{"admin"})
	if err := handler(c); err != nil {
		t.Errorf("admin should always pass, got %v", err)
	}
}

func TestRequireRoleRejectsWrongRole(t *testing.T) {
	mw := RequireRole("physician")
	handler := mw(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	c := newRoleTestContext([]string{"triage_bot"})
	err := handler(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %v", err)
	}
}

func TestRequireRoleRejectsNoRoles(t *testing.T) {
	mw := RequireRole("physician")
	handler := mw(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	c := newRoleTestContext(nil)
	err := handler(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %v", err)
	}
}
