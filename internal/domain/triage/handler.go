package triage

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/otriage/otriage/internal/platform/auth"
	"github.com/otriage/otriage/internal/platform/registry"
)

// RecordFunc persists an evaluated case. Persistence failures never fail
// the evaluation itself.
type RecordFunc func(ctx context.Context, raw RawInput, res *Result) error

type Handler struct {
	svc    *Service
	rules  *registry.Cached
	record RecordFunc
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithRecorder attaches a case-persistence hook to successful evaluations.
func WithRecorder(fn RecordFunc) HandlerOption {
	return func(h *Handler) { h.record = fn }
}

func NewHandler(svc *Service, rules *registry.Cached, opts ...HandlerOption) *Handler {
	h := &Handler{svc: svc, rules: rules}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	evalGroup := api.Group("", auth.RequireRole("admin", "physician", "nurse", "triage_bot"))
	evalGroup.POST("/triage", h.Evaluate)
	evalGroup.GET("/registry/warnings", h.RegistryWarnings)

	adminGroup := api.Group("", auth.RequireRole("admin"))
	adminGroup.POST("/registry/reload", h.ReloadRegistry)
}

// Evaluate runs one full triage evaluation over a raw case.
func (h *Handler) Evaluate(c echo.Context) error {
	var raw RawInput
	if err := c.Bind(&raw); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	res, err := h.svc.Triage(c.Request().Context(), raw)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if h.record != nil {
		if err := h.record(c.Request().Context(), raw, res); err != nil {
			h.svc.log.Warn().Err(err).Msg("failed to persist triage case")
		}
	}
	return c.JSON(http.StatusOK, res)
}

// RegistryWarnings exposes the consistency findings of the loaded rules.
func (h *Handler) RegistryWarnings(c echo.Context) error {
	reg, err := h.rules.Load(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{
		"warnings": reg.Warnings,
		"count":    len(reg.Warnings),
	})
}

// ReloadRegistry swaps in freshly-loaded rules; the previous registry stays
// active when the reload fails.
func (h *Handler) ReloadRegistry(c echo.Context) error {
	reg, err := h.rules.Reload(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{
		"areas":      reg.Areas,
		"conditions": len(reg.GlobalIDs),
		"warnings":   len(reg.Warnings),
	})
}
