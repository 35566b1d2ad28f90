package cases

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/otriage/otriage/internal/domain/triage"
	"github.com/otriage/otriage/internal/platform/report"
)

type Service struct {
	repo     Repository
	renderer *report.Renderer
	log      zerolog.Logger
}

func NewService(repo Repository, renderer *report.Renderer, logger zerolog.Logger) *Service {
	return &Service{repo: repo, renderer: renderer, log: logger}
}

// Record stores one finished evaluation and returns the saved case.
func (s *Service) Record(ctx context.Context, input triage.RawInput, res *triage.Result) (*Case, error) {
	if res == nil {
		return nil, fmt.Errorf("cannot record a nil result")
	}
	c := &Case{
		PacienteNome: res.Outputs.Resumo.Paciente.Nome,
		Via:          res.Outputs.Via,
		ViaReason:    res.Outputs.ViaReason,
		Areas:        res.Areas,
		Input:        input,
		Result:       res,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("store case: %w", err)
	}
	s.log.Info().Str("case_id", c.ID.String()).Str("via", string(c.Via)).Msg("triage case recorded")
	return c, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Case, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Case, int, error) {
	return s.repo.List(ctx, limit, offset)
}

func (s *Service) ListByVia(ctx context.Context, via string, limit, offset int) ([]*Case, int, error) {
	return s.repo.ListByVia(ctx, via, limit, offset)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

// Report renders the stored case as a markdown handoff note.
func (s *Service) Report(ctx context.Context, id uuid.UUID) (string, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	return s.renderer.Render(c.Result)
}
