package triage

import (
	"context"
	"sync"
)

// Conversation accumulates a patient's answers across turns and re-runs the
// full evaluation after each one. Safe for concurrent use.
type Conversation struct {
	mu   sync.Mutex
	svc  *Service
	raw  RawInput
	last *Result
}

func NewConversation(svc *Service, initial RawInput) *Conversation {
	return &Conversation{svc: svc, raw: initial}
}

// Answer records the reply to one suggested question and re-evaluates.
// A false boolean still re-evaluates; the feature simply stays absent.
func (c *Conversation) Answer(ctx context.Context, featureID string, value any) (*Result, error) {
	return c.Update(ctx, RawInput{Modifiers: map[string]any{featureID: value}})
}

// Update merges a delta of new information into the accumulated input and
// re-evaluates. Scalars fill only when previously unset; lists append;
// modifier answers overwrite.
func (c *Conversation) Update(ctx context.Context, delta RawInput) (*Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.raw.Symptoms = append(c.raw.Symptoms, delta.Symptoms...)
	c.raw.Comorbidades = append(c.raw.Comorbidades, delta.Comorbidades...)
	if len(delta.Modifiers) > 0 && c.raw.Modifiers == nil {
		c.raw.Modifiers = make(map[string]any, len(delta.Modifiers))
	}
	for k, v := range delta.Modifiers {
		c.raw.Modifiers[k] = v
	}
	if c.raw.PacienteNome == "" {
		c.raw.PacienteNome = delta.PacienteNome
	}
	if c.raw.Idade == nil {
		c.raw.Idade = delta.Idade
	}
	if c.raw.Sexo == "" {
		c.raw.Sexo = delta.Sexo
	}
	c.raw.Gestante = c.raw.Gestante || delta.Gestante
	c.raw.Text = joinText(c.raw.Text, delta.Text)
	c.raw.Queixa = joinText(c.raw.Queixa, delta.Queixa)
	c.raw.HPI = joinText(c.raw.HPI, delta.HPI)
	c.raw.Observacoes = joinText(c.raw.Observacoes, delta.Observacoes)

	res, err := c.svc.Triage(ctx, c.raw)
	if err != nil {
		return nil, err
	}
	c.last = res
	return res, nil
}

// Last returns the most recent evaluation, or nil before the first turn.
func (c *Conversation) Last() *Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

func joinText(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + " " + b
	}
}
