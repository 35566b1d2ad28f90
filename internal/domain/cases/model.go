// Package cases persists completed triage evaluations for later review and
// handoff. Persistence is optional: without a database the server runs with
// an in-memory store.
package cases

import (
	"time"

	"github.com/google/uuid"

	"github.com/otriage/otriage/internal/domain/triage"
	"github.com/otriage/otriage/internal/platform/registry"
)

// Case is one stored triage evaluation.
type Case struct {
	ID           uuid.UUID       `json:"id"`
	PacienteNome string          `json:"paciente_nome"`
	Via          registry.Route  `json:"via"`
	ViaReason    string          `json:"via_reason,omitempty"`
	Areas        []string        `json:"areas"`
	Input        triage.RawInput `json:"input"`
	Result       *triage.Result  `json:"result"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}
