// Package port defines the interfaces (ports) between the domain and the
// infrastructure adapters, following hexagonal architecture principles.
package port

import (
	"alarm-triage-agent/internal/domain/entity"
	"context"
)

// ModelProvider is the boundary to the inference backend. A single call sends
// the full ordered transcript plus the declared tool set and returns the
// model's next turn: either final text or one or more tool calls (carried on
// the returned message).
//
// Implementations must honor ctx cancellation. Transient-failure retry is the
// responsibility of a decorating layer, not of callers.
type ModelProvider interface {
	SendMessage(
		ctx context.Context,
		system string,
		messages []entity.Message,
		tools []entity.Tool,
	) (*entity.Message, error)
}
