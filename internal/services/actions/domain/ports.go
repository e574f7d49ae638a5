package domain

import (
	"context"

	emaildom "alertrecon/internal/services/emails/domain"
	matchdom "alertrecon/internal/services/matcher/domain"
	txdom "alertrecon/internal/services/transactions/domain"
)

// Handler executes one action kind against an external system
type Handler interface {
	Run(ctx context.Context, p Payload) (HandlerResult, error)
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(ctx context.Context, p Payload) (HandlerResult, error)

// Run implements Handler
func (f HandlerFunc) Run(ctx context.Context, p Payload) (HandlerResult, error) { return f(ctx, p) }

// DispatcherPort is the external port of the actions module
type DispatcherPort interface {
	Dispatch(ctx context.Context, m matchdom.Match, email emaildom.Email, tx *txdom.Transaction) ([]ActionResult, error)
}
