package entity

import "context"

// UnitOfWork exposes the repositories bound to one open transaction.
type UnitOfWork interface {
	Contacts() ContactRepositoryInterface
	Properties() PropertyRepositoryInterface
	Leads() LeadRepositoryInterface
	Pipeline() PipelineRepositoryInterface
	Outbox() OutboxRepositoryInterface

	// Savepoint runs fn inside a named savepoint. When fn fails the work done
	// by fn is rolled back and the enclosing transaction stays usable.
	Savepoint(ctx context.Context, name string, fn func(ctx context.Context) error) error
}
