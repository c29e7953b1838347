package repository

import "context"

// Store is the generic persistence contract implemented by every
// option-queryable store. Domain packages embed it and add the operations
// the generic form cannot express.
type Store[T any] interface {
	// Find returns all entities matching the given options.
	Find(ctx context.Context, options ...Option) ([]T, error)

	// FindOne returns the first entity matching the given options.
	FindOne(ctx context.Context, options ...Option) (T, error)

	// Save persists an entity, returning the stored form (with ID and
	// timestamps assigned).
	Save(ctx context.Context, entity T) (T, error)

	// Count returns the number of entities matching the given options.
	Count(ctx context.Context, options ...Option) (int64, error)

	// Exists reports whether any entity matches the given options.
	Exists(ctx context.Context, options ...Option) (bool, error)
}
