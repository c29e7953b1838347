package rule

import (
	"context"

	"github.com/piimap/piimap/domain/repository"
)

// Store defines persistence for recognition rules.
type Store interface {
	repository.Store[Rule]

	// ListActive returns all enabled rules. This is the read the
	// recognition engine performs on every reload.
	ListActive(ctx context.Context) ([]Rule, error)

	// Delete removes a rule.
	Delete(ctx context.Context, id int64) error
}
