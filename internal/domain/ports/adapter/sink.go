package adapter

import (
	"context"

	"lesson-checkout/internal/domain/model"
)

// OutcomeSink receives the terminal granted event and unlocks the content.
// The controller guarantees at-most-once delivery per attempt; a sink error
// is logged, not retried.
type OutcomeSink interface {
	GrantAccess(ctx context.Context, grant model.Grant) error
}
