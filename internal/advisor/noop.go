package advisor

import (
	"context"

	"github.com/quantfold/papertrade/pkg/errors"
)

// Noop is an Advisor that always fails, forcing every caller onto its
// default. Used when no advisor endpoint is configured.
type Noop struct{}

// NewNoop creates a Noop advisor.
func NewNoop() *Noop {
	return &Noop{}
}

// Judge implements Advisor.
func (n *Noop) Judge(_ context.Context, _ string, _ any) error {
	return errors.New(errors.ErrCodeAdvisorUnavailable, "no advisor configured")
}
