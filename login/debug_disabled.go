//go:build production

package login

import (
	"context"

	"github.com/jrsteele09/osonify-auth/internal/errors"
)

const DebugAvailable = false

// Debug is not available in production builds.
func (f *Flows) Debug(_ context.Context, _ string, _ bool) error {
	err := &Error{Flow: FlowDebug, Err: errors.ErrDebugLoginDisabled}
	f.observe(FlowDebug, err)
	return err
}
