// Package ctxutil provides context helpers shared across packages.
package ctxutil

import "context"

// Canceled reports the context error when the context is already canceled
// or past its deadline, nil otherwise. Blocking entry points call it before
// doing any work so cancellation is honored at operation boundaries.
func Canceled(ctx context.Context) error {
	return ctx.Err()
}
