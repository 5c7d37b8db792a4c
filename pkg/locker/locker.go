// Package locker serializes capture/restore/apply operations touching the
// same target path. A restore must never run concurrently with a capture or
// apply on the same path.
package locker

import "context"

// TargetLocker provides mutual exclusion per target path. Lock blocks until
// the target is held or ctx is done, and returns the release function.
type TargetLocker interface {
	Lock(ctx context.Context, target string) (func(), error)
}
