//go:build !linux && !windows

package arbiter

import "context"

type unsupportedReaper struct{}

// DefaultReaper returns a reaper that always reports
// ErrReclaimUnsupported.
func DefaultReaper() Reaper {
	return unsupportedReaper{}
}

func (unsupportedReaper) Reclaim(context.Context, int) error {
	return ErrReclaimUnsupported
}
