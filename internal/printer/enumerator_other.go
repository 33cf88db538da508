//go:build !windows

package printer

// DefaultEnumerator returns the enumerator for this platform.
func DefaultEnumerator() Enumerator {
	return CUPSEnumerator{}
}
