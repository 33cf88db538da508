//go:build !windows

package spool

// Default returns the spooler for this platform.
func Default() Spooler {
	return LP{}
}
