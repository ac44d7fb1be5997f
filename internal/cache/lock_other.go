// SPDX-License-Identifier: MPL-2.0

//go:build !linux

package cache

// RunLock is the non-Linux stub. Exclusivity is not enforced across processes.
type RunLock struct{}

// AcquireRunLock always succeeds on platforms without flock support.
func AcquireRunLock(string) (*RunLock, error) {
	return &RunLock{}, nil
}

// Release is a no-op on non-Linux platforms.
func (l *RunLock) Release() {}
