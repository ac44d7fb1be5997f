// SPDX-License-Identifier: MPL-2.0

//go:build !unix

package supervise

import "os"

// exitCodeFromState converts a finished child's process state into the code
// the launcher exits with. Signal information is not available here.
func exitCodeFromState(ps *os.ProcessState) ExitCode {
	if ps == nil {
		return ExitFailure
	}
	return fallbackExitCode(ps)
}
