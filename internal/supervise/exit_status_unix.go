// SPDX-License-Identifier: MPL-2.0

//go:build unix

package supervise

import (
	"os"
	"syscall"
)

// exitCodeFromState converts a finished child's process state into the code
// the launcher exits with. A signal-terminated child maps to 128+signal.
func exitCodeFromState(ps *os.ProcessState) ExitCode {
	if ps == nil {
		return ExitFailure
	}
	ws, ok := ps.Sys().(syscall.WaitStatus)
	if !ok {
		return fallbackExitCode(ps)
	}
	switch {
	case ws.Exited():
		return ExitCode(ws.ExitStatus())
	case ws.Signaled():
		return ExitCode(signalBase + int(ws.Signal()))
	default:
		return ExitFailure
	}
}
