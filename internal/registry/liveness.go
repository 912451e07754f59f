package registry

import (
	"os"
	"syscall"
)

// Liveness answers whether a pid belongs to a running process.
// Injectable so reclaim logic can be tested without spawning processes.
type Liveness interface {
	IsAlive(pid int) bool
}

// ProcessLiveness checks real processes with signal 0.
type ProcessLiveness struct{}

func (ProcessLiveness) IsAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// EPERM means the process exists but belongs to another user.
	err = proc.Signal(syscall.Signal(0))
	return err == nil || err == syscall.EPERM
}
