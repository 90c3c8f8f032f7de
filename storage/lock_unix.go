//go:build !windows

package storage

import (
	"os"
	"syscall"
)

// processAlive sends signal 0, which checks existence without delivering
// anything.
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || err == syscall.EPERM
}
