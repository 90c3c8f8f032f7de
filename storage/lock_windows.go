//go:build windows

package storage

import "os"

// processAlive trusts os.FindProcess, which fails on Windows when the
// process is gone.
func processAlive(pid int) bool {
	_, err := os.FindProcess(pid)
	return err == nil
}
