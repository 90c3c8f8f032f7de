package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrConversationLocked is returned when another tcode process is
// appending to the same conversation.
var ErrConversationLocked = errors.New("conversation is in use by another process")

// ConversationLock marks a conversation as in use by this process.
// Lock file: <data_dir>/locks/{conversation-id}.lock, content: PID.
type ConversationLock struct {
	path string
}

// LockConversation acquires the lock for conversationID. A stale lock
// left by a process that no longer exists is taken over.
func LockConversation(dataDir, conversationID string) (*ConversationLock, error) {
	lockDir := filepath.Join(dataDir, "locks")
	if err := os.MkdirAll(lockDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	lockPath := filepath.Join(lockDir, conversationID+".lock")

	locked, pid, err := checkLock(lockPath)
	if err != nil {
		return nil, err
	}
	if locked && pid != os.Getpid() {
		return nil, fmt.Errorf("%w (PID %d)", ErrConversationLocked, pid)
	}

	// Write PID to lock file (0600 - user-only access)
	if err := os.WriteFile(lockPath, []byte(strconv.Itoa(os.Getpid())), 0600); err != nil {
		return nil, fmt.Errorf("failed to write lock file: %w", err)
	}

	return &ConversationLock{path: lockPath}, nil
}

// Unlock releases the lock. Releasing twice is harmless.
func (l *ConversationLock) Unlock() error {
	if l == nil {
		return nil
	}
	err := os.Remove(l.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// checkLock reports whether lockPath is held by a live process.
func checkLock(lockPath string) (bool, int, error) {
	data, err := os.ReadFile(lockPath)
	if os.IsNotExist(err) {
		return false, 0, nil
	}
	if err != nil {
		return false, 0, fmt.Errorf("failed to read lock file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		// Invalid lock file, clean it up
		_ = os.Remove(lockPath)
		return false, 0, nil
	}

	if !processAlive(pid) {
		_ = os.Remove(lockPath)
		return false, 0, nil
	}

	return true, pid, nil
}
