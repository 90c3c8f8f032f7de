// Package permission defines the policy that decides whether file
// mutations requested by a model may run, and whether the user is asked
// first.
package permission

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Mode is the active permission policy.
type Mode string

const (
	// Default asks before every mutation.
	Default Mode = "default"
	// AutoEdit applies mutations without asking.
	AutoEdit Mode = "auto-edit"
	// PlanOnly never mutates; write requests are reported as skipped.
	PlanOnly Mode = "plan-only"
)

// ErrInvalidMode is returned when a mode name is not recognised.
var ErrInvalidMode = errors.New("invalid permission mode")

// Modes lists every mode in cycle order.
func Modes() []Mode {
	return []Mode{Default, AutoEdit, PlanOnly}
}

// ParseMode converts a user-supplied name into a Mode. Matching ignores
// case and accepts underscores in place of hyphens.
func ParseMode(s string) (Mode, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-")
	switch normalized {
	case "", "default":
		return Default, nil
	case "auto-edit", "autoedit":
		return AutoEdit, nil
	case "plan-only", "plan", "planonly":
		return PlanOnly, nil
	}
	return "", fmt.Errorf("%w: %q (expected one of %s)", ErrInvalidMode, s, strings.Join(Names(), ", "))
}

// Names returns the canonical name of every mode in cycle order.
func Names() []string {
	modes := Modes()
	names := make([]string, len(modes))
	for i, m := range modes {
		names[i] = string(m)
	}
	return names
}

// Next returns the mode that follows m in the cycle
// default -> auto-edit -> plan-only -> default.
func (m Mode) Next() Mode {
	switch m {
	case Default:
		return AutoEdit
	case AutoEdit:
		return PlanOnly
	default:
		return Default
	}
}

func (m Mode) String() string {
	return string(m)
}

// Description is a short explanation for status lines.
func (m Mode) Description() string {
	switch m {
	case AutoEdit:
		return "file changes are applied without asking"
	case PlanOnly:
		return "read-only, file changes are only described"
	default:
		return "ask before every file change"
	}
}

// RequiresConfirmation reports whether mutations need the user's approval.
// Unknown modes require it.
func RequiresConfirmation(m Mode) bool {
	return m != AutoEdit && m != PlanOnly
}

// AllowsMutation reports whether mutations may run at all. Unknown modes
// never mutate.
func AllowsMutation(m Mode) bool {
	return m == Default || m == AutoEdit
}

// State holds the process-wide mode. The engine never reads it directly;
// callers pass State.Mode() into each request.
type State struct {
	mu   sync.RWMutex
	mode Mode
}

// NewState returns a State starting in mode.
func NewState(mode Mode) *State {
	if mode == "" {
		mode = Default
	}
	return &State{mode: mode}
}

// Mode returns the current mode.
func (s *State) Mode() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// Set replaces the current mode.
func (s *State) Set(m Mode) {
	s.mu.Lock()
	s.mode = m
	s.mu.Unlock()
}

// Cycle advances to the next mode and returns it.
func (s *State) Cycle() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = s.mode.Next()
	return s.mode
}
