package controller

import (
	"time"

	"github.com/rustyeddy/pilot/command"
)

// State is the mutable per-instance controller state. It is touched only
// from the serial event loop, so it carries no locking. Zero timestamps
// mean "never set", which is distinct from "expired".
type State struct {
	TrailMode command.Mode
	TPMode    command.Mode

	// LastHold opens the take-profit trailing window.
	LastHold time.Time

	DecodeFails int
	HBSendFails int

	lastHeartbeat time.Time
	lastHBFailLog time.Time
}

// ResetDaily restores the per-day defaults at a day boundary.
func (s *State) ResetDaily() {
	s.TrailMode = command.ModeNormal
	s.TPMode = command.ModeNormal
	s.LastHold = time.Time{}
}

// HoldActive reports whether now falls inside the window opened by the
// most recent HOLD command.
func (s *State) HoldActive(now time.Time, windowSec int) bool {
	if s.LastHold.IsZero() || windowSec <= 0 {
		return false
	}
	return now.Sub(s.LastHold) <= time.Duration(windowSec)*time.Second
}
