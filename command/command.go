// Package command decodes messages from the upstream decision engine into
// typed commands. A message is JSON text with a top-level "type" field; the
// codec never panics on malformed input, it returns a *DecodeError and the
// caller drops the message. Delivery is at-most-once.
package command

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind discriminates the command variants.
type Kind int

const (
	KindOrder Kind = iota
	KindHold
	KindClose
)

func (k Kind) String() string {
	switch k {
	case KindOrder:
		return "ORDER"
	case KindHold:
		return "HOLD"
	case KindClose:
		return "CLOSE"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Mode selects the trailing-stop / take-profit multiplier family.
type Mode int

const (
	ModeNormal Mode = iota
	ModeWide
	ModeTight
)

func (m Mode) String() string {
	switch m {
	case ModeWide:
		return "WIDE"
	case ModeTight:
		return "TIGHT"
	}
	return "NORMAL"
}

// TrailMult is the trailing-stop distance multiplier for the mode.
func (m Mode) TrailMult() float64 {
	switch m {
	case ModeWide:
		return 1.5
	case ModeTight:
		return 0.7
	}
	return 1.0
}

// TPMult is the take-profit distance multiplier for the mode.
func (m Mode) TPMult() float64 {
	switch m {
	case ModeWide:
		return 1.5
	case ModeTight:
		return 0.6
	}
	return 1.0
}

// ParseMode maps a wire string to a Mode. Unknown or empty values report
// ok=false and the caller leaves the current mode untouched.
func ParseMode(s string) (Mode, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "NORMAL":
		return ModeNormal, true
	case "WIDE":
		return ModeWide, true
	case "TIGHT":
		return ModeTight, true
	}
	return ModeNormal, false
}

// Command is the decoded form of one upstream message.
//
// TrailMode and TPMode are carried by any message kind; nil means the field
// was absent (or unrecognized) and the running mode stays as-is.
type Command struct {
	Kind      Kind
	Symbol    string // optional routing filter; empty matches everything
	TrailMode *Mode
	TPMode    *Mode

	// Order is set only for KindOrder.
	Order *Order
}

// Order holds the ORDER-specific payload. Action is kept as received; the
// admission gate owns its validation.
type Order struct {
	Action       string
	Multiplier   float64
	ATR          float64 // may be zero/absent; gate falls back to the indicator
	Reason       string
	AIConfidence *int
	AIReason     string
}

// DecodeError reports a message that could not be turned into a Command.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode command: %s: %v", e.Reason, e.Err)
	}
	return "decode command: " + e.Reason
}

func (e *DecodeError) Unwrap() error { return e.Err }

type wire struct {
	Type         string   `json:"type"`
	Action       string   `json:"action"`
	Symbol       string   `json:"symbol"`
	Multiplier   float64  `json:"multiplier"`
	ATR          float64  `json:"atr"`
	Reason       string   `json:"reason"`
	AIConfidence *float64 `json:"ai_confidence"`
	AIReason     string   `json:"ai_reason"`
	TrailMode    string   `json:"trail_mode"`
	TPMode       string   `json:"tp_mode"`
}

// Decode parses one raw message.
func Decode(raw []byte) (Command, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return Command{}, &DecodeError{Reason: "empty message"}
	}

	var w wire
	if err := json.Unmarshal(raw, &w); err != nil {
		return Command{}, &DecodeError{Reason: "invalid json", Err: err}
	}

	cmd := Command{Symbol: strings.TrimSpace(w.Symbol)}

	if m, ok := ParseMode(w.TrailMode); ok {
		cmd.TrailMode = &m
	}
	if m, ok := ParseMode(w.TPMode); ok {
		cmd.TPMode = &m
	}

	switch strings.ToUpper(strings.TrimSpace(w.Type)) {
	case "ORDER":
		cmd.Kind = KindOrder
		ord := &Order{
			Action:     w.Action,
			Multiplier: w.Multiplier,
			ATR:        w.ATR,
			Reason:     strings.TrimSpace(w.Reason),
			AIReason:   strings.TrimSpace(w.AIReason),
		}
		if w.AIConfidence != nil {
			c := int(*w.AIConfidence)
			ord.AIConfidence = &c
		}
		cmd.Order = ord
	case "HOLD", "CLOSE_SIGNAL":
		// CLOSE_SIGNAL is a deprecated alias kept for old bridge builds.
		cmd.Kind = KindHold
	case "CLOSE":
		cmd.Kind = KindClose
	case "":
		return Command{}, &DecodeError{Reason: "missing type"}
	default:
		return Command{}, &DecodeError{Reason: fmt.Sprintf("unknown type %q", w.Type)}
	}

	return cmd, nil
}
