// Package tracking mirrors the live tracking subsystem's reported quality as
// an explicit state machine.
//
// The machine is fed immutable Event values and answers with Signals. The
// relocalization edge is a Signal produced by a transition, never a watched
// boolean, so it fires at most once per relocalization attempt by
// construction.
package tracking

import "strings"

// State is the tracking quality reported by the subsystem.
type State int

const (
	NotAvailable State = iota
	Initializing
	ExcessiveMotion
	InsufficientFeatures
	Relocalizing
	Normal
)

var stateNames = [...]string{
	NotAvailable:         "not-available",
	Initializing:         "initializing",
	ExcessiveMotion:      "excessive-motion",
	InsufficientFeatures: "insufficient-features",
	Relocalizing:         "relocalizing",
	Normal:               "normal",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Limited reports whether s is one of the degraded-but-running states.
func (s State) Limited() bool {
	switch s {
	case Initializing, ExcessiveMotion, InsufficientFeatures, Relocalizing:
		return true
	}
	return false
}

// Limited maps a "limited(reason)" report to a State. Unknown reasons are
// treated as Initializing, the least committal limited state.
func Limited(reason string) State {
	switch strings.ToLower(strings.TrimSpace(reason)) {
	case "excessivemotion", "excessive-motion", "excessive_motion":
		return ExcessiveMotion
	case "insufficientfeatures", "insufficient-features", "insufficient_features":
		return InsufficientFeatures
	case "relocalizing":
		return Relocalizing
	default:
		return Initializing
	}
}

// ParseState maps a state name (as printed by String) back to a State.
func ParseState(name string) (State, bool) {
	for i, n := range stateNames {
		if n == name {
			return State(i), true
		}
	}
	return NotAvailable, false
}
