package entities

import "fmt"

// SNGState is the sit-and-go sub-state of a tournament table
type SNGState string

const (
	SNGStateWaiting    SNGState = "waiting"
	SNGStateJoinWindow SNGState = "join_window"
	SNGStateReady      SNGState = "ready"
	SNGStateActive     SNGState = "active"
	SNGStateCompleted  SNGState = "completed"
)

var sngTransitions = map[SNGState][]SNGState{
	SNGStateWaiting:    {SNGStateJoinWindow},
	SNGStateJoinWindow: {SNGStateWaiting, SNGStateReady},
	SNGStateReady:      {SNGStateActive},
	SNGStateActive:     {SNGStateCompleted},
}

// ParseSNGState converts a stored value into an SNGState
func ParseSNGState(value string) (SNGState, error) {
	switch s := SNGState(value); s {
	case SNGStateWaiting, SNGStateJoinWindow, SNGStateReady, SNGStateActive, SNGStateCompleted:
		return s, nil
	}
	return "", fmt.Errorf("unknown sng state %q", value)
}

// CanTransitionTo checks the sit-and-go graph
func (s SNGState) CanTransitionTo(to SNGState) bool {
	for _, allowed := range sngTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// AcceptsEntrants returns true while the tournament is still filling
func (s SNGState) AcceptsEntrants() bool {
	return s == SNGStateWaiting || s == SNGStateJoinWindow
}

// HasStarted returns true once cards have been dealt
func (s SNGState) HasStarted() bool {
	return s == SNGStateActive || s == SNGStateCompleted
}
