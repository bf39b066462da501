package workflow

// State represents a named state in an entity lifecycle
type State string

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// Trigger represents an event that can cause a state transition
type Trigger string

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
