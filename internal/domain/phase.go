package domain

// SpinPhase is where a wheel is in its spin lifecycle
type SpinPhase string

const (
	PhaseIdle     SpinPhase = "IDLE"     // Waiting for a spin, roster editable
	PhaseSpinning SpinPhase = "SPINNING" // Roster frozen until resolution
	PhaseResolved SpinPhase = "RESOLVED" // Winner shown, waiting for acknowledgement
)

// String returns the string representation of the phase
func (p SpinPhase) String() string {
	return string(p)
}

// CanTransitionTo checks if a transition from current phase to target phase is valid
func (p SpinPhase) CanTransitionTo(target SpinPhase) bool {
	validTransitions := map[SpinPhase][]SpinPhase{
		PhaseIdle:     {PhaseSpinning},
		PhaseSpinning: {PhaseResolved, PhaseIdle}, // Idle only when a spin is torn down
		PhaseResolved: {PhaseIdle},
	}

	allowed, ok := validTransitions[p]
	if !ok {
		return false
	}

	for _, phase := range allowed {
		if phase == target {
			return true
		}
	}
	return false
}
