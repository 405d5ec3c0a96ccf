package types

import (
	"encoding/json"
	"fmt"
)

// HealthState is the probe-derived health of a backend.
type HealthState string

const (
	HealthStateHealthy   HealthState = "healthy"
	HealthStateDegraded  HealthState = "degraded"
	HealthStateUnhealthy HealthState = "unhealthy"
	// HealthStateUnknown is reported until the first probe completes.
	HealthStateUnknown HealthState = "unknown"
)

// String returns the string representation of HealthState
func (s HealthState) String() string {
	return string(s)
}

// IsValid checks if the HealthState is a valid value
func (s HealthState) IsValid() bool {
	switch s {
	case HealthStateHealthy, HealthStateDegraded, HealthStateUnhealthy, HealthStateUnknown:
		return true
	default:
		return false
	}
}

// Usable reports whether a backend in this state can be expected to answer.
// Degraded backends are slow but reachable.
func (s HealthState) Usable() bool {
	return s == HealthStateHealthy || s == HealthStateDegraded
}

// UnmarshalJSON implements json.Unmarshaler
func (s *HealthState) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}

	state := HealthState(str)
	if !state.IsValid() {
		return fmt.Errorf("invalid health state: %s", str)
	}

	*s = state
	return nil
}
