package types

import (
	"encoding/json"
	"testing"
)

func TestHealthState_IsValid(t *testing.T) {
	tests := []struct {
		name  string
		state HealthState
		want  bool
	}{
		{name: "healthy", state: HealthStateHealthy, want: true},
		{name: "degraded", state: HealthStateDegraded, want: true},
		{name: "unhealthy", state: HealthStateUnhealthy, want: true},
		{name: "unknown", state: HealthStateUnknown, want: true},
		{name: "invalid", state: HealthState("invalid"), want: false},
		{name: "empty", state: HealthState(""), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsValid(); got != tt.want {
				t.Errorf("HealthState.IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHealthState_Usable(t *testing.T) {
	if !HealthStateHealthy.Usable() || !HealthStateDegraded.Usable() {
		t.Error("healthy and degraded backends should be usable")
	}
	if HealthStateUnhealthy.Usable() || HealthStateUnknown.Usable() {
		t.Error("unhealthy and unknown backends should not be usable")
	}
}

func TestHealthState_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		json    string
		want    HealthState
		wantErr bool
	}{
		{name: "healthy", json: `"healthy"`, want: HealthStateHealthy},
		{name: "unknown", json: `"unknown"`, want: HealthStateUnknown},
		{name: "invalid", json: `"invalid"`, wantErr: true},
		{name: "malformed", json: `{bad}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var state HealthState
			err := json.Unmarshal([]byte(tt.json), &state)
			if (err != nil) != tt.wantErr {
				t.Fatalf("UnmarshalJSON() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && state != tt.want {
				t.Errorf("UnmarshalJSON() = %v, want %v", state, tt.want)
			}
		})
	}
}
