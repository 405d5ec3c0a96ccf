package types

import (
	"fmt"
	"strings"
)

// Backend identifies one of the two interchangeable query backends.
type Backend int

const (
	// BackendUnspecified is the zero value; no backend attached.
	BackendUnspecified Backend = iota
	// BackendPrimary is the pooled graph database.
	BackendPrimary
	// BackendFallback is the stateless HTTP endpoint.
	BackendFallback
)

// Backends lists the routable backends in routing order.
var Backends = []Backend{BackendPrimary, BackendFallback}

// String returns the string representation of Backend.
func (b Backend) String() string {
	switch b {
	case BackendPrimary:
		return "primary"
	case BackendFallback:
		return "fallback"
	default:
		return "unspecified"
	}
}

// MarshalText implements encoding.TextMarshaler so Backend can key JSON maps.
func (b Backend) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *Backend) UnmarshalText(data []byte) error {
	switch strings.ToLower(string(data)) {
	case "primary":
		*b = BackendPrimary
	case "fallback":
		*b = BackendFallback
	case "", "unspecified":
		*b = BackendUnspecified
	default:
		return fmt.Errorf("invalid backend: %s", data)
	}
	return nil
}
