package types

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name:     "without cause or backend",
			err:      NewError(CONFIG_LOAD_FAILED, "failed to load configuration"),
			contains: []string{"[CONFIG_LOAD_FAILED]", "failed to load configuration"},
		},
		{
			name:     "transient with backend and cause",
			err:      NewTransientError(BACKEND_TIMEOUT, BackendPrimary, "query timed out", context.DeadlineExceeded),
			contains: []string{"[BACKEND_TIMEOUT primary]", "query timed out", "deadline exceeded"},
		},
		{
			name:     "domain from fallback",
			err:      NewDomainError(ENTITY_NOT_FOUND, BackendFallback, "no such gene", nil),
			contains: []string{"[ENTITY_NOT_FOUND fallback]", "no such gene"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, substring := range tt.contains {
				if !strings.Contains(msg, substring) {
					t.Errorf("Error() = %q, want to contain %q", msg, substring)
				}
			}
		})
	}
}

func TestError_IsMatchesByCode(t *testing.T) {
	base := NewTransientError(POOL_EXHAUSTED, BackendPrimary, "pool exhausted", nil)
	wrapped := fmt.Errorf("acquire: %w", base)

	if !errors.Is(wrapped, NewError(POOL_EXHAUSTED, "any message")) {
		t.Error("errors.Is should match on code through wrapping")
	}
	if errors.Is(wrapped, NewError(POOL_CLOSED, "pool closed")) {
		t.Error("errors.Is should not match a different code")
	}
	if errors.Is(base, errors.New("standard error")) {
		t.Error("errors.Is should not match a non-adapter error")
	}
}

func TestError_UnwrapKeepsCause(t *testing.T) {
	err := NewTransientError(BACKEND_TIMEOUT, BackendPrimary, "timed out", context.DeadlineExceeded)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("cause should be reachable through errors.Is")
	}
}

func TestKindClassification(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantKind      ErrorKind
		wantTransient bool
		wantDomain    bool
	}{
		{
			name:          "transient",
			err:           NewTransientError(BACKEND_UNREACHABLE, BackendPrimary, "refused", nil),
			wantKind:      KindTransient,
			wantTransient: true,
		},
		{
			name:       "domain wrapped",
			err:        fmt.Errorf("outer: %w", NewDomainError(ENTITY_NOT_FOUND, BackendPrimary, "missing", nil)),
			wantKind:   KindDomain,
			wantDomain: true,
		},
		{
			name:     "query failed keeps outer kind",
			err:      QueryFailed("get_gene", NewTransientError(BACKEND_TIMEOUT, BackendFallback, "slow", nil)),
			wantKind: KindAvailability,
		},
		{
			name:     "plain error",
			err:      errors.New("boom"),
			wantKind: KindUnknown,
		},
		{
			name:     "nil",
			err:      nil,
			wantKind: KindUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.wantKind {
				t.Errorf("KindOf() = %v, want %v", got, tt.wantKind)
			}
			if got := IsTransient(tt.err); got != tt.wantTransient {
				t.Errorf("IsTransient() = %v, want %v", got, tt.wantTransient)
			}
			if got := IsDomain(tt.err); got != tt.wantDomain {
				t.Errorf("IsDomain() = %v, want %v", got, tt.wantDomain)
			}
		})
	}
}

func TestQueryFailed_ExposesLastBackendError(t *testing.T) {
	last := NewTransientError(BACKEND_UNAVAILABLE, BackendFallback, "status 503", nil)
	err := QueryFailed("get_gene", last)

	if CodeOf(err) != QUERY_FAILED {
		t.Errorf("CodeOf() = %v, want %v", CodeOf(err), QUERY_FAILED)
	}
	if !errors.Is(err, NewError(BACKEND_UNAVAILABLE, "")) {
		t.Error("last backend error should be reachable")
	}
	if !strings.Contains(err.Error(), "get_gene") {
		t.Errorf("Error() = %q, want query name", err.Error())
	}
}

func TestQueryTimeout(t *testing.T) {
	err := QueryTimeout("get_gene", nil)
	if CodeOf(err) != QUERY_TIMEOUT || KindOf(err) != KindAvailability {
		t.Errorf("QueryTimeout() = %v (%v), want QUERY_TIMEOUT availability", CodeOf(err), KindOf(err))
	}
	if IsTransient(err) {
		t.Error("a caller timeout must not look transient")
	}
	if !errors.Is(AdapterClosed(), NewError(ADAPTER_CLOSED, "")) {
		t.Error("AdapterClosed() should match ADAPTER_CLOSED")
	}
}

func TestBackend_Text(t *testing.T) {
	for _, b := range Backends {
		text, err := b.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText() error = %v", err)
		}
		var back Backend
		if err := back.UnmarshalText(text); err != nil {
			t.Fatalf("UnmarshalText(%q) error = %v", text, err)
		}
		if back != b {
			t.Errorf("round trip = %v, want %v", back, b)
		}
	}

	var b Backend
	if err := b.UnmarshalText([]byte("tertiary")); err == nil {
		t.Error("UnmarshalText should reject unknown backends")
	}
}
