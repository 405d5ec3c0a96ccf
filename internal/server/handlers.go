package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/ejmockler/indra-cogex-mcp/internal/adapter"
	"github.com/ejmockler/indra-cogex-mcp/internal/breaker"
	"github.com/ejmockler/indra-cogex-mcp/internal/catalog"
	"github.com/ejmockler/indra-cogex-mcp/internal/observability"
	"github.com/ejmockler/indra-cogex-mcp/internal/types"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// QueryRequest is the body of POST /v1/query.
type QueryRequest struct {
	Name      string         `json:"name"`
	Params    map[string]any `json:"params,omitempty"`
	TimeoutMS int64          `json:"timeout_ms,omitempty"`
}

// QueryResponse is the body of a successful POST /v1/query.
type QueryResponse struct {
	Records   []map[string]any `json:"records"`
	Origin    string           `json:"origin"`
	Backend   string           `json:"backend"`
	FromCache bool             `json:"from_cache"`
	Attempts  int              `json:"attempts"`
	ElapsedMS float64          `json:"elapsed_ms"`
}

// ErrorBody is the body of every error response.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes a failed request.
type ErrorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Kind      string `json:"kind,omitempty"`
	Backend   string `json:"backend,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status   string            `json:"status"`
	Backends map[string]string `json:"backends"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body QueryRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		s.writeError(w, r, types.NewDomainError(types.INVALID_QUERY, types.BackendUnspecified,
			"malformed request body", err))
		return
	}
	if body.Name == "" {
		s.writeError(w, r, types.NewDomainError(types.INVALID_QUERY, types.BackendUnspecified,
			"query name is required", nil))
		return
	}
	if body.TimeoutMS < 0 {
		s.writeError(w, r, types.NewDomainError(types.INVALID_QUERY, types.BackendUnspecified,
			"timeout_ms must not be negative", nil))
		return
	}

	req := adapter.NewRequest(body.Name, body.Params, time.Duration(body.TimeoutMS)*time.Millisecond)
	res, err := s.querier.Execute(ctx, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	records := res.Records
	if records == nil {
		records = []map[string]any{}
	}
	s.writeJSON(w, r, http.StatusOK, QueryResponse{
		Records:   records,
		Origin:    res.Origin.String(),
		Backend:   res.Backend.String(),
		FromCache: res.FromCache,
		Attempts:  res.Attempts,
		ElapsedMS: float64(res.Elapsed) / float64(time.Millisecond),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, s.querier.Status())
}

func (s *Server) handleQueries(w http.ResponseWriter, r *http.Request) {
	queries := s.catalog.List()
	if queries == nil {
		queries = []catalog.Query{}
	}
	s.writeJSON(w, r, http.StatusOK, map[string]any{"queries": queries})
}

// handleHealthz reports ok while any backend's circuit admits calls. Probe
// health alone never marks the service down.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	st := s.querier.Status()
	resp := HealthResponse{Status: "unavailable", Backends: make(map[string]string, len(st.Backends))}
	for _, b := range st.Backends {
		resp.Backends[b.Backend.String()] = fmt.Sprintf("%s/%s", b.Breaker.State, b.Health.Status)
		if b.Breaker.State != breaker.StateOpen {
			resp.Status = "ok"
		}
	}
	if st.Closed {
		resp.Status = "closed"
	}

	code := http.StatusOK
	if resp.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, r, code, resp)
}

// StatusCode maps an adapter error to an HTTP status.
func StatusCode(err error) int {
	switch types.CodeOf(err) {
	case types.UNKNOWN_QUERY, types.ENTITY_NOT_FOUND:
		return http.StatusNotFound
	case types.INVALID_QUERY:
		return http.StatusBadRequest
	case types.QUERY_REJECTED:
		return http.StatusUnprocessableEntity
	case types.QUERY_TIMEOUT:
		return http.StatusGatewayTimeout
	case types.NO_BACKEND_AVAILABLE, types.ADAPTER_CLOSED:
		return http.StatusServiceUnavailable
	case types.QUERY_FAILED:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusCode(err)
	detail := ErrorDetail{
		Code:      string(types.CodeOf(err)),
		Message:   err.Error(),
		RequestID: observability.RequestIDFromContext(r.Context()),
	}
	var te *types.Error
	if errors.As(err, &te) {
		detail.Kind = te.Kind.String()
		if te.Backend != types.BackendUnspecified {
			detail.Backend = te.Backend.String()
		}
	}
	if detail.Code == "" {
		detail.Code = "INTERNAL"
	}

	if status >= http.StatusInternalServerError {
		s.logger.Warn(r.Context(), "Query failed", "code", detail.Code, "error", err)
	}
	s.writeJSON(w, r, status, ErrorBody{Error: detail})
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		s.logger.Error(r.Context(), "Failed to encode response", "error", err)
		http.Error(w, `{"error":{"code":"INTERNAL","message":"encode failed"}}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// statusRecorder captures the response status for the access log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// withRequestContext extracts inbound trace context, assigns a request id
// and writes one access log line per request.
func (s *Server) withRequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = observability.NewRequestID()
		}
		ctx = observability.WithRequestID(ctx, id)
		w.Header().Set(RequestIDHeader, id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		s.logger.Info(ctx, "Request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}
