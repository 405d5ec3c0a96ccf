package backend

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/ejmockler/indra-cogex-mcp/internal/types"
)

// classifyNeo4j maps a driver error onto the adapter's error taxonomy.
//
//	context deadline / tx timeout      BACKEND_TIMEOUT    transient
//	connectivity                       BACKEND_UNREACHABLE transient
//	Neo.TransientError.*               BACKEND_UNAVAILABLE transient
//	Neo.DatabaseError.*                BACKEND_UNAVAILABLE transient
//	Neo.ClientError.Security.*         BACKEND_UNAVAILABLE transient
//	Neo.ClientError.* (other)          QUERY_REJECTED     domain
//	anything else                      BACKEND_TRANSPORT  transient
func classifyNeo4j(err error) error {
	if err == nil {
		return nil
	}
	const b = types.BackendPrimary

	if types.KindOf(err) != types.KindUnknown {
		return withBackend(err, b)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded), neo4j.IsTransactionExecutionLimit(err):
		return types.NewTransientError(types.BACKEND_TIMEOUT, b, "query timed out", err)
	case errors.Is(err, context.Canceled):
		return types.NewTransientError(types.BACKEND_TIMEOUT, b, "query cancelled", err)
	case neo4j.IsConnectivityError(err):
		return types.NewTransientError(types.BACKEND_UNREACHABLE, b, "graph database unreachable", err)
	}

	var nerr *neo4j.Neo4jError
	if errors.As(err, &nerr) {
		switch nerr.Classification() {
		case "TransientError", "DatabaseError":
			return types.NewTransientError(types.BACKEND_UNAVAILABLE, b, nerr.Code, err)
		case "ClientError":
			if strings.HasPrefix(nerr.Code, "Neo.ClientError.Security.") {
				return types.NewTransientError(types.BACKEND_UNAVAILABLE, b, nerr.Code, err)
			}
			if strings.Contains(nerr.Code, "TransactionTimedOut") {
				return types.NewTransientError(types.BACKEND_TIMEOUT, b, nerr.Code, err)
			}
			return types.NewDomainError(types.QUERY_REJECTED, b, nerr.Code, err)
		}
	}

	if neo4j.IsRetryable(err) {
		return types.NewTransientError(types.BACKEND_UNAVAILABLE, b, "retryable driver error", err)
	}
	return types.NewTransientError(types.BACKEND_TRANSPORT, b, "driver error", err)
}

// classifyTransport maps an http.Client error onto the taxonomy.
func classifyTransport(err error) error {
	const b = types.BackendFallback

	if errors.Is(err, context.DeadlineExceeded) {
		return types.NewTransientError(types.BACKEND_TIMEOUT, b, "request timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		return types.NewTransientError(types.BACKEND_TIMEOUT, b, "request cancelled", err)
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return types.NewTransientError(types.BACKEND_TIMEOUT, b, "request timed out", err)
	}
	return types.NewTransientError(types.BACKEND_UNREACHABLE, b, "fallback endpoint unreachable", err)
}

// classifyStatus maps a non-2xx response onto the taxonomy. body is a short
// excerpt of the response for the error message.
//
//	404                domain          ENTITY_NOT_FOUND
//	400, 422           domain          QUERY_REJECTED
//	408                transient       BACKEND_TIMEOUT
//	429                transient       BACKEND_RATE_LIMITED
//	5xx, other         transient       BACKEND_UNAVAILABLE
func classifyStatus(status int, body string) error {
	const b = types.BackendFallback

	msg := fmt.Sprintf("status %d", status)
	if body != "" {
		msg = fmt.Sprintf("status %d: %s", status, body)
	}

	switch status {
	case http.StatusNotFound:
		return types.NewDomainError(types.ENTITY_NOT_FOUND, b, msg, nil)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return types.NewDomainError(types.QUERY_REJECTED, b, msg, nil)
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return types.NewTransientError(types.BACKEND_TIMEOUT, b, msg, nil)
	case http.StatusTooManyRequests:
		return types.NewTransientError(types.BACKEND_RATE_LIMITED, b, msg, nil)
	default:
		return types.NewTransientError(types.BACKEND_UNAVAILABLE, b, msg, nil)
	}
}
