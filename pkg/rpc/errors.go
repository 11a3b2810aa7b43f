package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
)

// RPCError is a failure reported by the node: a non-2xx HTTP status, a JSON-RPC error object
// or a contract execution error returned inside a query result.
type RPCError struct {
	// HTTPStatus is set when the node answered with a non-2xx status.
	HTTPStatus int
	Code       int64
	Name       string
	Message    string
	// Cause is the name of the error cause, e.g. UNKNOWN_ACCOUNT.
	Cause string
	// Payload is the error object exactly as the transport reported it.
	Payload json.RawMessage
}

func (e *RPCError) Error() string {
	var b strings.Builder
	b.WriteString("rpc error")
	if e.HTTPStatus != 0 {
		fmt.Fprintf(&b, ": http status %d", e.HTTPStatus)
	}
	if e.Cause != "" {
		fmt.Fprintf(&b, ": %s", e.Cause)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	if data := e.data(); data != "" && data != e.Message {
		fmt.Fprintf(&b, ": %s", data)
	}
	return b.String()
}

func (e *RPCError) data() string {
	var v struct {
		Data json.RawMessage `json:"data"`
	}
	if len(e.Payload) == 0 || json.Unmarshal(e.Payload, &v) != nil || len(v.Data) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(v.Data, &s) == nil {
		return s
	}
	return string(v.Data)
}

// TimeoutError is returned when a call does not complete within the configured timeout.
type TimeoutError struct {
	Method  string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("rpc %s timed out after %s", e.Method, e.Timeout)
}

func (e *TimeoutError) Unwrap() error {
	return context.DeadlineExceeded
}

// IsUnknownAccount reports whether err is the node's answer for an account that does not exist.
func IsUnknownAccount(err error) bool {
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) || rpcErr.HTTPStatus != 0 {
		return false
	}
	if rpcErr.Cause == "UNKNOWN_ACCOUNT" {
		return true
	}
	if rpcErr.Cause != "" {
		return false
	}
	// older nodes report the condition in the message only
	return strings.Contains(rpcErr.Message, "does not exist while viewing") ||
		strings.Contains(rpcErr.data(), "does not exist while viewing")
}
