// Package wsrpc carries host.Runtime calls over a websocket as JSON
// request/response envelopes.
package wsrpc

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Error codes.
const (
	CodeUnknownMethod = -32601
	CodeInvalidParams = -32602
	CodeCallFailed    = -32000
	CodeUnsupported   = -32001
)

type request struct {
	ID     uint64          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

type response struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *RemoteError    `json:"error,omitempty"`
}

// RemoteError is an error reported by the far side of the connection.
type RemoteError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error %d: %s", e.Code, e.Message)
}

var (
	ErrNotConnected = errors.New("wsrpc: not connected")
	ErrClosed       = errors.New("wsrpc: connection closed")
)
