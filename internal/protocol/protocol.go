// Package protocol defines the JSON call envelope shared by the HTTP API,
// the WebSocket API and the remote client.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Op names a bridge operation
type Op string

const (
	// OpKeyDown presses a virtual key: args [vk]
	OpKeyDown Op = "key_down"

	// OpKeyUp releases a virtual key: args [vk]
	OpKeyUp Op = "key_up"

	// OpToggleNumLock drives NUMLOCK to a state: args [0|1], value is the prior state
	OpToggleNumLock Op = "toggle_numlock"
)

// Ops lists every supported operation
var Ops = []Op{OpKeyDown, OpKeyUp, OpToggleNumLock}

// Valid reports whether op is a known operation
func (op Op) Valid() bool {
	for _, known := range Ops {
		if op == known {
			return true
		}
	}
	return false
}

// ErrorKind classifies a failed call on the wire
type ErrorKind string

const (
	KindArgument    ErrorKind = "argument"
	KindRange       ErrorKind = "range"
	KindOS          ErrorKind = "os"
	KindState       ErrorKind = "state"
	KindUnsupported ErrorKind = "unsupported"
	KindInternal    ErrorKind = "internal"
)

// Call is a single operation request
type Call struct {
	ID   uint64            `json:"id,omitempty"`
	Op   Op                `json:"op"`
	Args []json.RawMessage `json:"args"`
}

// Result answers a Call. Value is set only for operations that return one.
type Result struct {
	ID    uint64    `json:"id,omitempty"`
	Op    Op        `json:"op"`
	Value *int      `json:"value,omitempty"`
	Error string    `json:"error,omitempty"`
	Kind  ErrorKind `json:"kind,omitempty"`
}

// OK reports whether the call succeeded
func (r Result) OK() bool {
	return r.Kind == "" && r.Error == ""
}

// NewCall builds a call with integer arguments
func NewCall(id uint64, op Op, args ...int) Call {
	raw := make([]json.RawMessage, len(args))
	for i, a := range args {
		raw[i] = json.RawMessage(fmt.Sprintf("%d", a))
	}
	return Call{ID: id, Op: op, Args: raw}
}

// IntValue returns a pointer to v for use in Result.Value
func IntValue(v int) *int {
	return &v
}
