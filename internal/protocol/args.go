package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ArgumentError reports a call whose arguments could not be parsed.
// It is raised before any keyboard event is generated.
type ArgumentError struct {
	Op     Op
	Reason string
}

func (e *ArgumentError) Error() string {
	if e.Op == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

// IsArgumentError reports whether err is or wraps an *ArgumentError
func IsArgumentError(err error) bool {
	var argErr *ArgumentError
	return errors.As(err, &argErr)
}

// ParseIntArgs extracts the single integer argument every operation takes.
// Integers must fit a signed 32-bit value.
func ParseIntArgs(op Op, args []json.RawMessage) (int, error) {
	if len(args) != 1 {
		return 0, &ArgumentError{Op: op, Reason: fmt.Sprintf("takes exactly 1 argument (%d given)", len(args))}
	}

	dec := json.NewDecoder(bytes.NewReader(args[0]))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return 0, &ArgumentError{Op: op, Reason: fmt.Sprintf("malformed argument: %v", err)}
	}

	num, ok := v.(json.Number)
	if !ok {
		return 0, &ArgumentError{Op: op, Reason: fmt.Sprintf("an integer is required (got %s)", typeName(v))}
	}
	return parseInt(op, num.String(), 10)
}

// ParseIntString parses a command-line argument, accepting 0x, 0o and 0b prefixes.
func ParseIntString(op Op, s string) (int, error) {
	return parseInt(op, s, 0)
}

func parseInt(op Op, s string, base int) (int, error) {
	n, err := strconv.ParseInt(s, base, 32)
	if err == nil {
		return int(n), nil
	}

	var numErr *strconv.NumError
	if errors.As(err, &numErr) && numErr.Err == strconv.ErrRange {
		return 0, &ArgumentError{Op: op, Reason: fmt.Sprintf("integer argument %s does not fit in 32 bits", s)}
	}
	if _, ferr := strconv.ParseFloat(s, 64); ferr == nil {
		return 0, &ArgumentError{Op: op, Reason: fmt.Sprintf("an integer is required (got float %s)", s)}
	}
	return 0, &ArgumentError{Op: op, Reason: fmt.Sprintf("an integer is required (got %q)", s)}
}

func typeName(v interface{}) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "bool"
	case []interface{}:
		return "array"
	case map[string]interface{}:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
