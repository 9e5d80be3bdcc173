package api

import (
	"errors"
	"log"
	"net/http"

	"sendkeys/internal/input"
	"sendkeys/internal/protocol"
)

// dispatch runs one call against the controller and returns the result
// together with the HTTP status that represents it.
func (s *Server) dispatch(call protocol.Call) (protocol.Result, int) {
	res := protocol.Result{ID: call.ID, Op: call.Op}

	if !call.Op.Valid() {
		res.Error = "unknown operation " + string(call.Op)
		res.Kind = protocol.KindArgument
		return res, http.StatusNotFound
	}

	arg, err := protocol.ParseIntArgs(call.Op, call.Args)
	if err != nil {
		res.Error = err.Error()
		res.Kind = protocol.KindArgument
		return res, http.StatusBadRequest
	}

	switch call.Op {
	case protocol.OpKeyDown:
		err = s.ctrl.KeyDown(arg)
	case protocol.OpKeyUp:
		err = s.ctrl.KeyUp(arg)
	case protocol.OpToggleNumLock:
		var wasOn bool
		wasOn, err = s.ctrl.ToggleNumLock(arg != 0)
		if err == nil {
			res.Value = protocol.IntValue(boolToInt(wasOn))
		}
	}

	if err != nil {
		log.Printf("API: %s(%d) failed: %v", call.Op, arg, err)
		kind, status := classify(err)
		res.Error = err.Error()
		res.Kind = kind
		return res, status
	}
	return res, http.StatusOK
}

// classify maps bridge errors onto wire kinds and HTTP statuses
func classify(err error) (protocol.ErrorKind, int) {
	switch {
	case protocol.IsArgumentError(err):
		return protocol.KindArgument, http.StatusBadRequest
	case errors.Is(err, input.ErrKeyCodeRange):
		return protocol.KindRange, http.StatusBadRequest
	case errors.Is(err, input.ErrUnsupported):
		return protocol.KindUnsupported, http.StatusNotImplemented
	case errors.Is(err, input.ErrStateUnavailable):
		return protocol.KindState, http.StatusBadGateway
	case errors.Is(err, input.ErrInjectFailed):
		return protocol.KindOS, http.StatusBadGateway
	default:
		return protocol.KindInternal, http.StatusInternalServerError
	}
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
