// Package abi holds the binary-stable vocabulary shared by hosts and plugins:
// result codes, fixed-size strings, memory categories and the payloads of the
// host-reserved data parameters.
package abi

import "errors"

// Result is the closed set of status codes every callback reports.
// A nil error means OK; any other outcome is one of these values.
type Result int32

const (
	// OK is success. Callbacks return nil rather than OK as an error value.
	OK Result = iota
	// ErrInvalidParam reports a malformed argument (bad buffer geometry, nil data...).
	ErrInvalidParam
	// ErrInvalidIndex reports a parameter index outside [0, numparameters).
	ErrInvalidIndex
	// ErrParamType reports a get/set of the wrong parameter type.
	ErrParamType
	// ErrReadOnly reports a set on a read-only parameter.
	ErrReadOnly
	// ErrUnsupported reports a missing capability.
	ErrUnsupported
	// ErrMemory reports an allocation failure or exhausted budget.
	ErrMemory
	// ErrDontProcess asks the host to bypass the node for this block.
	ErrDontProcess
	// ErrSilence tells the host the output of this block is silent.
	ErrSilence
	// ErrFormat reports input geometry the plugin cannot handle.
	ErrFormat
	// ErrFormatChanged reports a Perform pass that altered the committed output shape.
	ErrFormatChanged
	// ErrNotFound reports an unknown plugin name.
	ErrNotFound
	// ErrPluginVersion reports a descriptor built for an unsupported SDK version.
	ErrPluginVersion
	// ErrInvalidState reports a lifecycle call made out of order.
	ErrInvalidState
	// ErrAlreadyRegistered reports a duplicate plugin name on one system.
	ErrAlreadyRegistered
	// ErrInternal reports a plugin fault recovered by the host.
	ErrInternal
)

var resultStrings = [...]string{
	OK:                   "ok",
	ErrInvalidParam:      "invalid parameter",
	ErrInvalidIndex:      "invalid parameter index",
	ErrParamType:         "wrong parameter type",
	ErrReadOnly:          "parameter is read-only",
	ErrUnsupported:       "unsupported",
	ErrMemory:            "out of memory",
	ErrDontProcess:       "dsp does not need processing",
	ErrSilence:           "dsp output is silent",
	ErrFormat:            "unsupported buffer format",
	ErrFormatChanged:     "output format changed after query",
	ErrNotFound:          "plugin not found",
	ErrPluginVersion:     "unsupported plugin sdk version",
	ErrInvalidState:      "invalid lifecycle state",
	ErrAlreadyRegistered: "plugin already registered",
	ErrInternal:          "internal plugin error",
}

func (r Result) Error() string {
	if r >= 0 && int(r) < len(resultStrings) {
		return resultStrings[r]
	}
	return "unknown result"
}

func (r Result) String() string {
	return r.Error()
}

// Status reduces any callback error to its Result. Errors that do not wrap a
// Result are internal faults.
func Status(err error) Result {
	if err == nil {
		return OK
	}
	var r Result
	if errors.As(err, &r) {
		return r
	}
	return ErrInternal
}
