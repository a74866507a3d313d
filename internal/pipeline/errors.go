package pipeline

import (
	"errors"
	"fmt"

	"github.com/vk/accgraph/internal/engine"
)

var (
	// ErrState matches every *StateError.
	ErrState = errors.New("pipeline state error")
	// ErrRun matches every *RunError.
	ErrRun = errors.New("run error")
	// ErrInput matches every *InputError.
	ErrInput = errors.New("input error")
	// ErrConfig matches every *ConfigError.
	ErrConfig = errors.New("config error")
)

// StateError reports a call the state machine does not allow.
type StateError struct {
	Op    string
	State State
	// Code is set when the engine, rather than the pipeline, detected the
	// broken state.
	Code engine.Code
}

func (e *StateError) Error() string {
	msg := fmt.Sprintf("pipeline state error: cannot %s in state %s", e.Op, e.State)
	if e.Code != engine.CodeOK {
		msg += fmt.Sprintf(" (engine: %s)", e.Code)
	}
	return msg
}

func (e *StateError) Is(target error) bool { return target == ErrState }

// RunReason classifies a failure reported by the engine.
type RunReason uint8

const (
	// ReasonSingleOperatorFailure is a data-level failure of one operator.
	// It breaks the pipeline.
	ReasonSingleOperatorFailure RunReason = iota + 1
	// ReasonEngineFailure is any other engine or transport failure. The
	// pipeline keeps its state.
	ReasonEngineFailure
)

func (r RunReason) String() string {
	switch r {
	case ReasonSingleOperatorFailure:
		return "single operator failure"
	case ReasonEngineFailure:
		return "engine failure"
	default:
		return "invalid"
	}
}

// RunError is an engine failure surfaced by Build or Run.
type RunError struct {
	Reason  RunReason
	Code    engine.Code
	Op      string
	Message string
	// Err is the underlying engine or transport error.
	Err error
}

func (e *RunError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("run error (%s): %s failed with %s: %s", e.Reason, e.Op, e.Code, e.Message)
	}
	return fmt.Sprintf("run error (%s): %s: %s", e.Reason, e.Code, e.Message)
}

func (e *RunError) Is(target error) bool { return target == ErrRun }

func (e *RunError) Unwrap() error { return e.Err }

// InputReason classifies a rejected run input.
type InputReason uint8

const (
	// ReasonUnknownInput is a key that names no external source of the pipeline.
	ReasonUnknownInput InputReason = iota + 1
	// ReasonMissingInput is an external source the graph consumes but the
	// caller did not feed.
	ReasonMissingInput
	// ReasonInvalidBatch is a nil, empty or inconsistent batch.
	ReasonInvalidBatch
	// ReasonNoInputs is a plan that declares no inputs.
	ReasonNoInputs
)

func (r InputReason) String() string {
	switch r {
	case ReasonUnknownInput:
		return "unknown input"
	case ReasonMissingInput:
		return "missing input"
	case ReasonInvalidBatch:
		return "invalid batch"
	case ReasonNoInputs:
		return "no inputs"
	default:
		return "invalid"
	}
}

// InputError rejects run inputs before they reach the engine.
type InputError struct {
	Name   string
	Reason InputReason
	Detail string
}

func (e *InputError) Error() string {
	msg := fmt.Sprintf("input error (%s)", e.Reason)
	if e.Name != "" {
		msg += fmt.Sprintf(": %q", e.Name)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *InputError) Is(target error) bool { return target == ErrInput }

// ConfigError reports a configuration value outside its accepted range.
type ConfigError struct {
	Field string
	Value int
	Min   int
	Max   int
}

func (e *ConfigError) Error() string {
	if e.Max == 0 && e.Min == 0 {
		return fmt.Sprintf("config error: %s is not set", e.Field)
	}
	return fmt.Sprintf("config error: %s=%d outside [%d, %d]", e.Field, e.Value, e.Min, e.Max)
}

func (e *ConfigError) Is(target error) bool { return target == ErrConfig }
