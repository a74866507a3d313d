package engine

import (
	"errors"
	"fmt"
)

// Code is an engine result code.
type Code int

const (
	CodeOK Code = iota
	CodeCommonError
	CodeCommonUnknown
	CodeLogger
	CodeInvalidParam
	CodeOperatorError
	CodeNullptr
	CodeSingleOpError
	CodeFusionOpError
	CodeUserOpError
	CodePipelineError
	CodePipelineBuildError
	CodePipelineStateError
	CodeTensorError
	CodeThreadPoolError
)

var codeNames = [...]string{
	CodeOK:                 "ok",
	CodeCommonError:        "common error",
	CodeCommonUnknown:      "unknown error",
	CodeLogger:             "logger error",
	CodeInvalidParam:       "invalid parameter",
	CodeOperatorError:      "operator error",
	CodeNullptr:            "null pointer",
	CodeSingleOpError:      "single operator error",
	CodeFusionOpError:      "fusion operator error",
	CodeUserOpError:        "user operator error",
	CodePipelineError:      "pipeline error",
	CodePipelineBuildError: "pipeline build error",
	CodePipelineStateError: "pipeline state error",
	CodeTensorError:        "tensor error",
	CodeThreadPoolError:    "thread pool error",
}

func (c Code) String() string {
	if c >= 0 && int(c) < len(codeNames) {
		return codeNames[c]
	}
	return fmt.Sprintf("code(%d)", int(c))
}

// OperatorFailure reports whether c blames a single operator of the graph.
func (c Code) OperatorFailure() bool {
	switch c {
	case CodeOperatorError, CodeSingleOpError, CodeFusionOpError, CodeUserOpError:
		return true
	}
	return false
}

// Error is a failure reported by an engine.
type Error struct {
	Code Code
	// Op is the operator kind that failed, when known.
	Op      string
	Message string
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("engine %s in %s: %s", e.Code, e.Op, e.Message)
	}
	return fmt.Sprintf("engine %s: %s", e.Code, e.Message)
}

// CodeOf returns the code carried by err, CodeOK for nil and
// CodeCommonUnknown for errors that did not come from an engine.
func CodeOf(err error) Code {
	if err == nil {
		return CodeOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeCommonUnknown
}
