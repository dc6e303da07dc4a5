package models

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindParse             ErrorKind = "parse"
	KindDependencyMissing ErrorKind = "dependency_missing"
	KindSubtaskExecution  ErrorKind = "subtask_execution"
	KindOracleCall        ErrorKind = "oracle_call"
	KindCancelled         ErrorKind = "cancelled"
)

// Sentinels for errors.Is, one per kind.
var (
	ErrParse             = errors.New("parse error")
	ErrDependencyMissing = errors.New("dependency missing")
	ErrSubtaskExecution  = errors.New("subtask execution error")
	ErrOracleCall        = errors.New("oracle call error")
	ErrCancelled         = errors.New("cancelled")
)

var sentinels = map[ErrorKind]error{
	KindParse:             ErrParse,
	KindDependencyMissing: ErrDependencyMissing,
	KindSubtaskExecution:  ErrSubtaskExecution,
	KindOracleCall:        ErrOracleCall,
	KindCancelled:         ErrCancelled,
}

type AgentError struct {
	Kind    ErrorKind
	Stage   string
	Message string
	Cause   error
	// Output holds text a routine emitted before failing, or the document
	// that failed to decode.
	Output string
}

func (e *AgentError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Stage, e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Stage, e.Kind, e.Message)
}

func (e *AgentError) Unwrap() error {
	return e.Cause
}

func (e *AgentError) Is(target error) bool {
	return sentinels[e.Kind] == target
}

func NewAgentError(kind ErrorKind, stage, message string, cause error) *AgentError {
	return &AgentError{Kind: kind, Stage: stage, Message: message, Cause: cause}
}

func NewParseError(stage, message string, cause error) *AgentError {
	return NewAgentError(KindParse, stage, message, cause)
}

func NewDependencyMissingError(toolName, predecessor string) *AgentError {
	msg := fmt.Sprintf("subtask '%s' depends on '%s' which does not run before it", toolName, predecessor)
	return NewAgentError(KindDependencyMissing, "execution", msg, nil)
}

func NewSubtaskExecutionError(toolName, output string, cause error) *AgentError {
	e := NewAgentError(KindSubtaskExecution, "execution", fmt.Sprintf("subtask '%s' failed", toolName), cause)
	e.Output = output
	return e
}

func NewOracleCallError(stage string, cause error) *AgentError {
	return NewAgentError(KindOracleCall, stage, "oracle call failed", cause)
}

func NewCancelledError(stage string, cause error) *AgentError {
	return NewAgentError(KindCancelled, stage, "execution cancelled", cause)
}

// KindOf returns the kind of err if it is an AgentError, or "".
func KindOf(err error) ErrorKind {
	var ae *AgentError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}
