package models

import (
	"errors"
	"time"

	"go-codeagent/pkg/memory/buffer"
)

type Run struct {
	State        State             `json:"state"`
	Goal         string            `json:"goal"`
	Plan         *Plan             `json:"plan,omitempty"`
	Iterations   []IterationReport `json:"iterations"`
	Satisfactory bool              `json:"satisfactory"`
	FinalAnswer  string            `json:"final_answer,omitempty"`
	Warning      string            `json:"warning,omitempty"`
	Results      ExecutionResult   `json:"results,omitempty"`
	Logs         []string          `json:"logs"`
	Memories     []buffer.Memory   `json:"memories,omitempty"`
	Errs         *Error            `json:"error,omitempty"`
}

type Status struct {
	Planner Run `json:"planner"`
}

type IterationReport struct {
	Iteration int             `json:"iteration"`
	Plan      Plan            `json:"plan"`
	Results   ExecutionResult `json:"results"`
	Verdict   *Verdict        `json:"verdict,omitempty"`
}

type Error struct {
	Kind       ErrorKind   `json:"kind,omitempty"`
	ErrMessage string      `json:"error,omitempty"`
	Message    interface{} `json:"message,omitempty"`
	Time       *time.Time  `json:"time,omitempty"`
}

func NewError(err error, msg interface{}) Error {
	t := time.Now()
	e := Error{Kind: KindOf(err), Message: msg, Time: &t}
	if err != nil {
		e.ErrMessage = err.Error()
	}
	return e
}

func (e Error) Err() error {
	if e.ErrMessage == "" {
		return nil
	}
	return errors.New(e.ErrMessage)
}

type HandlerResult struct {
	Question string
	Answer   string
	Error    error
}
