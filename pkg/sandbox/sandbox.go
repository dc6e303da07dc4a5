// Package sandbox runs subtask routines written in Starlark. A routine can only
// reach the names it is given: the run logger, the capabilities the subtask
// declared and whatever earlier routines of the same run defined.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"go-codeagent/pkg/models"
)

// fileOptions is the dialect routines are written in.
var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
	Recursion:       true,
}

const contextKey = "context"

// ThreadContext returns the context of the run executing on thread.
func ThreadContext(thread *starlark.Thread) context.Context {
	if ctx, ok := thread.Local(contextKey).(context.Context); ok {
		return ctx
	}
	return context.Background()
}

// Namespace holds the globals defined by every routine already executed in one
// engine run. Later routines see them as predeclared names, so helpers and
// constants defined by one routine are reachable from the next. This is a
// deliberate relaxation of isolation: a Namespace belongs to exactly one run
// and must never be reused once a new plan is installed.
type Namespace struct {
	globals starlark.StringDict
}

func NewNamespace() *Namespace {
	return &Namespace{globals: starlark.StringDict{}}
}

func (n *Namespace) Has(name string) bool {
	return n.globals.Has(name)
}

func (n *Namespace) predeclared(extra ...starlark.StringDict) starlark.StringDict {
	out := make(starlark.StringDict, len(n.globals))
	for k, v := range n.globals {
		out[k] = v
	}
	for _, d := range extra {
		for k, v := range d {
			out[k] = v
		}
	}
	return out
}

func (n *Namespace) merge(globals starlark.StringDict) {
	for k, v := range globals {
		n.globals[k] = v
	}
}

type Sandbox struct {
	maxSteps uint64
}

type Option func(*Sandbox)

// WithMaxSteps bounds the interpreter steps of one routine; zero means no bound.
func WithMaxSteps(n uint64) Option {
	return func(s *Sandbox) {
		s.maxSteps = n
	}
}

func New(opts ...Option) *Sandbox {
	s := &Sandbox{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Logger receives the lines a routine writes through logger.*.
type Logger interface {
	WithLevel(level zerolog.Level) *zerolog.Event
}

type Invocation struct {
	Subtask models.SubtaskSpec
	// Input is passed to the routine when Subtask has a predecessor.
	Input        map[string]any
	Capabilities starlark.StringDict
	// Logger defaults to a no-op logger.
	Logger Logger
}

type Output struct {
	Value   map[string]any
	Emitted string
}

// Run defines the routine of inv.Subtask inside ns and invokes it. Failures of
// the routine are reported as a SubtaskExecutionError carrying what it printed;
// a cancelled ctx interrupts the interpreter and yields a Cancelled error.
func (s *Sandbox) Run(ctx context.Context, ns *Namespace, inv Invocation) (Output, error) {
	name := inv.Subtask.ToolName
	if err := ctx.Err(); err != nil {
		return Output{}, models.NewCancelledError("sandbox", err)
	}

	var emitted strings.Builder
	thread := &starlark.Thread{
		Name: name,
		Print: func(_ *starlark.Thread, msg string) {
			emitted.WriteString(msg)
			emitted.WriteByte('\n')
		},
	}
	thread.SetLocal(contextKey, ctx)
	if s.maxSteps > 0 {
		thread.SetMaxExecutionSteps(s.maxSteps)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			thread.Cancel(ctx.Err().Error())
		case <-done:
		}
	}()

	output := func() string { return strings.TrimRight(emitted.String(), "\n") }

	lg := inv.Logger
	if lg == nil {
		nop := zerolog.Nop()
		lg = &nop
	}
	predeclared := ns.predeclared(inv.Capabilities, starlark.StringDict{"logger": newLogger(lg)})
	globals, err := starlark.ExecFileOptions(fileOptions, thread, name+".star", inv.Subtask.Body, predeclared)
	if err != nil {
		return Output{}, s.failure(ctx, name, output(), fmt.Errorf("define: %w", describe(err)))
	}
	ns.merge(globals)

	fn, ok := globals[name]
	if !ok {
		return Output{}, s.failure(ctx, name, output(), fmt.Errorf("routine does not define '%s'", name))
	}
	callable, ok := fn.(starlark.Callable)
	if !ok {
		return Output{}, s.failure(ctx, name, output(), fmt.Errorf("'%s' is a %s, not a function", name, fn.Type()))
	}

	var args starlark.Tuple
	if inv.Subtask.Predecessor != "" {
		in, err := toValue(thread, inv.Input)
		if err != nil {
			return Output{}, s.failure(ctx, name, output(), fmt.Errorf("input: %w", err))
		}
		args = starlark.Tuple{in}
	}

	v, err := starlark.Call(thread, callable, args, nil)
	if err != nil {
		return Output{}, s.failure(ctx, name, output(), fmt.Errorf("call: %w", describe(err)))
	}

	res, err := toResult(thread, v)
	if err != nil {
		return Output{}, s.failure(ctx, name, output(), fmt.Errorf("result: %w", err))
	}

	return Output{Value: res, Emitted: output()}, nil
}

func (s *Sandbox) failure(ctx context.Context, name, output string, err error) error {
	if ctx.Err() != nil {
		e := models.NewCancelledError("sandbox", ctx.Err())
		e.Output = output
		return e
	}
	return models.NewSubtaskExecutionError(name, output, err)
}

func describe(err error) error {
	var evalErr *starlark.EvalError
	if errors.As(err, &evalErr) {
		return errors.New(evalErr.Backtrace())
	}
	return err
}
