// Package engine executes the subtasks of a plan in order, feeding each
// routine the result of its declared predecessor.
package engine

import (
	"context"
	"encoding/json"
	"errors"

	"go.starlark.net/starlark"

	"go-codeagent/pkg/logger"
	"go-codeagent/pkg/models"
	"go-codeagent/pkg/runlog"
	"go-codeagent/pkg/sandbox"
)

const source = "engine"

// Binder resolves the capabilities a subtask declares.
type Binder interface {
	Bind(ids []string) (starlark.StringDict, error)
}

type Engine struct {
	sandbox *sandbox.Sandbox
	binder  Binder
}

func New(sb *sandbox.Sandbox, binder Binder) *Engine {
	return &Engine{
		sandbox: sb,
		binder:  binder,
	}
}

// Validate checks that every predecessor names a subtask placed strictly earlier.
func Validate(plan models.Plan) error {
	seen := make(map[string]struct{}, len(plan.Subtasks))
	for _, st := range plan.Subtasks {
		if st.Predecessor != "" {
			if _, ok := seen[st.Predecessor]; !ok {
				return models.NewDependencyMissingError(st.ToolName, st.Predecessor)
			}
		}
		seen[st.ToolName] = struct{}{}
	}
	return nil
}

// Run executes plan in a fresh namespace and returns the result of every
// subtask. A failing routine is logged and yields an empty result so the run
// continues. On cancellation the results gathered so far are returned along
// with a Cancelled error.
func (e *Engine) Run(ctx context.Context, plan models.Plan, log *runlog.Log) (models.ExecutionResult, error) {
	results := models.ExecutionResult{}
	if err := Validate(plan); err != nil {
		l := log.Logger(source)
		l.Error().Str(logger.KindField, string(models.KindDependencyMissing)).Err(err).Msg("plan rejected")
		return results, err
	}

	ns := sandbox.NewNamespace()
	l := log.Logger(source)
	for i, st := range plan.Subtasks {
		if err := ctx.Err(); err != nil {
			l.Warn().Str(logger.KindField, string(models.KindCancelled)).Msgf("run cancelled before subtask %s", st.ToolName)
			return results, models.NewCancelledError("execution", err)
		}

		var input map[string]any
		if st.Predecessor != "" {
			prev, ok := results[st.Predecessor]
			if !ok {
				return results, models.NewDependencyMissingError(st.ToolName, st.Predecessor)
			}
			input = prev
		}

		l.Info().Int(logger.SubtaskField, i).Msgf("running subtask %s", st.ToolName)
		out, err := e.execute(ctx, ns, st, input, log)
		if err != nil {
			if errors.Is(err, models.ErrCancelled) {
				l.Warn().Str(logger.KindField, string(models.KindCancelled)).Msgf("run cancelled during subtask %s", st.ToolName)
				return results, err
			}
			l.Error().Str(logger.KindField, string(models.KindSubtaskExecution)).Err(err).Msgf("subtask %s failed", st.ToolName)
			var ae *models.AgentError
			if errors.As(err, &ae) && ae.Output != "" {
				log.Logger(st.ToolName).Info().Msg(ae.Output)
			}
			results[st.ToolName] = map[string]any{}
			continue
		}

		rl := log.Logger(st.ToolName)
		if out.Emitted != "" {
			rl.Info().Msg(out.Emitted)
		}
		results[st.ToolName] = out.Value
		if b, err := json.Marshal(out.Value); err == nil {
			rl.Info().Msgf("returned %s", b)
		}
		l.Info().Int(logger.SubtaskField, i).Msgf("subtask %s completed", st.ToolName)
	}

	return results, nil
}

func (e *Engine) execute(ctx context.Context, ns *sandbox.Namespace, st models.SubtaskSpec, input map[string]any, log *runlog.Log) (sandbox.Output, error) {
	caps, err := e.binder.Bind(st.CapabilitiesUsed)
	if err != nil {
		return sandbox.Output{}, models.NewSubtaskExecutionError(st.ToolName, "", err)
	}
	return e.sandbox.Run(ctx, ns, sandbox.Invocation{
		Subtask:      st,
		Input:        input,
		Capabilities: caps,
		Logger:       log.Logger(st.ToolName),
	})
}
