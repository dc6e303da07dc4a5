// Package replan drives the execute, evaluate, revise cycle of a goal run.
package replan

import (
	"context"
	"time"

	"go-codeagent/pkg/data"
	"go-codeagent/pkg/engine"
	"go-codeagent/pkg/logger"
	"go-codeagent/pkg/models"
	"go-codeagent/pkg/oracle"
	"go-codeagent/pkg/runlog"
)

const (
	source = "loop"

	DefaultMaxIterations = 2

	// ExhaustedWarning accompanies a best-effort outcome.
	ExhaustedWarning = "not satisfactory, iterations exhausted"
)

// Planner asks the planning oracle for a plan solving goal.
type Planner interface {
	Plan(ctx context.Context, goal string) (string, error)
}

// Evaluator asks the evaluation oracle to judge a run.
type Evaluator interface {
	Evaluate(ctx context.Context, goal string, plan models.Plan, logs []runlog.Entry) (string, error)
}

// Executor runs one plan; *engine.Engine is the implementation.
type Executor interface {
	Run(ctx context.Context, plan models.Plan, log *runlog.Log) (models.ExecutionResult, error)
}

var _ Executor = (*engine.Engine)(nil)

type Loop struct {
	executor      Executor
	evaluator     Evaluator
	maxIterations int
	oracleTimeout time.Duration
	onIteration   func(models.IterationReport)
}

type Option func(*Loop)

func WithMaxIterations(n int) Option {
	return func(l *Loop) {
		if n > 0 {
			l.maxIterations = n
		}
	}
}

func WithOracleTimeout(d time.Duration) Option {
	return func(l *Loop) {
		l.oracleTimeout = d
	}
}

// WithIterationHook registers fn to receive a report after every iteration.
func WithIterationHook(fn func(models.IterationReport)) Option {
	return func(l *Loop) {
		l.onIteration = fn
	}
}

func New(executor Executor, evaluator Evaluator, opts ...Option) *Loop {
	l := &Loop{
		executor:      executor,
		evaluator:     evaluator,
		maxIterations: DefaultMaxIterations,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

type Outcome struct {
	Satisfactory bool
	FinalAnswer  string
	// Warning is set when iterations ran out without a satisfactory verdict.
	Warning    string
	Iterations int
	// Plan is the last plan executed and Results what it produced.
	Plan     models.Plan
	Results  models.ExecutionResult
	Verdicts []models.Verdict
}

// Run executes plan and replaces it with the evaluator's revision until a
// verdict is satisfactory or the iteration bound is reached. Exhausting the
// bound is not an error: the last results are returned with ExhaustedWarning.
func (l *Loop) Run(ctx context.Context, goal string, plan models.Plan, log *runlog.Log) (Outcome, error) {
	lg := log.Logger(source)
	out := Outcome{Plan: plan}

	for iteration := 1; iteration <= l.maxIterations; iteration++ {
		if err := ctx.Err(); err != nil {
			lg.Warn().Str(logger.KindField, string(models.KindCancelled)).Int(logger.IterationField, iteration).Msg("run cancelled")
			return out, models.NewCancelledError("replan", err)
		}

		out.Iterations = iteration
		lg.Info().Int(logger.IterationField, iteration).Msgf("executing plan with %d subtasks", len(out.Plan.Subtasks))
		results, err := l.executor.Run(ctx, out.Plan, log)
		out.Results = results
		if err != nil {
			l.report(iteration, out.Plan, results, nil)
			return out, err
		}

		lg.Info().Int(logger.IterationField, iteration).Msg("evaluating run")
		verdict, err := l.evaluate(ctx, goal, out.Plan, log)
		if err != nil {
			lg.Error().Str(logger.KindField, string(models.KindOf(err))).Err(err).Msg("evaluation failed")
			l.report(iteration, out.Plan, results, nil)
			return out, err
		}
		out.Verdicts = append(out.Verdicts, verdict)
		l.report(iteration, out.Plan, results, &verdict)

		if verdict.Satisfactory {
			lg.Info().Int(logger.IterationField, iteration).Msg("goal satisfied")
			out.Satisfactory = true
			out.FinalAnswer = verdict.FinalAnswer
			return out, nil
		}

		lg.Info().Int(logger.IterationField, iteration).Msgf("not satisfactory: %s", verdict.Rationale)
		if iteration < l.maxIterations {
			out.Plan = *verdict.RevisedPlan
		}
	}

	lg.Warn().Int(logger.IterationField, out.Iterations).Msg(ExhaustedWarning)
	out.Warning = ExhaustedWarning
	return out, nil
}

func (l *Loop) evaluate(ctx context.Context, goal string, plan models.Plan, log *runlog.Log) (models.Verdict, error) {
	raw, err := oracle.Call(ctx, "evaluation", l.oracleTimeout, func(ctx context.Context) (string, error) {
		return l.evaluator.Evaluate(ctx, goal, plan, log.Entries())
	})
	if err != nil {
		return models.Verdict{}, err
	}
	return data.DecodeVerdict(raw)
}

func (l *Loop) report(iteration int, plan models.Plan, results models.ExecutionResult, verdict *models.Verdict) {
	if l.onIteration == nil {
		return
	}
	l.onIteration(models.IterationReport{
		Iteration: iteration,
		Plan:      plan,
		Results:   results.Clone(),
		Verdict:   verdict,
	})
}

// PlanGoal asks planner for a plan and decodes it.
func PlanGoal(ctx context.Context, planner Planner, goal string, timeout time.Duration) (models.Plan, string, error) {
	raw, err := oracle.Call(ctx, "planning", timeout, func(ctx context.Context) (string, error) {
		return planner.Plan(ctx, goal)
	})
	if err != nil {
		return models.Plan{}, "", err
	}
	plan, err := data.DecodePlan(raw)
	if err != nil {
		return models.Plan{}, raw, err
	}
	if err := engine.Validate(plan); err != nil {
		return models.Plan{}, raw, err
	}
	return plan, raw, nil
}
