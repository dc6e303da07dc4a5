package actor

import (
	"context"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/chains"
	langChainPrompts "github.com/tmc/langchaingo/prompts"

	"go-codeagent/internal/agents"
	"go-codeagent/internal/agents/supervisor/handler"
	"go-codeagent/pkg/engine"
	"go-codeagent/pkg/logger"
	"go-codeagent/pkg/messages"
	"go-codeagent/pkg/models"
	"go-codeagent/pkg/prompts"
	"go-codeagent/pkg/replan"
	"go-codeagent/pkg/sandbox"
)

// Supervisor executes a plan and replans it until the evaluator is satisfied,
// reporting every iteration to its parent.
type Supervisor struct {
	cfg    agents.Config
	engine *engine.Engine
	id     uuid.UUID
	state  models.State
}

var (
	EvaluationPrompt = langChainPrompts.NewPromptTemplate(prompts.EvaluationTemplate, []string{"Goal", "Plan", "Logs"})
)

func New(cfg agents.Config) func() actor.Actor {
	return func() actor.Actor {
		var opts []sandbox.Option
		if cfg.MaxSteps > 0 {
			opts = append(opts, sandbox.WithMaxSteps(cfg.MaxSteps))
		}
		return &Supervisor{
			cfg:    cfg,
			engine: engine.New(sandbox.New(opts...), cfg.Capabilities),
			id:     uuid.Nil,
			state:  models.Init,
		}
	}
}

func (agent *Supervisor) Receive(ac actor.Context) {
	l := log.With().Fields(map[string]interface{}{logger.ActorIDField: ac.Self().GetId(), logger.AgentNameField: "supervisor"}).Logger()
	switch msg := ac.Message().(type) {
	case *actor.Started:
		l.Debug().Msg("starting actor")
	case *actor.Stopping:
		l.Debug().Msg("stopping actor")
	case *actor.Stopped:
		l.Debug().Msg("stopped actor and its children")
	case *actor.Restarting:
		l.Debug().Msg("restarting actor")
	case messages.NewPlan: // from planner
		l.Debug().Str(logger.RequestTaskID, msg.RequestID.String()).Msgf("NewPlan received from planner agent with %d subtasks", len(msg.Plan.Subtasks))
		agent.id = msg.RequestID
		agent.execute(ac, msg)
	case loopDone:
		agent.complete(ac, msg)
	default:
		l.Warn().Str(logger.RequestTaskID, agent.id.String()).Msgf("unknown message: %v", msg)
	}
}

// loopDone carries the outcome of the loop back into the mailbox.
type loopDone struct {
	goal string
	out  replan.Outcome
	err  error
}

// execute runs the loop in a goroutine owned by the supervisor. Iteration
// reports go straight to the parent; the outcome is delivered as loopDone.
func (agent *Supervisor) execute(ac actor.Context, msg messages.NewPlan) {
	l := log.With().Fields(map[string]interface{}{logger.ActorIDField: ac.Self().GetId(), logger.AgentNameField: "supervisor"}).Logger()
	agent.state = models.Executing

	ctx := msg.Context
	if ctx == nil {
		ctx = context.Background()
	}

	root, self, parent, id := ac.ActorSystem().Root, ac.Self(), ac.Parent(), agent.id
	evaluator := handler.New(chains.NewLLMChain(agent.cfg.LLM, EvaluationPrompt), msg.Memory)
	loop := replan.New(agent.engine, evaluator,
		replan.WithMaxIterations(agent.cfg.MaxIterations),
		replan.WithOracleTimeout(agent.cfg.OracleTimeout),
		replan.WithIterationHook(func(r models.IterationReport) {
			l.Info().Str(logger.RequestTaskID, id.String()).Int(logger.IterationField, r.Iteration).Msg("reporting iteration to parent...")
			root.Send(parent, messages.IterationReport{Report: r})
		}),
	)

	go func() {
		out, err := loop.Run(ctx, msg.Goal, msg.Plan, msg.Log)
		root.Send(self, loopDone{goal: msg.Goal, out: out, err: err})
	}()
}

func (agent *Supervisor) complete(ac actor.Context, done loopDone) {
	if done.err != nil {
		agent.reportErrorToParent(ac, models.NewError(done.err, done.goal), done.out.Results)
		return
	}

	agent.state = models.Finished
	log.Info().Str(logger.RequestTaskID, agent.id.String()).Msg("loop complete, report the results back to the user!")
	ac.Send(ac.Parent(), messages.SupervisorComplete{
		Satisfactory: done.out.Satisfactory,
		FinalAnswer:  done.out.FinalAnswer,
		Warning:      done.out.Warning,
		Plan:         done.out.Plan,
		Results:      done.out.Results,
	})
	ac.Stop(ac.Self())
}

func (agent *Supervisor) reportErrorToParent(ac actor.Context, err models.Error, results models.ExecutionResult) {
	agent.state = models.Failed
	if err.Kind == models.KindCancelled {
		agent.state = models.Cancelled
	}
	log.Error().Str(logger.RequestTaskID, agent.id.String()).Err(err.Err()).Msg("reporting error to parent...")
	ac.Send(ac.Parent(), messages.ReportError{Error: err, Results: results})
	ac.Stop(ac.Self())
}
