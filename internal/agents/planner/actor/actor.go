package actor

import (
	"context"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/chains"
	langChainPrompt "github.com/tmc/langchaingo/prompts"

	"go-codeagent/internal/agents"
	"go-codeagent/internal/agents/planner/handler"
	supervisor "go-codeagent/internal/agents/supervisor/actor"
	"go-codeagent/pkg/logger"
	"go-codeagent/pkg/memory/buffer"
	"go-codeagent/pkg/messages"
	"go-codeagent/pkg/models"
	"go-codeagent/pkg/prompts"
	"go-codeagent/pkg/replan"
	"go-codeagent/pkg/runlog"
)

// Planner owns one goal run: it plans, hands the plan to a supervisor and
// keeps the status of the run.
type Planner struct {
	cfg     agents.Config
	id      uuid.UUID
	handler *handler.Handler
	memory  *buffer.Memories
	log     *runlog.Log
	run     models.Run
	ctx     context.Context
}

var (
	NewPlanPrompt = langChainPrompt.NewPromptTemplate(prompts.PlanTemplate, []string{"Goal", "Capabilities"})
)

func New(cfg agents.Config) func() actor.Actor {
	return func() actor.Actor {
		memory := buffer.New()
		chain := chains.NewLLMChain(cfg.LLM, NewPlanPrompt)
		return &Planner{
			cfg:     cfg,
			id:      uuid.Nil,
			handler: handler.New(chain, cfg.Capabilities.Catalog(), memory),
			memory:  memory,
			log:     runlog.New(nil, nil),
			run:     models.Run{State: models.Init, Iterations: make([]models.IterationReport, 0)},
		}
	}
}

func (agent *Planner) Receive(ac actor.Context) {
	l := log.With().Fields(map[string]interface{}{logger.ActorIDField: ac.Self().GetId(), logger.AgentNameField: "planner"}).Logger()
	switch msg := ac.Message().(type) {
	case *actor.Started:
		l.Debug().Msg("starting actor")
	case *actor.Stopping:
		l.Debug().Msg("stopping actor")
	case *actor.Stopped:
		l.Debug().Msg("stopped actor and its children")
	case *actor.Restarting:
		l.Debug().Msg("restarting actor")
	case *actor.Terminated:
		l.Debug().Msg("child actor terminated")
	case messages.GetStatus:
		l.Debug().Str(logger.RequestTaskID, agent.id.String()).Msg("GetStatus message received from user")
		ac.Respond(agent.status())
	case messages.Cancel:
		l.Info().Str(logger.RequestTaskID, agent.id.String()).Msg("cancel requested")
		if !agent.run.State.Terminal() {
			agent.run.State = models.Cancelled
		}
	case messages.NewGoal:
		l.Debug().Str(logger.RequestTaskID, msg.RequestID.String()).Msgf("NewGoal received from user: %s", msg.Goal)
		agent.start(ac, msg)
	case messages.PlanReady:
		l.Debug().Str(logger.RequestTaskID, agent.id.String()).Msg("PlanReady received")
		agent.supervise(ac, msg.Plan)
	case messages.IterationReport:
		l.Debug().Str(logger.RequestTaskID, agent.id.String()).Int(logger.IterationField, msg.Report.Iteration).Msg("IterationReport received from supervisor agent")
		agent.run.Iterations = append(agent.run.Iterations, msg.Report)
		agent.run.Results = msg.Report.Results
		plan := msg.Report.Plan
		agent.run.Plan = &plan
	case messages.SupervisorComplete:
		l.Debug().Str(logger.RequestTaskID, agent.id.String()).Msg("SupervisorComplete received from supervisor agent")
		agent.run.State = models.Finished
		agent.run.Satisfactory = msg.Satisfactory
		agent.run.FinalAnswer = msg.FinalAnswer
		agent.run.Warning = msg.Warning
		agent.run.Results = msg.Results
		plan := msg.Plan
		agent.run.Plan = &plan
		l.Info().Str(logger.RequestTaskID, agent.id.String()).Bool("satisfactory", msg.Satisfactory).Msg("work complete")
	case messages.ReportError:
		l.Debug().Str(logger.RequestTaskID, agent.id.String()).Msgf("ReportError received: %s", msg.Error.ErrMessage)
		agent.fail(msg.Error)
		if msg.Results != nil {
			agent.run.Results = msg.Results
		}
	default:
		l.Warn().Str(logger.RequestTaskID, agent.id.String()).Msgf("unknown message: %v", msg)
	}
}

// start plans in the background so the mailbox keeps serving status requests.
// The outcome comes back to the planner as PlanReady or ReportError.
func (agent *Planner) start(ac actor.Context, msg messages.NewGoal) {
	l := log.With().Fields(map[string]interface{}{logger.ActorIDField: ac.Self().GetId(), logger.AgentNameField: "planner"}).Logger()
	agent.id = msg.RequestID
	agent.run.Goal = msg.Goal
	agent.run.State = models.Thinking
	agent.log = runlog.New(logger.Output(), map[string]interface{}{logger.RequestTaskID: msg.RequestID.String()})

	agent.ctx = msg.Context
	if agent.ctx == nil {
		agent.ctx = context.Background()
	}

	l.Info().Str(logger.RequestTaskID, agent.id.String()).Msg("planning...")
	ctx, h, runLog, timeout := agent.ctx, agent.handler, agent.log, agent.cfg.OracleTimeout
	root, self := ac.ActorSystem().Root, ac.Self()
	go func() {
		plan, _, err := replan.PlanGoal(ctx, h, msg.Goal, timeout)
		if err != nil {
			lg := runLog.Logger("planner")
			lg.Error().Str(logger.KindField, string(models.KindOf(err))).Err(err).Msg("planning failed")
			root.Send(self, messages.ReportError{Error: models.NewError(err, msg.Goal)})
			return
		}
		root.Send(self, messages.PlanReady{Plan: plan})
	}()
}

func (agent *Planner) supervise(ac actor.Context, plan models.Plan) {
	l := log.With().Fields(map[string]interface{}{logger.ActorIDField: ac.Self().GetId(), logger.AgentNameField: "planner"}).Logger()
	if agent.run.State.Terminal() {
		l.Info().Str(logger.RequestTaskID, agent.id.String()).Msgf("run is %s, plan discarded", agent.run.State)
		return
	}
	agent.run.Plan = &plan
	agent.run.State = models.Executing

	props := actor.PropsFromProducer(supervisor.New(agent.cfg))
	child := ac.Spawn(props)
	l.Info().Str(logger.RequestTaskID, agent.id.String()).Msgf("sending plan with %d subtasks to supervisor...", len(plan.Subtasks))
	ac.Send(child, messages.NewPlan{
		RequestID: agent.id,
		Goal:      agent.run.Goal,
		Plan:      plan,
		Context:   agent.ctx,
		Log:       agent.log,
		Memory:    agent.memory,
	})
}

func (agent *Planner) fail(err models.Error) {
	e := err
	agent.run.Errs = &e
	if err.Kind == models.KindCancelled || agent.run.State == models.Cancelled {
		agent.run.State = models.Cancelled
		return
	}
	agent.run.State = models.Failed
}

func (agent *Planner) status() models.Status {
	run := agent.run
	run.Iterations = append(make([]models.IterationReport, 0, len(agent.run.Iterations)), agent.run.Iterations...)
	run.Logs = agent.log.Lines()
	run.Memories = agent.memory.Snapshot()
	return models.Status{Planner: run}
}
