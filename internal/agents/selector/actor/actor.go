package actor

import (
	"context"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/chains"
	langChainPrompts "github.com/tmc/langchaingo/prompts"

	"go-codeagent/internal/agents"
	"go-codeagent/internal/agents/selector/handler"
	"go-codeagent/pkg/logger"
	"go-codeagent/pkg/memory/buffer"
	"go-codeagent/pkg/messages"
	"go-codeagent/pkg/models"
	"go-codeagent/pkg/oracle"
	"go-codeagent/pkg/prompts"
	"go-codeagent/pkg/selection"
)

const noToolReply = "None of my tools can help with that."

// Selector holds one chat session: the conversation and the selection state.
type Selector struct {
	id         uuid.UUID
	handler    *handler.Handler
	machine    *selection.Machine
	memory     *buffer.Memories
	timeout    time.Duration
	history    []models.ChatMessage
	state      selection.State
	lastTool   string
	lastParams []models.Param
}

var (
	SelectToolPrompt    = langChainPrompts.NewPromptTemplate(prompts.ToolSelectionTemplate, []string{"History", "Tools", "ActiveParams"})
	ExtractParamsPrompt = langChainPrompts.NewPromptTemplate(prompts.ParamsExtractionTemplate, []string{"History", "ActiveParams"})
	AnswerPrompt        = langChainPrompts.NewPromptTemplate(prompts.AnswerWithParamsTemplate, []string{"History", "Tool", "Description", "Params"})
)

func New(id uuid.UUID, cfg agents.Config) func() actor.Actor {
	return func() actor.Actor {
		memory := buffer.New()
		h := handler.New(
			chains.NewLLMChain(cfg.LLM, SelectToolPrompt),
			chains.NewLLMChain(cfg.LLM, ExtractParamsPrompt),
			chains.NewLLMChain(cfg.LLM, AnswerPrompt),
			memory,
		)
		return &Selector{
			id:      id,
			handler: h,
			machine: selection.New(h, cfg.Tools, selection.WithOracleTimeout(cfg.OracleTimeout)),
			memory:  memory,
			timeout: cfg.OracleTimeout,
			history: make([]models.ChatMessage, 0),
			state:   selection.NewState(),
		}
	}
}

func (agent *Selector) Receive(ac actor.Context) {
	l := log.With().Fields(map[string]interface{}{logger.ActorIDField: ac.Self().GetId(), logger.AgentNameField: "selector"}).Logger()
	switch msg := ac.Message().(type) {
	case *actor.Started:
		l.Debug().Msg("starting actor")
	case *actor.Stopping:
		l.Debug().Msg("stopping actor")
	case *actor.Stopped:
		l.Debug().Msg("stopped actor and its children")
	case *actor.Restarting:
		l.Debug().Msg("restarting actor")
	case messages.UserMessage:
		l.Debug().Str(logger.SessionIDField, agent.id.String()).Msg("UserMessage received from user")
		reply, err := agent.turn(context.Background(), msg.Content)
		if err != nil {
			l.Error().Str(logger.SessionIDField, agent.id.String()).Str(logger.KindField, string(models.KindOf(err))).Err(err).Msg("turn failed")
			ac.Respond(err)
			return
		}
		ac.Respond(reply)
	case messages.GetSession:
		ac.Respond(messages.SessionStatus{
			History:    append(make([]models.ChatMessage, 0, len(agent.history)), agent.history...),
			State:      agent.state,
			LastTool:   agent.lastTool,
			LastParams: agent.lastParams,
			Memories:   agent.memory.Snapshot(),
		})
	case messages.CloseSession:
		l.Debug().Str(logger.SessionIDField, agent.id.String()).Msg("closing session")
		ac.Stop(ac.Self())
	default:
		l.Warn().Str(logger.SessionIDField, agent.id.String()).Msgf("unknown message: %v", msg)
	}
}

// turn runs one conversation turn. A failed turn leaves the selection state
// untouched and drops the user message from the history.
func (agent *Selector) turn(ctx context.Context, content string) (messages.SessionReply, error) {
	history := append(agent.history, models.ChatMessage{Role: models.RoleUser, Content: content})

	state, res, err := agent.machine.Step(ctx, agent.state, history)
	if err != nil {
		return messages.SessionReply{}, err
	}

	reply := messages.SessionReply{
		Phase:        state.Phase,
		ActiveTool:   state.ActiveTool,
		ActiveParams: state.ActiveParams,
		Completed:    res.Completed,
	}
	switch {
	case res.NoTool:
		reply.Reply = noToolReply
	case res.Completed:
		tool, _ := agent.machine.Tool(state.ActiveTool)
		answer, err := oracle.Call(ctx, "answer", agent.timeout, func(ctx context.Context) (string, error) {
			return agent.handler.Answer(ctx, history, tool, state.ActiveParams)
		})
		if err != nil {
			return messages.SessionReply{}, err
		}
		reply.Reply = answer
		agent.lastTool = state.ActiveTool
		agent.lastParams = state.ActiveParams
		state = selection.NewState()
	default:
		reply.Reply = res.Question
	}

	agent.history = append(history, models.ChatMessage{Role: models.RoleAssistant, Content: reply.Reply})
	agent.state = state
	return reply, nil
}
