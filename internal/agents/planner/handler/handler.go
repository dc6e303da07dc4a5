package handler

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/chains"

	"go-codeagent/pkg/capabilities"
	"go-codeagent/pkg/data"
	"go-codeagent/pkg/memory/buffer"
	"go-codeagent/pkg/models"
	"go-codeagent/pkg/prompts"
	"go-codeagent/pkg/template"
)

type Handler struct {
	chain   chains.Chain
	catalog string
	memory  *buffer.Memories
}

func New(chain chains.Chain, catalog []capabilities.Entry, memory *buffer.Memories) *Handler {
	return &Handler{
		chain:   chain,
		catalog: data.Indent(catalog),
		memory:  memory,
	}
}

type input struct {
	Goal         string
	Capabilities string
}

func (h *Handler) Generate(ctx context.Context, goal string) models.HandlerResult {
	in := input{Goal: goal, Capabilities: h.catalog}
	completion, err := chains.Call(ctx, h.chain, map[string]any{"Goal": in.Goal, "Capabilities": in.Capabilities})
	if err != nil {
		return models.HandlerResult{Error: fmt.Errorf("call: %w", err)}
	}

	question, err := template.Parse(prompts.PlanTemplate, in)
	if err != nil {
		return models.HandlerResult{Error: fmt.Errorf("execute: %w", err)}
	}

	answer, ok := completion[h.chain.GetOutputKeys()[0]].(string)
	if !ok {
		return models.HandlerResult{Question: question, Error: errors.New("completion is not text")}
	}
	return models.HandlerResult{Question: question, Answer: answer}
}

// Plan returns the raw plan answer and remembers the exchange.
func (h *Handler) Plan(ctx context.Context, goal string) (string, error) {
	res := h.Generate(ctx, goal)
	if res.Error != nil {
		return "", res.Error
	}
	h.memory.Add(buffer.Memory{Question: res.Question, Answer: res.Answer})
	return res.Answer, nil
}
