package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/chains"

	"go-codeagent/pkg/data"
	"go-codeagent/pkg/memory/buffer"
	"go-codeagent/pkg/models"
	"go-codeagent/pkg/prompts"
	"go-codeagent/pkg/runlog"
	"go-codeagent/pkg/template"
)

type Handler struct {
	chain  chains.Chain
	memory *buffer.Memories
}

func New(chain chains.Chain, memory *buffer.Memories) *Handler {
	return &Handler{
		chain:  chain,
		memory: memory,
	}
}

type input struct {
	Goal string
	Plan string
	Logs string
}

func (h *Handler) Review(ctx context.Context, goal string, plan models.Plan, logs []runlog.Entry) models.HandlerResult {
	lines := make([]string, 0, len(logs))
	for _, e := range logs {
		lines = append(lines, e.String())
	}
	in := input{Goal: goal, Plan: data.Indent(plan), Logs: strings.Join(lines, "\n")}

	completion, err := chains.Call(ctx, h.chain, map[string]any{"Goal": in.Goal, "Plan": in.Plan, "Logs": in.Logs})
	if err != nil {
		return models.HandlerResult{Error: fmt.Errorf("call: %w", err)}
	}

	question, err := template.Parse(prompts.EvaluationTemplate, in)
	if err != nil {
		return models.HandlerResult{Error: fmt.Errorf("execute: %w", err)}
	}

	answer, ok := completion[h.chain.GetOutputKeys()[0]].(string)
	if !ok {
		return models.HandlerResult{Question: question, Error: errors.New("completion is not text")}
	}
	return models.HandlerResult{Question: question, Answer: answer}
}

// Evaluate returns the raw verdict answer and remembers the exchange.
func (h *Handler) Evaluate(ctx context.Context, goal string, plan models.Plan, logs []runlog.Entry) (string, error) {
	res := h.Review(ctx, goal, plan, logs)
	if res.Error != nil {
		return "", res.Error
	}
	h.memory.Add(buffer.Memory{Question: res.Question, Answer: res.Answer})
	return res.Answer, nil
}
