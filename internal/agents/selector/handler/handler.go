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
	"go-codeagent/pkg/selection"
	"go-codeagent/pkg/template"
)

type Handler struct {
	selectChain  chains.Chain
	extractChain chains.Chain
	answerChain  chains.Chain
	memory       *buffer.Memories
}

var _ selection.Oracle = (*Handler)(nil)

func New(selectChain, extractChain, answerChain chains.Chain, memory *buffer.Memories) *Handler {
	return &Handler{
		selectChain:  selectChain,
		extractChain: extractChain,
		answerChain:  answerChain,
		memory:       memory,
	}
}

type selectInput struct {
	History      string
	Tools        string
	ActiveParams string
}

type extractInput struct {
	History      string
	ActiveParams string
}

type answerInput struct {
	History     string
	Tool        string
	Description string
	Params      string
}

func (h *Handler) SelectTool(ctx context.Context, history []models.ChatMessage, tools []selection.Tool, active []models.Param) (string, error) {
	in := selectInput{History: transcript(history), Tools: data.Indent(tools), ActiveParams: data.Indent(active)}
	return h.call(ctx, h.selectChain, prompts.ToolSelectionTemplate, in, map[string]any{
		"History":      in.History,
		"Tools":        in.Tools,
		"ActiveParams": in.ActiveParams,
	})
}

func (h *Handler) ExtractParams(ctx context.Context, history []models.ChatMessage, active []models.Param) (string, error) {
	in := extractInput{History: transcript(history), ActiveParams: data.Indent(active)}
	return h.call(ctx, h.extractChain, prompts.ParamsExtractionTemplate, in, map[string]any{
		"History":      in.History,
		"ActiveParams": in.ActiveParams,
	})
}

// Answer writes the reply to the user once a tool has all its parameters.
func (h *Handler) Answer(ctx context.Context, history []models.ChatMessage, tool selection.Tool, params []models.Param) (string, error) {
	in := answerInput{History: transcript(history), Tool: tool.Name, Description: tool.Description, Params: data.Indent(params)}
	answer, err := h.call(ctx, h.answerChain, prompts.AnswerWithParamsTemplate, in, map[string]any{
		"History":     in.History,
		"Tool":        in.Tool,
		"Description": in.Description,
		"Params":      in.Params,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(answer), nil
}

func (h *Handler) call(ctx context.Context, chain chains.Chain, tmpl string, in any, values map[string]any) (string, error) {
	res := h.generate(ctx, chain, tmpl, in, values)
	if res.Error != nil {
		return "", res.Error
	}
	h.memory.Add(buffer.Memory{Question: res.Question, Answer: res.Answer})
	return res.Answer, nil
}

func (h *Handler) generate(ctx context.Context, chain chains.Chain, tmpl string, in any, values map[string]any) models.HandlerResult {
	completion, err := chains.Call(ctx, chain, values)
	if err != nil {
		return models.HandlerResult{Error: fmt.Errorf("call: %w", err)}
	}

	question, err := template.Parse(tmpl, in)
	if err != nil {
		return models.HandlerResult{Error: fmt.Errorf("execute: %w", err)}
	}

	answer, ok := completion[chain.GetOutputKeys()[0]].(string)
	if !ok {
		return models.HandlerResult{Question: question, Error: errors.New("completion is not text")}
	}
	return models.HandlerResult{Question: question, Answer: answer}
}

func transcript(history []models.ChatMessage) string {
	lines := make([]string, 0, len(history))
	for _, m := range history {
		lines = append(lines, m.Role+": "+m.Content)
	}
	return strings.Join(lines, "\n")
}
