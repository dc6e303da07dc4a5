package handler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/chains"
	"github.com/tmc/langchaingo/llms/fake"
	"github.com/tmc/langchaingo/prompts"

	"go-codeagent/pkg/memory/buffer"
	"go-codeagent/pkg/models"
	promptTemplates "go-codeagent/pkg/prompts"
	"go-codeagent/pkg/selection"
)

func newHandler(memory *buffer.Memories, answers ...string) *Handler {
	llm := fake.NewFakeLLM(answers)
	return New(
		chains.NewLLMChain(llm, prompts.NewPromptTemplate(promptTemplates.ToolSelectionTemplate, []string{"History", "Tools", "ActiveParams"})),
		chains.NewLLMChain(llm, prompts.NewPromptTemplate(promptTemplates.ParamsExtractionTemplate, []string{"History", "ActiveParams"})),
		chains.NewLLMChain(llm, prompts.NewPromptTemplate(promptTemplates.AnswerWithParamsTemplate, []string{"History", "Tool", "Description", "Params"})),
		memory,
	)
}

var conversation = []models.ChatMessage{
	{Role: models.RoleUser, Content: "weather please"},
	{Role: models.RoleAssistant, Content: "Which city?"},
	{Role: models.RoleUser, Content: "Rome"},
}

func TestSelectToolPrompt(t *testing.T) {
	memory := buffer.New()
	h := newHandler(memory, `{"completed": false, "selected_tool": "weather"}`)
	tools := []selection.Tool{{Name: "weather", Description: "weather for a city", Params: []models.Param{{Name: "city", Type: "string"}}}}

	answer, err := h.SelectTool(context.Background(), conversation, tools, []models.Param{})
	require.NoError(t, err)
	assert.Equal(t, `{"completed": false, "selected_tool": "weather"}`, answer)

	m, _ := memory.Last()
	assert.Contains(t, m.Question, "user: weather please\nassistant: Which city?\nuser: Rome")
	assert.Contains(t, m.Question, `"name": "weather"`)
	assert.Contains(t, m.Question, "Parameters already collected:\n[]")
}

func TestExtractAndAnswer(t *testing.T) {
	memory := buffer.New()
	h := newHandler(memory, `{"active_params": [{"name": "city", "value": "Rome"}]}`, "  Sunny in Rome.  ")

	_, err := h.ExtractParams(context.Background(), conversation, []models.Param{{Name: "city", Type: "string"}})
	require.NoError(t, err)

	tool := selection.Tool{Name: "weather", Description: "weather for a city"}
	reply, err := h.Answer(context.Background(), conversation, tool, []models.Param{{Name: "city", Value: "Rome"}})
	require.NoError(t, err)
	assert.Equal(t, "Sunny in Rome.", reply)

	items := memory.Snapshot()
	require.Len(t, items, 2)
	assert.Contains(t, items[1].Question, `asked for the tool "weather": weather for a city`)
	assert.Contains(t, items[1].Question, `"value": "Rome"`)
}
