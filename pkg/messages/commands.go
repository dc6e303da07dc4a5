package messages

import (
	"context"

	"github.com/google/uuid"

	"go-codeagent/pkg/memory/buffer"
	"go-codeagent/pkg/models"
	"go-codeagent/pkg/runlog"
	"go-codeagent/pkg/selection"
)

// NewGoal starts a run. Context is cancelled when the user cancels the run.
type NewGoal struct {
	RequestID uuid.UUID
	Goal      string
	Context   context.Context
}

// PlanReady is sent by a planner to itself once planning succeeds.
type PlanReady struct {
	Plan models.Plan
}

type NewPlan struct {
	RequestID uuid.UUID
	Goal      string
	Plan      models.Plan
	Context   context.Context
	Log       *runlog.Log
	Memory    *buffer.Memories
}

type IterationReport struct {
	Report models.IterationReport
}

type SupervisorComplete struct {
	Satisfactory bool
	FinalAnswer  string
	Warning      string
	Plan         models.Plan
	Results      models.ExecutionResult
}

type ReportError struct {
	Error   models.Error
	Results models.ExecutionResult
}

type GetStatus struct{}

type Cancel struct{}

type UserMessage struct {
	Content string
}

type GetSession struct{}

type CloseSession struct{}

type SessionReply struct {
	Phase        selection.Phase `json:"phase"`
	ActiveTool   string          `json:"active_tool,omitempty"`
	ActiveParams []models.Param  `json:"active_params"`
	Reply        string          `json:"reply"`
	Completed    bool            `json:"completed"`
}

type SessionStatus struct {
	History []models.ChatMessage `json:"history"`
	State   selection.State      `json:"state"`
	// LastTool and LastParams hold the most recent completed selection.
	LastTool   string          `json:"last_tool,omitempty"`
	LastParams []models.Param  `json:"last_params,omitempty"`
	Memories   []buffer.Memory `json:"memories,omitempty"`
}
