package models

type Plan struct {
	Goal          string        `json:"goal"`
	GoalRationale string        `json:"goal_rationale"`
	Subtasks      []SubtaskSpec `json:"subtasks"`
}

type SubtaskSpec struct {
	ToolName         string   `json:"tool_name"`
	Predecessor      string   `json:"predecessor,omitempty"`
	Description      string   `json:"description"`
	CapabilitiesUsed []string `json:"capabilities_used"`
	Rationale        string   `json:"rationale"`
	Body             string   `json:"body"`
}

// ExecutionResult maps a subtask's tool_name to the mapping its routine returned.
type ExecutionResult map[string]map[string]any

func (r ExecutionResult) Clone() ExecutionResult {
	out := make(ExecutionResult, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

type Verdict struct {
	Satisfactory bool   `json:"satisfactory"`
	Rationale    string `json:"rationale"`
	FinalAnswer  string `json:"final_answer,omitempty"`
	RevisedPlan  *Plan  `json:"revised_plan,omitempty"`
}

// Index returns the position of the subtask named name, or -1.
func (p Plan) Index(name string) int {
	for i, s := range p.Subtasks {
		if s.ToolName == name {
			return i
		}
	}
	return -1
}
