package models

// NoToolSelected is answered by the selection oracle when no catalog tool applies.
const NoToolSelected = "no_tool_selected"

// Param is one argument of a selectable tool. A nil Value and an empty string
// both count as missing, so extraction may replace an empty string.
type Param struct {
	Name        string   `json:"name" yaml:"name"`
	Type        string   `json:"type" yaml:"type"`
	Description string   `json:"description" yaml:"description"`
	EnumValues  []string `json:"enum_values,omitempty" yaml:"enum_values,omitempty"`
	Value       any      `json:"value" yaml:"-"`
}

// Filled reports whether p holds a value other than nil or "".
func (p Param) Filled() bool {
	if p.Value == nil {
		return false
	}
	if s, ok := p.Value.(string); ok && s == "" {
		return false
	}
	return true
}

// Allowed reports whether v satisfies the enum constraint, if any.
func (p Param) Allowed(v any) bool {
	if len(p.EnumValues) == 0 {
		return true
	}
	s, ok := v.(string)
	if !ok {
		return false
	}
	for _, e := range p.EnumValues {
		if e == s {
			return true
		}
	}
	return false
}

type SelectionResponse struct {
	Completed          bool    `json:"completed"`
	SelectedTool       string  `json:"selected_tool"`
	ActiveParams       []Param `json:"active_params,omitempty"`
	ClarifyingQuestion string  `json:"clarifying_question,omitempty"`
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)
