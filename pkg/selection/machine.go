// Package selection picks a tool from a catalog for the latest user request
// and collects its parameters over as many turns as needed.
package selection

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"go-codeagent/pkg/data"
	"go-codeagent/pkg/models"
	"go-codeagent/pkg/oracle"
)

type Phase string

const (
	Selecting        Phase = "SELECTING"
	WaitingForParams Phase = "WAITING_FOR_PARAMS"
)

type Tool struct {
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description" yaml:"description"`
	Params      []models.Param `json:"params" yaml:"params"`
}

type toolsFile struct {
	Tools []Tool `yaml:"tools"`
}

// LoadTools reads a tool catalog from a YAML file.
func LoadTools(path string) ([]Tool, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tools: %w", err)
	}
	var f toolsFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse tools: %w", err)
	}
	seen := make(map[string]struct{}, len(f.Tools))
	for i, t := range f.Tools {
		if t.Name == "" {
			return nil, fmt.Errorf("tool %d: missing name", i)
		}
		if t.Name == models.NoToolSelected {
			return nil, fmt.Errorf("tool %d: name %s is reserved", i, t.Name)
		}
		if _, ok := seen[t.Name]; ok {
			return nil, fmt.Errorf("tool %d: duplicate name %s", i, t.Name)
		}
		seen[t.Name] = struct{}{}
	}
	return f.Tools, nil
}

type State struct {
	Phase        Phase          `json:"phase"`
	ActiveTool   string         `json:"active_tool,omitempty"`
	ActiveParams []models.Param `json:"active_params"`
	Question     string         `json:"question,omitempty"`
}

func NewState() State {
	return State{Phase: Selecting, ActiveParams: []models.Param{}}
}

// Missing returns the parameters still without a value.
func (s State) Missing() []models.Param {
	var out []models.Param
	for _, p := range s.ActiveParams {
		if !p.Filled() {
			out = append(out, p)
		}
	}
	return out
}

type Oracle interface {
	SelectTool(ctx context.Context, history []models.ChatMessage, tools []Tool, active []models.Param) (string, error)
	ExtractParams(ctx context.Context, history []models.ChatMessage, active []models.Param) (string, error)
}

type Result struct {
	// Completed is set when a tool is selected and every parameter has a value.
	Completed bool
	// NoTool is set when no catalog tool fits the request.
	NoTool   bool
	Question string
}

type Machine struct {
	oracle  Oracle
	tools   []Tool
	timeout time.Duration
}

type Option func(*Machine)

func WithOracleTimeout(d time.Duration) Option {
	return func(m *Machine) {
		m.timeout = d
	}
}

func New(o Oracle, tools []Tool, opts ...Option) *Machine {
	m := &Machine{oracle: o, tools: tools}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Machine) Tool(name string) (Tool, bool) {
	for _, t := range m.tools {
		if t.Name == name {
			return t, true
		}
	}
	return Tool{}, false
}

// Step advances state with the latest history. On error the returned state is
// the input state.
func (m *Machine) Step(ctx context.Context, state State, history []models.ChatMessage) (State, Result, error) {
	if state.Phase == WaitingForParams {
		return m.extract(ctx, state, history)
	}
	return m.selectTool(ctx, state, history)
}

func (m *Machine) selectTool(ctx context.Context, state State, history []models.ChatMessage) (State, Result, error) {
	raw, err := oracle.Call(ctx, "selection", m.timeout, func(ctx context.Context) (string, error) {
		return m.oracle.SelectTool(ctx, history, m.tools, state.ActiveParams)
	})
	if err != nil {
		return state, Result{}, err
	}
	resp, err := data.DecodeSelection(raw)
	if err != nil {
		return state, Result{}, err
	}

	if resp.SelectedTool == models.NoToolSelected {
		return NewState(), Result{NoTool: true}, nil
	}
	tool, ok := m.Tool(resp.SelectedTool)
	if !ok {
		return state, Result{}, models.NewParseError("selection", fmt.Sprintf("unknown tool '%s'", resp.SelectedTool), nil)
	}

	params := m.resolve(tool, resp.ActiveParams)
	next := State{Phase: Selecting, ActiveTool: tool.Name, ActiveParams: params}
	if len(next.Missing()) == 0 {
		return next, Result{Completed: true}, nil
	}

	next.Phase = WaitingForParams
	next.Question = resp.ClarifyingQuestion
	if next.Question == "" {
		next.Question = ask(next.Missing())
	}
	return next, Result{Question: next.Question}, nil
}

func (m *Machine) extract(ctx context.Context, state State, history []models.ChatMessage) (State, Result, error) {
	raw, err := oracle.Call(ctx, "extraction", m.timeout, func(ctx context.Context) (string, error) {
		return m.oracle.ExtractParams(ctx, history, state.ActiveParams)
	})
	if err != nil {
		return state, Result{}, err
	}
	extracted, err := data.DecodeParams(raw)
	if err != nil {
		return state, Result{}, err
	}

	next := State{
		Phase:        WaitingForParams,
		ActiveTool:   state.ActiveTool,
		ActiveParams: fill(state.ActiveParams, extracted),
	}
	missing := next.Missing()
	if len(missing) == 0 {
		next.Phase = Selecting
		return next, Result{Completed: true}, nil
	}
	next.Question = ask(missing)
	return next, Result{Question: next.Question}, nil
}

// resolve aligns the oracle's parameter list with the tool definition. The
// catalog decides which parameters exist and their enum values; the oracle
// only contributes values.
func (m *Machine) resolve(tool Tool, proposed []models.Param) []models.Param {
	if len(proposed) == 0 {
		return []models.Param{}
	}
	if len(tool.Params) == 0 {
		out := make([]models.Param, 0, len(proposed))
		for _, p := range proposed {
			if !p.Allowed(p.Value) {
				p.Value = nil
			}
			out = append(out, p)
		}
		return out
	}

	out := make([]models.Param, 0, len(tool.Params))
	for _, def := range tool.Params {
		p := def
		p.Value = nil
		out = append(out, p)
	}
	return fill(out, proposed)
}

// fill sets every parameter of params that has no value from the same-named
// entry of values. A parameter that already has a value is never changed, and
// a value outside the enum is ignored.
func fill(params, values []models.Param) []models.Param {
	out := make([]models.Param, len(params))
	copy(out, params)
	for i, p := range out {
		if p.Filled() {
			continue
		}
		for _, v := range values {
			if v.Name == p.Name && v.Filled() && p.Allowed(v.Value) {
				out[i].Value = v.Value
				break
			}
		}
	}
	return out
}

func ask(missing []models.Param) string {
	parts := make([]string, 0, len(missing))
	for _, p := range missing {
		s := p.Name
		if p.Description != "" {
			s += " (" + p.Description + ")"
		}
		if len(p.EnumValues) > 0 {
			s += " [one of: " + strings.Join(p.EnumValues, ", ") + "]"
		}
		parts = append(parts, s)
	}
	return "Please provide: " + strings.Join(parts, "; ")
}
