package data

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"go-codeagent/pkg/models"
)

type planDoc struct {
	Goal          *string      `json:"goal"`
	GoalRationale string       `json:"goal_rationale"`
	Subtasks      []subtaskDoc `json:"subtasks"`
}

type subtaskDoc struct {
	ToolName         *string  `json:"tool_name"`
	Predecessor      *string  `json:"predecessor"`
	Description      string   `json:"description"`
	CapabilitiesUsed []string `json:"capabilities_used"`
	Rationale        string   `json:"rationale"`
	Body             *string  `json:"body"`
}

type verdictDoc struct {
	Satisfactory *bool    `json:"satisfactory"`
	Rationale    string   `json:"rationale"`
	FinalAnswer  *string  `json:"final_answer"`
	RevisedPlan  *planDoc `json:"revised_plan"`
}

type selectionDoc struct {
	Completed          *bool      `json:"completed"`
	SelectedTool       *string    `json:"selected_tool"`
	ActiveParams       []paramDoc `json:"active_params"`
	ClarifyingQuestion string     `json:"clarifying_question"`
}

type paramsDoc struct {
	ActiveParams *[]paramDoc `json:"active_params"`
}

type paramDoc struct {
	Name        *string  `json:"name"`
	Type        string   `json:"type"`
	Description string   `json:"description"`
	EnumValues  []string `json:"enum_values"`
	Value       any      `json:"value"`
}

// DecodePlan normalizes raw and decodes it into a validated plan.
func DecodePlan(raw string) (models.Plan, error) {
	doc := Normalize(raw)
	var pd planDoc
	if err := strictUnmarshal(doc, &pd); err != nil {
		return models.Plan{}, parseError("plan", "unable to decode plan", doc, err)
	}
	plan, err := pd.toPlan()
	if err != nil {
		return models.Plan{}, parseError("plan", "invalid plan", doc, err)
	}
	return plan, nil
}

// DecodeVerdict normalizes raw and decodes it into a validated verdict.
func DecodeVerdict(raw string) (models.Verdict, error) {
	doc := Normalize(raw)
	var vd verdictDoc
	if err := strictUnmarshal(doc, &vd); err != nil {
		return models.Verdict{}, parseError("verdict", "unable to decode verdict", doc, err)
	}
	if vd.Satisfactory == nil {
		return models.Verdict{}, parseError("verdict", "invalid verdict", doc, errors.New("missing field satisfactory"))
	}

	v := models.Verdict{Satisfactory: *vd.Satisfactory, Rationale: vd.Rationale}
	if v.Satisfactory {
		if vd.FinalAnswer == nil || strings.TrimSpace(*vd.FinalAnswer) == "" {
			return models.Verdict{}, parseError("verdict", "invalid verdict", doc, errors.New("satisfactory verdict without final_answer"))
		}
		if vd.RevisedPlan != nil {
			return models.Verdict{}, parseError("verdict", "invalid verdict", doc, errors.New("satisfactory verdict with revised_plan"))
		}
		v.FinalAnswer = *vd.FinalAnswer
		return v, nil
	}

	if vd.RevisedPlan == nil {
		return models.Verdict{}, parseError("verdict", "invalid verdict", doc, errors.New("unsatisfactory verdict without revised_plan"))
	}
	plan, err := vd.RevisedPlan.toPlan()
	if err != nil {
		return models.Verdict{}, parseError("verdict", "invalid revised_plan", doc, err)
	}
	v.RevisedPlan = &plan
	return v, nil
}

// DecodeSelection normalizes raw and decodes a tool selection response.
func DecodeSelection(raw string) (models.SelectionResponse, error) {
	doc := Normalize(raw)
	var sd selectionDoc
	if err := strictUnmarshal(doc, &sd); err != nil {
		return models.SelectionResponse{}, parseError("selection", "unable to decode selection", doc, err)
	}
	if sd.Completed == nil {
		return models.SelectionResponse{}, parseError("selection", "invalid selection", doc, errors.New("missing field completed"))
	}
	if sd.SelectedTool == nil || *sd.SelectedTool == "" {
		return models.SelectionResponse{}, parseError("selection", "invalid selection", doc, errors.New("missing field selected_tool"))
	}
	params, err := toParams(sd.ActiveParams)
	if err != nil {
		return models.SelectionResponse{}, parseError("selection", "invalid active_params", doc, err)
	}

	return models.SelectionResponse{
		Completed:          *sd.Completed,
		SelectedTool:       *sd.SelectedTool,
		ActiveParams:       params,
		ClarifyingQuestion: sd.ClarifyingQuestion,
	}, nil
}

// DecodeParams normalizes raw and decodes a parameter extraction response.
func DecodeParams(raw string) ([]models.Param, error) {
	doc := Normalize(raw)
	var pd paramsDoc
	if err := strictUnmarshal(doc, &pd); err != nil {
		return nil, parseError("params", "unable to decode params", doc, err)
	}
	if pd.ActiveParams == nil {
		return nil, parseError("params", "invalid params", doc, errors.New("missing field active_params"))
	}
	params, err := toParams(*pd.ActiveParams)
	if err != nil {
		return nil, parseError("params", "invalid active_params", doc, err)
	}
	return params, nil
}

func (pd planDoc) toPlan() (models.Plan, error) {
	if pd.Goal == nil {
		return models.Plan{}, errors.New("missing field goal")
	}
	if len(pd.Subtasks) == 0 {
		return models.Plan{}, errors.New("plan has no subtasks")
	}

	plan := models.Plan{
		Goal:          *pd.Goal,
		GoalRationale: pd.GoalRationale,
		Subtasks:      make([]models.SubtaskSpec, 0, len(pd.Subtasks)),
	}
	seen := make(map[string]struct{}, len(pd.Subtasks))
	for i, sd := range pd.Subtasks {
		if sd.ToolName == nil || strings.TrimSpace(*sd.ToolName) == "" {
			return models.Plan{}, fmt.Errorf("subtask %d: missing field tool_name", i)
		}
		name := *sd.ToolName
		if _, ok := seen[name]; ok {
			return models.Plan{}, fmt.Errorf("subtask %d: duplicate tool_name '%s'", i, name)
		}
		seen[name] = struct{}{}
		if sd.Body == nil || strings.TrimSpace(*sd.Body) == "" {
			return models.Plan{}, fmt.Errorf("subtask '%s': missing field body", name)
		}

		st := models.SubtaskSpec{
			ToolName:         name,
			Description:      sd.Description,
			CapabilitiesUsed: sd.CapabilitiesUsed,
			Rationale:        sd.Rationale,
			Body:             *sd.Body,
		}
		if sd.Predecessor != nil {
			st.Predecessor = *sd.Predecessor
		}
		plan.Subtasks = append(plan.Subtasks, st)
	}
	return plan, nil
}

func toParams(docs []paramDoc) ([]models.Param, error) {
	if docs == nil {
		return nil, nil
	}
	params := make([]models.Param, 0, len(docs))
	for i, d := range docs {
		if d.Name == nil || *d.Name == "" {
			return nil, fmt.Errorf("param %d: missing field name", i)
		}
		params = append(params, models.Param{
			Name:        *d.Name,
			Type:        d.Type,
			Description: d.Description,
			EnumValues:  d.EnumValues,
			Value:       d.Value,
		})
	}
	return params, nil
}

func strictUnmarshal(doc string, v any) error {
	dec := json.NewDecoder(strings.NewReader(doc))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("decode: unexpected data after document")
	}
	return nil
}

func parseError(stage, msg, doc string, cause error) error {
	e := models.NewParseError(stage, msg, cause)
	e.Output = doc
	return e
}

// Indent renders v as indented JSON for prompts; it falls back to fmt on failure.
func Indent(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Sprintf("%v", v)
	}
	return strings.TrimRight(buf.String(), "\n")
}
