package selection

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-codeagent/pkg/models"
)

type fakeOracle struct {
	selections  []string
	extractions []string
	err         error

	selectCalls  int
	extractCalls int
	lastActive   []models.Param
}

func (f *fakeOracle) SelectTool(_ context.Context, _ []models.ChatMessage, _ []Tool, active []models.Param) (string, error) {
	f.lastActive = active
	if f.err != nil {
		return "", f.err
	}
	s := f.selections[f.selectCalls]
	f.selectCalls++
	return s, nil
}

func (f *fakeOracle) ExtractParams(_ context.Context, _ []models.ChatMessage, active []models.Param) (string, error) {
	f.lastActive = active
	if f.err != nil {
		return "", f.err
	}
	s := f.extractions[f.extractCalls]
	f.extractCalls++
	return s, nil
}

var catalog = []Tool{
	{Name: "weather", Description: "current weather for a city", Params: []models.Param{
		{Name: "city", Type: "string", Description: "city name"},
		{Name: "units", Type: "string", Description: "measurement system", EnumValues: []string{"metric", "imperial"}},
	}},
	{Name: "joke", Description: "tell a joke"},
}

func history(msgs ...string) []models.ChatMessage {
	out := make([]models.ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, models.ChatMessage{Role: models.RoleUser, Content: m})
	}
	return out
}

func waiting(params ...models.Param) State {
	return State{Phase: WaitingForParams, ActiveTool: "weather", ActiveParams: params}
}

func TestExtractionFillsMissingParam(t *testing.T) {
	o := &fakeOracle{extractions: []string{`{"active_params": [{"name": "city", "type": "string", "description": "city name", "value": "Rome"}]}`}}
	m := New(o, catalog)

	state, res, err := m.Step(context.Background(), waiting(models.Param{Name: "city", Type: "string"}), history("weather please", "Rome"))
	require.NoError(t, err)
	assert.True(t, res.Completed)
	assert.Equal(t, Selecting, state.Phase)
	assert.Equal(t, "weather", state.ActiveTool)
	assert.Equal(t, "Rome", state.ActiveParams[0].Value)
	assert.Empty(t, state.Question)
}

func TestExtractionNeverOverwrites(t *testing.T) {
	o := &fakeOracle{extractions: []string{`{"active_params": [{"name": "city", "value": "Rome"}, {"name": "units", "value": "metric"}]}`}}
	m := New(o, catalog)

	start := waiting(
		models.Param{Name: "city", Value: "Paris"},
		models.Param{Name: "units", EnumValues: []string{"metric", "imperial"}},
	)
	state, res, err := m.Step(context.Background(), start, history("in Rome actually, metric"))
	require.NoError(t, err)
	assert.True(t, res.Completed)
	assert.Equal(t, "Paris", state.ActiveParams[0].Value)
	assert.Equal(t, "metric", state.ActiveParams[1].Value)
	assert.Equal(t, "Paris", start.ActiveParams[0].Value)
	assert.Nil(t, start.ActiveParams[1].Value, "input state is not mutated")
}

func TestExtractionReplacesEmptyString(t *testing.T) {
	o := &fakeOracle{extractions: []string{`{"active_params": [{"name": "city", "value": "Rome"}]}`}}
	m := New(o, catalog)

	state, res, err := m.Step(context.Background(), waiting(models.Param{Name: "city", Value: ""}), history("Rome"))
	require.NoError(t, err)
	assert.True(t, res.Completed)
	assert.Equal(t, "Rome", state.ActiveParams[0].Value)
	assert.False(t, models.Param{Value: ""}.Filled())
	assert.True(t, models.Param{Value: false}.Filled())
}

func TestExtractionStaysWaiting(t *testing.T) {
	o := &fakeOracle{extractions: []string{
		`{"active_params": [{"name": "city", "value": None}, {"name": "units", "value": "kelvin"}]}`,
		`{"active_params": [{"name": "city", "value": "Oslo"}, {"name": "units", "value": ""}]}`,
		`{"active_params": [{"name": "units", "value": "imperial"}]}`,
	}}
	m := New(o, catalog)

	state := waiting(
		models.Param{Name: "city", Description: "city name"},
		models.Param{Name: "units", EnumValues: []string{"metric", "imperial"}},
	)

	state, res, err := m.Step(context.Background(), state, history("hmm"))
	require.NoError(t, err)
	assert.False(t, res.Completed)
	assert.Equal(t, WaitingForParams, state.Phase)
	assert.Nil(t, state.ActiveParams[1].Value, "value outside enum is ignored")
	assert.Contains(t, res.Question, "city (city name)")
	assert.Contains(t, res.Question, "units [one of: metric, imperial]")

	state, res, err = m.Step(context.Background(), state, history("Oslo"))
	require.NoError(t, err)
	assert.Equal(t, WaitingForParams, state.Phase)
	assert.Equal(t, "Oslo", state.ActiveParams[0].Value)
	assert.NotContains(t, res.Question, "city")

	state, res, err = m.Step(context.Background(), state, history("imperial"))
	require.NoError(t, err)
	assert.True(t, res.Completed)
	assert.Equal(t, Selecting, state.Phase)
	assert.Empty(t, state.Missing())
}

func TestSelectCompleted(t *testing.T) {
	o := &fakeOracle{selections: []string{`{"completed": true, "selected_tool": "joke"}`}}
	state, res, err := New(o, catalog).Step(context.Background(), NewState(), history("tell me a joke"))
	require.NoError(t, err)
	assert.True(t, res.Completed)
	assert.Equal(t, Selecting, state.Phase)
	assert.Equal(t, "joke", state.ActiveTool)
	assert.Empty(t, state.ActiveParams)
}

func TestSelectWithAllParams(t *testing.T) {
	o := &fakeOracle{selections: []string{"```json\n" + `{"completed": true, "selected_tool": "weather", "active_params": [
		{"name": "city", "type": "string", "value": "Rome"}, {"name": "units", "type": "string", "value": "metric"}]}` + "\n```"}}
	state, res, err := New(o, catalog).Step(context.Background(), NewState(), history("metric weather in Rome"))
	require.NoError(t, err)
	assert.True(t, res.Completed)
	assert.Equal(t, "Rome", state.ActiveParams[0].Value)
	assert.Equal(t, []string{"metric", "imperial"}, state.ActiveParams[1].EnumValues, "definitions come from the catalog")
}

func TestSelectMissingParams(t *testing.T) {
	o := &fakeOracle{selections: []string{`{"completed": false, "selected_tool": "weather", "active_params": [
		{"name": "city", "value": null}, {"name": "units", "value": "metric"}, {"name": "invented", "value": "x"}],
		"clarifying_question": "Per quale città?"}`}}
	state, res, err := New(o, catalog).Step(context.Background(), NewState(), history("che tempo fa?"))
	require.NoError(t, err)
	assert.False(t, res.Completed)
	assert.Equal(t, WaitingForParams, state.Phase)
	assert.Equal(t, "Per quale città?", res.Question)
	assert.Equal(t, "Per quale città?", state.Question)
	require.Len(t, state.ActiveParams, 2)
	assert.Nil(t, state.ActiveParams[0].Value)
	assert.Equal(t, "metric", state.ActiveParams[1].Value)
}

func TestSelectUsesOnlyOracleValues(t *testing.T) {
	o := &fakeOracle{selections: []string{`{"completed": false, "selected_tool": "weather", "active_params": [
		{"name": "city", "value": null}, {"name": "units", "value": "metric"}]}`}}
	start := State{Phase: Selecting, ActiveTool: "weather", ActiveParams: []models.Param{{Name: "city", Value: "Paris"}}}
	state, res, err := New(o, catalog).Step(context.Background(), start, history("weather again"))
	require.NoError(t, err)
	assert.False(t, res.Completed)
	assert.Equal(t, WaitingForParams, state.Phase)
	assert.Nil(t, state.ActiveParams[0].Value, "a new selection starts from the oracle's values")
	assert.Equal(t, []models.Param{{Name: "city", Value: "Paris"}}, o.lastActive)
}

func TestSelectNoTool(t *testing.T) {
	o := &fakeOracle{selections: []string{`{"completed": true, "selected_tool": "no_tool_selected"}`}}
	start := State{Phase: Selecting, ActiveTool: "joke"}
	state, res, err := New(o, catalog).Step(context.Background(), start, history("what is love?"))
	require.NoError(t, err)
	assert.True(t, res.NoTool)
	assert.False(t, res.Completed)
	assert.Equal(t, NewState(), state)
}

func TestSelectErrors(t *testing.T) {
	start := NewState()

	o := &fakeOracle{selections: []string{`{"completed": true, "selected_tool": "rocket"}`}}
	state, _, err := New(o, catalog).Step(context.Background(), start, history("launch"))
	assert.ErrorIs(t, err, models.ErrParse)
	assert.Equal(t, start, state)

	o = &fakeOracle{selections: []string{`not json`}}
	_, _, err = New(o, catalog).Step(context.Background(), start, history("launch"))
	assert.ErrorIs(t, err, models.ErrParse)

	o = &fakeOracle{err: errors.New("503")}
	_, _, err = New(o, catalog).Step(context.Background(), start, history("launch"))
	assert.ErrorIs(t, err, models.ErrOracleCall)

	w := waiting(models.Param{Name: "city"})
	state, _, err = New(o, catalog).Step(context.Background(), w, history("Rome"))
	assert.ErrorIs(t, err, models.ErrOracleCall)
	assert.Equal(t, w, state)
}

func TestWaitingInvariant(t *testing.T) {
	answers := []string{
		`{"active_params": [{"name": "city", "value": null}, {"name": "units", "value": null}]}`,
		`{"active_params": [{"name": "units", "value": "metric"}]}`,
		`{"active_params": []}`,
		`{"active_params": [{"name": "city", "value": "Lima"}]}`,
	}
	o := &fakeOracle{extractions: answers}
	m := New(o, catalog)
	state := waiting(models.Param{Name: "city"}, models.Param{Name: "units", EnumValues: []string{"metric", "imperial"}})

	for range answers {
		var err error
		state, _, err = m.Step(context.Background(), state, history("..."))
		require.NoError(t, err)
		if len(state.Missing()) > 0 {
			assert.Equal(t, WaitingForParams, state.Phase)
		}
	}
	assert.Equal(t, Selecting, state.Phase)
	assert.Equal(t, "metric", state.ActiveParams[1].Value)
}

func TestLoadTools(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tools.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
tools:
  - name: weather
    description: current weather for a city
    params:
      - name: city
        type: string
        description: city name
      - name: units
        type: string
        description: measurement system
        enum_values: [metric, imperial]
  - name: joke
    description: tell a joke
`), 0o600))

	tools, err := LoadTools(path)
	require.NoError(t, err)
	require.Len(t, tools, 2)
	assert.Equal(t, []string{"metric", "imperial"}, tools[0].Params[1].EnumValues)
	assert.Nil(t, tools[0].Params[0].Value)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("tools:\n  - name: a\n  - name: a\n"), 0o600))
	_, err = LoadTools(bad)
	assert.Error(t, err)

	reserved := filepath.Join(dir, "reserved.yaml")
	require.NoError(t, os.WriteFile(reserved, []byte("tools:\n  - name: no_tool_selected\n"), 0o600))
	_, err = LoadTools(reserved)
	assert.Error(t, err)
}
