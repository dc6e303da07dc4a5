package capabilities

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms/fake"

	"go-codeagent/pkg/models"
	"go-codeagent/pkg/sandbox"
)

func run(t *testing.T, r *Registry, caps []string, body string) (map[string]any, error) {
	t.Helper()
	bound, err := r.Bind(caps)
	require.NoError(t, err)
	out, err := sandbox.New().Run(context.Background(), sandbox.NewNamespace(), sandbox.Invocation{
		Subtask:      models.SubtaskSpec{ToolName: "f", Body: body, CapabilitiesUsed: caps},
		Capabilities: bound,
		Logger:       zerolog.Nop(),
	})
	return out.Value, err
}

func TestRegistryBind(t *testing.T) {
	r := Default(fake.NewFakeLLM([]string{"ok"}), time.Second, 1024)
	assert.Equal(t, []string{"calculate", "http_get", "json", "llm", "math", "time"}, r.Available())
	assert.Len(t, r.Catalog(), 6)

	bound, err := r.Bind([]string{"json", "calculate"})
	require.NoError(t, err)
	assert.Len(t, bound, 2)

	_, err = r.Bind([]string{"json", "send_email"})
	assert.EqualError(t, err, "capability 'send_email' is not available")
}

func TestDefaultWithoutModel(t *testing.T) {
	r := Default(nil, time.Second, 1024)
	assert.NotContains(t, r.Available(), "llm")
}

func TestLoadCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
capabilities:
  - identifiers: [json]
    usage_instructions: use json.decode for API bodies
    example_body: |
      def parse(previous_output):
          return json.decode(previous_output["body"])
    use_example_verbatim: true
  - identifiers: [send_email]
    usage_instructions: not wired yet
`), 0o600))

	r := New(WithStdlib())
	require.NoError(t, r.LoadCatalog(path))

	catalog := r.Catalog()
	require.Len(t, catalog, 4)
	assert.Equal(t, "use json.decode for API bodies", catalog[0].UsageInstructions)
	assert.True(t, catalog[0].UseExampleVerbatim)
	assert.Equal(t, []string{"send_email"}, catalog[3].Identifiers)

	_, err := r.Bind([]string{"send_email"})
	assert.Error(t, err)
}

func TestLoadCatalogErrors(t *testing.T) {
	r := New()
	assert.Error(t, r.LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml")))

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("capabilities:\n  - usage_instructions: no ids\n"), 0o600))
	assert.Error(t, r.LoadCatalog(path))
}

func TestCalculate(t *testing.T) {
	r := New(WithCalculator())
	out, err := run(t, r, []string{"calculate"}, "def f():\n    return {\"avg\": calculate(\"total / count\", total = 10, count = 4), \"root\": calculate(\"sqrt(x) + max(1, 2, 3)\", x = 16), \"big\": calculate(\"x > 3\", x = 5)}\n")
	require.NoError(t, err)
	assert.Equal(t, 2.5, out["avg"])
	assert.Equal(t, float64(7), out["root"])
	assert.Equal(t, true, out["big"])

	_, err = run(t, r, []string{"calculate"}, "def f():\n    return {\"x\": calculate(\"1 +\")}\n")
	assert.ErrorIs(t, err, models.ErrSubtaskExecution)
}

func TestHTTPGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("0123456789"))
	}))
	defer srv.Close()

	r := New(WithHTTP(srv.Client(), 4))
	out, err := run(t, r, []string{"http_get"}, "def f(url = \""+srv.URL+"\"):\n    return http_get(url)\n")
	require.NoError(t, err)
	assert.Equal(t, float64(http.StatusTeapot), out["status"])
	assert.Equal(t, "0123", out["body"])
}

func TestLLM(t *testing.T) {
	r := New(WithLLM(fake.NewFakeLLM([]string{"Rome is the capital of Italy."})))
	out, err := run(t, r, []string{"llm"}, "def f():\n    return {\"answer\": llm(\"capital of Italy?\")}\n")
	require.NoError(t, err)
	assert.Equal(t, "Rome is the capital of Italy.", out["answer"])
}

func TestJSONModule(t *testing.T) {
	r := New(WithStdlib())
	out, err := run(t, r, []string{"json", "math"}, "def f():\n    d = json.decode('{\"a\": [1, 2]}')\n    return {\"n\": len(d[\"a\"]), \"floor\": math.floor(2.7)}\n")
	require.NoError(t, err)
	assert.Equal(t, float64(2), out["n"])
	assert.Equal(t, float64(2), out["floor"])
}
