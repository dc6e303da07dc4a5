package capabilities

import (
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/Knetic/govaluate"
	"github.com/tmc/langchaingo/llms"
	starlarkjson "go.starlark.net/lib/json"
	starlarkmath "go.starlark.net/lib/math"
	starlarktime "go.starlark.net/lib/time"
	"go.starlark.net/starlark"

	"go-codeagent/pkg/sandbox"
)

// WithLLM exposes llm(prompt) backed by model.
func WithLLM(model llms.Model) Option {
	return func(r *Registry) {
		r.Register(Entry{
			Identifiers:       []string{"llm"},
			UsageInstructions: "llm(prompt) sends prompt to a language model and returns its answer as a string. Use it to summarize, classify, translate or elaborate text.",
			ExampleBody:       "def summarize(previous_output):\n    text = llm(\"Summarize in one sentence: \" + previous_output[\"body\"])\n    return {\"summary\": text}\n",
		}, starlark.StringDict{"llm": llmBuiltin(model)})
	}
}

// WithHTTP exposes http_get(url, max_bytes=maxBytes).
func WithHTTP(client *http.Client, maxBytes int) Option {
	return func(r *Registry) {
		r.Register(Entry{
			Identifiers:       []string{"http_get"},
			UsageInstructions: "http_get(url, max_bytes) performs an HTTP GET and returns a dict with keys status (int) and body (str, truncated to max_bytes).",
			ExampleBody:       "def fetch(url = \"https://example.com\"):\n    res = http_get(url)\n    if res[\"status\"] != 200:\n        logger.warning(\"unexpected status\", res[\"status\"])\n    return {\"body\": res[\"body\"]}\n",
		}, starlark.StringDict{"http_get": httpGetBuiltin(client, maxBytes)})
	}
}

// WithCalculator exposes calculate(expression, **params).
func WithCalculator() Option {
	return func(r *Registry) {
		r.Register(Entry{
			Identifiers:        []string{"calculate"},
			UsageInstructions:  "calculate(expression, **params) evaluates an arithmetic or boolean expression. Variables in the expression are given as keyword arguments. Functions: sqrt, abs, pow, round, min, max.",
			ExampleBody:        "def average(previous_output):\n    return {\"avg\": calculate(\"total / count\", total = previous_output[\"total\"], count = previous_output[\"count\"])}\n",
			UseExampleVerbatim: false,
		}, starlark.StringDict{"calculate": calculateBuiltin()})
	}
}

// WithStdlib exposes the json, math and time modules.
func WithStdlib() Option {
	return func(r *Registry) {
		r.Register(Entry{
			Identifiers:       []string{"json"},
			UsageInstructions: "json.encode(value) and json.decode(text) convert between values and JSON text.",
			ExampleBody:       "def parse(previous_output):\n    return json.decode(previous_output[\"body\"])\n",
		}, starlark.StringDict{"json": starlarkjson.Module})
		r.Register(Entry{
			Identifiers:       []string{"math"},
			UsageInstructions: "math.sqrt, math.floor, math.ceil, math.log, math.pow, math.pi and the other math module functions.",
		}, starlark.StringDict{"math": starlarkmath.Module})
		r.Register(Entry{
			Identifiers:       []string{"time"},
			UsageInstructions: "time.now(), time.parse_time(text), time.parse_duration(text) and time values with year, month, day, unix fields.",
		}, starlark.StringDict{"time": starlarktime.Module})
	}
}

// Default registers every builtin capability.
func Default(model llms.Model, httpTimeout time.Duration, maxBytes int) *Registry {
	opts := []Option{
		WithHTTP(&http.Client{Timeout: httpTimeout}, maxBytes),
		WithCalculator(),
		WithStdlib(),
	}
	if model != nil {
		opts = append([]Option{WithLLM(model)}, opts...)
	}
	return New(opts...)
}

func llmBuiltin(model llms.Model) *starlark.Builtin {
	return starlark.NewBuiltin("llm", func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var prompt string
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "prompt", &prompt); err != nil {
			return nil, err
		}
		text, err := llms.GenerateFromSinglePrompt(sandbox.ThreadContext(thread), model, prompt)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
		return starlark.String(text), nil
	})
}

func httpGetBuiltin(client *http.Client, maxBytes int) *starlark.Builtin {
	return starlark.NewBuiltin("http_get", func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var url string
		limit := maxBytes
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "url", &url, "max_bytes?", &limit); err != nil {
			return nil, err
		}
		if limit <= 0 || limit > maxBytes {
			limit = maxBytes
		}

		req, err := http.NewRequestWithContext(sandbox.ThreadContext(thread), http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, int64(limit)))
		if err != nil {
			return nil, fmt.Errorf("%s: read body: %w", b.Name(), err)
		}

		d := starlark.NewDict(2)
		_ = d.SetKey(starlark.String("status"), starlark.MakeInt(resp.StatusCode))
		_ = d.SetKey(starlark.String("body"), starlark.String(body))
		return d, nil
	})
}

var calcFunctions = map[string]govaluate.ExpressionFunction{
	"sqrt":  unary(math.Sqrt),
	"abs":   unary(math.Abs),
	"round": unary(math.Round),
	"pow": func(args ...interface{}) (interface{}, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("pow: want 2 arguments, got %d", len(args))
		}
		x, xok := args[0].(float64)
		y, yok := args[1].(float64)
		if !xok || !yok {
			return nil, fmt.Errorf("pow: arguments must be numbers")
		}
		return math.Pow(x, y), nil
	},
	"min": fold(math.Min),
	"max": fold(math.Max),
}

func unary(fn func(float64) float64) govaluate.ExpressionFunction {
	return func(args ...interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("want 1 argument, got %d", len(args))
		}
		x, ok := args[0].(float64)
		if !ok {
			return nil, fmt.Errorf("argument must be a number, got %T", args[0])
		}
		return fn(x), nil
	}
}

func fold(fn func(a, b float64) float64) govaluate.ExpressionFunction {
	return func(args ...interface{}) (interface{}, error) {
		if len(args) == 0 {
			return nil, fmt.Errorf("want at least 1 argument")
		}
		acc, ok := args[0].(float64)
		if !ok {
			return nil, fmt.Errorf("argument must be a number, got %T", args[0])
		}
		for _, a := range args[1:] {
			x, ok := a.(float64)
			if !ok {
				return nil, fmt.Errorf("argument must be a number, got %T", a)
			}
			acc = fn(acc, x)
		}
		return acc, nil
	}
}

func calculateBuiltin() *starlark.Builtin {
	return starlark.NewBuiltin("calculate", func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("%s: want 1 positional argument, got %d", b.Name(), len(args))
		}
		expr, ok := starlark.AsString(args[0])
		if !ok {
			return nil, fmt.Errorf("%s: expression must be a string, got %s", b.Name(), args[0].Type())
		}

		params := make(map[string]interface{}, len(kwargs))
		for _, kv := range kwargs {
			name, _ := starlark.AsString(kv[0])
			v, err := sandbox.ToGo(thread, kv[1])
			if err != nil {
				return nil, fmt.Errorf("%s: param %s: %w", b.Name(), name, err)
			}
			params[name] = v
		}

		e, err := govaluate.NewEvaluableExpressionWithFunctions(expr, calcFunctions)
		if err != nil {
			return nil, fmt.Errorf("%s: parse %q: %w", b.Name(), expr, err)
		}
		res, err := e.Evaluate(params)
		if err != nil {
			return nil, fmt.Errorf("%s: evaluate %q: %w", b.Name(), expr, err)
		}
		return sandbox.FromGo(thread, res)
	})
}
