// Package agents holds what every agent actor needs to build its handlers.
package agents

import (
	"time"

	"github.com/tmc/langchaingo/llms"

	"go-codeagent/pkg/capabilities"
	"go-codeagent/pkg/selection"
)

type Config struct {
	LLM           llms.Model
	Capabilities  *capabilities.Registry
	Tools         []selection.Tool
	MaxIterations int
	OracleTimeout time.Duration
	MaxSteps      uint64
}
