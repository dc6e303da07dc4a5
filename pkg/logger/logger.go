package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	AgentNameField = "agent"
	ActorIDField   = "actor"
	RequestTaskID  = "task"
	SessionIDField = "session"
	SubtaskField   = "subtask"
	IterationField = "iteration"
	SourceField    = "source"
	KindField      = "kind"
)

var output io.Writer = os.Stderr

func NewGlobal(level string, pretty bool) error {
	l, err := zerolog.ParseLevel(level)
	if err != nil {
		return err
	}

	zerolog.SetGlobalLevel(l)

	if pretty {
		output = zerolog.ConsoleWriter{Out: os.Stderr}
		log.Logger = log.Output(output)
	}
	return nil
}

// Output is the writer behind the global logger.
func Output() io.Writer {
	return output
}
