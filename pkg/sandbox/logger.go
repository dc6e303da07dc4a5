package sandbox

import (
	"strings"

	"github.com/rs/zerolog"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// newLogger exposes l to routines as logger.debug/info/warning/error.
func newLogger(l Logger) *starlarkstruct.Struct {
	return starlarkstruct.FromStringDict(starlarkstruct.Default, starlark.StringDict{
		"debug":   logBuiltin("logger.debug", l, zerolog.DebugLevel),
		"info":    logBuiltin("logger.info", l, zerolog.InfoLevel),
		"warning": logBuiltin("logger.warning", l, zerolog.WarnLevel),
		"error":   logBuiltin("logger.error", l, zerolog.ErrorLevel),
	})
}

func logBuiltin(name string, l Logger, level zerolog.Level) *starlark.Builtin {
	return starlark.NewBuiltin(name, func(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
		parts := make([]string, 0, len(args))
		for _, a := range args {
			if s, ok := starlark.AsString(a); ok {
				parts = append(parts, s)
				continue
			}
			parts = append(parts, a.String())
		}
		l.WithLevel(level).Msg(strings.Join(parts, " "))
		return starlark.None, nil
	})
}
