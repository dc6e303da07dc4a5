package runlog

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogRecordsEntries(t *testing.T) {
	l := New(nil, nil)
	l.Logger("fetch").Info().Msg("fetched 3 items")
	l.Logger("engine").Error().Str("kind", "subtask_execution").Err(errors.New("boom")).Msg("subtask failed")

	entries := l.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "fetch", entries[0].Source)
	assert.Equal(t, "info", entries[0].Level)
	assert.Equal(t, "fetched 3 items", entries[0].Message)
	assert.False(t, entries[0].Time.IsZero())

	assert.Equal(t, "engine", entries[1].Source)
	assert.Equal(t, "error", entries[1].Level)
	assert.Equal(t, "subtask_execution", entries[1].Kind)
	assert.Equal(t, "subtask failed: boom", entries[1].Message)

	lines := l.Lines()
	assert.True(t, strings.HasSuffix(lines[0], "[info] fetch: fetched 3 items"), lines[0])
	assert.True(t, strings.HasSuffix(lines[1], "(subtask_execution)"), lines[1])
}

func TestLogTee(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, map[string]interface{}{"task": "abc"})
	l.Logger("loop").Warn().Msg("not satisfactory, iterations exhausted")

	assert.Equal(t, 1, l.Len())
	assert.Contains(t, buf.String(), `"task":"abc"`)
	assert.Contains(t, buf.String(), `"source":"loop"`)
}

func TestLogConcurrentAppend(t *testing.T) {
	l := New(nil, nil)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Logger("w").Info().Msg("line")
		}()
	}
	wg.Wait()
	assert.Equal(t, 10, l.Len())
}

func TestLogIgnoresGlobalLevel(t *testing.T) {
	prev := zerolog.GlobalLevel()
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	defer zerolog.SetGlobalLevel(prev)

	var buf bytes.Buffer
	l := New(&buf, nil)
	l.Logger("fetch").Debug().Msg("captured stdout")
	l.Logger("fetch").Info().Msg("fetched")
	l.Logger("loop").Warn().Msg("retrying")

	entries := l.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "debug", entries[0].Level)
	assert.Equal(t, "captured stdout", entries[0].Message)
	assert.Equal(t, "info", entries[1].Level)

	assert.NotContains(t, buf.String(), "captured stdout", "the tee honours the process level")
	assert.NotContains(t, buf.String(), "fetched")
	assert.Contains(t, buf.String(), "retrying")
}
