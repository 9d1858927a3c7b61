package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewJsonLinesLogRecorder(t *testing.T) {
	var buf bytes.Buffer
	session := NewJsonLinesLogRecorder(&buf).NewSession()

	assert.NoError(t, session.Record(PipelineStart{Command: "ls | wc", Stages: 2}))
	assert.NoError(t, session.Record(JobStart{JobID: 1, Pid: 42, Name: "sleep"}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 2)

	var entries []*LogEntry
	assert.NoError(t, ReadJSONLinesLog(&buf, func(le *LogEntry) {
		entries = append(entries, le)
	}))

	if assert.Len(t, entries, 2) {
		assert.Equal(t, EventPipelineStart, entries[0].Event)
		assert.Equal(t, "ls | wc", entries[0].GetString("command"))
		assert.Equal(t, 2, entries[0].GetInt("stages"))
		assert.False(t, entries[0].GetBool("background"))

		assert.Equal(t, EventJobStart, entries[1].Event)
		assert.Equal(t, 42, entries[1].GetInt("pid"))
		assert.Equal(t, "sleep", entries[1].GetString("name"))
	}

	for _, le := range entries {
		assert.Equal(t, session.SessionID(), le.SessionID)
		assert.NotZero(t, le.TimestampMicros)
	}
}

func TestSessionless(t *testing.T) {
	var got []*LogEntry
	l := &Logger{Record: func(le *LogEntry) error {
		got = append(got, le)
		return nil
	}}

	assert.NoError(t, l.Sessionless().Record(CommandError{Kind: "syntax", Message: "bad"}))
	if assert.Len(t, got, 1) {
		assert.Empty(t, got[0].SessionID)
		assert.Equal(t, "bad", got[0].GetString("message"))
	}
}

func TestNewSession_unique(t *testing.T) {
	l := NewNopLogger()
	assert.NotEqual(t, l.NewSession().SessionID(), l.NewSession().SessionID())
}

func TestReadJSONLinesLog_invalid(t *testing.T) {
	err := ReadJSONLinesLog(strings.NewReader(`{"event": [}`), func(*LogEntry) {})
	assert.Error(t, err)
}
