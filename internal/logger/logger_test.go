package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"", LogLevelInfo, false},
		{"debug", LogLevelDebug, false},
		{"WARN", LogLevelWarn, false},
		{"warning", LogLevelWarn, false},
		{" error ", LogLevelError, false},
		{"verbose", LogLevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewWithWriter_FieldsAndModule(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewWithWriter(&buf, LogLevelInfo).Module("alerting")

	log.Debug("hidden")
	log.Info("evaluated", String("hive_id", "h1"), Int("alerts", 2), Error(errors.New("boom")))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1, "debug entry should be filtered at info level")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "evaluated", entry["msg"])
	assert.Equal(t, "alerting", entry["module"])
	assert.Equal(t, "h1", entry["hive_id"])
	assert.InDelta(t, 2, entry["alerts"], 0)
	assert.Equal(t, "boom", entry["error"])
}

func TestNewNop(t *testing.T) {
	t.Parallel()

	log := NewNop().With(String("k", "v"))
	assert.NotPanics(t, func() {
		log.Error("dropped", Any("x", []int{1}))
	})
}
