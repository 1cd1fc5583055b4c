package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"i2console/core"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want core.Level
	}{
		{"debug", core.LevelDebug},
		{"INFO", core.LevelInfo},
		{"", core.LevelInfo},
		{"warning", core.LevelWarn},
		{"error", core.LevelError},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestInstallRoutesCoreLogs(t *testing.T) {
	var buf bytes.Buffer
	t.Cleanup(func() {
		core.SetLogWriter(nil)
		core.SetLogLevel(core.LevelInfo)
	})

	logger, err := Install(&buf, "warn")
	require.NoError(t, err)
	require.NotNil(t, logger)

	core.Infof("quiet")
	core.Warnf("flash retry %d", 2)

	out := buf.String()
	assert.NotContains(t, out, "quiet")
	assert.Contains(t, out, `level=WARN msg="flash retry 2" src=core`)
}

func TestInstallRejectsUnknownLevel(t *testing.T) {
	_, err := Install(&bytes.Buffer{}, "chatty")
	assert.Error(t, err)
}
