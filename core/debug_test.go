package core

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogLevelFilter(t *testing.T) {
	var got []string
	SetLogWriter(func(level Level, msg string) {
		got = append(got, level.String()+msg)
	})
	defer SetLogWriter(nil)
	defer SetLogLevel(LogLevel())

	SetLogLevel(LevelWarn)
	Debugf("debug %d", 1)
	Infof("info %d", 2)
	Warnf("warn %d", 3)
	Errorf("error %d", 4)

	assert.Equal(t, []string{"WARN warn 3", "ERRORerror 4"}, got)
}

func TestFormatLine(t *testing.T) {
	line := FormatLine(LevelInfo, "I2C address changed")
	assert.Regexp(t, regexp.MustCompile(`^\[\s*\d+\.\d{3}\] INFO : I2C address changed$`), line)
}
