package log

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingBase struct {
	lines []string
}

func (r *recordingBase) Debug(args ...interface{}) { r.lines = append(r.lines, "DEBUG:"+fmt.Sprint(args...)) }
func (r *recordingBase) Info(args ...interface{})  { r.lines = append(r.lines, "INFO:"+fmt.Sprint(args...)) }
func (r *recordingBase) Warn(args ...interface{})  { r.lines = append(r.lines, "WARN:"+fmt.Sprint(args...)) }
func (r *recordingBase) Error(args ...interface{}) { r.lines = append(r.lines, "ERROR:"+fmt.Sprint(args...)) }
func (r *recordingBase) Fatal(args ...interface{}) { r.lines = append(r.lines, "FATAL:"+fmt.Sprint(args...)) }

func TestLoggerFiltersBelowLevel(t *testing.T) {
	base := &recordingBase{}
	l := NewLogger(base)
	l.SetLevel(WarnLevel)

	l.Debug("ignored")
	l.Info("ignored too")
	l.Warn("kept")
	l.Errorf("kept %d", 2)

	require.Equal(t, []string{"WARN:kept", "ERROR:kept 2"}, base.lines)
}

func TestNewLoggerDefaultsToNonNil(t *testing.T) {
	l := NewLogger(nil)
	require.NotNil(t, l)
	l.Info("should not panic")
}
