package logger_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.nozem.dev/nozem/internal/adapters/logger"
)

func newTestLogger(t *testing.T) (*logger.Logger, *bytes.Buffer) {
	t.Helper()
	t.Setenv("NO_COLOR", "1")

	buf := &bytes.Buffer{}
	return logger.NewWithWriter(buf), buf
}

func TestLogger_InfoWritesMessage(t *testing.T) {
	lg, buf := newTestLogger(t)
	lg.Info("unit built")
	assert.Contains(t, buf.String(), "unit built")
}

func TestLogger_WarnIncludesWarningIcon(t *testing.T) {
	lg, buf := newTestLogger(t)
	lg.Warn("cache miss")
	assert.Contains(t, buf.String(), "!")
	assert.Contains(t, buf.String(), "cache miss")
}

func TestLogger_ErrorIncludesCrossIcon(t *testing.T) {
	lg, buf := newTestLogger(t)
	lg.Error("build failed")
	assert.Contains(t, buf.String(), "✗")
}

func TestLogger_InfoWithArgsAppendsKeyValuePairs(t *testing.T) {
	lg, buf := newTestLogger(t)
	lg.Info("unit built", "unit", "@acme/widgets")
	assert.Contains(t, buf.String(), "unit=@acme/widgets")
}

func TestLogger_WithAttachesAttrsToEverySubsequentCall(t *testing.T) {
	lg, buf := newTestLogger(t)
	scoped := lg.With("unit", "@acme/widgets")
	scoped.Info("building")
	assert.Contains(t, buf.String(), "unit=@acme/widgets")
	assert.Contains(t, buf.String(), "building")
}

func TestLogger_WithDoesNotMutateParentLogger(t *testing.T) {
	lg, buf := newTestLogger(t)
	_ = lg.With("unit", "@acme/widgets")
	lg.Info("unrelated message")
	assert.NotContains(t, buf.String(), "unit=@acme/widgets")
}
