package log

import (
	"bytes"
	"testing"
	"time"

	"github.com/apex/log"
	"github.com/stretchr/testify/assert"
)

func fixedHandler(buf *bytes.Buffer) *TextHandler {
	h := NewTextHandler(buf)
	h.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return h
}

func TestTextHandler_Format(t *testing.T) {
	var buf bytes.Buffer
	logger := &log.Logger{Handler: fixedHandler(&buf), Level: log.DebugLevel}

	logger.WithFields(log.Fields{"selector": "nightly", "a": 1}).Warn("graph operators ignored")

	assert.Equal(t, "2026-01-02 03:04:05 W graph operators ignored a=1 selector=nightly\n", buf.String())
}

func TestTextHandler_Trace(t *testing.T) {
	var buf bytes.Buffer
	logger := &log.Logger{Handler: fixedHandler(&buf), Level: log.DebugLevel}

	logger.Debug("TRACE: walking")

	assert.Equal(t, "2026-01-02 03:04:05 T walking\n", buf.String())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, log.DebugLevel, parseLevel("trace"))
	assert.Equal(t, log.DebugLevel, parseLevel("debug"))
	assert.Equal(t, log.InfoLevel, parseLevel("info"))
	assert.Equal(t, log.ErrorLevel, parseLevel("error"))
	assert.Equal(t, log.FatalLevel, parseLevel("fatal"))
	assert.Equal(t, log.WarnLevel, parseLevel(""))
	assert.Equal(t, log.WarnLevel, parseLevel("bogus"))
}

func TestInit(t *testing.T) {
	var buf bytes.Buffer
	Init(&buf, "info")
	t.Cleanup(func() { Init(&bytes.Buffer{}, "warn") })

	Debugf("hidden %d", 1)
	Infof("shown %d", 2)
	Warnf("warned")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, " I shown 2\n")
	assert.Contains(t, out, " W warned\n")
	assert.NotNil(t, Logger())
}

func TestTracefOnlyAtTrace(t *testing.T) {
	var buf bytes.Buffer
	t.Cleanup(func() { Init(&bytes.Buffer{}, "warn") })

	Init(&buf, "debug")
	Tracef("hidden")
	Errorf("failed %s", "close")

	Init(&buf, "trace")
	Tracef("atom %s", "tag:nightly")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, " E failed close\n")
	assert.Contains(t, out, " T atom tag:nightly\n")
}
