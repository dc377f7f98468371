package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newBufferLogger(level LogLevel) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Output = &buf
	cfg.Colorize = false
	cfg.ShowTime = false
	cfg.Level = level
	return New(cfg), &buf
}

func TestLoggerFiltersBelowLevel(t *testing.T) {
	log, buf := newBufferLogger(WARN)

	log.Infof("resolved %s", "hidden")
	log.Warnf("scrape failed for %s", "Amen Brother")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "WARN")
	assert.Contains(t, out, "scrape failed for Amen Brother")
}

func TestLoggerSetLevel(t *testing.T) {
	log, buf := newBufferLogger(INFO)

	log.Debugf("before")
	log.SetLevel(DEBUG)
	log.Debugf("after")

	assert.NotContains(t, buf.String(), "before")
	assert.Contains(t, buf.String(), "after")
}

func TestLoggerPrefix(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: INFO, Prefix: "resolver", Output: &buf})

	log.Infof("hit")

	assert.Contains(t, buf.String(), "resolver")
	assert.Contains(t, buf.String(), "hit")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, WARN, ParseLevel("warning"))
	assert.Equal(t, ERROR, ParseLevel(" Error "))
	assert.Equal(t, INFO, ParseLevel("chatty"))
}
