package monitoring

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	called := false
	SetLogger(func(format string, v ...interface{}) {
		called = true
	})
	Logf("test message")
	assert.True(t, called, "custom logger was not called")

	called = false
	SetLogger(nil)
	Logf("test message")
	assert.False(t, called, "no-op logger should not reach the previous logger")
}

func TestLogf_Default(t *testing.T) {
	assert.NotNil(t, Logf)
	assert.NotPanics(t, func() { Logf("test message: %s", "value") })
}

func TestVlogf(t *testing.T) {
	original := Logf
	level := Verbosity()
	defer func() {
		Logf = original
		SetVerbosity(level)
	}()

	var got []string
	SetLogger(func(format string, v ...interface{}) {
		got = append(got, fmt.Sprintf(format, v...))
	})

	SetVerbosity(Progress)
	Vlogf(Warnings, "warn %d", 1)
	Vlogf(Progress, "progress %d", 2)
	Vlogf(Detail, "detail %d", 3)
	assert.Equal(t, []string{"warn 1", "progress 2"}, got)

	got = nil
	SetVerbosity(Quiet)
	Vlogf(Warnings, "silenced")
	assert.Empty(t, got)
}

func TestSetVerbosity_ClampsNegative(t *testing.T) {
	level := Verbosity()
	defer SetVerbosity(level)

	SetVerbosity(-3)
	assert.Equal(t, Quiet, Verbosity())
	assert.False(t, Enabled(Warnings))
}
