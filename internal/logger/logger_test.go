package logger

import (
	"bytes"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(os.Stdout)
		SetLevel("info")
	})

	SetLevel("WARN")
	Infof("hidden %d", 1)
	Warnf("shown %d", 2)
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown 2")
	assert.False(t, Enabled(slog.LevelInfo))

	SetLevel("bogus")
	assert.True(t, Enabled(slog.LevelInfo))
	assert.False(t, Enabled(slog.LevelDebug))
}

func TestNamedComponent(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(os.Stdout) })

	Named(" ranking ").Infof("epoch %s", "e1")
	assert.Contains(t, buf.String(), "component=ranking")
	assert.Contains(t, buf.String(), `msg="epoch e1"`)
}

func TestJournal(t *testing.T) {
	var main, journal bytes.Buffer
	SetOutput(&main)
	SetJournalWriter(&journal)
	t.Cleanup(func() {
		SetOutput(os.Stdout)
		SetJournalWriter(nil)
	})

	Journal("sim", map[string]any{"strategy": "alpha", "action": "buy"})
	assert.Contains(t, journal.String(), "[SIM] action=buy strategy=alpha")
	assert.Contains(t, main.String(), "[SIM] action=buy strategy=alpha")

	SetJournalWriter(nil)
	journal.Reset()
	Journal("live", nil)
	assert.Empty(t, journal.String())
}
