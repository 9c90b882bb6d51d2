package diag

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitDisabledDiscards(t *testing.T) {
	Init(Options{})
	require.False(t, L.Enabled(t.Context(), slog.LevelError))
}

func TestInitTextAndJSON(t *testing.T) {
	defer Init(Options{})

	var out bytes.Buffer
	Init(Options{Enabled: true, Writer: &out, Level: slog.LevelDebug})
	Debug("span acquired", "pages", 2)
	assert.Contains(t, out.String(), "span acquired")
	assert.Contains(t, out.String(), "pages=2")

	out.Reset()
	Init(Options{Enabled: true, Writer: &out, JSON: true})
	Debug("hidden")
	Warn("page heap miss", "pages", 3)
	assert.NotContains(t, out.String(), "hidden")
	assert.Contains(t, out.String(), `"pages":3`)
}

func TestInitFromEnv(t *testing.T) {
	defer Init(Options{})

	t.Setenv(EnvLog, "")
	Init(Options{})
	InitFromEnv()
	assert.False(t, L.Enabled(t.Context(), slog.LevelDebug))

	t.Setenv(EnvLog, "1")
	InitFromEnv()
	assert.True(t, L.Enabled(t.Context(), slog.LevelDebug))
}

func TestAppendFatal(t *testing.T) {
	got := string(appendFatal(nil, "invalid span header found", 0, false))
	assert.Equal(t, "*** spanalloc *** invalid span header found\n", got)

	got = string(appendFatal(nil, "address not owned", 0x7f00dead0000, true))
	assert.Equal(t, "*** spanalloc *** address not owned (0x7f00dead0000)\n", got)
}

func TestFatalExits(t *testing.T) {
	var code int
	exit = func(c int) { code = c }
	defer func() { exit = defaultExit }()

	Fatal("test fatal, ignore")
	assert.Equal(t, 1, code)

	code = 0
	FatalAddr("test fatal addr, ignore", 0x1000)
	assert.Equal(t, 1, code)
}
