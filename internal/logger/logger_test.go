package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidLevel(t *testing.T) {
	for _, level := range Levels {
		assert.True(t, ValidLevel(string(level)), level)
	}
	assert.True(t, ValidLevel("WARNING"))
	assert.False(t, ValidLevel("verbose"))
	assert.False(t, ValidLevel(""))
}

func TestSetLevel(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.GlobalLevel())

	SetLevel("trace")
	assert.Equal(t, zerolog.TraceLevel, zerolog.GlobalLevel())

	SetLevel("nonsense")
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

func TestWithComponent(t *testing.T) {
	prev := Logger
	defer func() { Logger = prev }()

	var buf bytes.Buffer
	InitWithWriter(&buf, "debug", false)

	WithComponent("hook").Info().Str("title", "Terminal").Msg("focus changed")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hook", entry["component"])
	assert.Equal(t, "Terminal", entry["title"])
	assert.Equal(t, "focus changed", entry["message"])
}
