package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInitLoggerWithWriter(t *testing.T) {
	t.Run("default level is info", func(t *testing.T) {
		var buf bytes.Buffer
		logger := InitLoggerWithWriter(false, false, &buf)

		logger.Debug().Msg("hidden")
		logger.Info().Msg("shown")

		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "shown")
	})

	t.Run("verbose enables debug", func(t *testing.T) {
		var buf bytes.Buffer
		logger := InitLoggerWithWriter(true, false, &buf)

		logger.Debug().Msg("stage decision")
		assert.Contains(t, buf.String(), "stage decision")
	})

	t.Run("quiet suppresses info", func(t *testing.T) {
		var buf bytes.Buffer
		logger := InitLoggerWithWriter(false, true, &buf)

		logger.Info().Msg("routine")
		logger.Warn().Msg("important")

		assert.NotContains(t, buf.String(), "routine")
		assert.Contains(t, buf.String(), "important")
	})

	t.Run("timestamp field uses ts", func(t *testing.T) {
		var buf bytes.Buffer
		logger := InitLoggerWithWriter(false, false, &buf)

		logger.Info().Msg("entry")
		assert.Contains(t, buf.String(), `"ts"`)
		assert.Contains(t, buf.String(), `"event":"entry"`)
	})
}

func TestSelectLevel(t *testing.T) {
	assert.Equal(t, "debug", selectLevel(true, false).String())
	assert.Equal(t, "warn", selectLevel(false, true).String())
	assert.Equal(t, "info", selectLevel(false, false).String())
}
