package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/kekarecall/apiserver/config"
	"github.com/kekarecall/apiserver/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunServerLogsStartupFailureAsJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(config.LogConfig{Level: "info", Format: "json"}, &buf)

	err := runServer(context.Background(), config.Config{AuthMode: config.AuthModePassword}, logger)
	require.Error(t, err)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record), buf.String())
	assert.Equal(t, "ERROR", record["level"])
	assert.Equal(t, "failed to start server", record["msg"])
	assert.Contains(t, record["error"], "SECRET_KEY")
}
