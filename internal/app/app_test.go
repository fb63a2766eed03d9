package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInitLogger_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")
	logger, err := InitLogger(config.LogConfig{Level: "warn", Format: "json", Output: "file", FilePath: path, MaxSize: 1})
	require.NoError(t, err)

	logger.Info("below level")
	logger.Warn("report rejected", zap.String("swo_no", "015-SWO-001"))
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "report rejected")
	assert.Contains(t, string(data), "015-SWO-001")
	assert.NotContains(t, string(data), "below level")
}

func TestInitLogger_Stdout(t *testing.T) {
	logger, err := InitLogger(config.LogConfig{Level: "debug", Format: "console", Output: "stdout"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zap.DebugLevel))
}
