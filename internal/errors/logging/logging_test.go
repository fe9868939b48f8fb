package logging

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "proxyup/internal/errors"
	"proxyup/internal/logger"
)

func keys(fields []logger.Field) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, f.Key)
	}
	return out
}

func TestFields(t *testing.T) {
	appErr := apperrors.NetworkError(apperrors.CodeDownloadStatus, "download failed", errors.New("404")).
		WithModule("downloader").
		WithOperation("Download").
		WithFields(apperrors.Metadata{"url": "https://x/a.zip", "status": 404, "module": "ignored"})

	fields := Fields(appErr)
	assert.Equal(t, []string{
		"error_code", "error_category", "error_message", "operation", "module",
		"error", "error_time", "recoverable", "status", "url",
	}, keys(fields))
	assert.Equal(t, "DL-005", fields[0].Value)
	assert.Equal(t, "downloader", fields[4].Value)
}

func TestErrorUnwrapsAppError(t *testing.T) {
	log := logger.NewMockLogger()
	appErr := apperrors.ProcessError(apperrors.CodeProxySpawn, "failed to start daemon", nil).WithField("daemon", "wxray")

	Error(context.Background(), log, "restart failed", errors.Wrap(appErr, "step"))

	entries := log.GetEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, logger.LevelError, entries[0].Level)
	assert.Contains(t, keys(entries[0].Fields), "daemon")
}

func TestWarnWithPlainError(t *testing.T) {
	log := logger.NewMockLogger()

	Warn(context.Background(), log, "history unavailable", errors.New("disk full"))

	entries := log.GetEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, logger.LevelWarn, entries[0].Level)
	assert.Equal(t, []string{"error"}, keys(entries[0].Fields))
}

func TestNilLoggerIsIgnored(t *testing.T) {
	assert.NotPanics(t, func() {
		Error(context.Background(), nil, "x", errors.New("y"))
	})
}
