package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	apperrors "ticketflow/internal/errors"
	"ticketflow/internal/models"
	"ticketflow/pkg/whatsapp/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestMediaService(t *testing.T, dir string) *MediaService {
	ms := NewMediaService(dir, models.RetryConfig{InitialBackoffMs: 1, MaxBackoffMs: 2, MaxAttempts: 3}, quietLogger())
	ms.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return ms
}

func TestMediaService_StoreDerivesFilename(t *testing.T) {
	dir := t.TempDir()
	ms := newTestMediaService(t, dir)

	result := ms.Store(&types.Media{Mimetype: "audio/ogg; codecs=opus", Data: []byte("voice")})

	require.NoError(t, result.Err)
	assert.True(t, result.Stored)
	assert.Equal(t, "1700000000000 - 1700000000000.ogg", result.Filename)
	assert.Equal(t, "audio", result.MediaType)

	data, err := os.ReadFile(filepath.Join(dir, result.Filename))
	require.NoError(t, err)
	assert.Equal(t, []byte("voice"), data)
}

func TestMediaService_StoreKeepsAndSanitizesFilename(t *testing.T) {
	dir := t.TempDir()
	ms := newTestMediaService(t, dir)

	result := ms.Store(&types.Media{Mimetype: "application/pdf", Filename: "../report.pdf", Data: []byte("%PDF")})

	require.True(t, result.Stored)
	assert.Equal(t, "1700000000000 - .._report.pdf", result.Filename)
	assert.Equal(t, "application", result.MediaType)
	_, err := os.Stat(filepath.Join(dir, result.Filename))
	assert.NoError(t, err)
}

func TestMediaService_StoreFailureStillReturnsFilename(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))
	ms := newTestMediaService(t, blocker)

	result := ms.Store(&types.Media{Mimetype: "image/png", Filename: "a.png", Data: []byte("png")})

	assert.False(t, result.Stored)
	assert.Equal(t, "1700000000000 - a.png", result.Filename)
	assert.Equal(t, "image", result.MediaType)
	assert.True(t, apperrors.HasCode(result.Err, apperrors.ErrCodeMediaStore))
}

func TestMediaService_DownloadRetriesTransientFailures(t *testing.T) {
	ms := newTestMediaService(t, t.TempDir())
	session := newMockSession(1)
	transient := apperrors.NewChannelAPIError("/messages/m1/media", 503, errors.New("unavailable"))
	session.On("DownloadMedia", mock.Anything, "m1").Return(nil, transient).Once()
	session.On("DownloadMedia", mock.Anything, "m1").Return(&types.Media{Mimetype: "image/png", Data: []byte("ok")}, nil).Once()

	media, err := ms.Download(context.Background(), session, "m1")

	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), media.Data)
	session.AssertNumberOfCalls(t, "DownloadMedia", 2)
}

func TestMediaService_DownloadPermanentFailure(t *testing.T) {
	ms := newTestMediaService(t, t.TempDir())
	session := newMockSession(1)
	permanent := apperrors.NewChannelAPIError("/messages/m1/media", 400, errors.New("bad request"))
	session.On("DownloadMedia", mock.Anything, "m1").Return(nil, permanent)

	_, err := ms.Download(context.Background(), session, "m1")

	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeMediaDownload))
	assert.ErrorIs(t, err, permanent)
	session.AssertNumberOfCalls(t, "DownloadMedia", 1)
}

func TestMediaService_DownloadEmptyMediaExhaustsAttempts(t *testing.T) {
	ms := newTestMediaService(t, t.TempDir())
	session := newMockSession(1)
	session.On("DownloadMedia", mock.Anything, "m1").Return(&types.Media{Mimetype: "image/png"}, nil)

	_, err := ms.Download(context.Background(), session, "m1")

	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeMediaDownload))
	session.AssertNumberOfCalls(t, "DownloadMedia", 3)
}
