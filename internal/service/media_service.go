package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	apperrors "ticketflow/internal/errors"
	"ticketflow/internal/models"
	"ticketflow/internal/security"
	"ticketflow/pkg/whatsapp/types"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

// MediaResult is the outcome of persisting an attachment. Filename and
// MediaType are always set; Stored is false and Err holds the cause when
// the bytes could not be written.
type MediaResult struct {
	Filename  string
	MediaType string
	Mimetype  string
	Stored    bool
	Err       error
}

// MediaService downloads attachments from a session and writes them under
// the public directory.
type MediaService struct {
	publicDir   string
	retryConfig models.RetryConfig
	now         func() time.Time
	logger      *apperrors.Logger
}

func NewMediaService(publicDir string, retryConfig models.RetryConfig, logger *logrus.Logger) *MediaService {
	return &MediaService{
		publicDir:   publicDir,
		retryConfig: retryConfig,
		now:         time.Now,
		logger:      apperrors.NewLogger(logger),
	}
}

func (ms *MediaService) newBackoff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Duration(ms.retryConfig.InitialBackoffMs) * time.Millisecond
	bo.MaxInterval = time.Duration(ms.retryConfig.MaxBackoffMs) * time.Millisecond
	attempts := ms.retryConfig.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return backoff.WithMaxRetries(bo, uint64(attempts-1))
}

// Download fetches the attachment of messageID. Empty downloads and
// retryable failures are retried; when attempts run out the error carries
// errors.ErrCodeMediaDownload.
func (ms *MediaService) Download(ctx context.Context, session types.Session, messageID string) (*types.Media, error) {
	var media *types.Media
	err := backoff.Retry(func() error {
		m, err := session.DownloadMedia(ctx, messageID)
		if err != nil {
			if !apperrors.IsRetryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		if m == nil || len(m.Data) == 0 {
			return apperrors.ErrDownloadMedia
		}
		media = m
		return nil
	}, backoff.WithContext(ms.newBackoff(), ctx))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeMediaDownload, "failed to download media").
			WithContext("message_id", messageID)
	}
	return media, nil
}

// Store writes media under the public directory. The stored name is the
// media filename, or "<millis>.<ext>" when it has none, prefixed with
// "<millis> - ". A failed write is logged and reported in the result.
func (ms *MediaService) Store(media *types.Media) MediaResult {
	now := ms.now()
	filename := media.Filename
	if filename == "" {
		filename = fmt.Sprintf("%d.%s", now.UnixMilli(), mimeExtension(media.Mimetype))
	}
	filename = fmt.Sprintf("%d - %s", now.UnixMilli(), security.SanitizeFilename(filename))

	result := MediaResult{
		Filename:  filename,
		MediaType: mediaKind(media.Mimetype),
		Mimetype:  media.Mimetype,
	}

	if err := ms.write(filename, media.Data); err != nil {
		result.Err = apperrors.NewMediaError(apperrors.ErrCodeMediaStore, "store", media.Mimetype, err)
		ms.logger.LogError(result.Err, "Failed to store media", logrus.Fields{"filename": filename})
		return result
	}
	result.Stored = true
	return result
}

func (ms *MediaService) write(filename string, data []byte) error {
	path := filepath.Join(ms.publicDir, filename)
	if err := security.ValidateFilePathWithBase(filename, ms.publicDir); err != nil {
		return err
	}
	if err := os.MkdirAll(ms.publicDir, 0o750); err != nil {
		return fmt.Errorf("failed to create public directory: %w", err)
	}
	return os.WriteFile(path, data, 0o640)
}
