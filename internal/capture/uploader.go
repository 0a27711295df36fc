package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/hirewire/internal/logger"
	"github.com/spigell/hirewire/internal/utils"
)

const defaultChunkSize = 256 * 1024

var ErrEmptyArtifact = errors.New("nothing to upload")

// TokenSource yields the bearer token for uploads.
type TokenSource interface {
	AccessToken() (string, error)
}

// HTTPUploader stores an artifact under URL with a series of ranged PUT
// requests, one per chunk.
type HTTPUploader struct {
	logger     *zap.Logger
	HTTPClient *http.Client
	URL        string
	ChunkSize  int
	Tokens     TokenSource
}

func NewHTTPUploader(log *zap.Logger, url string, chunkSize int) *HTTPUploader {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}

	return &HTTPUploader{
		logger: logger.ForComponent(logger.OrNop(log), "uploader"),
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		URL:       strings.TrimRight(url, "/"),
		ChunkSize: chunkSize,
	}
}

// Upload sends a and returns the object URL. progress is called after every
// acknowledged chunk; the last call reports 100.
func (u *HTTPUploader) Upload(ctx context.Context, a Artifact, progress func(float64)) (string, error) {
	total := len(a.Data)
	if total == 0 {
		return "", ErrEmptyArtifact
	}

	target := u.URL + "/" + objectName(a.MIMEType)
	log := logger.OrNop(u.logger).With(zap.String("target", target), zap.Int("bytes", total))

	chunkSize := u.ChunkSize
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}

	for start := 0; start < total; start += chunkSize {
		end := start + chunkSize
		if end > total {
			end = total
		}

		if err := u.put(ctx, target, a, start, end); err != nil {
			log.Debug("chunk rejected", zap.Int("offset", start), zap.Error(err))
			return "", err
		}

		if progress != nil {
			progress(float64(end) * 100 / float64(total))
		}
	}

	log.Debug("upload complete")
	return target, nil
}

func (u *HTTPUploader) put(ctx context.Context, target string, a Artifact, start, end int) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, bytes.NewReader(a.Data[start:end]))
	if err != nil {
		return err
	}

	req.ContentLength = int64(end - start)
	req.Header.Set("Content-Type", utils.FirstNonEmpty(a.MIMEType, "application/octet-stream"))
	req.Header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end-1, len(a.Data)))
	if u.Tokens != nil {
		if token, err := u.Tokens.AccessToken(); err == nil && token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	client := u.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent, http.StatusPermanentRedirect:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("upload chunk %d-%d: bad status: %s %s", start, end-1, resp.Status, utils.TruncateForLog(string(body), 200))
}

func objectName(mimeType string) string {
	return uuid.NewString() + extensionByType(mimeType)
}
