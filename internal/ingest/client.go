// Package ingest uploads captured room photos to the remote file store and
// waits until the store has finished processing them.
package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/DukeRupert/turnover/internal/domain"
	"github.com/DukeRupert/turnover/internal/filestore"
	"github.com/DukeRupert/turnover/internal/metrics"
)

var (
	// ErrUnsupportedType is returned for anything other than JPEG or PNG.
	ErrUnsupportedType = errors.New("unsupported image type")

	// ErrEmpty is returned for an image without data.
	ErrEmpty = errors.New("image is empty")

	// ErrTooLarge is returned when the image exceeds the size limit.
	ErrTooLarge = errors.New("image exceeds maximum size")

	// ErrProcessingFailed is returned when the store reports a failed file.
	ErrProcessingFailed = errors.New("file processing failed")

	// ErrProcessingTimeout is returned when the file is still processing
	// after the maximum number of status checks.
	ErrProcessingTimeout = errors.New("file processing timed out")
)

// Config controls validation limits and the status poll loop.
type Config struct {
	MaxBytes        int64         // Largest accepted image
	PollInterval    time.Duration // Delay between status checks
	MaxPollAttempts int           // Status checks before ErrProcessingTimeout
}

// DefaultConfig returns the default ingestion configuration.
func DefaultConfig() Config {
	return Config{
		MaxBytes:        domain.MaxImageSize,
		PollInterval:    1 * time.Second,
		MaxPollAttempts: 60,
	}
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.MaxBytes <= 0 {
		return fmt.Errorf("max bytes must be positive, got %d", c.MaxBytes)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %v", c.PollInterval)
	}
	if c.MaxPollAttempts < 1 {
		return fmt.Errorf("max poll attempts must be at least 1, got %d", c.MaxPollAttempts)
	}
	return nil
}

// Client uploads images to a filestore.Store.
type Client struct {
	store  filestore.Store
	config Config
	logger *slog.Logger
}

// New creates an ingestion client.
func New(store filestore.Store, config Config, logger *slog.Logger) (*Client, error) {
	if store == nil {
		return nil, fmt.Errorf("file store is required")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ingest config: %w", err)
	}
	return &Client{
		store:  store,
		config: config,
		logger: logger.With("component", "ingest"),
	}, nil
}

// MaxBytes returns the configured size limit.
func (c *Client) MaxBytes() int64 {
	return c.config.MaxBytes
}

// Validate performs the client-side checks that run before any remote call.
func (c *Client) Validate(img domain.CapturedImage) error {
	const op = "ingest.validate"

	if len(img.Data) == 0 {
		return domain.Wrap(ErrEmpty, domain.EINVALID, op, "image is empty")
	}
	if !domain.IsSupportedImageType(img.MIMEType) {
		return domain.Wrap(ErrUnsupportedType, domain.EINVALID, op,
			fmt.Sprintf("unsupported image type %q: only .jpg, .jpeg, and .png files are allowed", img.MIMEType))
	}
	if img.Size() > c.config.MaxBytes {
		return domain.Wrap(ErrTooLarge, domain.ETOOLARGE, op,
			fmt.Sprintf("image is %d bytes; the limit is %d bytes", img.Size(), c.config.MaxBytes))
	}

	// The declared type must match the bytes.
	sniffed := domain.NormalizeMIMEType(http.DetectContentType(img.Data))
	if sniffed != domain.NormalizeMIMEType(img.MIMEType) {
		return domain.Wrap(ErrUnsupportedType, domain.EINVALID, op,
			fmt.Sprintf("image content is %s, not %s", sniffed, domain.NormalizeMIMEType(img.MIMEType)))
	}
	return nil
}

// Upload validates the image, sends it to the store, and polls until the
// store reports it ready.
func (c *Client) Upload(ctx context.Context, img domain.CapturedImage, displayName string) (domain.RemoteAsset, error) {
	const op = "ingest.upload"

	if err := c.Validate(img); err != nil {
		metrics.UploadFinished("rejected", -1)
		return domain.RemoteAsset{}, err
	}

	asset, err := c.store.Upload(ctx, filestore.UploadParams{
		Data:        bytes.NewReader(img.Data),
		MIMEType:    domain.NormalizeMIMEType(img.MIMEType),
		DisplayName: displayName,
	})
	if err != nil {
		metrics.UploadFinished("error", -1)
		return domain.RemoteAsset{}, domain.Unavailable(err, op, fmt.Sprintf("upload failed: %v", err))
	}

	c.logger.Debug("uploaded file", "name", asset.Name, "state", asset.State, "display_name", displayName)

	return c.Await(ctx, asset)
}

// Await polls the store at the configured interval until the asset leaves
// the pending state or the attempt ceiling is reached.
func (c *Client) Await(ctx context.Context, asset domain.RemoteAsset) (domain.RemoteAsset, error) {
	const op = "ingest.await"

	attempts := 0
	for !asset.State.IsTerminal() {
		if attempts >= c.config.MaxPollAttempts {
			metrics.UploadFinished("timeout", attempts)
			return asset, domain.Wrap(ErrProcessingTimeout, domain.ETIMEOUT, op,
				fmt.Sprintf("file %s still processing after %d status checks", asset.Name, attempts))
		}

		timer := time.NewTimer(c.config.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return asset, ctx.Err()
		case <-timer.C:
		}

		attempts++
		next, err := c.store.Get(ctx, asset.Name)
		if err != nil {
			metrics.UploadFinished("error", attempts)
			return asset, domain.Unavailable(err, op, fmt.Sprintf("status check failed: %v", err))
		}
		asset = next
		c.logger.Debug("waiting for file to be processed", "name", asset.Name, "state", asset.State, "attempt", attempts)
	}

	if asset.State == domain.AssetStateFailed {
		metrics.UploadFinished("failed", attempts)
		return asset, domain.Wrap(ErrProcessingFailed, domain.EUNAVAILABLE, op,
			fmt.Sprintf("file %s processing failed", asset.Name))
	}

	metrics.UploadFinished("ready", attempts)
	return asset, nil
}

// Outcome is the per-room result of UploadAll.
type Outcome struct {
	Asset domain.RemoteAsset
	Err   error
}

// UploadAll uploads the images concurrently. Each upload runs to its own
// conclusion; a failure never cancels its siblings.
func (c *Client) UploadAll(ctx context.Context, images map[domain.Room]domain.CapturedImage) map[domain.Room]Outcome {
	rooms := make([]domain.Room, 0, len(images))
	for room := range images {
		rooms = append(rooms, room)
	}
	outcomes := make([]Outcome, len(rooms))

	var g errgroup.Group
	for i, room := range rooms {
		g.Go(func() error {
			asset, err := c.Upload(ctx, images[room], DisplayName(room, images[room]))
			outcomes[i] = Outcome{Asset: asset, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	result := make(map[domain.Room]Outcome, len(rooms))
	for i, room := range rooms {
		result[room] = outcomes[i]
	}
	return result
}

// DisplayName builds the remote display name for a room photo.
func DisplayName(room domain.Room, img domain.CapturedImage) string {
	ts := img.CapturedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	return fmt.Sprintf("%s-%s%s", room.Slug(), ts.UTC().Format("20060102T150405Z"), domain.ExtensionForImageType(img.MIMEType))
}
