package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"log/slog"
	"os"
	"sync"

	"github.com/disintegration/imaging"

	"github.com/DukeRupert/turnover/internal/domain"
)

// FileCamera is a Camera whose only frame is a photo on disk. It is the
// non-camera input path: the file goes through the same gate and encoder
// as a live frame.
type FileCamera struct {
	Path string
}

// Open decodes the file, applying its EXIF orientation.
func (c FileCamera) Open(ctx context.Context) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, err := imaging.Open(c.Path, imaging.AutoOrientation(true))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", c.Path, ErrNoCamera)
		}
		if errors.Is(err, os.ErrPermission) {
			return nil, fmt.Errorf("%s: %w", c.Path, ErrPermissionDenied)
		}
		return nil, fmt.Errorf("decode %s: %w", c.Path, err)
	}
	return &stillStream{frame: img}, nil
}

type stillStream struct {
	mu     sync.Mutex
	frame  image.Image
	closed bool
}

func (s *stillStream) Frame() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrNotStarted
	}
	return s.frame, nil
}

func (s *stillStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.frame = nil
	return nil
}

// FixedSensor reports a constant pitch. A zero-value FixedSensor reports
// the device as unsupported.
type FixedSensor struct {
	Pitch      float64
	Permission Permission
}

// Level returns a sensor that always reads upright.
func Level() FixedSensor {
	return FixedSensor{Pitch: 90, Permission: PermissionGranted}
}

// RequestPermission returns the configured permission.
func (s FixedSensor) RequestPermission(ctx context.Context) (Permission, error) {
	if err := ctx.Err(); err != nil {
		return PermissionDenied, err
	}
	if s.Permission == "" {
		return PermissionUnsupported, nil
	}
	return s.Permission, nil
}

// Readings emits the fixed pitch once and closes the channel when ctx is
// done.
func (s FixedSensor) Readings(ctx context.Context) (<-chan float64, error) {
	ch := make(chan float64, 1)
	ch <- s.Pitch
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

// CaptureFile runs a photo file through a level gate and returns the
// encoded still.
func CaptureFile(ctx context.Context, path string, logger *slog.Logger) (domain.CapturedImage, error) {
	g := NewGate(FileCamera{Path: path}, Level(), logger)
	defer g.Cancel()

	if err := g.Start(ctx); err != nil {
		return domain.CapturedImage{}, err
	}
	if err := g.WaitEnabled(ctx); err != nil {
		return domain.CapturedImage{}, err
	}
	return g.Capture()
}
