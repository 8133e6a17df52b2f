// Package capture gates still capture from a camera feed on device
// orientation.
//
// A Gate holds an open camera stream and the latest pitch reading from an
// orientation sensor. Capture is only honored while the device is held
// upright, which keeps the framing of "after" photos consistent with the
// baseline. The gate has no network side effects.
package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/disintegration/imaging"

	"github.com/DukeRupert/turnover/internal/domain"
)

// Camera errors. Camera implementations return these (wrapped or not) so
// callers can tell the user what to fix.
var (
	ErrPermissionDenied = errors.New("camera permission denied: allow camera access in your browser settings")
	ErrNoCamera         = errors.New("no camera found on this device")
	ErrCameraBusy       = errors.New("camera is already in use by another application")
	ErrInsecureContext  = errors.New("camera requires a secure connection (HTTPS)")
)

// Gate errors.
var (
	ErrNotStarted = errors.New("camera is not started")
	ErrNotLevel   = errors.New("hold the device upright (85-95°) to enable capture")
	ErrNoFrame    = errors.New("camera has not produced a frame yet")
)

// Permission is the outcome of an orientation permission request.
type Permission string

const (
	PermissionGranted     Permission = "granted"
	PermissionDenied      Permission = "denied"
	PermissionUnsupported Permission = "unsupported"
)

// Camera opens a live video stream.
type Camera interface {
	Open(ctx context.Context) (Stream, error)
}

// Stream is an open camera feed.
type Stream interface {
	// Frame returns the current frame at native resolution, or nil when
	// nothing has been received yet.
	Frame() (image.Image, error)
	Close() error
}

// OrientationSensor reports device pitch in degrees. Platform differences
// (explicit permission prompts, missing hardware) stay behind this
// interface.
type OrientationSensor interface {
	RequestPermission(ctx context.Context) (Permission, error)

	// Readings streams pitch values until ctx is done or the sensor stops.
	Readings(ctx context.Context) (<-chan float64, error)
}

const enabledPollInterval = 10 * time.Millisecond

// PitchWindow is the inclusive pitch range in which capture is enabled.
type PitchWindow struct {
	Min float64
	Max float64
}

// DefaultPitchWindow is a phone held upright, give or take five degrees.
var DefaultPitchWindow = PitchWindow{Min: 85, Max: 95}

// Contains reports whether pitch lies in the window.
func (w PitchWindow) Contains(pitch float64) bool {
	return pitch >= w.Min && pitch <= w.Max
}

// Gate enables capture only while the device is level.
type Gate struct {
	camera Camera
	sensor OrientationSensor
	window PitchWindow
	logger *slog.Logger
	now    func() time.Time

	mu          sync.Mutex
	stream      Stream
	sensorState Permission
	pitch       float64
	hasPitch    bool
	stopSensor  context.CancelFunc
	sensorDone  chan struct{}
}

// NewGate creates a gate with the default pitch window.
func NewGate(camera Camera, sensor OrientationSensor, logger *slog.Logger) *Gate {
	return &Gate{
		camera:      camera,
		sensor:      sensor,
		window:      DefaultPitchWindow,
		logger:      logger.With("component", "capture"),
		now:         time.Now,
		sensorState: PermissionUnsupported,
	}
}

// Start opens the camera and, when permitted, begins tracking orientation.
// A camera failure is returned; a sensor failure only leaves capture
// disabled.
func (g *Gate) Start(ctx context.Context) error {
	g.mu.Lock()
	if g.stream != nil {
		g.mu.Unlock()
		return nil
	}
	g.mu.Unlock()

	stream, err := g.camera.Open(ctx)
	if err != nil {
		g.logger.Warn("camera unavailable", "error", err)
		return fmt.Errorf("open camera: %w", err)
	}

	g.mu.Lock()
	if g.stream != nil {
		// A concurrent Start won.
		g.mu.Unlock()
		if err := stream.Close(); err != nil {
			g.logger.Warn("failed to close camera stream", "error", err)
		}
		return nil
	}
	g.stream = stream
	tracking := g.stopSensor != nil
	g.mu.Unlock()

	if !tracking {
		g.startSensor(ctx)
	}
	return nil
}

// RetrySensor asks for orientation permission again. It is the manual
// "enable sensor" path for platforms that require a user gesture.
func (g *Gate) RetrySensor(ctx context.Context) Permission {
	g.mu.Lock()
	state := g.sensorState
	g.mu.Unlock()
	if state == PermissionGranted {
		return state
	}
	return g.startSensor(ctx)
}

func (g *Gate) startSensor(ctx context.Context) Permission {
	if g.sensor == nil {
		return g.setSensorState(PermissionUnsupported)
	}

	perm, err := g.sensor.RequestPermission(ctx)
	if err != nil {
		g.logger.Warn("orientation permission request failed", "error", err)
		perm = PermissionDenied
	}
	if perm != PermissionGranted {
		return g.setSensorState(perm)
	}

	// Tracking outlives the caller's ctx and ends with Cancel.
	sensorCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	readings, err := g.sensor.Readings(sensorCtx)
	if err != nil {
		cancel()
		g.logger.Warn("orientation readings unavailable", "error", err)
		return g.setSensorState(PermissionUnsupported)
	}

	done := make(chan struct{})
	g.mu.Lock()
	g.stopSensorLocked()
	g.sensorState = PermissionGranted
	g.stopSensor = cancel
	g.sensorDone = done
	g.mu.Unlock()

	go g.track(sensorCtx, readings, done)
	return PermissionGranted
}

// track applies readings until the sensor stops. A sensor that stops on
// its own leaves the gate disabled and unsupported until RetrySensor.
func (g *Gate) track(ctx context.Context, readings <-chan float64, done chan struct{}) {
	defer close(done)
	defer func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		if g.sensorDone != done {
			return // stopped by stopSensorLocked
		}
		g.stopSensor()
		g.stopSensor, g.sensorDone = nil, nil
		g.hasPitch = false
		g.sensorState = PermissionUnsupported
		g.logger.Warn("orientation sensor stopped")
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case pitch, ok := <-readings:
			if !ok {
				return
			}
			g.mu.Lock()
			g.pitch = pitch
			g.hasPitch = true
			g.mu.Unlock()
		}
	}
}

func (g *Gate) setSensorState(p Permission) Permission {
	g.mu.Lock()
	g.sensorState = p
	g.mu.Unlock()
	return p
}

// SensorState returns the result of the last permission request.
func (g *Gate) SensorState() Permission {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sensorState
}

// Pitch returns the latest reading and whether one has arrived.
func (g *Gate) Pitch() (float64, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pitch, g.hasPitch
}

// Enabled reports whether Capture would be honored now.
func (g *Gate) Enabled() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.enabledLocked()
}

func (g *Gate) enabledLocked() bool {
	return g.stream != nil &&
		g.sensorState == PermissionGranted &&
		g.hasPitch &&
		g.window.Contains(g.pitch)
}

// WaitEnabled blocks until capture is enabled or ctx is done.
func (g *Gate) WaitEnabled(ctx context.Context) error {
	ticker := time.NewTicker(enabledPollInterval)
	defer ticker.Stop()
	for {
		if g.Enabled() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Capture encodes the current frame as JPEG at native resolution and
// stops the camera stream. Orientation tracking keeps running until Cancel.
// It fails with ErrNotLevel outside the pitch window.
func (g *Gate) Capture() (domain.CapturedImage, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.stream == nil {
		return domain.CapturedImage{}, ErrNotStarted
	}
	if !g.enabledLocked() {
		return domain.CapturedImage{}, ErrNotLevel
	}

	frame, err := g.stream.Frame()
	if err != nil {
		return domain.CapturedImage{}, fmt.Errorf("read frame: %w", err)
	}
	if frame == nil {
		return domain.CapturedImage{}, ErrNoFrame
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, frame, imaging.JPEG, imaging.JPEGQuality(domain.CaptureJPEGQuality)); err != nil {
		return domain.CapturedImage{}, fmt.Errorf("encode frame: %w", err)
	}

	bounds := frame.Bounds()
	g.logger.Info("photo captured", "width", bounds.Dx(), "height", bounds.Dy(), "bytes", buf.Len())

	g.closeStreamLocked()
	return domain.CapturedImage{
		Data:       buf.Bytes(),
		MIMEType:   "image/jpeg",
		CapturedAt: g.now().UTC(),
	}, nil
}

// Cancel releases the camera and stops orientation tracking.
func (g *Gate) Cancel() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closeLocked()
}

func (g *Gate) closeLocked() {
	g.closeStreamLocked()
	g.stopSensorLocked()
}

func (g *Gate) closeStreamLocked() {
	if g.stream == nil {
		return
	}
	if err := g.stream.Close(); err != nil {
		g.logger.Warn("failed to close camera stream", "error", err)
	}
	g.stream = nil
}

// stopSensorLocked cancels the tracking goroutine and waits for it. The
// goroutine takes g.mu, so the lock is released while waiting.
func (g *Gate) stopSensorLocked() {
	if g.stopSensor == nil {
		return
	}
	cancel, done := g.stopSensor, g.sensorDone
	g.stopSensor, g.sensorDone = nil, nil
	cancel()

	g.mu.Unlock()
	<-done
	g.mu.Lock()
	g.hasPitch = false
}
