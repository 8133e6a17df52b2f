// Package service contains the business logic of the inspection service.
//
// This file implements the inspection session: capture and upload of the
// four rooms, analysis, and expiry of idle sessions.
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/DukeRupert/turnover/internal/baseline"
	"github.com/DukeRupert/turnover/internal/domain"
	"github.com/DukeRupert/turnover/internal/filestore"
	"github.com/DukeRupert/turnover/internal/ingest"
	"github.com/DukeRupert/turnover/internal/inspection"
	"github.com/DukeRupert/turnover/internal/storage"
	"github.com/DukeRupert/turnover/internal/worker"
)

// =============================================================================
// Interface Definition
// =============================================================================

// SessionService defines the operations of an inspection session.
//
// Sessions live in memory only and expire after the configured TTL.
type SessionService interface {
	// Start creates a session and resolves the property's baselines.
	// Returns domain.ENOTFOUND for an unknown property.
	Start(ctx context.Context, propertyID string) (*domain.Session, error)

	// Get returns a snapshot of the session.
	// Returns domain.ENOTFOUND if the session doesn't exist or expired.
	Get(ctx context.Context, id uuid.UUID) (*domain.Session, error)

	// CaptureRoom records a photo for the room, archives it, and uploads it.
	// Capturing a room again replaces the earlier photo. Invalid images are
	// rejected with domain.EINVALID or domain.ETOOLARGE and leave the slot
	// unchanged. Upload failures are recorded on the slot, not returned.
	CaptureRoom(ctx context.Context, id uuid.UUID, room domain.Room, img domain.CapturedImage) (*domain.Session, error)

	// CaptureAll is CaptureRoom for several rooms whose uploads run
	// concurrently and independently.
	CaptureAll(ctx context.Context, id uuid.UUID, images map[domain.Room]domain.CapturedImage) (*domain.Session, error)

	// StartAnalysis compares every room and summarizes, synchronously.
	// Returns domain.EINVALID while a room is not captured or its upload
	// has not resolved, and domain.ECONFLICT if analysis already ran.
	StartAnalysis(ctx context.Context, id uuid.UUID) (*domain.InspectionResult, error)

	// EnqueueAnalysis marks the session analyzing and queues the analysis.
	EnqueueAnalysis(ctx context.Context, id uuid.UUID) (*domain.Session, error)

	// RunQueuedAnalysis executes an analysis queued by EnqueueAnalysis.
	RunQueuedAnalysis(ctx context.Context, id uuid.UUID) (*domain.InspectionResult, error)

	// Thumbnail opens the archived thumbnail of the room's current photo.
	Thumbnail(ctx context.Context, id uuid.UUID, room domain.Room) (io.ReadCloser, storage.ObjectInfo, error)

	// Discard removes the session. Archived evidence is kept.
	Discard(ctx context.Context, id uuid.UUID) error

	// ExpireIdle removes sessions idle for longer than the TTL and returns
	// how many were removed. Sessions being analyzed are kept.
	ExpireIdle(now time.Time) int

	// RunJanitor calls ExpireIdle periodically until ctx is canceled.
	RunJanitor(ctx context.Context)
}

// SessionServiceParams holds the dependencies of the session service.
type SessionServiceParams struct {
	Ingest    *ingest.Client
	Files     filestore.Store
	Engine    *inspection.Engine
	Baselines baseline.Resolver

	// DefaultProperty is recorded on sessions started without a property.
	DefaultProperty string

	// Evidence archives the original photos and thumbnails. Optional.
	Evidence   storage.Storage
	Thumbnails ThumbnailProcessor

	// Queue runs analyses in the background. Optional; EnqueueAnalysis
	// returns domain.ENOTIMPL without it.
	Queue worker.Enqueuer

	// TTL is how long an idle session is kept. Zero keeps sessions forever.
	TTL time.Duration

	Logger *slog.Logger
}

// =============================================================================
// Implementation
// =============================================================================

// sessionEntry guards one session. Slot data is only touched under mu;
// uploads and comparisons run outside it.
type sessionEntry struct {
	mu      sync.Mutex
	session *domain.Session
	queued  bool
}

// sessionService implements the SessionService interface.
type sessionService struct {
	ingest          *ingest.Client
	files           filestore.Store
	engine          *inspection.Engine
	baselines       baseline.Resolver
	defaultProperty string
	evidence        storage.Storage
	thumbnails      ThumbnailProcessor
	queue           worker.Enqueuer
	ttl             time.Duration
	logger          *slog.Logger
	now             func() time.Time

	mu       sync.Mutex
	sessions map[uuid.UUID]*sessionEntry
}

// NewSessionService creates a new SessionService.
func NewSessionService(p SessionServiceParams) SessionService {
	defaultProperty := p.DefaultProperty
	if defaultProperty == "" {
		defaultProperty = baseline.DefaultPropertyID
	}
	thumbnails := p.Thumbnails
	if thumbnails == nil {
		thumbnails = NewImagingProcessor()
	}
	return &sessionService{
		ingest:          p.Ingest,
		files:           p.Files,
		engine:          p.Engine,
		baselines:       p.Baselines,
		defaultProperty: defaultProperty,
		evidence:        p.Evidence,
		thumbnails:      thumbnails,
		queue:           p.Queue,
		ttl:             p.TTL,
		logger:          p.Logger.With("component", "sessions"),
		now:             time.Now,
		sessions:        make(map[uuid.UUID]*sessionEntry),
	}
}

// =============================================================================
// Lifecycle
// =============================================================================

// Start implements SessionService.
func (s *sessionService) Start(ctx context.Context, propertyID string) (*domain.Session, error) {
	set, err := s.baselines.Resolve(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	if propertyID == "" {
		propertyID = s.defaultProperty
	}

	sess := domain.NewSession(propertyID, set, s.now().UTC())
	if missing := set.Missing(); len(missing) > 0 {
		s.logger.Warn("property has rooms without a baseline", "property_id", propertyID, "rooms", missing)
	}

	s.mu.Lock()
	s.sessions[sess.ID] = &sessionEntry{session: sess}
	s.mu.Unlock()

	s.logger.Info("session started", "session_id", sess.ID, "property_id", propertyID)
	return snapshot(sess), nil
}

// Get implements SessionService.
func (s *sessionService) Get(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	entry, err := s.lookup("session.get", id)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return snapshot(entry.session), nil
}

// Discard implements SessionService.
func (s *sessionService) Discard(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return domain.NotFound("session.discard", "session", id.String())
	}
	delete(s.sessions, id)

	s.logger.Info("session discarded", "session_id", id)
	return nil
}

// ExpireIdle implements SessionService.
func (s *sessionService) ExpireIdle(now time.Time) int {
	if s.ttl <= 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	expired := 0
	for id, entry := range s.sessions {
		entry.mu.Lock()
		idle := now.Sub(entry.session.UpdatedAt) > s.ttl &&
			entry.session.Status != domain.SessionStatusAnalyzing
		entry.mu.Unlock()

		if idle {
			delete(s.sessions, id)
			expired++
		}
	}
	return expired
}

// RunJanitor implements SessionService.
func (s *sessionService) RunJanitor(ctx context.Context) {
	if s.ttl <= 0 {
		return
	}

	interval := s.ttl / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.ExpireIdle(s.now()); n > 0 {
				s.logger.Info("expired idle sessions", "count", n)
			}
		}
	}
}

func (s *sessionService) lookup(op string, id uuid.UUID) (*sessionEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.sessions[id]
	if !ok {
		return nil, domain.NotFound(op, "session", id.String())
	}
	return entry, nil
}

// =============================================================================
// Capture
// =============================================================================

// CaptureRoom implements SessionService.
func (s *sessionService) CaptureRoom(ctx context.Context, id uuid.UUID, room domain.Room, img domain.CapturedImage) (*domain.Session, error) {
	return s.CaptureAll(ctx, id, map[domain.Room]domain.CapturedImage{room: img})
}

// CaptureAll implements SessionService.
func (s *sessionService) CaptureAll(ctx context.Context, id uuid.UUID, images map[domain.Room]domain.CapturedImage) (*domain.Session, error) {
	const op = "session.capture"

	if len(images) == 0 {
		return nil, domain.Invalid(op, "no images provided")
	}
	for room, img := range images {
		if !room.IsValid() {
			return nil, domain.Errorf(domain.EINVALID, op, "unknown room %q", room)
		}
		if err := s.ingest.Validate(img); err != nil {
			return nil, domain.Wrap(err, domain.ErrorCode(err), op, fmt.Sprintf("%s: %s", room, domain.ErrorMessage(err)))
		}
	}

	entry, err := s.lookup(op, id)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	generations := make(map[domain.Room]int, len(images))

	entry.mu.Lock()
	for _, room := range domain.AllRooms() {
		img, ok := images[room]
		if !ok {
			continue
		}
		gen, err := entry.session.Capture(room, img, now)
		if err != nil {
			entry.mu.Unlock()
			return nil, err
		}
		generations[room] = gen
	}
	entry.mu.Unlock()

	// Archiving and uploading are independent of each other.
	var (
		outcomes map[domain.Room]ingest.Outcome
		evidence map[domain.Room]evidenceKeys
		g        errgroup.Group
	)
	g.Go(func() error {
		evidence = s.archiveAll(ctx, id, images, generations)
		return nil
	})
	g.Go(func() error {
		outcomes = s.ingest.UploadAll(ctx, images)
		return nil
	})
	_ = g.Wait()

	entry.mu.Lock()
	defer entry.mu.Unlock()

	now = s.now().UTC()
	for room, outcome := range outcomes {
		gen := generations[room]
		if keys, ok := evidence[room]; ok {
			if slot := entry.session.Slot(room); slot != nil && slot.Generation == gen {
				slot.EvidenceKey = keys.original
				slot.ThumbnailKey = keys.thumbnail
			}
		}

		var recorded bool
		if outcome.Err != nil {
			recorded = entry.session.RecordUploadFailure(room, gen, outcome.Err, now)
			s.logger.Warn("room upload failed", "session_id", id, "room", room, "error", outcome.Err)
		} else {
			recorded = entry.session.RecordUpload(room, gen, outcome.Asset, now)
			s.logger.Info("room uploaded", "session_id", id, "room", room, "file_name", outcome.Asset.Name)
		}
		if !recorded {
			s.logger.Debug("ignoring upload result for a retaken room", "session_id", id, "room", room, "generation", gen)
		}
	}

	return snapshot(entry.session), nil
}

// evidenceKeys are the archive keys of one room photo.
type evidenceKeys struct {
	original  string
	thumbnail string
}

// archiveAll stores the originals and thumbnails. Archive failures are
// logged and never fail the capture.
func (s *sessionService) archiveAll(ctx context.Context, id uuid.UUID, images map[domain.Room]domain.CapturedImage, generations map[domain.Room]int) map[domain.Room]evidenceKeys {
	if s.evidence == nil {
		return nil
	}

	rooms := make([]domain.Room, 0, len(images))
	for room := range images {
		rooms = append(rooms, room)
	}
	keys := make([]evidenceKeys, len(rooms))
	errs := make([]error, len(rooms))

	var g errgroup.Group
	for i, room := range rooms {
		g.Go(func() error {
			keys[i], errs[i] = s.archive(ctx, id, room, generations[room], images[room])
			return nil
		})
	}
	_ = g.Wait()

	result := make(map[domain.Room]evidenceKeys, len(rooms))
	for i, room := range rooms {
		if errs[i] != nil {
			s.logger.Error("failed to archive room photo", "session_id", id, "room", room, "error", errs[i])
			continue
		}
		result[room] = keys[i]
	}
	return result
}

func (s *sessionService) archive(ctx context.Context, id uuid.UUID, room domain.Room, generation int, img domain.CapturedImage) (evidenceKeys, error) {
	contentType := storage.DetectContentType(img.MIMEType, "", img.Data)
	if !storage.IsAllowedImageType(contentType) {
		return evidenceKeys{}, fmt.Errorf("unsupported evidence type %q", contentType)
	}
	keys := evidenceKeys{
		original:  storage.EvidenceKey(id, room, generation, contentType),
		thumbnail: storage.ThumbnailKey(id, room, generation),
	}

	thumbnail, _, _, err := s.thumbnails.GenerateThumbnail(bytes.NewReader(img.Data), domain.ThumbnailMaxWidth, domain.ThumbnailMaxHeight)
	if err != nil {
		return evidenceKeys{}, fmt.Errorf("generate thumbnail: %w", err)
	}

	if err := s.evidence.Put(ctx, keys.original, bytes.NewReader(img.Data), storage.PutOptions{
		ContentType: contentType,
		MaxSize:     domain.MaxImageSize,
	}); err != nil {
		return evidenceKeys{}, fmt.Errorf("store original: %w", err)
	}

	if err := s.evidence.Put(ctx, keys.thumbnail, bytes.NewReader(thumbnail), storage.PutOptions{
		ContentType: "image/jpeg",
	}); err != nil {
		// Clean up original image on thumbnail upload failure
		_ = s.evidence.Delete(ctx, keys.original)
		return evidenceKeys{}, fmt.Errorf("store thumbnail: %w", err)
	}

	return keys, nil
}

// Thumbnail implements SessionService.
func (s *sessionService) Thumbnail(ctx context.Context, id uuid.UUID, room domain.Room) (io.ReadCloser, storage.ObjectInfo, error) {
	const op = "session.thumbnail"

	entry, err := s.lookup(op, id)
	if err != nil {
		return nil, storage.ObjectInfo{}, err
	}

	entry.mu.Lock()
	var key string
	if slot := entry.session.Slot(room); slot != nil {
		key = slot.ThumbnailKey
	}
	entry.mu.Unlock()

	if s.evidence == nil || key == "" {
		return nil, storage.ObjectInfo{}, domain.NotFound(op, "thumbnail", room.Slug())
	}

	rc, info, err := s.evidence.Get(ctx, key)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, storage.ObjectInfo{}, domain.NotFound(op, "thumbnail", room.Slug())
		}
		return nil, storage.ObjectInfo{}, domain.Internal(err, op, "failed to read thumbnail")
	}
	return rc, info, nil
}

// =============================================================================
// Analysis
// =============================================================================

// roomInput is what one comparison needs, copied out of the session.
type roomInput struct {
	room     domain.Room
	baseline string
	current  domain.RemoteAsset
	err      error
}

type analysisInput struct {
	propertyID string
	rooms      []roomInput
}

// inputFor copies the comparison inputs out of a session. A failed upload
// carries its error so the room gets a fallback assessment.
func inputFor(sess *domain.Session) analysisInput {
	in := analysisInput{propertyID: sess.PropertyID}
	for _, slot := range sess.Slots {
		item := roomInput{room: slot.Room, baseline: sess.Baselines[slot.Room]}
		if slot.State == domain.SlotStateUploaded && slot.Asset != nil {
			item.current = *slot.Asset
		} else {
			msg := slot.Error
			if msg == "" {
				msg = "upload failed"
			}
			item.err = errors.New(msg)
		}
		in.rooms = append(in.rooms, item)
	}
	return in
}

// begin checks readiness and marks the session analyzing.
func (s *sessionService) begin(entry *sessionEntry) (analysisInput, domain.SessionStatus, error) {
	entry.mu.Lock()
	defer entry.mu.Unlock()

	sess := entry.session
	prev := sess.Status
	if err := sess.ReadyForAnalysis(); err != nil {
		return analysisInput{}, prev, err
	}
	if err := sess.TransitionTo(domain.SessionStatusAnalyzing, s.now().UTC()); err != nil {
		return analysisInput{}, prev, err
	}
	sess.Error = ""
	return inputFor(sess), prev, nil
}

// StartAnalysis implements SessionService.
func (s *sessionService) StartAnalysis(ctx context.Context, id uuid.UUID) (*domain.InspectionResult, error) {
	entry, err := s.lookup("session.analyze", id)
	if err != nil {
		return nil, err
	}

	in, _, err := s.begin(entry)
	if err != nil {
		return nil, err
	}
	return s.analyze(ctx, id, entry, in)
}

// EnqueueAnalysis implements SessionService.
func (s *sessionService) EnqueueAnalysis(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	const op = "session.enqueue_analysis"

	if s.queue == nil {
		return nil, domain.Errorf(domain.ENOTIMPL, op, "background analysis is not configured")
	}

	entry, err := s.lookup(op, id)
	if err != nil {
		return nil, err
	}

	_, prev, err := s.begin(entry)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	entry.queued = true
	entry.mu.Unlock()

	if _, err := worker.EnqueueAnalyzeSession(ctx, s.queue, id); err != nil {
		entry.mu.Lock()
		// Roll back so the caller can retry or analyze synchronously.
		entry.queued = false
		entry.session.Status = prev
		entry.mu.Unlock()
		return nil, domain.Unavailable(err, op, "analysis could not be queued")
	}

	s.logger.Info("analysis queued", "session_id", id)
	return s.Get(ctx, id)
}

// RunQueuedAnalysis implements SessionService.
func (s *sessionService) RunQueuedAnalysis(ctx context.Context, id uuid.UUID) (*domain.InspectionResult, error) {
	const op = "session.run_analysis"

	entry, err := s.lookup(op, id)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	if !entry.queued || entry.session.Status != domain.SessionStatusAnalyzing {
		entry.mu.Unlock()
		return nil, domain.Conflict(op, "session has no queued analysis")
	}
	entry.queued = false
	in := inputFor(entry.session)
	entry.mu.Unlock()

	return s.analyze(ctx, id, entry, in)
}

// analyze resolves the baselines, runs the engine, and stores the outcome.
func (s *sessionService) analyze(ctx context.Context, id uuid.UUID, entry *sessionEntry, in analysisInput) (*domain.InspectionResult, error) {
	names := make([]string, len(in.rooms))
	for i, item := range in.rooms {
		if item.err == nil {
			names[i] = item.baseline
		}
	}
	baselines, errs := resolveAssets(ctx, s.files, names)

	pairs := make([]inspection.Pair, len(in.rooms))
	for i, item := range in.rooms {
		pair := inspection.Pair{Room: item.room, Baseline: baselines[i], Current: item.current, Err: item.err}
		if pair.Err == nil && errs[i] != nil {
			pair.Err = fmt.Errorf("baseline unavailable: %w", errs[i])
		}
		pairs[i] = pair
	}

	result, err := s.engine.Run(ctx, in.propertyID, pairs)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	now := s.now().UTC()
	if err != nil {
		_ = entry.session.TransitionTo(domain.SessionStatusFailed, now)
		entry.session.Error = err.Error()
		s.logger.Error("session analysis failed", "session_id", id, "error", err)
		return nil, err
	}

	entry.session.Result = result
	_ = entry.session.TransitionTo(domain.SessionStatusCompleted, now)
	return result, nil
}

// snapshot copies a session so callers can read it without the lock.
// Images and results are never mutated in place and stay shared.
func snapshot(sess *domain.Session) *domain.Session {
	c := *sess
	c.Baselines = make(domain.BaselineSet, len(sess.Baselines))
	for room, name := range sess.Baselines {
		c.Baselines[room] = name
	}
	c.Slots = make([]*domain.Slot, len(sess.Slots))
	for i, slot := range sess.Slots {
		sc := *slot
		if slot.Asset != nil {
			asset := *slot.Asset
			sc.Asset = &asset
		}
		c.Slots[i] = &sc
	}
	return &c
}
