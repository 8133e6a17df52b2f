// Package domain contains core business types and interfaces.
//
// This file defines the inspection session: one slot per room moving from
// empty to captured to uploaded, and the session lifecycle around analysis.
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Slot State
// =============================================================================

// SlotState is the progress of a single room slot.
type SlotState string

const (
	// SlotStateEmpty indicates no photo has been captured for the room.
	SlotStateEmpty SlotState = "empty"

	// SlotStateCaptured indicates a photo is held and its upload has not resolved.
	SlotStateCaptured SlotState = "captured"

	// SlotStateUploaded indicates the photo is ready in the remote store.
	SlotStateUploaded SlotState = "uploaded"

	// SlotStateUploadFailed indicates the upload ended in a terminal error.
	// Analysis still runs and the room receives a fallback assessment.
	SlotStateUploadFailed SlotState = "upload_failed"
)

// String returns the string representation of the state.
func (s SlotState) String() string {
	return string(s)
}

// IsResolved returns true once the slot's upload finished, successfully or not.
func (s SlotState) IsResolved() bool {
	return s == SlotStateUploaded || s == SlotStateUploadFailed
}

// Slot holds the capture and upload state of one room.
type Slot struct {
	Room         Room           `json:"room"`
	State        SlotState      `json:"state"`
	Image        *CapturedImage `json:"-"`
	Asset        *RemoteAsset   `json:"asset,omitempty"`
	Error        string         `json:"error,omitempty"`
	EvidenceKey  string         `json:"-"`
	ThumbnailKey string         `json:"-"`
	Generation   int            `json:"generation"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// =============================================================================
// Session Status
// =============================================================================

// SessionStatus represents the lifecycle state of an inspection session.
type SessionStatus string

const (
	// SessionStatusCollecting indicates rooms are being captured and uploaded.
	SessionStatusCollecting SessionStatus = "collecting"

	// SessionStatusAnalyzing indicates comparisons are in flight.
	SessionStatusAnalyzing SessionStatus = "analyzing"

	// SessionStatusCompleted indicates an InspectionResult is available.
	SessionStatusCompleted SessionStatus = "completed"

	// SessionStatusFailed indicates analysis could not run at all.
	SessionStatusFailed SessionStatus = "failed"
)

// String returns the string representation of the status.
func (s SessionStatus) String() string {
	return string(s)
}

// IsValid returns true if the status is a recognized value.
func (s SessionStatus) IsValid() bool {
	switch s {
	case SessionStatusCollecting, SessionStatusAnalyzing,
		SessionStatusCompleted, SessionStatusFailed:
		return true
	}
	return false
}

// CanTransitionTo checks if the session can move to the target status.
//
// Valid transitions:
// - collecting -> analyzing
// - analyzing -> completed | failed
// - failed -> collecting (retake) | analyzing (retry)
func (s SessionStatus) CanTransitionTo(target SessionStatus) bool {
	switch s {
	case SessionStatusCollecting:
		return target == SessionStatusAnalyzing
	case SessionStatusAnalyzing:
		return target == SessionStatusCompleted || target == SessionStatusFailed
	case SessionStatusFailed:
		return target == SessionStatusCollecting || target == SessionStatusAnalyzing
	}
	return false
}

// =============================================================================
// Session
// =============================================================================

// Session tracks one guest-checkout inspection of a property.
//
// A Session is not safe for concurrent use; the session service guards each
// one with its own lock.
type Session struct {
	ID         uuid.UUID         `json:"id"`
	PropertyID string            `json:"propertyId"`
	Status     SessionStatus     `json:"status"`
	Baselines  BaselineSet       `json:"baselines"`
	Slots      []*Slot           `json:"slots"`
	Result     *InspectionResult `json:"result,omitempty"`
	Error      string            `json:"error,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

// NewSession creates a session with every slot empty.
func NewSession(propertyID string, baselines BaselineSet, now time.Time) *Session {
	slots := make([]*Slot, 0, RoomCount)
	for _, room := range AllRooms() {
		slots = append(slots, &Slot{Room: room, State: SlotStateEmpty, UpdatedAt: now})
	}
	return &Session{
		ID:         uuid.New(),
		PropertyID: propertyID,
		Status:     SessionStatusCollecting,
		Baselines:  baselines,
		Slots:      slots,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Slot returns the slot for a room, or nil if the room is unknown.
func (s *Session) Slot(room Room) *Slot {
	i := room.Index()
	if i < 0 || i >= len(s.Slots) {
		return nil
	}
	return s.Slots[i]
}

// TransitionTo moves the session to the target status if allowed.
func (s *Session) TransitionTo(target SessionStatus, now time.Time) error {
	if !s.Status.CanTransitionTo(target) {
		return Errorf(ECONFLICT, "session.transition",
			"cannot transition session from %s to %s", s.Status, target)
	}
	s.Status = target
	s.UpdatedAt = now
	return nil
}

// Capture stores a new photo for the room, discarding any prior photo and
// remote reference, and resets the slot to captured. It returns the slot
// generation that upload results must present to be recorded.
func (s *Session) Capture(room Room, img CapturedImage, now time.Time) (int, error) {
	const op = "session.capture"

	slot := s.Slot(room)
	if slot == nil {
		return 0, Errorf(EINVALID, op, "unknown room %q", room)
	}
	if len(img.Data) == 0 {
		return 0, Invalid(op, "image is empty")
	}
	switch s.Status {
	case SessionStatusCollecting:
	case SessionStatusFailed:
		if err := s.TransitionTo(SessionStatusCollecting, now); err != nil {
			return 0, err
		}
	default:
		return 0, Errorf(ECONFLICT, op, "session is %s; rooms can no longer be captured", s.Status)
	}

	slot.Generation++
	slot.State = SlotStateCaptured
	slot.Image = &img
	slot.Asset = nil
	slot.Error = ""
	slot.EvidenceKey = ""
	slot.ThumbnailKey = ""
	slot.UpdatedAt = now
	s.UpdatedAt = now
	return slot.Generation, nil
}

// RecordUpload marks the slot uploaded. It returns false and changes nothing
// when the generation is stale (the room was retaken meanwhile).
func (s *Session) RecordUpload(room Room, generation int, asset RemoteAsset, now time.Time) bool {
	slot := s.Slot(room)
	if slot == nil || slot.Generation != generation || slot.State != SlotStateCaptured {
		return false
	}
	slot.State = SlotStateUploaded
	slot.Asset = &asset
	slot.Error = ""
	slot.UpdatedAt = now
	s.UpdatedAt = now
	return true
}

// RecordUploadFailure marks the slot's upload as failed. Stale generations
// are ignored like in RecordUpload.
func (s *Session) RecordUploadFailure(room Room, generation int, uploadErr error, now time.Time) bool {
	slot := s.Slot(room)
	if slot == nil || slot.Generation != generation || slot.State != SlotStateCaptured {
		return false
	}
	slot.State = SlotStateUploadFailed
	slot.Asset = nil
	if uploadErr != nil {
		slot.Error = uploadErr.Error()
	}
	slot.UpdatedAt = now
	s.UpdatedAt = now
	return true
}

// Complete returns true iff every slot is uploaded.
func (s *Session) Complete() bool {
	for _, slot := range s.Slots {
		if slot.State != SlotStateUploaded {
			return false
		}
	}
	return true
}

// PendingRooms returns rooms that were never captured or whose upload has
// not resolved yet, in canonical order.
func (s *Session) PendingRooms() []Room {
	var pending []Room
	for _, slot := range s.Slots {
		if !slot.State.IsResolved() {
			pending = append(pending, slot.Room)
		}
	}
	return pending
}

// ReadyForAnalysis reports whether analysis may start. Every room must have
// been captured and its upload resolved; failed uploads are allowed and
// become fallback assessments.
func (s *Session) ReadyForAnalysis() error {
	const op = "session.analyze"

	if s.Status != SessionStatusCollecting && s.Status != SessionStatusFailed {
		return Errorf(ECONFLICT, op, "session is %s", s.Status)
	}
	if pending := s.PendingRooms(); len(pending) > 0 {
		names := make([]string, len(pending))
		for i, r := range pending {
			names[i] = r.String()
		}
		return Invalid(op, fmt.Sprintf("rooms not ready: %s", strings.Join(names, ", ")))
	}
	return nil
}
