// Package service contains the business logic of the inspection service.
//
// This file implements baseline lookup and registration per property.
package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/DukeRupert/turnover/internal/baseline"
	"github.com/DukeRupert/turnover/internal/domain"
	"github.com/DukeRupert/turnover/internal/ingest"
)

// BaselineService manages the reference photos of each property.
type BaselineService interface {
	// Get returns the baseline references of a property.
	// Returns domain.ENOTFOUND for an unknown property.
	Get(ctx context.Context, propertyID string) (domain.BaselineSet, error)

	// Register uploads a new baseline photo and makes it the property's
	// reference for the room. Returns domain.ENOTIMPL when the configured
	// baseline store is read-only.
	Register(ctx context.Context, propertyID string, room domain.Room, img domain.CapturedImage) (domain.RemoteAsset, error)
}

type baselineService struct {
	resolver baseline.Resolver
	ingest   *ingest.Client
	logger   *slog.Logger
}

// NewBaselineService creates a new BaselineService.
func NewBaselineService(resolver baseline.Resolver, ingestClient *ingest.Client, logger *slog.Logger) BaselineService {
	return &baselineService{
		resolver: resolver,
		ingest:   ingestClient,
		logger:   logger.With("component", "baselines"),
	}
}

// Get implements BaselineService.
func (s *baselineService) Get(ctx context.Context, propertyID string) (domain.BaselineSet, error) {
	return s.resolver.Resolve(ctx, propertyID)
}

// Register implements BaselineService.
func (s *baselineService) Register(ctx context.Context, propertyID string, room domain.Room, img domain.CapturedImage) (domain.RemoteAsset, error) {
	const op = "baseline.register"

	registry, ok := s.resolver.(baseline.Registry)
	if !ok {
		return domain.RemoteAsset{}, domain.Errorf(domain.ENOTIMPL, op, "baselines are read-only with the configured store")
	}

	propertyID = strings.TrimSpace(propertyID)
	if propertyID == "" {
		return domain.RemoteAsset{}, domain.Invalid(op, "property id is required")
	}
	if !room.IsValid() {
		return domain.RemoteAsset{}, domain.Errorf(domain.EINVALID, op, "unknown room %q", room)
	}

	asset, err := s.ingest.Upload(ctx, img, "baseline-"+propertyID+"-"+ingest.DisplayName(room, img))
	if err != nil {
		return domain.RemoteAsset{}, err
	}

	if err := registry.Put(ctx, propertyID, room, asset.Name); err != nil {
		return domain.RemoteAsset{}, err
	}

	s.logger.Info("registered baseline", "property_id", propertyID, "room", room, "file_name", asset.Name)
	return asset, nil
}
