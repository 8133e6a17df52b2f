// Package service contains the business logic of the inspection service.
//
// This file implements stateless comparison of already uploaded photos.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/DukeRupert/turnover/internal/baseline"
	"github.com/DukeRupert/turnover/internal/domain"
	"github.com/DukeRupert/turnover/internal/filestore"
	"github.com/DukeRupert/turnover/internal/inspection"
)

// CompareRequest names the uploaded post-checkout photo of every room.
type CompareRequest struct {
	PropertyID string
	Filenames  map[domain.Room]string
}

// CompareService compares a full set of uploaded photos against the
// property's baselines.
type CompareService interface {
	// Compare resolves all baseline and current files, compares every room,
	// and summarizes. Returns domain.EINVALID if any room has no filename
	// and domain.ENOTFOUND for an unknown property. Failures to resolve a
	// single file degrade that room only.
	Compare(ctx context.Context, req CompareRequest) (*domain.InspectionResult, error)
}

type compareService struct {
	files     filestore.Store
	baselines baseline.Resolver
	engine    *inspection.Engine
	logger    *slog.Logger
}

// NewCompareService creates a new CompareService.
func NewCompareService(
	files filestore.Store,
	baselines baseline.Resolver,
	engine *inspection.Engine,
	logger *slog.Logger,
) CompareService {
	return &compareService{
		files:     files,
		baselines: baselines,
		engine:    engine,
		logger:    logger.With("component", "compare"),
	}
}

// Compare implements CompareService.
func (s *compareService) Compare(ctx context.Context, req CompareRequest) (*domain.InspectionResult, error) {
	const op = "compare"

	rooms := domain.AllRooms()
	var missing []string
	for _, room := range rooms {
		if strings.TrimSpace(req.Filenames[room]) == "" {
			missing = append(missing, room.Key()+"Filename")
		}
	}
	if len(missing) > 0 {
		return nil, domain.Invalid(op, "Missing required filenames: "+strings.Join(missing, ", "))
	}

	set, err := s.baselines.Resolve(ctx, req.PropertyID)
	if err != nil {
		return nil, err
	}

	// Baselines first, then the current photos, as one batch of lookups.
	names := make([]string, 0, 2*len(rooms))
	for _, room := range rooms {
		names = append(names, set[room])
	}
	for _, room := range rooms {
		names = append(names, strings.TrimSpace(req.Filenames[room]))
	}
	assets, errs := resolveAssets(ctx, s.files, names)

	pairs := make([]inspection.Pair, len(rooms))
	for i, room := range rooms {
		pair := inspection.Pair{Room: room, Baseline: assets[i], Current: assets[len(rooms)+i]}
		switch {
		case errs[i] != nil:
			pair.Err = fmt.Errorf("baseline unavailable: %w", errs[i])
		case errs[len(rooms)+i] != nil:
			pair.Err = fmt.Errorf("image %s unavailable: %w", names[len(rooms)+i], errs[len(rooms)+i])
		}
		if pair.Err != nil {
			s.logger.Warn("room cannot be compared", "room", room, "error", pair.Err)
		}
		pairs[i] = pair
	}

	return s.engine.Run(ctx, req.PropertyID, pairs)
}
