// Package baseline maps a property and room to the remote reference of the
// pre-check-in photo that a post-checkout photo is compared against.
package baseline

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/DukeRupert/turnover/internal/domain"
)

// DefaultPropertyID names the property used when a request names none.
const DefaultPropertyID = "default"

// Resolver looks up the baseline set for a property.
type Resolver interface {
	Resolve(ctx context.Context, propertyID string) (domain.BaselineSet, error)
}

// Registry is a Resolver that also accepts new baselines.
type Registry interface {
	Resolver
	Put(ctx context.Context, propertyID string, room domain.Room, fileName string) error
}

// DefaultSet returns the baseline references shipped with the service.
func DefaultSet() domain.BaselineSet {
	return domain.BaselineSet{
		domain.RoomKitchen:    "files/ogk0546aag6u",
		domain.RoomBathroom:   "files/o640dppxs8a0",
		domain.RoomLivingRoom: "files/ieya8nw8hjvn",
		domain.RoomBedroom:    "files/5x2lxy2d0vhs",
	}
}

// StaticResolver serves baselines from configuration.
type StaticResolver struct {
	mu              sync.RWMutex
	defaultProperty string
	properties      map[string]domain.BaselineSet
}

// NewStaticResolver creates a resolver whose default property uses the
// given set.
func NewStaticResolver(defaultProperty string, defaults domain.BaselineSet) *StaticResolver {
	if defaultProperty == "" {
		defaultProperty = DefaultPropertyID
	}
	r := &StaticResolver{
		defaultProperty: defaultProperty,
		properties:      make(map[string]domain.BaselineSet),
	}
	r.properties[defaultProperty] = copySet(defaults)
	return r
}

// DefaultProperty returns the property used for empty ids.
func (r *StaticResolver) DefaultProperty() string {
	return r.defaultProperty
}

// Resolve returns the baseline set for a property. An empty id resolves to
// the default property.
func (r *StaticResolver) Resolve(ctx context.Context, propertyID string) (domain.BaselineSet, error) {
	if propertyID == "" {
		propertyID = r.defaultProperty
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.properties[propertyID]
	if !ok {
		return nil, domain.NotFound("baseline.resolve", "property", propertyID)
	}
	return copySet(set), nil
}

// Set replaces the baseline for one room of a property.
func (r *StaticResolver) Set(propertyID string, room domain.Room, fileName string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.properties[propertyID]
	if !ok {
		set = make(domain.BaselineSet)
		r.properties[propertyID] = set
	}
	set[room] = fileName
}

// Properties returns the known property ids.
func (r *StaticResolver) Properties() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.properties))
	for id := range r.properties {
		ids = append(ids, id)
	}
	return ids
}

type fileFormat struct {
	Properties map[string]map[string]string `yaml:"properties"`
}

// LoadFile adds the properties of a YAML baselines file to the resolver.
//
//	properties:
//	  beach-house:
//	    kitchen: files/abc123
//	    living-room: files/def456
func (r *StaticResolver) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read baselines file: %w", err)
	}
	return r.Load(data)
}

// Load adds the properties of YAML baselines data to the resolver.
func (r *StaticResolver) Load(data []byte) error {
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse baselines: %w", err)
	}

	for propertyID, rooms := range f.Properties {
		propertyID = strings.TrimSpace(propertyID)
		if propertyID == "" {
			return fmt.Errorf("parse baselines: empty property id")
		}
		for key, name := range rooms {
			room, err := domain.ParseRoom(key)
			if err != nil {
				return fmt.Errorf("parse baselines for %s: %w", propertyID, err)
			}
			name = strings.TrimSpace(name)
			if name == "" {
				return fmt.Errorf("parse baselines for %s: empty file name for %s", propertyID, room)
			}
			r.Set(propertyID, room, name)
		}
	}
	return nil
}

func copySet(set domain.BaselineSet) domain.BaselineSet {
	out := make(domain.BaselineSet, len(set))
	for room, name := range set {
		out[room] = name
	}
	return out
}
