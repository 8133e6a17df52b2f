// Package inventory provides the reference inventories that ground each
// room comparison: a textual checklist of the objects expected in a room.
package inventory

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/DukeRupert/turnover/internal/domain"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// fileFormat is the YAML layout of an inventory file.
//
//	rooms:
//	  Kitchen: |
//	    * 1 Refrigerator
//	properties:
//	  beach-house:
//	    Kitchen: |
//	      * 1 Blender
type fileFormat struct {
	Rooms      map[string]string            `yaml:"rooms"`
	Properties map[string]map[string]string `yaml:"properties"`
}

// Catalog resolves the inventory for a property's room. Property-specific
// entries win over the room defaults.
type Catalog struct {
	mu         sync.RWMutex
	rooms      map[domain.Room]string
	properties map[string]map[domain.Room]string
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

// Default returns the catalog built from the embedded inventories.
func Default() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCatalog, defaultErr = Parse(defaultsYAML)
	})
	if defaultErr != nil {
		return nil, defaultErr
	}
	return defaultCatalog.clone(), nil
}

// LoadFile reads an inventory file and layers it over the embedded defaults.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read inventory file: %w", err)
	}

	overrides, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse inventory file %s: %w", path, err)
	}

	catalog, err := Default()
	if err != nil {
		return nil, err
	}
	catalog.merge(overrides)
	return catalog, nil
}

// Parse decodes an inventory document.
func Parse(data []byte) (*Catalog, error) {
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}

	c := &Catalog{
		rooms:      make(map[domain.Room]string),
		properties: make(map[string]map[domain.Room]string),
	}

	rooms, err := parseRooms(f.Rooms)
	if err != nil {
		return nil, err
	}
	c.rooms = rooms

	for propertyID, entries := range f.Properties {
		rooms, err := parseRooms(entries)
		if err != nil {
			return nil, fmt.Errorf("property %s: %w", propertyID, err)
		}
		c.properties[propertyID] = rooms
	}

	return c, nil
}

func parseRooms(entries map[string]string) (map[domain.Room]string, error) {
	rooms := make(map[domain.Room]string, len(entries))
	for name, text := range entries {
		room, err := domain.ParseRoom(name)
		if err != nil {
			return nil, err
		}
		rooms[room] = strings.TrimSpace(text)
	}
	return rooms, nil
}

// For returns the inventory text for a property's room. An empty string
// means no inventory is known for the room.
func (c *Catalog) For(propertyID string, room domain.Room) string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if rooms, ok := c.properties[propertyID]; ok {
		if text, ok := rooms[room]; ok {
			return text
		}
	}
	return c.rooms[room]
}

// Set replaces the default inventory for a room.
func (c *Catalog) Set(room domain.Room, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rooms[room] = strings.TrimSpace(text)
}

func (c *Catalog) merge(other *Catalog) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for room, text := range other.rooms {
		c.rooms[room] = text
	}
	for propertyID, rooms := range other.properties {
		dst, ok := c.properties[propertyID]
		if !ok {
			dst = make(map[domain.Room]string, len(rooms))
			c.properties[propertyID] = dst
		}
		for room, text := range rooms {
			dst[room] = text
		}
	}
}

func (c *Catalog) clone() *Catalog {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := &Catalog{
		rooms:      make(map[domain.Room]string, len(c.rooms)),
		properties: make(map[string]map[domain.Room]string, len(c.properties)),
	}
	for room, text := range c.rooms {
		out.rooms[room] = text
	}
	for propertyID, rooms := range c.properties {
		dst := make(map[domain.Room]string, len(rooms))
		for room, text := range rooms {
			dst[room] = text
		}
		out.properties[propertyID] = dst
	}
	return out
}
