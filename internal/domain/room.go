// Package domain contains core business types and interfaces.
//
// This file defines the fixed set of room slots every inspection covers.
package domain

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Room identifies one of the fixed room slots of an inspection.
//
// The string value is the display name the model prompts and API responses use.
type Room string

const (
	RoomKitchen    Room = "Kitchen"
	RoomBathroom   Room = "Bathroom"
	RoomLivingRoom Room = "Living Room"
	RoomBedroom    Room = "Bedroom"
)

// RoomCount is the number of slots in every inspection.
const RoomCount = 4

var allRooms = [RoomCount]Room{RoomKitchen, RoomBathroom, RoomLivingRoom, RoomBedroom}

// AllRooms returns the room slots in canonical order.
func AllRooms() []Room {
	rooms := allRooms
	return rooms[:]
}

// String returns the display name of the room.
func (r Room) String() string {
	return string(r)
}

// IsValid returns true if the room is one of the fixed slots.
func (r Room) IsValid() bool {
	return r.Index() >= 0
}

// Index returns the canonical position of the room, or -1 if unknown.
func (r Room) Index() int {
	for i, room := range allRooms {
		if room == r {
			return i
		}
	}
	return -1
}

// Slug returns the URL form of the room name (e.g. "living-room").
func (r Room) Slug() string {
	return strings.ReplaceAll(strings.ToLower(string(r)), " ", "-")
}

// Key returns the lower camel case form used in JSON field names
// (e.g. "livingRoom" for livingRoomFilename).
func (r Room) Key() string {
	words := strings.Fields(string(r))
	for i, w := range words {
		if i == 0 {
			words[i] = strings.ToLower(w)
		}
	}
	return strings.Join(words, "")
}

// ParseRoom resolves a room from its display name, slug, snake case or
// camel case form. Matching is case-insensitive.
func ParseRoom(s string) (Room, error) {
	var b strings.Builder
	prev := rune(0)
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r == '-' || r == '_':
			b.WriteRune(' ')
		case unicode.IsUpper(r) && unicode.IsLower(prev):
			b.WriteRune(' ')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
		prev = r
	}

	// Caser values are stateful, so one is built per call.
	name := cases.Title(language.English).String(strings.ToLower(strings.Join(strings.Fields(b.String()), " ")))

	room := Room(name)
	if !room.IsValid() {
		return "", Errorf(EINVALID, "room.parse", "unknown room %q", s)
	}
	return room, nil
}
