package registry

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
)

var (
	ErrInvalidNumber = errors.New("latitude/longitude must be numbers")
	ErrNotFound      = errors.New("no last location saved")
)

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type Contact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// Registry holds each user's last known location and emergency contacts.
// Neither is tied to the user's timer.
type Registry struct {
	mu        sync.RWMutex
	locations map[string]Location
	contacts  map[string][]Contact
}

func New() *Registry {
	return &Registry{
		locations: make(map[string]Location),
		contacts:  make(map[string][]Contact),
	}
}

// SaveLocation overwrites userID's last known location.
func (r *Registry) SaveLocation(userID string, latitude, longitude float64) (Location, error) {
	if !isFinite(latitude) || !isFinite(longitude) {
		return Location{}, ErrInvalidNumber
	}

	location := Location{Latitude: latitude, Longitude: longitude}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.locations[userID] = location

	return location, nil
}

func (r *Registry) GetLocation(userID string) (*Location, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	location, ok := r.locations[userID]
	if !ok {
		return nil, ErrNotFound
	}

	return &location, nil
}

// SetContacts replaces userID's contact list with the usable entries of
// entries: non-object entries and entries without an email are dropped,
// name, email & phone are trimmed. The stored list is returned.
func (r *Registry) SetContacts(userID string, entries []interface{}) []Contact {
	cleaned := []Contact{}
	for _, entry := range entries {
		fields, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}

		contact := Contact{
			Name:  stringField(fields, "name"),
			Email: stringField(fields, "email"),
			Phone: stringField(fields, "phone"),
		}
		if contact.Email == "" {
			continue
		}
		cleaned = append(cleaned, contact)
	}

	r.mu.Lock()
	r.contacts[userID] = cleaned
	r.mu.Unlock()

	return copyContacts(cleaned)
}

// GetContacts returns a copy of userID's contacts, empty when none are set.
func (r *Registry) GetContacts(userID string) []Contact {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return copyContacts(r.contacts[userID])
}

func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.locations = make(map[string]Location)
	r.contacts = make(map[string][]Contact)
}

// ParseCoordinate accepts a JSON number or a numeric string.
func ParseCoordinate(value interface{}) (float64, error) {
	var number float64

	switch v := value.(type) {
	case float64:
		number = v
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, ErrInvalidNumber
		}
		number = parsed
	default:
		return 0, ErrInvalidNumber
	}

	if !isFinite(number) {
		return 0, ErrInvalidNumber
	}

	return number, nil
}

func stringField(fields map[string]interface{}, key string) string {
	value, ok := fields[key]
	if !ok || value == nil {
		return ""
	}

	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func copyContacts(contacts []Contact) []Contact {
	out := make([]Contact, len(contacts))
	copy(out, contacts)
	return out
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
