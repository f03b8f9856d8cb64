package timer

import (
	"errors"
	"sync"
	"time"
)

// MIN_DURATION is the shortest countdown, in seconds, a user may start.
const MIN_DURATION = 5

var (
	ErrInvalidDuration = errors.New("seconds must be >= 5")
	ErrNotFound        = errors.New("no timer found")
)

// Record is the countdown state held for one user.
type Record struct {
	Active bool
	EndsAt time.Time
}

type Status struct {
	Active           bool `json:"active"`
	RemainingSeconds int  `json:"remaining_seconds"`
}

// Store owns every user's timer record. Start, Cancel and DrainExpired all take
// the same lock, so a Cancel that returns before a DrainExpired begins is always
// observed by it.
type Store struct {
	mu      sync.Mutex
	records map[string]*Record
	now     func() time.Time
}

// NewStore returns an empty store. A nil clock defaults to time.Now.
func NewStore(clock func() time.Time) *Store {
	if clock == nil {
		clock = time.Now
	}

	return &Store{
		records: make(map[string]*Record),
		now:     clock,
	}
}

// Start (re)starts userID's countdown, replacing any previous record.
func (s *Store) Start(userID string, seconds int) (time.Time, error) {
	if seconds < MIN_DURATION {
		return time.Time{}, ErrInvalidDuration
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	endsAt := s.now().Add(time.Duration(seconds) * time.Second)
	s.records[userID] = &Record{Active: true, EndsAt: endsAt}

	return endsAt, nil
}

// Cancel deactivates userID's countdown. Unknown users and inactive timers are a no-op.
func (s *Store) Cancel(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record, ok := s.records[userID]; ok {
		record.Active = false
	}
}

func (s *Store) Status(userID string) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[userID]
	if !ok {
		return Status{}, ErrNotFound
	}

	status := Status{Active: record.Active}
	if record.Active {
		remaining := record.EndsAt.Sub(s.now())
		if remaining > 0 {
			status.RemainingSeconds = int(remaining / time.Second)
		}
	}

	return status, nil
}

// DrainExpired deactivates every active record whose end time is at or before now
// and returns their user ids, in no particular order. A user is returned at most
// once per Start.
func (s *Store) DrainExpired(now time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	expired := []string{}
	for userID, record := range s.records {
		if record.Active && !now.Before(record.EndsAt) {
			record.Active = false
			expired = append(expired, userID)
		}
	}

	return expired
}

// ActiveCount returns the number of timers still counting down.
func (s *Store) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, record := range s.records {
		if record.Active {
			count++
		}
	}

	return count
}

// Reset drops every record.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[string]*Record)
}
