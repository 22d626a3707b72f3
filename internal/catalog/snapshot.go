package catalog

import (
	"sync"

	"coursehub/internal/models"
)

// Snapshot holds the current course collection. Replace swaps it wholesale,
// so the last write wins.
type Snapshot struct {
	mu          sync.RWMutex
	courses     []models.Course
	categories  []string
	version     uint64
	subscribers []chan uint64
}

func NewSnapshot() *Snapshot {
	return &Snapshot{
		courses:    make([]models.Course, 0),
		categories: make([]string, 0),
	}
}

// Replace installs a new collection, recomputes categories and notifies subscribers.
// It returns the new version.
func (s *Snapshot) Replace(courses []models.Course) uint64 {
	owned := make([]models.Course, len(courses))
	copy(owned, courses)
	categories := ExtractCategories(owned)

	s.mu.Lock()
	s.courses = owned
	s.categories = categories
	s.version++
	version := s.version
	subs := append([]chan uint64(nil), s.subscribers...)
	s.mu.Unlock()

	for _, ch := range subs {
		notify(ch, version)
	}
	return version
}

// notify delivers version without blocking; a pending older version is replaced.
func notify(ch chan uint64, version uint64) {
	for {
		select {
		case ch <- version:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// Subscribe returns a channel receiving the version of each replacement.
// Notifications coalesce: a slow reader only sees the latest version.
func (s *Snapshot) Subscribe() <-chan uint64 {
	ch := make(chan uint64, 1)
	s.mu.Lock()
	s.subscribers = append(s.subscribers, ch)
	s.mu.Unlock()
	return ch
}

// Courses returns a copy of the current collection.
func (s *Snapshot) Courses() []models.Course {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Course, len(s.courses))
	copy(out, s.courses)
	return out
}

// Categories returns the categories of the current collection.
func (s *Snapshot) Categories() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.categories))
	copy(out, s.categories)
	return out
}

func (s *Snapshot) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

func (s *Snapshot) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.courses)
}

// Find returns the course with the given id from the current collection.
func (s *Snapshot) Find(id string) (models.Course, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, course := range s.courses {
		if course.ID == id {
			return course, true
		}
	}
	return models.Course{}, false
}

// Filter runs ApplyFilters against the current collection.
func (s *Snapshot) Filter(criteria Criteria) []models.Course {
	if criteria.Empty() {
		return s.Courses()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ApplyFilters(s.courses, criteria)
}
