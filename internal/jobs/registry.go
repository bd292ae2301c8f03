package jobs

import (
	"errors"
	"sync"

	"github.com/maltedev/ecommerce-scraper/internal/models"
)

var (
	ErrJobExists   = errors.New("job already exists")
	ErrJobNotFound = errors.New("job not found")
	ErrJobFinished = errors.New("job already finished")
)

// Registry holds the status record of every job created by this process.
type Registry interface {
	Create(id string) error
	Update(id string, u models.Update) error
	Get(id string) models.Status
}

// MemoryRegistry keeps records for the lifetime of the process.
type MemoryRegistry struct {
	mu   sync.RWMutex
	jobs map[string]models.Status
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{jobs: make(map[string]models.Status)}
}

func (r *MemoryRegistry) Create(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[id]; ok {
		return ErrJobExists
	}
	r.jobs[id] = models.Status{Status: models.StatusQueued}
	return nil
}

// Update merges u into the record. Terminal records reject every update.
func (r *MemoryRegistry) Update(id string, u models.Update) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	if s.Done {
		return ErrJobFinished
	}
	r.jobs[id] = u.Apply(s)
	return nil
}

// Get returns a copy of the record, or an Unknown terminal record.
func (r *MemoryRegistry) Get(id string) models.Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.jobs[id]
	if !ok {
		return models.Status{Status: models.StatusUnknown, Done: true}
	}
	return s.Clone()
}
