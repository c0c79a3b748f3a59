package execution

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

var ErrAlreadyRegistered = errors.New("execution already registered")

type Kind string

const (
	KindScenario Kind = "scenario"
	KindCampaign Kind = "campaign"
)

// Handle is the cancellable side of a live execution.
type Handle interface {
	Cancel()
}

// Entry describes a registered execution. It is returned by value.
type Entry struct {
	ID         string
	Kind       Kind
	CampaignID string
	ScenarioID string
	StartedAt  time.Time
}

type registration struct {
	entry  Entry
	handle Handle
}

// Registry maps the ids of in-flight executions to their handles. It only
// lives as long as the process; interrupted executions are not recovered.
type Registry struct {
	mu      sync.RWMutex
	running map[string]registration
}

func NewRegistry() *Registry {
	return &Registry{running: make(map[string]registration)}
}

func (r *Registry) Insert(entry Entry, handle Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.running[entry.ID]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, entry.ID)
	}

	if entry.StartedAt.IsZero() {
		entry.StartedAt = time.Now().UTC()
	}

	r.running[entry.ID] = registration{entry: entry, handle: handle}

	return nil
}

func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.running, id)
}

func (r *Registry) Lookup(id string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, ok := r.running[id]

	return reg.entry, ok
}

// Cancel signals the execution and reports whether it was running.
// The handle is called outside the registry lock.
func (r *Registry) Cancel(id string) bool {
	r.mu.RLock()
	reg, ok := r.running[id]
	r.mu.RUnlock()

	if !ok {
		return false
	}

	reg.handle.Cancel()

	return true
}

// CampaignExecution returns the running campaign-level entry of campaignID.
func (r *Registry) CampaignExecution(campaignID string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, reg := range r.running {
		if reg.entry.Kind == KindCampaign && reg.entry.CampaignID == campaignID {
			return reg.entry, true
		}
	}

	return Entry{}, false
}

// Entries lists the running executions, oldest first.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]Entry, 0, len(r.running))
	for _, reg := range r.running {
		entries = append(entries, reg.entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].StartedAt.Equal(entries[j].StartedAt) {
			return entries[i].ID < entries[j].ID
		}

		return entries[i].StartedAt.Before(entries[j].StartedAt)
	})

	return entries
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.running)
}
