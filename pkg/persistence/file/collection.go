package file

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/chutney-testing/chutney-suite/pkg/persistence"
)

// collection stores one JSON document per entity under root/<name>.
type collection[T any] struct {
	dir      string
	entity   string
	notFound error

	mu sync.RWMutex
}

func newCollection[T any](root, name, entity string, notFound error) *collection[T] {
	return &collection[T]{
		dir:      filepath.Join(root, name),
		entity:   entity,
		notFound: notFound,
	}
}

// validateID rejects ids that would escape the collection directory.
func validateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: id cannot be empty", persistence.ErrInvalidID)
	}

	if strings.Contains(id, "..") || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("%w: %s contains invalid characters", persistence.ErrInvalidID, id)
	}

	return nil
}

func (c *collection[T]) path(id string) string {
	return filepath.Join(c.dir, id+".json")
}

func (c *collection[T]) get(op, id string) (*T, error) {
	if err := validateID(id); err != nil {
		return nil, persistence.NewStoreError(op, c.entity, id, err)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.read(op, id)
}

func (c *collection[T]) read(op, id string) (*T, error) {
	data, err := os.ReadFile(c.path(id)) // #nosec G304 -- id is validated
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, persistence.NewStoreError(op, c.entity, id, c.notFound)
		}

		return nil, persistence.NewStoreError(op, c.entity, id, err)
	}

	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, persistence.NewStoreError(op, c.entity, id, fmt.Errorf("failed to unmarshal: %w", err))
	}

	return &value, nil
}

func (c *collection[T]) save(op, id string, value *T) error {
	if err := validateID(id); err != nil {
		return persistence.NewStoreError(op, c.entity, id, err)
	}

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return persistence.NewStoreError(op, c.entity, id, fmt.Errorf("failed to marshal: %w", err))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(c.dir, 0o750); err != nil {
		return persistence.NewStoreError(op, c.entity, id, err)
	}

	// write then rename so readers never see a partial document
	tmp := c.path(id) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return persistence.NewStoreError(op, c.entity, id, err)
	}

	if err := os.Rename(tmp, c.path(id)); err != nil {
		return persistence.NewStoreError(op, c.entity, id, err)
	}

	return nil
}

// remove is a no-op when the document does not exist.
func (c *collection[T]) remove(op, id string) error {
	if err := validateID(id); err != nil {
		return persistence.NewStoreError(op, c.entity, id, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.Remove(c.path(id)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return persistence.NewStoreError(op, c.entity, id, err)
	}

	return nil
}

// list loads every document, optionally filtered. Unreadable files are skipped.
func (c *collection[T]) list(op string, keep func(*T) bool) ([]*T, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []*T{}, nil
		}

		return nil, persistence.NewStoreError(op, c.entity, "", err)
	}

	values := make([]*T, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		value, err := c.read(op, strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			continue
		}

		if keep == nil || keep(value) {
			values = append(values, value)
		}
	}

	return values, nil
}
