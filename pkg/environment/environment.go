// Package environment resolves targets from environment definitions stored as
// YAML files, one file per environment.
package environment

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/chutney-testing/chutney-suite/pkg/models"
	"github.com/chutney-testing/chutney-suite/pkg/protocol"
)

var (
	ErrEnvironmentNotFound = errors.New("environment not found")
	ErrTargetNotFound      = errors.New("target not found")
	ErrInvalidEnvironment  = errors.New("invalid environment")
)

// Resolver serves targets out of an in-memory set of environments.
type Resolver struct {
	mu           sync.RWMutex
	environments map[string]models.Environment
}

var _ protocol.TargetResolver = (*Resolver)(nil)

func NewResolver(environments ...models.Environment) *Resolver {
	resolver := &Resolver{environments: make(map[string]models.Environment)}

	for _, environment := range environments {
		resolver.environments[environment.Name] = environment
	}

	return resolver
}

// Load reads every *.yaml and *.yml file of dir. A missing dir yields an
// empty resolver.
func Load(dir string) (*Resolver, error) {
	resolver := NewResolver()

	return resolver, resolver.Reload(dir)
}

// Reload replaces the environments with the ones defined in dir. On error the
// previous environments are kept.
func (r *Resolver) Reload(dir string) error {
	if dir == "" {
		return nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}

		return fmt.Errorf("failed to read environments directory %s: %w", dir, err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	environments := make(map[string]models.Environment)

	for _, entry := range entries {
		extension := filepath.Ext(entry.Name())
		if entry.IsDir() || (extension != ".yaml" && extension != ".yml") {
			continue
		}

		environment, err := readEnvironment(filepath.Join(dir, entry.Name()), validate)
		if err != nil {
			return err
		}

		if _, exists := environments[environment.Name]; exists {
			return fmt.Errorf("%w: %s defined twice", ErrInvalidEnvironment, environment.Name)
		}

		environments[environment.Name] = environment
	}

	r.mu.Lock()
	r.environments = environments
	r.mu.Unlock()

	return nil
}

func readEnvironment(path string, validate *validator.Validate) (models.Environment, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from the configured directory
	if err != nil {
		return models.Environment{}, fmt.Errorf("failed to read environment file %s: %w", path, err)
	}

	var environment models.Environment
	if err := yaml.Unmarshal(data, &environment); err != nil {
		return models.Environment{}, fmt.Errorf("%w: %s: %w", ErrInvalidEnvironment, path, err)
	}

	if environment.Name == "" {
		environment.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	if err := validate.Struct(environment); err != nil {
		return models.Environment{}, fmt.Errorf("%w: %s: %w", ErrInvalidEnvironment, path, err)
	}

	return environment, nil
}

func (r *Resolver) Resolve(_ context.Context, environmentName, targetName string) (models.Target, error) {
	environment, err := r.Environment(environmentName)
	if err != nil {
		return models.Target{}, err
	}

	target, ok := environment.Target(targetName)
	if !ok {
		return models.Target{}, fmt.Errorf("%w: '%s' in environment '%s'", ErrTargetNotFound, targetName, environmentName)
	}

	return target, nil
}

func (r *Resolver) Environment(name string) (models.Environment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	environment, ok := r.environments[name]
	if !ok {
		return models.Environment{}, fmt.Errorf("%w: '%s'", ErrEnvironmentNotFound, name)
	}

	return environment, nil
}

// Names lists the known environments, sorted.
func (r *Resolver) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.environments))
	for name := range r.environments {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
