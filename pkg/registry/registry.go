// Package registry maps action-type identifiers to the factories building them.
package registry

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"plugin"
	"sort"
	"sync"

	"github.com/chutney-testing/chutney-suite/pkg/protocol"
)

var (
	ErrActionNotRegistered = errors.New("action type not registered")
	ErrInvalidPlugin       = errors.New("invalid plugin")
)

type Registry struct {
	logger          *slog.Logger
	mu              sync.RWMutex
	actionFactories map[string]protocol.ActionFactory
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger:          log,
		actionFactories: make(map[string]protocol.ActionFactory),
	}
}

// RegisterAction adds or replaces the factory for its action type.
func (r *Registry) RegisterAction(actionFactory protocol.ActionFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.actionFactories[actionFactory.ID()]; exists {
		r.logger.Warn("Replacing registered action", slog.String("action_type", actionFactory.ID()))
	}

	r.actionFactories[actionFactory.ID()] = actionFactory
}

// ActionFactory returns the factory registered for actionType.
func (r *Registry) ActionFactory(actionType string) (protocol.ActionFactory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.actionFactories[actionType]
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", ErrActionNotRegistered, actionType)
	}

	return factory, nil
}

// CreateAction builds an action instance for one step.
func (r *Registry) CreateAction(ctx context.Context, actionType string, request protocol.ActionRequest) (protocol.Action, error) {
	factory, err := r.ActionFactory(actionType)
	if err != nil {
		return nil, err
	}

	return factory.Create(ctx, request)
}

// ActionFactories lists the registered factories ordered by id.
func (r *Registry) ActionFactories() []protocol.ActionFactory {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factories := make([]protocol.ActionFactory, 0, len(r.actionFactories))
	for _, factory := range r.actionFactories {
		factories = append(factories, factory)
	}

	sort.Slice(factories, func(i, j int) bool {
		return factories[i].ID() < factories[j].ID()
	})

	return factories
}

// LoadActionPlugins opens every <pluginsPath>/actions/**/*.so and looks up
// its exported "Action" symbol.
func (r *Registry) LoadActionPlugins(ctx context.Context, pluginsPath string) ([]protocol.ActionFactory, error) {
	return loadPlugin[protocol.ActionFactory](ctx, r.logger, pluginsPath, "Action")
}

func loadPlugin[T any](ctx context.Context, logger *slog.Logger, pluginsPath string, symbolName string) ([]T, error) {
	if pluginsPath == "" {
		return nil, nil
	}

	rootPath := filepath.Join(pluginsPath, "actions")
	if _, err := os.Stat(rootPath); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	pluginPathList, err := fs.Glob(os.DirFS(rootPath), "**/*.so")
	if err != nil {
		return nil, err
	}

	l := logger.With(slog.String("path", pluginsPath), slog.String("type", symbolName))
	l.InfoContext(ctx, "Loading plugins")

	pluginList := make([]T, 0, len(pluginPathList))
	for _, p := range pluginPathList {
		plg, err := plugin.Open(filepath.Join(rootPath, p))
		if err != nil {
			return nil, fmt.Errorf("%w: open %s: %w", ErrInvalidPlugin, p, err)
		}

		v, err := plg.Lookup(symbolName)
		if err != nil {
			return nil, fmt.Errorf("%w: lookup %s in %s: %w", ErrInvalidPlugin, symbolName, p, err)
		}

		castV, ok := v.(T)
		if !ok {
			// Exported variables are looked up as pointers.
			ptr, isPtr := v.(*T)
			if !isPtr {
				return nil, fmt.Errorf("%w: %s symbol in %s has unexpected type %T", ErrInvalidPlugin, symbolName, p, v)
			}

			castV = *ptr
		}

		pluginList = append(pluginList, castV)

		l.InfoContext(ctx, "Loaded action plugin", slog.String("plugin", p))
	}

	return pluginList, nil
}
