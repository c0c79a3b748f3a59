package engine

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/chutney-testing/chutney-suite/pkg/models"
	"github.com/chutney-testing/chutney-suite/pkg/protocol"
)

// Run is the runtime scope of one scenario execution: its identity, its
// cancellation token and the outputs accumulated by its steps.
type Run struct {
	ID          string
	ScenarioID  string
	Environment string
	Token       *CancellationToken

	outputs *OutputContext

	targetsMu sync.Mutex
	targets   map[string]models.Target
}

func NewRun(id, scenarioID, environment string, token *CancellationToken) *Run {
	if token == nil {
		token = NewCancellationToken()
	}

	return &Run{
		ID:          id,
		ScenarioID:  scenarioID,
		Environment: environment,
		Token:       token,
		outputs:     NewOutputContext(),
		targets:     make(map[string]models.Target),
	}
}

func (r *Run) Outputs() *OutputContext {
	return r.outputs
}

// target resolves a target once per run and caches the immutable value.
func (r *Run) target(ctx context.Context, resolver protocol.TargetResolver, name string) (models.Target, error) {
	r.targetsMu.Lock()
	target, ok := r.targets[name]
	r.targetsMu.Unlock()

	if ok {
		return target, nil
	}

	if resolver == nil {
		return models.Target{}, fmt.Errorf("no target resolver configured to resolve '%s'", name)
	}

	target, err := resolver.Resolve(ctx, r.Environment, name)
	if err != nil {
		return models.Target{}, err
	}

	r.targetsMu.Lock()
	defer r.targetsMu.Unlock()

	if cached, ok := r.targets[name]; ok {
		return cached, nil
	}

	r.targets[name] = target

	return target, nil
}

// OutputContext holds the outputs of completed steps keyed by step name.
// Steps of one scenario write it in completion order; later steps only read it.
type OutputContext struct {
	mu     sync.RWMutex
	values map[string]any
	// step id that last wrote each name
	writers map[string]string
}

func NewOutputContext() *OutputContext {
	return &OutputContext{values: make(map[string]any), writers: make(map[string]string)}
}

// Put stores the outputs of step stepID under stepName. It reports whether
// they replaced the outputs of another step with the same name; a retried
// step overwriting its own previous attempt does not count.
func (c *OutputContext) Put(stepID, stepName string, outputs map[string]any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	writer, exists := c.writers[stepName]
	c.values[stepName] = outputs
	c.writers[stepName] = stepID

	return exists && writer != stepID
}

func (c *OutputContext) Get(stepName string) (map[string]any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	value, ok := c.values[stepName]
	if !ok {
		return nil, false
	}

	outputs, _ := value.(map[string]any)

	return outputs, true
}

// Snapshot returns a shallow copy safe to read while other steps complete.
func (c *OutputContext) Snapshot() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return maps.Clone(c.values)
}
