package component

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Handler is the plug-in contract a domain module implements to make
// its state backupable. Verify is optional; a nil Verify skips the
// post-restore sanity check.
type Handler struct {
	Serialize func(ctx context.Context) ([]byte, error)
	Restore   func(ctx context.Context, data []byte) error
	Verify    func(ctx context.Context) error
}

// ComponentFailure reports that a named component's hook failed. The
// whole aggregate step fails with it; partial artifacts are never kept.
type ComponentFailure struct {
	Name  string
	Op    string // "serialize", "restore", or "verify"
	Cause error
}

func (e ComponentFailure) Error() string {
	return fmt.Sprintf("component %s: %s failed: %v", e.Name, e.Op, e.Cause)
}

func (e ComponentFailure) Unwrap() error { return e.Cause }

// UnknownComponentError reports a request for an unregistered name.
type UnknownComponentError struct {
	Name string
}

func (e UnknownComponentError) Error() string {
	return fmt.Sprintf("unknown component: %s", e.Name)
}

// Registry maps component names to their serialize/restore handlers.
// It is the sole integration surface with the rest of the platform.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	logger   *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
		logger:   logger,
	}
}

// Register adds or replaces the handler for a component name.
func (r *Registry) Register(name string, h Handler) error {
	if name == "" {
		return fmt.Errorf("component name is required")
	}
	if h.Serialize == nil || h.Restore == nil {
		return fmt.Errorf("component %s: serialize and restore handlers are required", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = h

	r.logger.Debug("registered component", zap.String("component", name))
	return nil
}

// Names returns all registered component names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether a component is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[name]
	return ok
}

// SerializeAll collects every requested component's bytes. Components
// serialize in parallel, but the step is atomic: any failure aborts
// the whole call with a ComponentFailure and no partial map.
func (r *Registry) SerializeAll(ctx context.Context, names []string) (map[string][]byte, error) {
	handlers, err := r.resolve(names)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	payloads := make(map[string][]byte, len(handlers))

	g, gctx := errgroup.WithContext(ctx)
	for name, h := range handlers {
		name, h := name, h
		g.Go(func() error {
			data, err := h.Serialize(gctx)
			if err != nil {
				return ComponentFailure{Name: name, Op: "serialize", Cause: err}
			}
			mu.Lock()
			payloads[name] = data
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return payloads, nil
}

// RestoreAll dispatches each component's bytes to its restore handler,
// sequentially in name order so failures are attributable. Unlike
// serialization this is not atomic: the returned map records the
// per-component outcome so operators know exactly what did and did
// not restore.
func (r *Registry) RestoreAll(ctx context.Context, payloads map[string][]byte) map[string]error {
	names := make([]string, 0, len(payloads))
	for name := range payloads {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make(map[string]error, len(names))
	for _, name := range names {
		r.mu.RLock()
		h, ok := r.handlers[name]
		r.mu.RUnlock()

		if !ok {
			results[name] = UnknownComponentError{Name: name}
			continue
		}

		if err := h.Restore(ctx, payloads[name]); err != nil {
			results[name] = ComponentFailure{Name: name, Op: "restore", Cause: err}
			r.logger.Error("component restore failed",
				zap.String("component", name),
				zap.Error(err))
			continue
		}
		results[name] = nil
	}
	return results
}

// VerifyAll runs the post-restore verification hook for each named
// component. Failures are reported, not rolled back.
func (r *Registry) VerifyAll(ctx context.Context, names []string) map[string]error {
	results := make(map[string]error, len(names))
	for _, name := range names {
		r.mu.RLock()
		h, ok := r.handlers[name]
		r.mu.RUnlock()

		if !ok {
			results[name] = UnknownComponentError{Name: name}
			continue
		}
		if h.Verify == nil {
			results[name] = nil
			continue
		}
		if err := h.Verify(ctx); err != nil {
			results[name] = ComponentFailure{Name: name, Op: "verify", Cause: err}
			continue
		}
		results[name] = nil
	}
	return results
}

// resolve maps names to handlers, failing fast on unknown names.
// An empty name list means every registered component.
func (r *Registry) resolve(names []string) (map[string]Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(names) == 0 {
		handlers := make(map[string]Handler, len(r.handlers))
		for name, h := range r.handlers {
			handlers[name] = h
		}
		return handlers, nil
	}

	handlers := make(map[string]Handler, len(names))
	for _, name := range names {
		h, ok := r.handlers[name]
		if !ok {
			return nil, UnknownComponentError{Name: name}
		}
		handlers[name] = h
	}
	return handlers, nil
}
