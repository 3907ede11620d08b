package gateway

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	gatewaymodel "github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/gateway"
	"github.com/frahmantamala/payment-orchestrator/internal/tasks"
)

type Settings struct {
	Timeout                time.Duration
	VoidWindow             time.Duration
	CancelReviewDelay      time.Duration
	ManualReviewPercentage float64
}

// Deps are the shared handles every adapter is built with.
type Deps struct {
	Dispatcher tasks.Dispatcher
	HTTPClient *http.Client
	Logger     *slog.Logger
	Settings   Settings
	Now        func() time.Time
}

type Factory func(gw *gatewaymodel.Gateway, deps Deps) (Adapter, error)

type cachedAdapter struct {
	adapter   Adapter
	updatedAt time.Time
}

// Registry builds adapters from persisted gateway rows, once per row version.
type Registry struct {
	deps      Deps
	factories map[Kind]Factory

	mu    sync.RWMutex
	cache map[int64]cachedAdapter
}

func NewRegistry(deps Deps) *Registry {
	if deps.HTTPClient == nil {
		deps.HTTPClient = NewHTTPClient(deps.Settings.Timeout)
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Registry{
		deps:      deps,
		factories: make(map[Kind]Factory),
		cache:     make(map[int64]cachedAdapter),
	}
}

func (r *Registry) Register(kind Kind, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[kind] = factory
}

func (r *Registry) Supports(kind Kind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[kind]
	return ok
}

func (r *Registry) Resolve(gw *gatewaymodel.Gateway) (Adapter, error) {
	r.mu.RLock()
	cached, ok := r.cache[gw.ID]
	factory, known := r.factories[Kind(gw.Type)]
	r.mu.RUnlock()

	if ok && cached.updatedAt.Equal(gw.UpdatedAt) {
		return cached.adapter, nil
	}
	if !known {
		return nil, fmt.Errorf("unsupported gateway type %q", gw.Type)
	}

	adapter, err := factory(gw, r.deps)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s adapter for gateway %d: %w", gw.Type, gw.ID, err)
	}

	r.mu.Lock()
	r.cache[gw.ID] = cachedAdapter{adapter: adapter, updatedAt: gw.UpdatedAt}
	r.mu.Unlock()

	return adapter, nil
}
