package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"partial-matching/internal/matching"
	"partial-matching/internal/orderbook"
	"partial-matching/internal/publish"
)

const maxEngineIDLength = 128

// Config holds configuration for the registry and the engines it creates
type Config struct {
	Shards             int           // Registry map shards (default: 16)
	DefaultTTL         time.Duration // Idle TTL of engines without an override (default: 30m)
	CleanupInterval    time.Duration // Janitor period (default: 1m)
	MaxMatchIterations int           // Fill budget per pass (default: matching.DefaultMaxIterations)
	IdempotencyTTL     time.Duration // Idempotency record TTL (default: 24h)
	AutoCreate         bool          // Create unknown engines on first add-order
}

// DefaultConfig returns default registry configuration
func DefaultConfig() *Config {
	return &Config{
		Shards:             16,
		DefaultTTL:         30 * time.Minute,
		CleanupInterval:    time.Minute,
		MaxMatchIterations: matching.DefaultMaxIterations,
		IdempotencyTTL:     24 * time.Hour,
	}
}

// Deps are the collaborators shared by every engine
type Deps struct {
	NAV       matching.NAVFunc
	Publisher publish.TradePublisher
	Logger    *zap.Logger
	Clock     func() time.Time
}

type registryShard struct {
	mu      sync.RWMutex
	engines map[string]*Engine
}

// Registry is the directory of live engines. Each shard lock is held only for
// map insert, lookup and delete; engine work never runs under it.
type Registry struct {
	config *Config
	router *Router
	shards []*registryShard
	deps   Deps
	match  matchFunc
}

// NewRegistry creates an empty registry
func NewRegistry(config *Config, deps Deps) *Registry {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Shards <= 0 {
		config.Shards = 1
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Publisher == nil {
		deps.Publisher = publish.NopPublisher{}
	}

	shards := make([]*registryShard, config.Shards)
	for i := range shards {
		shards[i] = &registryShard{engines: make(map[string]*Engine)}
	}
	return &Registry{
		config: config,
		router: NewRouter(config.Shards),
		shards: shards,
		deps:   deps,
		match:  matching.Match,
	}
}

func (r *Registry) shardFor(engineID string) *registryShard {
	return r.shards[r.router.Route(engineID)]
}

// Create allocates a new engine. An explicit ID that is already live is a ConflictError.
func (r *Registry) Create(params CreateParams) (*Engine, error) {
	params.EngineID = strings.TrimSpace(params.EngineID)
	if len(params.EngineID) > maxEngineIDLength {
		return nil, &matching.ValidationError{Field: "engine_id", Reason: fmt.Sprintf("longer than %d characters", maxEngineIDLength)}
	}
	if params.TTL < 0 {
		return nil, &matching.ValidationError{Field: "ttl", Reason: "must not be negative"}
	}

	id := params.EngineID
	if id == "" {
		id = "eng_" + uuid.New().String()
	}
	ttl := params.TTL
	if ttl == 0 {
		ttl = r.config.DefaultTTL
	}

	shard := r.shardFor(id)
	shard.mu.Lock()
	if _, exists := shard.engines[id]; exists {
		shard.mu.Unlock()
		return nil, &matching.ConflictError{Kind: "engine", ID: id, Reason: matching.ReasonAlreadyExists}
	}
	e := newEngine(id, params, ttl, engineDeps{
		maxIter:   r.config.MaxMatchIterations,
		idemTTL:   r.config.IdempotencyTTL,
		nav:       r.deps.NAV,
		match:     r.match,
		publisher: r.deps.Publisher,
		logger:    r.deps.Logger,
		now:       r.deps.Clock,
	})
	shard.engines[id] = e
	shard.mu.Unlock()

	r.deps.Logger.Info("engine created",
		zap.String("engine_id", id),
		zap.String("fund_id", params.FundID),
		zap.Duration("ttl", ttl),
	)
	return e, nil
}

// Get returns a live engine
func (r *Registry) Get(engineID string) (*Engine, error) {
	shard := r.shardFor(engineID)
	shard.mu.RLock()
	e, ok := shard.engines[engineID]
	shard.mu.RUnlock()
	if !ok {
		return nil, &matching.NotFoundError{Kind: "engine", ID: engineID}
	}
	return e, nil
}

// Resolve returns a live engine, creating it first when auto-creation is enabled
func (r *Registry) Resolve(engineID string) (*Engine, error) {
	e, err := r.Get(engineID)
	if err == nil || !r.config.AutoCreate || strings.TrimSpace(engineID) == "" {
		return e, err
	}
	e, err = r.Create(CreateParams{EngineID: engineID})
	if err != nil {
		// Lost a creation race; the winner is live now
		if existing, getErr := r.Get(engineID); getErr == nil {
			return existing, nil
		}
		return nil, err
	}
	return e, nil
}

// Delete destroys an idle engine. A running pass makes it a ConflictError.
func (r *Registry) Delete(engineID string) error {
	e, err := r.Get(engineID)
	if err != nil {
		return err
	}
	if !e.tryRetire(time.Time{}) {
		if e.retired.Load() {
			return &matching.NotFoundError{Kind: "engine", ID: engineID}
		}
		return &matching.ConflictError{Kind: "engine", ID: engineID, Reason: matching.ReasonBusy}
	}
	r.remove(e)
	r.deps.Logger.Info("engine deleted", zap.String("engine_id", engineID))
	return nil
}

func (r *Registry) remove(e *Engine) {
	shard := r.shardFor(e.id)
	shard.mu.Lock()
	if shard.engines[e.id] == e {
		delete(shard.engines, e.id)
	}
	shard.mu.Unlock()
}

// Engines returns every live engine ordered by creation time
func (r *Registry) Engines() []*Engine {
	var out []*Engine
	for _, shard := range r.shards {
		shard.mu.RLock()
		for _, e := range shard.engines {
			out = append(out, e)
		}
		shard.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].createdAt.Equal(out[j].createdAt) {
			return out[i].id < out[j].id
		}
		return out[i].createdAt.Before(out[j].createdAt)
	})
	return out
}

// List returns a summary of every live engine
func (r *Registry) List() []Summary {
	engines := r.Engines()
	out := make([]Summary, 0, len(engines))
	for _, e := range engines {
		out = append(out, e.Summary())
	}
	return out
}

// Len returns the number of live engines
func (r *Registry) Len() int {
	n := 0
	for _, shard := range r.shards {
		shard.mu.RLock()
		n += len(shard.engines)
		shard.mu.RUnlock()
	}
	return n
}

// Cleanup removes every idle engine unused for longer than ttl.
// Engines with a running pass are never removed.
func (r *Registry) Cleanup(ttl time.Duration) []string {
	cutoff := r.deps.Clock().Add(-ttl)
	return r.evict(func(*Engine) time.Time { return cutoff })
}

// CleanupExpired removes every idle engine unused for longer than its own TTL
func (r *Registry) CleanupExpired() []string {
	now := r.deps.Clock()
	return r.evict(func(e *Engine) time.Time { return now.Add(-e.ttl) })
}

func (r *Registry) evict(cutoffFor func(*Engine) time.Time) []string {
	removed := []string{}
	for _, e := range r.Engines() {
		if !e.tryRetire(cutoffFor(e)) {
			continue
		}
		r.remove(e)
		removed = append(removed, e.id)
	}
	sort.Strings(removed)
	if len(removed) > 0 {
		r.deps.Logger.Info("idle engines evicted", zap.Strings("engine_ids", removed))
	}
	return removed
}

// Run evicts expired engines and idempotency records every CleanupInterval until ctx is done
func (r *Registry) Run(ctx context.Context) error {
	interval := r.config.CleanupInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.sweep()
		}
	}
}

func (r *Registry) sweep() {
	r.CleanupExpired()
	purged := 0
	for _, e := range r.Engines() {
		purged += e.cleanupIdempotency()
	}
	if purged > 0 {
		r.deps.Logger.Debug("idempotency records purged", zap.Int("records", purged))
	}
}

// EngineData implements orderbook.Source. An empty engineID selects every live engine.
func (r *Registry) EngineData(engineID string) ([]orderbook.EngineData, error) {
	var engines []*Engine
	if engineID != "" {
		e, err := r.Get(engineID)
		if err != nil {
			return nil, err
		}
		engines = []*Engine{e}
	} else {
		engines = r.Engines()
	}

	out := make([]orderbook.EngineData, 0, len(engines))
	for _, e := range engines {
		out = append(out, orderbook.EngineData{
			EngineID: e.id,
			FundID:   e.fundID,
			Orders:   e.queue.Orders(),
			Trades:   e.trades.All(),
		})
	}
	return out, nil
}
