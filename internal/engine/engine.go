package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"partial-matching/internal/matching"
	"partial-matching/internal/publish"
)

type matchFunc func(buys, sells []matching.Order, opts matching.MatchOptions) (*matching.MatchResult, error)

// Engine owns one order queue and its trade log.
// mu serialises add-order, cancel, clear and the snapshot-match-replace section of a pass.
// Reads (status, orders, trades) only take the queue's and log's read locks.
type Engine struct {
	id        string
	fundID    string
	createdAt time.Time
	ttl       time.Duration

	mu         sync.Mutex
	tradeSeq   uint64 // guarded by mu
	processing atomic.Bool
	retired    atomic.Bool
	lastActive atomic.Int64 // unix nanos

	queue  *matching.Queue
	trades *TradeLog
	idem   *IdempotencyStore

	maxIter   int
	nav       matching.NAVFunc
	match     matchFunc
	publisher publish.TradePublisher
	logger    *zap.Logger
	now       func() time.Time
}

type engineDeps struct {
	maxIter   int
	idemTTL   time.Duration
	nav       matching.NAVFunc
	match     matchFunc
	publisher publish.TradePublisher
	logger    *zap.Logger
	now       func() time.Time
}

func newEngine(id string, params CreateParams, ttl time.Duration, deps engineDeps) *Engine {
	if deps.now == nil {
		deps.now = time.Now
	}
	if deps.match == nil {
		deps.match = matching.Match
	}
	if deps.publisher == nil {
		deps.publisher = publish.NopPublisher{}
	}
	if deps.logger == nil {
		deps.logger = zap.NewNop()
	}

	created := deps.now()
	e := &Engine{
		id:        id,
		fundID:    params.FundID,
		createdAt: created,
		ttl:       ttl,
		queue:     matching.NewQueue(params.FundID, deps.now),
		trades:    NewTradeLog(),
		idem:      NewIdempotencyStore(deps.idemTTL, deps.now),
		maxIter:   deps.maxIter,
		nav:       deps.nav,
		match:     deps.match,
		publisher: deps.publisher,
		logger:    deps.logger.With(zap.String("engine_id", id)),
		now:       deps.now,
	}
	e.lastActive.Store(created.UnixNano())
	return e
}

func (e *Engine) ID() string               { return e.id }
func (e *Engine) FundID() string           { return e.fundID }
func (e *Engine) CreatedAt() time.Time     { return e.createdAt }
func (e *Engine) TTL() time.Duration       { return e.ttl }
func (e *Engine) LastActivityAt() time.Time { return time.Unix(0, e.lastActive.Load()) }

// State reports whether a pass is running
func (e *Engine) State() State {
	if e.processing.Load() {
		return StateProcessing
	}
	return StateIdle
}

func (e *Engine) touch() {
	e.lastActive.Store(e.now().UnixNano())
}

func (e *Engine) notFound() error {
	return &matching.NotFoundError{Kind: "engine", ID: e.id}
}

// AddOrder appends an order to the queue. It waits for a running pass to finish its
// critical section but never for publication or other slow work.
func (e *Engine) AddOrder(req AddOrderRequest) (matching.Order, error) {
	if err := req.Order.Validate(); err != nil {
		return matching.Order{}, err
	}

	var (
		key  IdempotencyKey
		hash string
	)
	if req.IdempotencyKey != "" {
		var err error
		key = IdempotencyKey{EngineID: e.id, AccountID: req.Order.AccountID, IdempotencyKey: req.IdempotencyKey}
		hash, err = ComputePayloadHash(req.Order)
		if err != nil {
			return matching.Order{}, err
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.retired.Load() {
		return matching.Order{}, e.notFound()
	}

	if req.IdempotencyKey != "" {
		record, err := e.idem.Check(key, hash)
		if err != nil {
			return matching.Order{}, err
		}
		if record != nil {
			// Report the order's current state when it is still queued
			if current, err := e.queue.Get(record.Order.OrderID); err == nil {
				return current, nil
			}
			return record.Order, nil
		}
	}

	order, err := e.queue.Append(req.Order)
	if err != nil {
		return matching.Order{}, err
	}
	if req.IdempotencyKey != "" {
		e.idem.Store(key, hash, order)
	}
	e.touch()
	return order, nil
}

// CancelOrder moves an open order to CANCELLED
func (e *Engine) CancelOrder(orderID string) (matching.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.retired.Load() {
		return matching.Order{}, e.notFound()
	}
	order, err := e.queue.Cancel(orderID)
	if err != nil {
		return matching.Order{}, err
	}
	e.touch()
	return order, nil
}

// ProcessAll runs one matching pass over the queue. A call made while another pass
// is running returns ProcessStatusAlreadyProcessing without touching the queue.
// A failed pass leaves the queue exactly as it was.
func (e *Engine) ProcessAll(ctx context.Context, opts ProcessOptions) (*ProcessResult, error) {
	if e.retired.Load() {
		return nil, e.notFound()
	}
	if !e.processing.CompareAndSwap(false, true) {
		e.logger.Debug("pass rejected, engine busy")
		return &ProcessResult{
			Status:      ProcessStatusAlreadyProcessing,
			Trades:      []matching.Trade{},
			QueueStatus: e.queue.Status(),
		}, nil
	}

	start := time.Now()
	res, err := e.runPass(opts)
	e.processing.Store(false)
	e.touch()
	if err != nil {
		return nil, err
	}

	// Trades are committed; publication happens outside the engine lock
	if len(res.Trades) > 0 {
		if err := e.publisher.PublishTrades(ctx, e.id, res.Trades); err != nil {
			e.logger.Warn("failed to publish trades", zap.Int("trades", len(res.Trades)), zap.Error(err))
		}
	}

	result := &ProcessResult{
		Status:      ProcessStatusCompleted,
		Trades:      cloneTrades(res.Trades),
		QueueStatus: e.queue.Status(),
		Iterations:  res.Iterations,
		Duration:    time.Since(start),
	}
	e.logger.Info("matching pass completed",
		zap.Int("trades", len(result.Trades)),
		zap.Int("iterations", result.Iterations),
		zap.Int("negotiated", len(res.Negotiated())),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

func (e *Engine) runPass(opts ProcessOptions) (*matching.MatchResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.retired.Load() {
		return nil, e.notFound()
	}

	snap := e.queue.Snapshot()
	res, err := e.match(snap.Buys, snap.Sells, matching.MatchOptions{
		MaxIterations: e.maxIter,
		NAV:           e.navFor(opts),
		Now:           e.now(),
		TradeIDPrefix: e.id,
		TradeSeq:      e.tradeSeq,
	})
	if err != nil {
		e.logPassFailure(err, snap.Len())
		return nil, err
	}

	if err := e.queue.Replace(snap.Version, res.Orders()); err != nil {
		e.logPassFailure(err, snap.Len())
		return nil, err
	}
	e.tradeSeq = res.TradeSeq
	e.trades.Append(res.Trades...)
	return res, nil
}

func (e *Engine) logPassFailure(err error, open int) {
	fields := []zap.Field{zap.Int("open_orders", open), zap.Error(err)}
	if errors.Is(err, matching.ErrInvariantViolation) {
		e.logger.Error("matching pass aborted, queue left unchanged", fields...)
		return
	}
	e.logger.Warn("matching pass failed, queue left unchanged", fields...)
}

func (e *Engine) navFor(opts ProcessOptions) matching.NAVFunc {
	base := e.nav
	if len(opts.NAV) == 0 {
		return base
	}
	overrides := make(map[string]int64, len(opts.NAV))
	for k, v := range opts.NAV {
		overrides[k] = v
	}
	return func(fundID string) (int64, bool) {
		if nav, ok := overrides[fundID]; ok && nav > 0 {
			return nav, true
		}
		if base == nil {
			return 0, false
		}
		return base(fundID)
	}
}

// ClearQueue drains every order and returns them to the caller
func (e *Engine) ClearQueue() ([]matching.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.retired.Load() {
		return nil, e.notFound()
	}
	drained := e.queue.DrainAll()
	e.touch()
	e.logger.Info("queue cleared", zap.Int("drained", len(drained)))
	return drained, nil
}

// QueueStatus returns order counts without waiting for a running pass
func (e *Engine) QueueStatus() matching.QueueStatus {
	return e.queue.Status()
}

// Orders returns the queued orders, optionally filtered by status
func (e *Engine) Orders(status matching.OrderStatus) []matching.Order {
	orders := e.queue.Orders()
	if status == "" {
		return orders
	}
	return filterOrders(orders, func(o *matching.Order) bool { return o.Status == status })
}

// Trades returns the trade log
func (e *Engine) Trades() []matching.Trade {
	return e.trades.All()
}

// TradesFor returns the trades one order took part in, in execution order
func (e *Engine) TradesFor(orderID string) []matching.Trade {
	return cloneTrades(e.trades.ByOrder(orderID))
}

// Summary describes the engine for listings
func (e *Engine) Summary() Summary {
	st := e.queue.Status()
	now := e.now()
	return Summary{
		EngineID:       e.id,
		FundID:         e.fundID,
		State:          e.State(),
		CreatedAt:      e.createdAt,
		LastActivityAt: e.LastActivityAt(),
		Age:            now.Sub(e.createdAt),
		TTL:            e.ttl,
		QueueSizes: QueueSizes{
			Buy:   st.Buy.Orders,
			Sell:  st.Sell.Orders,
			Total: e.queue.Len(),
		},
		TradeCount: e.trades.Len(),
	}
}

// tryRetire marks the engine as removed when no pass is in flight and it has not been
// used since cutoff. A zero cutoff retires any idle engine. Retired engines reject
// further operations. The processing flag is only read here, so a sweep never makes
// a live engine look busy.
func (e *Engine) tryRetire(cutoff time.Time) bool {
	expired := func() bool { return cutoff.IsZero() || !e.LastActivityAt().After(cutoff) }
	if !expired() || e.processing.Load() {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// A pass that started after the check above waits on mu and sees retired
	if e.retired.Load() || e.processing.Load() || !expired() {
		return false
	}
	e.retired.Store(true)
	return true
}

// cleanupIdempotency drops expired idempotency records
func (e *Engine) cleanupIdempotency() int {
	return e.idem.Cleanup()
}
