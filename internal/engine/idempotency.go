package engine

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"partial-matching/internal/matching"
)

// IdempotencyKey represents the composite key for idempotency checking
type IdempotencyKey struct {
	EngineID       string
	AccountID      string
	IdempotencyKey string
}

// String returns a string representation of the idempotency key
func (k IdempotencyKey) String() string {
	return fmt.Sprintf("%s:%s:%s", k.EngineID, k.AccountID, k.IdempotencyKey)
}

// IdempotencyRecord stores the order accepted for a key
type IdempotencyRecord struct {
	PayloadHash string         // Hash of the original payload
	Order       matching.Order // Order as accepted
	ExpiresAt   time.Time      // Expiration time
}

// IdempotencyStore manages idempotency records
type IdempotencyStore struct {
	mu      sync.RWMutex
	records map[string]*IdempotencyRecord
	ttl     time.Duration
	now     func() time.Time
}

// NewIdempotencyStore creates a new idempotency store
func NewIdempotencyStore(ttl time.Duration, now func() time.Time) *IdempotencyStore {
	if now == nil {
		now = time.Now
	}
	return &IdempotencyStore{
		records: make(map[string]*IdempotencyRecord),
		ttl:     ttl,
		now:     now,
	}
}

// Check checks if a submission is a duplicate or a conflict
// Returns:
// - (nil, nil) if not seen before (should execute)
// - (record, nil) if duplicate with same payload (return cached order)
// - (nil, error) if conflict with different payload
func (s *IdempotencyStore) Check(key IdempotencyKey, payloadHash string) (*IdempotencyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, exists := s.records[key.String()]
	if !exists {
		return nil, nil
	}

	// Expired records count as unseen
	if s.now().After(record.ExpiresAt) {
		return nil, nil
	}

	if record.PayloadHash != payloadHash {
		return nil, &matching.ConflictError{
			Kind:   "idempotency_key",
			ID:     key.IdempotencyKey,
			Reason: matching.ReasonPayloadMismatch,
		}
	}

	cp := *record
	return &cp, nil
}

// Store stores the accepted order for future idempotency checks
func (s *IdempotencyStore) Store(key IdempotencyKey, payloadHash string, order matching.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[key.String()] = &IdempotencyRecord{
		PayloadHash: payloadHash,
		Order:       order,
		ExpiresAt:   s.now().Add(s.ttl),
	}
}

// Cleanup removes expired records and returns how many were removed
func (s *IdempotencyStore) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, record := range s.records {
		if now.After(record.ExpiresAt) {
			delete(s.records, key)
			removed++
		}
	}
	return removed
}

// Size returns the number of records in the store (for testing)
func (s *IdempotencyStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// orderPayload is the hashed shape of a submission; Price has no exported fields
type orderPayload struct {
	FundID    string `json:"fund_id"`
	AccountID string `json:"account_id"`
	Side      string `json:"side"`
	Price     string `json:"price"`
	Quantity  int64  `json:"quantity"`
}

// ComputePayloadHash computes SHA256 hash of the payload
func ComputePayloadHash(order matching.NewOrder) (string, error) {
	data, err := json.Marshal(orderPayload{
		FundID:    order.FundID,
		AccountID: order.AccountID,
		Side:      string(order.Side),
		Price:     order.Price.String(),
		Quantity:  order.Quantity,
	})
	if err != nil {
		return "", err
	}
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%x", hash), nil
}
