package fund

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrFundNotFound = errors.New("fund not found")
	ErrInvalidSpec  = errors.New("invalid fund spec")
)

// Spec defines precision and reference price of one fund unit class.
// Prices are scaled by PriceScale, unit quantities by UnitScale.
type Spec struct {
	FundID     string
	Name       string
	PriceScale int
	UnitScale  int
	NAV        int64 // 0 when unknown
	NAVAsOf    time.Time
}

// Validate validates the spec
func (s Spec) Validate() error {
	if strings.TrimSpace(s.FundID) == "" {
		return fmt.Errorf("%w: fund_id required", ErrInvalidSpec)
	}
	if s.PriceScale < 0 || s.PriceScale > 12 {
		return fmt.Errorf("%w: price scale %d out of range", ErrInvalidSpec, s.PriceScale)
	}
	if s.UnitScale < 0 || s.UnitScale > 12 {
		return fmt.Errorf("%w: unit scale %d out of range", ErrInvalidSpec, s.UnitScale)
	}
	if s.NAV < 0 {
		return fmt.Errorf("%w: negative NAV", ErrInvalidSpec)
	}
	return nil
}

// ParsePrice parses a decimal price string for this fund
func (s Spec) ParsePrice(value string) (int64, error) {
	return ParseScaledInt(value, s.PriceScale)
}

// ParseUnits parses a decimal unit quantity string for this fund
func (s Spec) ParseUnits(value string) (int64, error) {
	return ParseScaledInt(value, s.UnitScale)
}

func (s Spec) FormatPrice(v int64) string { return FormatScaledInt(v, s.PriceScale) }
func (s Spec) FormatUnits(v int64) string { return FormatScaledInt(v, s.UnitScale) }

// FormatUnitTotal formats a sum of scaled units, which may exceed int64
func (s Spec) FormatUnitTotal(v decimal.Decimal) string {
	return v.Shift(-int32(s.UnitScale)).String()
}

// Catalog resolves fund specs and NAVs
type Catalog interface {
	// Get returns the spec of a fund, ErrFundNotFound if unknown
	Get(fundID string) (Spec, error)

	// List returns all funds sorted by ID
	List() []Spec

	// NAV returns the current NAV of a fund in price units
	NAV(fundID string) (int64, bool)

	// SetNAV publishes a new NAV for a known fund
	SetNAV(fundID string, nav int64, asOf time.Time) error
}

// MemoryCatalog is an in-memory Catalog
type MemoryCatalog struct {
	mu    sync.RWMutex
	funds map[string]Spec
}

// NewMemoryCatalog creates a catalog holding the given specs
func NewMemoryCatalog(specs ...Spec) (*MemoryCatalog, error) {
	c := &MemoryCatalog{funds: make(map[string]Spec, len(specs))}
	for _, s := range specs {
		if err := c.Upsert(s); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Upsert creates or replaces a fund spec
func (c *MemoryCatalog) Upsert(spec Spec) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	spec.FundID = strings.ToUpper(strings.TrimSpace(spec.FundID))

	c.mu.Lock()
	defer c.mu.Unlock()
	c.funds[spec.FundID] = spec
	return nil
}

// SetNAV updates the NAV of a known fund
func (c *MemoryCatalog) SetNAV(fundID string, nav int64, asOf time.Time) error {
	if nav <= 0 {
		return fmt.Errorf("%w: NAV must be positive", ErrInvalidAmount)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := normalize(fundID)
	spec, ok := c.funds[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrFundNotFound, fundID)
	}
	spec.NAV = nav
	spec.NAVAsOf = asOf
	c.funds[key] = spec
	return nil
}

func (c *MemoryCatalog) Get(fundID string) (Spec, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	spec, ok := c.funds[normalize(fundID)]
	if !ok {
		return Spec{}, fmt.Errorf("%w: %s", ErrFundNotFound, fundID)
	}
	return spec, nil
}

func (c *MemoryCatalog) List() []Spec {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Spec, 0, len(c.funds))
	for _, s := range c.funds {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FundID < out[j].FundID })
	return out
}

func (c *MemoryCatalog) NAV(fundID string) (int64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	spec, ok := c.funds[normalize(fundID)]
	if !ok || spec.NAV <= 0 {
		return 0, false
	}
	return spec.NAV, true
}

func normalize(fundID string) string {
	return strings.ToUpper(strings.TrimSpace(fundID))
}

// DefaultSpecs is the demo catalog used when no fund list is configured
func DefaultSpecs() []Spec {
	return []Spec{
		{FundID: "EQUITY-GROWTH", Name: "Equity Growth Fund", PriceScale: 4, UnitScale: 3, NAV: 125000},
		{FundID: "BOND-INCOME", Name: "Bond Income Fund", PriceScale: 4, UnitScale: 3, NAV: 102500},
		{FundID: "MONEY-MARKET", Name: "Money Market Fund", PriceScale: 4, UnitScale: 2, NAV: 10000},
	}
}

// ParseSpecList parses "ID:priceScale:unitScale[:nav],..." where nav is a decimal string.
// Example: "EQ-1:4:3:12.5,BOND-2:4:2".
func ParseSpecList(raw string) ([]Spec, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	var specs []Spec
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) < 3 || len(parts) > 4 {
			return nil, fmt.Errorf("%w: %q, want ID:priceScale:unitScale[:nav]", ErrInvalidSpec, entry)
		}
		priceScale, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, fmt.Errorf("%w: price scale in %q", ErrInvalidSpec, entry)
		}
		unitScale, err := strconv.Atoi(parts[2])
		if err != nil {
			return nil, fmt.Errorf("%w: unit scale in %q", ErrInvalidSpec, entry)
		}
		spec := Spec{
			FundID:     normalize(parts[0]),
			Name:       normalize(parts[0]),
			PriceScale: priceScale,
			UnitScale:  unitScale,
		}
		if len(parts) == 4 {
			nav, err := ParseScaledInt(parts[3], priceScale)
			if err != nil {
				return nil, fmt.Errorf("%w: NAV in %q: %v", ErrInvalidSpec, entry, err)
			}
			spec.NAV = nav
		}
		if err := spec.Validate(); err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}
