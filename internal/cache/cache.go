// Package cache implements the short-TTL observation cache and long-TTL
// supported-symbol cache described in spec.md §4.4.
package cache

import (
	"sync"
	"time"

	"github.com/r3e-network/price-oracle/internal/types"
)

type entry struct {
	observation types.PriceObservation
	expiresAt   time.Time
}

type symbolsEntry struct {
	symbols   []string
	expiresAt time.Time
}

// PriceCache is keyed by (sourceName, kind, key); this implementation keeps
// the two kinds in separate maps since their TTLs and fallback semantics
// differ.
type PriceCache struct {
	mu           sync.RWMutex
	priceTTL     time.Duration
	supportedTTL time.Duration
	prices       map[string]entry        // key: source|symbol
	supported    map[string]symbolsEntry // key: source
}

// New builds a PriceCache with the given TTLs. Defaults from spec.md §4.4
// are 30-60s for prices and 1h for supported-symbol lists.
func New(priceTTL, supportedTTL time.Duration) *PriceCache {
	return &PriceCache{
		priceTTL:     priceTTL,
		supportedTTL: supportedTTL,
		prices:       make(map[string]entry),
		supported:    make(map[string]symbolsEntry),
	}
}

func priceKey(source, symbol string) string { return source + "|" + symbol }

// GetPrice returns a cached, still-fresh observation. ok is false on a miss
// or expiry; callers fall through to the adapter.
func (c *PriceCache) GetPrice(source, symbol string) (types.PriceObservation, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.prices[priceKey(source, symbol)]
	if !ok || time.Now().After(e.expiresAt) {
		return types.PriceObservation{}, false
	}
	return e.observation, true
}

// PutPrice stores an observation, but never caches a non-positive price
// (the cache's never-returns-a-non-positive-price guarantee).
func (c *PriceCache) PutPrice(obs types.PriceObservation) {
	if obs.Price == nil || obs.Price.Sign() <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prices[priceKey(obs.Source, obs.Symbol)] = entry{
		observation: obs,
		expiresAt:   time.Now().Add(c.priceTTL),
	}
}

// GetSupported returns a cached supported-symbols list, a staleness flag,
// and whether anything was found at all (fresh or stale).
func (c *PriceCache) GetSupported(source string) (symbols []string, fresh bool, found bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.supported[source]
	if !ok {
		return nil, false, false
	}
	return e.symbols, !time.Now().After(e.expiresAt), true
}

// PutSupported stores a fresh supported-symbols list for source.
func (c *PriceCache) PutSupported(source string, symbols []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.supported[source] = symbolsEntry{
		symbols:   symbols,
		expiresAt: time.Now().Add(c.supportedTTL),
	}
}

// MissingSymbols returns the subset of symbols not currently fresh in the
// cache for source, so a batch read issues exactly one downstream call for
// the missing set.
func (c *PriceCache) MissingSymbols(source string, symbols []string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var missing []string
	for _, s := range symbols {
		e, ok := c.prices[priceKey(source, s)]
		if !ok || time.Now().After(e.expiresAt) {
			missing = append(missing, s)
		}
	}
	return missing
}
