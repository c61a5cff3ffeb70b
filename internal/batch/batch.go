// Package batch splits a set of AggregatedPrices into submission-sized
// PriceBatches sharing one logical identity.
package batch

import (
	"time"

	"github.com/google/uuid"

	"github.com/r3e-network/price-oracle/internal/types"
)

const (
	// DefaultMaxBatchSize is used when the caller does not override it.
	DefaultMaxBatchSize = 50
	// HardCapBatchSize is the absolute ceiling regardless of configuration.
	HardCapBatchSize = 100
)

// Builder splits AggregatedPrices into PriceBatches.
type Builder struct {
	maxBatchSize int
	now          func() time.Time
	newID        func() string
}

// New creates a Builder. maxBatchSize is clamped to (0, HardCapBatchSize];
// zero or negative falls back to DefaultMaxBatchSize.
func New(maxBatchSize int) *Builder {
	if maxBatchSize <= 0 {
		maxBatchSize = DefaultMaxBatchSize
	}
	if maxBatchSize > HardCapBatchSize {
		maxBatchSize = HardCapBatchSize
	}
	return &Builder{
		maxBatchSize: maxBatchSize,
		now:          time.Now,
		newID:        func() string { return uuid.NewString() },
	}
}

// Build splits prices into one or more PriceBatches of at most
// maxBatchSize entries each. All sub-batches share the same BatchID and
// CreatedAt: the logical batch is one submission cycle, and status
// reflects the worst per-sub-batch outcome. Order is preserved across
// sub-batch boundaries.
func (b *Builder) Build(prices []types.AggregatedPrice) []types.PriceBatch {
	if len(prices) == 0 {
		return []types.PriceBatch{{
			BatchID:   b.newID(),
			CreatedAt: b.now().UTC(),
			Prices:    nil,
		}}
	}

	batchID := b.newID()
	createdAt := b.now().UTC()

	var out []types.PriceBatch
	for start := 0; start < len(prices); start += b.maxBatchSize {
		end := start + b.maxBatchSize
		if end > len(prices) {
			end = len(prices)
		}
		chunk := make([]types.AggregatedPrice, end-start)
		copy(chunk, prices[start:end])
		out = append(out, types.PriceBatch{
			BatchID:   batchID,
			CreatedAt: createdAt,
			Prices:    chunk,
		})
	}
	return out
}
