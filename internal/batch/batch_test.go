package batch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r3e-network/price-oracle/internal/types"
)

func priceFor(symbol string) types.AggregatedPrice {
	return types.AggregatedPrice{Symbol: symbol, Timestamp: time.Now()}
}

func TestBuild_SingleSubBatchWhenUnderLimit(t *testing.T) {
	b := New(50)
	out := b.Build([]types.AggregatedPrice{priceFor("BTCUSDT"), priceFor("ETHUSDT")})
	require.Len(t, out, 1)
	assert.Len(t, out[0].Prices, 2)
}

// TestBuild_SplitsExactly mirrors the S5 end-to-end scenario: 120 prices
// with MaxBatchSize=50 split into three sub-batches of 50/50/20.
func TestBuild_SplitsExactly(t *testing.T) {
	prices := make([]types.AggregatedPrice, 120)
	for i := range prices {
		prices[i] = priceFor("SYM")
	}
	b := New(50)
	out := b.Build(prices)
	require.Len(t, out, 3)
	assert.Len(t, out[0].Prices, 50)
	assert.Len(t, out[1].Prices, 50)
	assert.Len(t, out[2].Prices, 20)
}

func TestBuild_SubBatchesShareBatchIdentity(t *testing.T) {
	prices := make([]types.AggregatedPrice, 75)
	for i := range prices {
		prices[i] = priceFor("SYM")
	}
	b := New(50)
	out := b.Build(prices)
	require.Len(t, out, 2)
	assert.Equal(t, out[0].BatchID, out[1].BatchID)
	assert.Equal(t, out[0].CreatedAt, out[1].CreatedAt)
}

func TestBuild_ConcatenationPreservesOrder(t *testing.T) {
	prices := []types.AggregatedPrice{priceFor("A"), priceFor("B"), priceFor("C")}
	b := New(2)
	out := b.Build(prices)
	require.Len(t, out, 2)
	var concatenated []types.AggregatedPrice
	for _, sub := range out {
		concatenated = append(concatenated, sub.Prices...)
	}
	require.Len(t, concatenated, 3)
	assert.Equal(t, "A", concatenated[0].Symbol)
	assert.Equal(t, "B", concatenated[1].Symbol)
	assert.Equal(t, "C", concatenated[2].Symbol)
}

func TestBuild_MaxBatchSizeOfOne(t *testing.T) {
	b := New(1)
	out := b.Build([]types.AggregatedPrice{priceFor("A"), priceFor("B"), priceFor("C")})
	require.Len(t, out, 3)
	for _, sub := range out {
		assert.Len(t, sub.Prices, 1)
	}
}

func TestBuild_ExactMultiple(t *testing.T) {
	prices := make([]types.AggregatedPrice, 100)
	for i := range prices {
		prices[i] = priceFor("SYM")
	}
	b := New(50)
	out := b.Build(prices)
	require.Len(t, out, 2)
	assert.Len(t, out[0].Prices, 50)
	assert.Len(t, out[1].Prices, 50)
}

func TestNew_ClampsAboveHardCap(t *testing.T) {
	b := New(500)
	assert.Equal(t, HardCapBatchSize, b.maxBatchSize)
}

func TestNew_FallsBackToDefaultWhenNonPositive(t *testing.T) {
	b := New(0)
	assert.Equal(t, DefaultMaxBatchSize, b.maxBatchSize)
}

func TestBuild_EmptyInputYieldsOneEmptyBatch(t *testing.T) {
	b := New(50)
	out := b.Build(nil)
	require.Len(t, out, 1)
	assert.Empty(t, out[0].Prices)
}
