package contract

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	owner    = "Nowner"
	oracle1  = "Noracle1"
	teeAcct1 = "Ntee1"
)

func newReadyContract() *Contract {
	c := New()
	c.Initialize(owner, teeAcct1)
	c.AddOracle(owner, oracle1)
	return c
}

func TestInitialize_SucceedsOnceOnly(t *testing.T) {
	c := New()
	assert.True(t, c.Initialize(owner, ""))
	assert.False(t, c.Initialize("someone-else", ""))
	assert.Equal(t, owner, c.GetOwner())
}

func TestAdminOps_RequireOwner(t *testing.T) {
	c := newReadyContract()
	assert.False(t, c.SetPaused("not-owner", true))
	assert.True(t, c.SetPaused(owner, true))
	assert.True(t, c.IsPaused())
}

func TestRemoveOracle_NonExistentReturnsFalse(t *testing.T) {
	c := newReadyContract()
	assert.False(t, c.RemoveOracle(owner, "ghost"))
}

func TestDualWitness_RequiresTwoDistinctRoles(t *testing.T) {
	c := newReadyContract()
	// Single signer satisfying both roles does not count twice.
	c.AddTeeAccount(owner, oracle1)
	ok := c.checkDualWitnessLocked([]string{oracle1})
	assert.False(t, ok)

	ok = c.checkDualWitnessLocked([]string{oracle1, teeAcct1})
	assert.True(t, ok)
}

// TestS1_UpdateAcceptedAndEventEmitted mirrors the S1 scenario: a
// reconciled BTCUSDT price of 50050 scaled to 10^8 is accepted with full
// confidence and emits PriceUpdated.
func TestS1_UpdateAcceptedAndEventEmitted(t *testing.T) {
	c := newReadyContract()
	price := big.NewInt(5_005_000_000_000) // 50050 * 10^8
	ok := c.UpdatePrice([]string{oracle1, teeAcct1}, "BTCUSDT", price, time.Now().Unix(), 100)
	require.True(t, ok)

	got := c.GetPrice("BTCUSDT")
	assert.Equal(t, 0, got.Cmp(price))

	events := c.DrainEvents()
	found := false
	for _, e := range events {
		if e.Type == "PriceUpdated" {
			found = true
		}
	}
	assert.True(t, found)
}

// TestS2_ConfidenceSixtyAccepted mirrors S2: confidence
// 60 clears the >=50 minimum and is accepted.
func TestS2_ConfidenceSixtyAccepted(t *testing.T) {
	c := newReadyContract()
	ok := c.UpdatePrice([]string{oracle1, teeAcct1}, "ETHUSDT", big.NewInt(300_000_000_000), time.Now().Unix(), 60)
	assert.True(t, ok)
}

func TestConfidenceBelowFifty_Rejected(t *testing.T) {
	c := newReadyContract()
	ok := c.UpdatePrice([]string{oracle1, teeAcct1}, "ETHUSDT", big.NewInt(300_000_000_000), time.Now().Unix(), 49)
	assert.False(t, ok)
}

// TestS3_DeviationGuardRejectsWithConfidence80 mirrors S3: a 15%
// jump with confidence 80 (below the doubled minimum) is rejected and
// emits no PriceUpdated event.
func TestS3_DeviationGuardRejectsWithConfidence80(t *testing.T) {
	c := newReadyContract()
	now := time.Now().Unix()
	require.True(t, c.UpdatePrice([]string{oracle1, teeAcct1}, "NEOUSDT", big.NewInt(10_00000000), now-10, 100))
	c.DrainEvents()

	ok := c.UpdatePrice([]string{oracle1, teeAcct1}, "NEOUSDT", big.NewInt(11_50000000), now, 80)
	assert.False(t, ok)

	for _, e := range c.DrainEvents() {
		assert.NotEqual(t, "PriceUpdated", e.Type)
	}
}

// TestS4_DeviationGuardAcceptsWithConfidence100 mirrors S4: the same 15%
// jump with confidence 100 is accepted.
func TestS4_DeviationGuardAcceptsWithConfidence100(t *testing.T) {
	c := newReadyContract()
	now := time.Now().Unix()
	require.True(t, c.UpdatePrice([]string{oracle1, teeAcct1}, "NEOUSDT", big.NewInt(10_00000000), now-10, 100))
	c.DrainEvents()

	ok := c.UpdatePrice([]string{oracle1, teeAcct1}, "NEOUSDT", big.NewInt(11_50000000), now, 100)
	assert.True(t, ok)
	assert.Equal(t, 0, c.GetPrice("NEOUSDT").Cmp(big.NewInt(11_50000000)))
}

func TestMonotonicTimestamp_RejectsNonIncreasing(t *testing.T) {
	c := newReadyContract()
	now := time.Now().Unix()
	require.True(t, c.UpdatePrice([]string{oracle1, teeAcct1}, "BTCUSDT", big.NewInt(1), now, 100))
	ok := c.UpdatePrice([]string{oracle1, teeAcct1}, "BTCUSDT", big.NewInt(2), now, 100)
	assert.False(t, ok)
}

func TestFreshnessGuard_RejectsStaleTimestamp(t *testing.T) {
	c := newReadyContract()
	ok := c.UpdatePrice([]string{oracle1, teeAcct1}, "BTCUSDT", big.NewInt(1_00000000), time.Now().Unix()-3601, 100)
	assert.False(t, ok)
}

func TestPausedContract_RejectsUpdate(t *testing.T) {
	c := newReadyContract()
	c.SetPaused(owner, true)
	ok := c.UpdatePrice([]string{oracle1, teeAcct1}, "BTCUSDT", big.NewInt(1_00000000), time.Now().Unix(), 100)
	assert.False(t, ok)
}

func TestOracleCountBelowMinimum_RejectsUpdate(t *testing.T) {
	c := New()
	c.Initialize(owner, teeAcct1)
	c.SetMinOracles(owner, 2)
	c.AddOracle(owner, oracle1)
	ok := c.UpdatePrice([]string{oracle1, teeAcct1}, "BTCUSDT", big.NewInt(1_00000000), time.Now().Unix(), 100)
	assert.False(t, ok)
}

func TestMissingSymbol_ReturnsZeroScalars(t *testing.T) {
	c := newReadyContract()
	price, ts, conf := c.GetPriceData("GHOST")
	assert.Equal(t, int64(0), int64(price.Sign()))
	assert.Equal(t, int64(0), ts)
	assert.Equal(t, 0, conf)
}

func TestUpdatePriceBatch_SkipsFailingEntryKeepsRest(t *testing.T) {
	c := newReadyContract()
	now := time.Now().Unix()
	applied := c.UpdatePriceBatch([]string{oracle1, teeAcct1}, []PriceUpdate{
		{Symbol: "BTCUSDT", Price: big.NewInt(1_00000000), Timestamp: now, Confidence: 100},
		{Symbol: "ETHUSDT", Price: big.NewInt(-1), Timestamp: now, Confidence: 100}, // invalid: price <= 0
		{Symbol: "NEOUSDT", Price: big.NewInt(1_00000000), Timestamp: now, Confidence: 100},
	})
	assert.Equal(t, 2, applied)
	assert.Equal(t, 0, c.GetPrice("ETHUSDT").Sign())
}

func TestReentrancyGuard_RejectsNestedCall(t *testing.T) {
	c := newReadyContract()
	c.mu.Lock()
	c.reentrancyGuard = true
	c.mu.Unlock()

	ok := c.UpdatePrice([]string{oracle1, teeAcct1}, "BTCUSDT", big.NewInt(1_00000000), time.Now().Unix(), 100)
	assert.False(t, ok)
}
