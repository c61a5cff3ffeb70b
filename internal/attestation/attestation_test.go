package attestation

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r3e-network/price-oracle/internal/types"
)

type fakeSigner struct{}

func (fakeSigner) Sign(payload []byte) ([]byte, error) { return []byte("signed"), nil }
func (fakeSigner) PublicKeyHash() []byte                { return []byte("hash") }

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "attestations.db")
	store, err := Open(path, fakeSigner{}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordAndGet_RoundTrips(t *testing.T) {
	store := openTestStore(t)
	rec := types.AttestationRecord{
		BatchID:        "batch-1",
		CreatedAt:      time.Now().UTC(),
		PriceCount:     1,
		PriceSummaries: []types.PriceSummary{{Symbol: "BTCUSDT", Confidence: 100}},
	}
	store.Record(rec)

	got, found, err := store.Get("batch-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "batch-1", got.BatchID)
	assert.NotEmpty(t, got.Signature)
}

func TestGet_MissingBatchNotFound(t *testing.T) {
	store := openTestStore(t)
	_, found, err := store.Get("does-not-exist")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCleanupOldAttestations_RemovesOnlyStale(t *testing.T) {
	store := openTestStore(t)
	store.Record(types.AttestationRecord{BatchID: "old", CreatedAt: time.Now().AddDate(0, 0, -10)})
	store.Record(types.AttestationRecord{BatchID: "new", CreatedAt: time.Now()})

	removed, err := store.CleanupOldAttestations(7)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, foundOld, _ := store.Get("old")
	_, foundNew, _ := store.Get("new")
	assert.False(t, foundOld)
	assert.True(t, foundNew)
}
