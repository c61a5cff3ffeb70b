// Package attestation persists signed evidence of each successfully
// submitted sub-batch to an embedded bbolt database. Attestation failures
// are recovered locally: the price feed's correctness never depends on
// attestation durability.
package attestation

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	bolt "go.etcd.io/bbolt"

	"github.com/r3e-network/price-oracle/internal/types"
	"github.com/r3e-network/price-oracle/internal/wallet"
)

var recordsBucket = []byte("attestations")

// Store writes AttestationRecords keyed by batchId and prunes them by age.
type Store struct {
	db     *bolt.DB
	signer wallet.Signer
	log    zerolog.Logger
}

// Open opens (creating if absent) the bbolt database at path and ensures
// its bucket exists.
func Open(path string, signer wallet.Signer, log zerolog.Logger) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open attestation store: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(recordsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init attestation bucket: %w", err)
	}
	return &Store{db: db, signer: signer, log: log}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Record signs and persists one AttestationRecord for a successfully
// submitted sub-batch. A storage or signing failure is logged and
// swallowed — it must never fail the caller's submission.
func (s *Store) Record(rec types.AttestationRecord) {
	payload, err := json.Marshal(rec)
	if err != nil {
		s.log.Warn().Err(err).Str("batchId", rec.BatchID).Msg("attestation: marshal failed, dropping")
		return
	}

	if s.signer != nil {
		sig, err := s.signer.Sign(payload)
		if err != nil {
			s.log.Warn().Err(err).Str("batchId", rec.BatchID).Msg("attestation: signing failed, storing unsigned")
		} else {
			rec.Signature = fmt.Sprintf("%x", sig)
			payload, _ = json.Marshal(rec)
		}
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(recordsBucket)
		return b.Put(key(rec.BatchID, rec.CreatedAt), payload)
	})
	if err != nil {
		s.log.Warn().Err(err).Str("batchId", rec.BatchID).Msg("attestation: write failed")
	}
}

// Get returns the stored AttestationRecord for batchId, if any.
func (s *Store) Get(batchID string) (types.AttestationRecord, bool, error) {
	var rec types.AttestationRecord
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(recordsBucket)
		c := b.Cursor()
		prefix := []byte(batchID + "|")
		for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			found = true
			return nil
		}
		return nil
	})
	return rec, found, err
}

// CleanupOldAttestations removes every record older than the retention
// window (days) and returns the count removed.
func (s *Store) CleanupOldAttestations(days int) (int, error) {
	cutoff := time.Now().AddDate(0, 0, -days)
	removed := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(recordsBucket)
		c := b.Cursor()
		var toDelete [][]byte
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var rec types.AttestationRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				continue
			}
			if rec.CreatedAt.Before(cutoff) {
				toDelete = append(toDelete, append([]byte(nil), k...))
			}
		}
		for _, k := range toDelete {
			if err := b.Delete(k); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	return removed, err
}

func key(batchID string, createdAt time.Time) []byte {
	return []byte(fmt.Sprintf("%s|%020d", batchID, createdAt.UnixNano()))
}

func hasPrefix(b, prefix []byte) bool {
	if len(b) < len(prefix) {
		return false
	}
	for i := range prefix {
		if b[i] != prefix[i] {
			return false
		}
	}
	return true
}
