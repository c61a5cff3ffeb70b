// Package submitter converts PriceBatches into signed node invocations,
// submits them, tracks their confirmation status, and exposes that status
// to callers by batchId.
package submitter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/r3e-network/price-oracle/internal/oerrors"
	"github.com/r3e-network/price-oracle/internal/rpcclient"
	"github.com/r3e-network/price-oracle/internal/types"
	"github.com/r3e-network/price-oracle/internal/wallet"
)

// rpcInvoker is the slice of rpcclient.Client this package depends on,
// narrowed to an interface so tests can substitute a fake node.
type rpcInvoker interface {
	InvokeFunction(ctx context.Context, scriptHash, method string, params []any, witnesses []wallet.Witness) (*rpcclient.InvokeResult, error)
	WaitForConfirmation(ctx context.Context, txHash string, maxPolls int, interval time.Duration) (bool, error)
}

// Config controls submission and confirmation behaviour.
type Config struct {
	ContractScriptHash string
	MaxConfirmPolls    int
	ConfirmInterval    time.Duration
}

func DefaultConfig(contractScriptHash string) Config {
	return Config{
		ContractScriptHash: contractScriptHash,
		MaxConfirmPolls:    30,
		ConfirmInterval:    2 * time.Second,
	}
}

// StatusTable is a concurrency-safe map of batchId to its latest observed
// status, shared across the submitter and any read-only API surface.
type StatusTable struct {
	mu     sync.RWMutex
	byID   map[string]types.BatchStatusInfo
}

func NewStatusTable() *StatusTable {
	return &StatusTable{byID: make(map[string]types.BatchStatusInfo)}
}

func (t *StatusTable) set(info types.BatchStatusInfo) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byID[info.BatchID] = info
}

// Get returns the status for batchId, or BatchUnknown if it has never been
// observed.
func (t *StatusTable) Get(batchID string) types.BatchStatusInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()
	info, ok := t.byID[batchID]
	if !ok {
		return types.BatchStatusInfo{BatchID: batchID, Status: types.BatchUnknown}
	}
	return info
}

// Submitter submits PriceBatches via dual-signed node invocations and
// tracks their lifecycle.
type Submitter struct {
	cfg    Config
	rpc    rpcInvoker
	signer *wallet.DualSigner
	status *StatusTable
	log    zerolog.Logger
	wg     sync.WaitGroup
}

func New(cfg Config, rpc *rpcclient.Client, signer *wallet.DualSigner, status *StatusTable, log zerolog.Logger) *Submitter {
	return &Submitter{cfg: cfg, rpc: rpc, signer: signer, status: status, log: log}
}

// newWithInvoker is used by tests to inject a fake rpcInvoker.
func newWithInvoker(cfg Config, rpc rpcInvoker, signer *wallet.DualSigner, status *StatusTable, log zerolog.Logger) *Submitter {
	return &Submitter{cfg: cfg, rpc: rpc, signer: signer, status: status, log: log}
}

// Submit converts a PriceBatch into the four parallel arrays the contract
// expects, signs it with both the attester and fee-payer witnesses, and
// sends it. It returns as soon as the node accepts the transaction
// (status Sent) — confirmation polling runs in its own goroutine against
// the shared status table, so a slow confirmation never blocks the next
// cycle or the next sub-batch in this one. An empty batch is a no-op
// success per the published contract test: no RPC call is made.
func (s *Submitter) Submit(ctx context.Context, batch types.PriceBatch) (types.BatchStatusInfo, error) {
	info := types.BatchStatusInfo{
		BatchID:    batch.BatchID,
		Status:     types.BatchPending,
		Timestamp:  time.Now().UTC(),
		TotalCount: len(batch.Prices),
	}
	s.status.set(info)

	if len(batch.Prices) == 0 {
		info.Status = types.BatchConfirmed
		info.ProcessedCount = 0
		s.status.set(info)
		return info, nil
	}

	if s.signer == nil {
		return s.fail(info, oerrors.ErrCredentials)
	}

	info.Status = types.BatchProcessing
	s.status.set(info)

	symbols := make([]string, len(batch.Prices))
	prices := make([]string, len(batch.Prices))
	timestamps := make([]int64, len(batch.Prices))
	confidences := make([]int, len(batch.Prices))
	for i, p := range batch.Prices {
		scaled, err := types.ScalePrice(p.Price)
		if err != nil {
			return s.fail(info, fmt.Errorf("scale price for %s: %w", p.Symbol, err))
		}
		symbols[i] = p.Symbol
		prices[i] = scaled.String()
		timestamps[i] = p.Timestamp.Unix()
		confidences[i] = p.Confidence
	}

	payload := buildPayload(batch.BatchID, symbols, prices, timestamps, confidences)
	witnesses, err := s.signer.SignPayload(payload)
	if err != nil {
		return s.fail(info, err)
	}

	params := []any{symbols, prices, timestamps, confidences}
	result, err := s.rpc.InvokeFunction(ctx, s.cfg.ContractScriptHash, "updatePriceBatch", params, witnesses)
	if err != nil {
		return s.fail(info, err)
	}

	info.Status = types.BatchSent
	info.TransactionHash = result.TxHash
	s.status.set(info)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.awaitConfirmation(ctx, info)
	}()

	return info, nil
}

// awaitConfirmation runs the confirmation poll to completion and updates
// the shared status table with the outcome. It runs detached from the
// caller that invoked Submit: per spec.md §5, confirmation is a scheduled
// job with its own lifetime, not a step the submission call waits on.
func (s *Submitter) awaitConfirmation(ctx context.Context, info types.BatchStatusInfo) {
	confirmed, err := s.rpc.WaitForConfirmation(ctx, info.TransactionHash, s.cfg.MaxConfirmPolls, s.cfg.ConfirmInterval)
	if err != nil {
		info.Status = types.BatchFailed
		info.ErrorMessage = err.Error()
		s.status.set(info)
		s.log.Error().Err(err).Str("batchId", info.BatchID).Msg("confirmation polling failed")
		return
	}

	if confirmed {
		info.Status = types.BatchConfirmed
		info.ProcessedCount = info.TotalCount
	} else {
		// Confirmation loop exhausted without a definitive answer: the
		// transaction may still land later, so this is Pending, not Failed.
		info.Status = types.BatchPending
	}
	s.status.set(info)
}

// Wait blocks until every confirmation poller started by Submit has
// finished. Production callers may use it to drain in-flight
// confirmations during a graceful shutdown; tests use it to observe a
// poller's outcome deterministically.
func (s *Submitter) Wait() {
	s.wg.Wait()
}

// SubmitAll submits every sub-batch in order and reports the worst
// status observed at submission time (Sent vs. Failed) for the shared
// batchId — confirmation itself resolves later, off the caller's stack,
// so this reflects the submission outcome only, not eventual confirmation.
func (s *Submitter) SubmitAll(ctx context.Context, batches []types.PriceBatch) (types.BatchStatusInfo, error) {
	worst := types.BatchConfirmed
	var lastErr error
	var last types.BatchStatusInfo
	for _, b := range batches {
		info, err := s.Submit(ctx, b)
		last = info
		if err != nil {
			lastErr = err
		}
		if rank(info.Status) > rank(worst) {
			worst = info.Status
		}
	}
	last.Status = worst
	if len(batches) > 0 {
		last.BatchID = batches[0].BatchID
	}
	s.status.set(last)
	return last, lastErr
}

// GetBatchStatus reports the last observed status for batchId.
func (s *Submitter) GetBatchStatus(batchID string) types.BatchStatusInfo {
	return s.status.Get(batchID)
}

func (s *Submitter) fail(info types.BatchStatusInfo, err error) (types.BatchStatusInfo, error) {
	info.Status = types.BatchFailed
	info.ErrorMessage = err.Error()
	s.status.set(info)
	s.log.Error().Err(err).Str("batchId", info.BatchID).Msg("batch submission failed")
	return info, err
}

// rank orders BatchStatus by severity so the worst-of-N outcome can be
// picked with a simple comparison.
func rank(s types.BatchStatus) int {
	switch s {
	case types.BatchConfirmed:
		return 0
	case types.BatchSent, types.BatchProcessing:
		return 1
	case types.BatchPending:
		return 2
	case types.BatchUnknown:
		return 3
	case types.BatchRejected:
		return 4
	case types.BatchFailed:
		return 5
	default:
		return 5
	}
}

func buildPayload(batchID string, symbols []string, prices []string, timestamps []int64, confidences []int) []byte {
	return []byte(fmt.Sprintf("%s|%v|%v|%v|%v", batchID, symbols, prices, timestamps, confidences))
}
