// Package sweeper moves surplus native-token balance out of the attester
// account before the main batch submission. It is an optimisation, never a
// correctness requirement: failures are logged and swallowed.
package sweeper

import (
	"context"

	"github.com/cockroachdb/apd/v3"
	"github.com/rs/zerolog"
)

// rpc is the slice of rpcclient.Client this package needs, narrowed to an
// interface for testability.
type rpc interface {
	GetBalance(ctx context.Context, assetHash, address string) (string, error)
	SendToAddress(ctx context.Context, assetHash, toAddress, amount, fromAddress string) (string, error)
}

// Config controls sweep behaviour.
type Config struct {
	Enabled         bool
	NativeAssetHash string
	AttesterAddress string
	FeePayerAddress string
	MinThreshold    *apd.Decimal // default 1.0 of the native unit
}

func DefaultConfig(assetHash, attesterAddr, feePayerAddr string) Config {
	return Config{
		Enabled:         true,
		NativeAssetHash: assetHash,
		AttesterAddress: attesterAddr,
		FeePayerAddress: feePayerAddr,
		MinThreshold:    apd.New(1, 0),
	}
}

// Sweeper performs the balance check and transfer.
type Sweeper struct {
	cfg    Config
	client rpc
	log    zerolog.Logger
}

// New builds a Sweeper. Transfers it submits are signed by the node's
// wallet for the attester account (sendtoaddress takes fromAddress, not a
// detached witness); the attester's WIF key must be the one unlocked at
// that RPC endpoint.
func New(cfg Config, client rpc, log zerolog.Logger) *Sweeper {
	return &Sweeper{cfg: cfg, client: client, log: log}
}

// Sweep checks the attester's balance and, if it exceeds MinThreshold,
// submits a transfer to the fee-payer address. It never returns an error
// that should abort the caller's submission cycle; all failures are
// logged as warnings.
func (s *Sweeper) Sweep(ctx context.Context) {
	if !s.cfg.Enabled {
		return
	}

	balanceStr, err := s.client.GetBalance(ctx, s.cfg.NativeAssetHash, s.cfg.AttesterAddress)
	if err != nil {
		s.log.Warn().Err(err).Msg("sweep: balance query failed, skipping")
		return
	}

	balance, _, err := apd.NewFromString(balanceStr)
	if err != nil {
		s.log.Warn().Err(err).Str("balance", balanceStr).Msg("sweep: could not parse balance, skipping")
		return
	}

	threshold := s.cfg.MinThreshold
	if threshold == nil {
		threshold = apd.New(1, 0)
	}
	if balance.Cmp(threshold) <= 0 {
		return
	}

	txHash, err := s.client.SendToAddress(ctx, s.cfg.NativeAssetHash, s.cfg.FeePayerAddress, balance.Text('f'), s.cfg.AttesterAddress)
	if err != nil {
		s.log.Warn().Err(err).Msg("sweep: transfer failed")
		return
	}
	s.log.Info().Str("txHash", txHash).Str("amount", balance.Text('f')).Msg("sweep: transferred surplus balance")
}
