package sweeper

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type fakeRPC struct {
	balance    string
	balanceErr error
	sentTo     string
	sentAmount string
	sendErr    error
}

func (f *fakeRPC) GetBalance(ctx context.Context, assetHash, address string) (string, error) {
	return f.balance, f.balanceErr
}

func (f *fakeRPC) SendToAddress(ctx context.Context, assetHash, toAddress, amount, fromAddress string) (string, error) {
	f.sentTo = toAddress
	f.sentAmount = amount
	return "0xswept", f.sendErr
}

func TestSweep_BelowThresholdDoesNotTransfer(t *testing.T) {
	rpc := &fakeRPC{balance: "0.5"}
	s := New(DefaultConfig("0xgas", "Nattester", "Nfeepayer"), rpc, zerolog.Nop())
	s.Sweep(context.Background())
	assert.Empty(t, rpc.sentTo)
}

func TestSweep_AboveThresholdTransfers(t *testing.T) {
	rpc := &fakeRPC{balance: "5.0"}
	s := New(DefaultConfig("0xgas", "Nattester", "Nfeepayer"), rpc, zerolog.Nop())
	s.Sweep(context.Background())
	assert.Equal(t, "Nfeepayer", rpc.sentTo)
}

func TestSweep_DisabledSkipsBalanceQuery(t *testing.T) {
	rpc := &fakeRPC{balanceErr: errors.New("should not be called")}
	cfg := DefaultConfig("0xgas", "Nattester", "Nfeepayer")
	cfg.Enabled = false
	s := New(cfg, rpc, zerolog.Nop())
	s.Sweep(context.Background())
	assert.Empty(t, rpc.sentTo)
}

func TestSweep_BalanceQueryFailureNeverPanics(t *testing.T) {
	rpc := &fakeRPC{balanceErr: errors.New("rpc down")}
	s := New(DefaultConfig("0xgas", "Nattester", "Nfeepayer"), rpc, zerolog.Nop())
	assert.NotPanics(t, func() { s.Sweep(context.Background()) })
}

func TestSweep_TransferFailureNeverPanics(t *testing.T) {
	rpc := &fakeRPC{balance: "5.0", sendErr: errors.New("send failed")}
	s := New(DefaultConfig("0xgas", "Nattester", "Nfeepayer"), rpc, zerolog.Nop())
	assert.NotPanics(t, func() { s.Sweep(context.Background()) })
}
