// Package rpcclient talks to the chain node's JSON-RPC 2.0 interface. It
// wraps go-ethereum's generic rpc.Client rather than anything
// Ethereum-specific: the node methods used here (invokefunction,
// gettransaction, getbalance, sendtoaddress) are the NEO-style node API.
package rpcclient

import (
	"context"
	"fmt"
	"time"

	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/rs/zerolog"

	"github.com/r3e-network/price-oracle/internal/oerrors"
	"github.com/r3e-network/price-oracle/internal/wallet"
)

// Signer is one signer entry of a node invocation: an account and the
// signature it contributed.
type Signer struct {
	Account   string
	Signature []byte
}

// InvokeResult is the node's response to invokefunction.
type InvokeResult struct {
	State       string `json:"state"`
	GasConsumed string `json:"gasconsumed"`
	Exception   string `json:"exception"`
	TxHash      string `json:"txhash,omitempty"`
}

// TransactionResult is the node's response to gettransaction.
type TransactionResult struct {
	Hash          string `json:"hash"`
	Confirmations int64  `json:"confirmations"`
	BlockHash     string `json:"blockhash,omitempty"`
	VMState       string `json:"vmstate,omitempty"`
}

// Client is a thin, context-aware wrapper around the node's JSON-RPC 2.0
// endpoint.
type Client struct {
	inner *gethrpc.Client
	log   zerolog.Logger
}

// Dial builds a client for the RPC endpoint. For an http(s) endpoint no
// request is made here, so an unreachable node first shows up as an error
// from the first call.
func Dial(ctx context.Context, endpoint string, log zerolog.Logger) (*Client, error) {
	c, err := gethrpc.DialContext(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("dial rpc endpoint: %w", err)
	}
	return &Client{inner: c, log: log}, nil
}

func (c *Client) Close() {
	if c.inner != nil {
		c.inner.Close()
	}
}

// InvokeFunction submits a contract invocation carrying one or more
// witnesses, as built by wallet.DualSigner.SignPayload.
func (c *Client) InvokeFunction(ctx context.Context, scriptHash, method string, params []any, witnesses []wallet.Witness) (*InvokeResult, error) {
	signers := make([]map[string]any, len(witnesses))
	for i, w := range witnesses {
		signers[i] = map[string]any{
			"account":   fmt.Sprintf("%x", w.PublicKeyHash),
			"scopes":    w.Scope,
			"signature": fmt.Sprintf("%x", w.Signature),
		}
	}

	var result InvokeResult
	if err := c.inner.CallContext(ctx, &result, "invokefunction", scriptHash, method, params, signers); err != nil {
		return nil, &oerrors.RPCError{Message: err.Error()}
	}
	if result.Exception != "" {
		return &result, &oerrors.TxFaultError{Reason: result.Exception}
	}
	return &result, nil
}

// GetTransaction polls the node for a submitted transaction's confirmation
// depth.
func (c *Client) GetTransaction(ctx context.Context, txHash string) (*TransactionResult, error) {
	var result TransactionResult
	if err := c.inner.CallContext(ctx, &result, "gettransaction", txHash); err != nil {
		return nil, &oerrors.RPCError{Message: err.Error()}
	}
	return &result, nil
}

// GetBalance returns the native-token balance of address, as a decimal
// string in the node's native unit.
func (c *Client) GetBalance(ctx context.Context, assetHash, address string) (string, error) {
	var result string
	if err := c.inner.CallContext(ctx, &result, "getbalance", assetHash, address); err != nil {
		return "", &oerrors.RPCError{Message: err.Error()}
	}
	return result, nil
}

// SendToAddress executes a native-token transfer, used by the sweeper to
// move surplus balance from the attester account to the fee-payer account.
func (c *Client) SendToAddress(ctx context.Context, assetHash, toAddress, amount, fromAddress string) (string, error) {
	var txHash string
	if err := c.inner.CallContext(ctx, &txHash, "sendtoaddress", assetHash, toAddress, amount, fromAddress); err != nil {
		return "", &oerrors.RPCError{Message: err.Error()}
	}
	return txHash, nil
}

// WaitForConfirmation polls gettransaction up to maxPolls times at the
// given interval. The first poll reporting confirmations >= 1 returns
// success. A network error during a poll is logged and retried within the
// same budget; the loop ending unconfirmed is not itself an error — the
// caller decides the resulting batch status.
func (c *Client) WaitForConfirmation(ctx context.Context, txHash string, maxPolls int, interval time.Duration) (bool, error) {
	for i := 0; i < maxPolls; i++ {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		default:
		}

		tx, err := c.GetTransaction(ctx, txHash)
		if err != nil {
			c.log.Warn().Err(err).Str("txHash", txHash).Int("poll", i+1).Msg("confirmation poll failed, retrying")
		} else if tx.Confirmations >= 1 {
			return true, nil
		}

		if i < maxPolls-1 {
			select {
			case <-time.After(interval):
			case <-ctx.Done():
				return false, ctx.Err()
			}
		}
	}
	return false, nil
}
