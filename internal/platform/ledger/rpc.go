// Package ledger is the adapter to the settlement network. It talks to a
// Solana JSON-RPC node through solana-go and builds unsigned System Program
// transfers.
package ledger

import (
	"context"
	"errors"
	"strings"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
)

var (
	ErrRejected         = errors.New("ledger rejected the transaction")
	ErrAnchorExpired    = errors.New("recent anchor expired before confirmation")
	ErrUnexpectedResult = errors.New("unexpected ledger response")
)

var commitmentRank = map[rpc.ConfirmationStatusType]int{
	rpc.ConfirmationStatusProcessed: 1,
	rpc.ConfirmationStatusConfirmed: 2,
	rpc.ConfirmationStatusFinalized: 3,
}

// reached reports whether a signature status satisfies the target commitment
func reached(status rpc.ConfirmationStatusType, target rpc.CommitmentType) bool {
	want, ok := commitmentRank[rpc.ConfirmationStatusType(target)]
	if !ok {
		want = commitmentRank[rpc.ConfirmationStatusConfirmed]
	}
	return commitmentRank[status] >= want
}

func asRPCError(err error) (*jsonrpc.RPCError, bool) {
	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr, true
	}
	return nil, false
}

func alreadyProcessed(err *jsonrpc.RPCError) bool {
	text := strings.ToLower(err.Error())
	if data, ok := err.Data.(map[string]interface{}); ok {
		if v, ok := data["err"].(string); ok {
			text += " " + strings.ToLower(v)
		}
	}
	return strings.Contains(text, "already been processed") || strings.Contains(text, "alreadyprocessed")
}

// withTimeout bounds a single node call
func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.requestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.requestTimeout)
}
