// Package wallet is the client side of the external wallet ledger. The
// ledger is authoritative: a balance is only current at the moment it was
// fetched, and every debit/credit is a synchronous call whose success gates
// the corresponding room-state mutation.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

type AdjustKind string

const (
	KindDebit  AdjustKind = "debit"
	KindCredit AdjustKind = "credit"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrUnavailable       = errors.New("wallet unavailable")
)

// Gateway is the narrow interface the round engine depends on; tests inject
// an in-memory implementation.
type Gateway interface {
	Balance(ctx context.Context, userID int64) (int64, error)
	Adjust(ctx context.Context, userID int64, amount int64, kind AdjustKind) (newBalance int64, err error)
}

type balanceRequest struct {
	UserID int64 `json:"user_id"`
}

type balanceReply struct {
	Balance int64 `json:"balance"`
}

type adjustRequest struct {
	UserID int64  `json:"user_id"`
	Amount int64  `json:"amount"`
	Kind   string `json:"kind"`
}

type adjustReply struct {
	NewBalance int64  `json:"new_balance"`
	Error      string `json:"error,omitempty"`
}

// GRPCGateway talks to the wallet service over gRPC using the JSON codec
// (the wallet service is schemaless on purpose; see codec.go).
type GRPCGateway struct {
	conn    *grpc.ClientConn
	timeout time.Duration
}

func NewGRPCGateway(address string) (*GRPCGateway, error) {
	conn, err := grpc.NewClient(address,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	)
	if err != nil {
		return nil, fmt.Errorf("wallet dial: %w", err)
	}
	return &GRPCGateway{conn: conn, timeout: 5 * time.Second}, nil
}

func (g *GRPCGateway) Balance(ctx context.Context, userID int64) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var reply balanceReply
	err := g.conn.Invoke(ctx, "/wallet.Wallet/Balance", &balanceRequest{UserID: userID}, &reply)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return reply.Balance, nil
}

func (g *GRPCGateway) Adjust(ctx context.Context, userID int64, amount int64, kind AdjustKind) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("adjust amount must be positive, got %d", amount)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req := &adjustRequest{UserID: userID, Amount: amount, Kind: string(kind)}
	var reply adjustReply
	if err := g.conn.Invoke(ctx, "/wallet.Wallet/Adjust", req, &reply); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if reply.Error == "insufficient_funds" {
		return 0, ErrInsufficientFunds
	}
	if reply.Error != "" {
		return 0, fmt.Errorf("wallet rejected adjustment: %s", reply.Error)
	}
	return reply.NewBalance, nil
}

func (g *GRPCGateway) Close() error {
	return g.conn.Close()
}
