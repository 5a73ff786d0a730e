// Package venue defines the adapter contract the order pipeline drives.
// Adapter implementations (network codecs, REST/WS clients) live outside
// the runtime; the paper adapter here exists for local runs and tests.
package venue

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var ErrNotSupported = errors.New("operation not supported by venue")

// CreateRequest carries the fields a venue needs to accept a new order.
type CreateRequest struct {
	ClientID    string
	Symbol      string
	Side        string
	Type        string
	TimeInForce string
	Price       decimal.Decimal
	Size        decimal.Decimal
}

// CreateResult is the venue's acceptance of an order.
type CreateResult struct {
	ServerID string
}

// AmendAttrs are the order fields a venue allows changing in place. Nil
// pointers mean "leave unchanged".
type AmendAttrs struct {
	Price       *decimal.Decimal
	Size        *decimal.Decimal
	TimeInForce *string
}

// Empty reports whether the amend carries no changes.
func (a AmendAttrs) Empty() bool {
	return a.Price == nil && a.Size == nil && a.TimeInForce == nil
}

type AmendResult struct {
	ServerID string
}

// AmendRequest pairs a server id with its attrs for bulk amends.
type AmendRequest struct {
	ServerID string
	Attrs    AmendAttrs
}

// AmendOutcome is one entry of a bulk amend response.
type AmendOutcome struct {
	ServerID string
	Err      error
}

type CancelResult struct {
	OrderID string
}

// Adapter is the remote venue surface consumed by the pipeline. Calls may
// block on the network; the pipeline always invokes them off the advisor
// goroutine.
type Adapter interface {
	Name() string
	CreateOrder(ctx context.Context, account string, req CreateRequest) (CreateResult, error)
	AmendOrder(ctx context.Context, account, serverID string, attrs AmendAttrs) (AmendResult, error)
	AmendOrders(ctx context.Context, account string, reqs []AmendRequest) ([]AmendOutcome, error)
	CancelOrder(ctx context.Context, account, serverID string) (CancelResult, error)
}
