// Package order implements the order lifecycle: the in-memory store with
// atomic predicate-gated updates, and the pipeline that drives venue
// adapters through the status state machine.
package order

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

type Type string

const TypeLimit Type = "limit"

type TimeInForce string

const (
	FillOrKill        TimeInForce = "fok"
	GoodTillCancel    TimeInForce = "gtc"
	ImmediateOrCancel TimeInForce = "ioc"
)

// Status walks the lifecycle state machine:
//
//	enqueued -> pending -> canceling -> canceled
//	    |         |            |
//	    +-> error +-> amending-+
//	                  |
//	                  +-> pending (amend accepted)
//	                  +-> error   (amend rejected)
//
// canceled and error are terminal; pending is the steady state of a live
// order.
type Status string

const (
	StatusEnqueued  Status = "enqueued"
	StatusPending   Status = "pending"
	StatusAmending  Status = "amending"
	StatusCanceling Status = "canceling"
	StatusCanceled  Status = "canceled"
	StatusError     Status = "error"
)

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusCanceled || s == StatusError
}

// Callback is fired once per status transition with the pre- and
// post-update snapshots. The owner decides where the callback body runs;
// the pipeline only delivers. Opts travel with every invocation.
type Callback struct {
	Fn   func(old *Order, updated Order, opts map[string]any)
	Opts map[string]any
}

// Order is the store's unit of state. Snapshots returned by the store and
// pipeline are value copies; mutating them does not touch the store.
type Order struct {
	ClientID    string
	VenueID     string
	AccountID   string
	Symbol      string
	Side        Side
	Type        Type
	TimeInForce TimeInForce
	Price       decimal.Decimal
	Size        decimal.Decimal
	Status      Status
	ServerID    string
	ErrorReason string
	Callback    *Callback
	EnqueuedAt  time.Time
	UpdatedAt   time.Time
}

// LogLine renders the canonical transition line:
//
//	[order:{client_id},{status},{venue},{account},{symbol},{side},{type},{tif},{price},{size}{,error_reason}?]
//
// error_reason appears only when the order is in the error status.
func (o Order) LogLine() string {
	line := fmt.Sprintf("[order:%s,%s,%s,%s,%s,%s,%s,%s,%s,%s",
		o.ClientID, o.Status, o.VenueID, o.AccountID, o.Symbol,
		o.Side, o.Type, o.TimeInForce, o.Price.String(), o.Size.String())
	if o.Status == StatusError {
		line += "," + o.ErrorReason
	}
	return line + "]"
}

func (o *Order) fire(old *Order) {
	if o.Callback == nil || o.Callback.Fn == nil {
		return
	}
	o.Callback.Fn(old, *o, o.Callback.Opts)
}
