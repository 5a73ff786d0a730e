package order

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"keel/internal/logger"
	"keel/internal/pkg/circuit"
	"keel/internal/telemetry"
	"keel/internal/venue"
)

var (
	ErrOrderNotFound       = errors.New("order not found")
	ErrStatusMustBePending = errors.New("order status must be pending")
	ErrUnknownVenue        = errors.New("unknown venue")
	ErrVenueUnavailable    = errors.New("venue unavailable")
)

const (
	breakerThreshold = 5
	breakerTimeout   = 30 * time.Second
)

// Pipeline enqueues, submits, amends, and cancels orders against venue
// adapters. Adapter calls run in their own goroutines so callers (advisor
// actors) never block on the network; results come back as predicate-gated
// store transitions, each firing the order's update callback exactly once.
type Pipeline struct {
	store    *Store
	adapters map[string]venue.Adapter
	breakers map[string]*circuit.Breaker
	events   telemetry.Sink
	wg       sync.WaitGroup
}

func NewPipeline(store *Store, adapters map[string]venue.Adapter, events telemetry.Sink) *Pipeline {
	if store == nil {
		store = NewStore()
	}
	if events == nil {
		events = telemetry.Nop{}
	}
	breakers := make(map[string]*circuit.Breaker, len(adapters))
	for id := range adapters {
		breakers[id] = circuit.NewBreaker(id, breakerThreshold, breakerTimeout, events)
	}
	return &Pipeline{
		store:    store,
		adapters: adapters,
		breakers: breakers,
		events:   events,
	}
}

func (p *Pipeline) Store() *Store {
	return p.store
}

// Close waits for in-flight adapter tasks to finish.
func (p *Pipeline) Close() {
	p.wg.Wait()
}

// LimitRequest describes a buy or sell limit order to enqueue.
type LimitRequest struct {
	VenueID     string
	AccountID   string
	Symbol      string
	Price       decimal.Decimal
	Size        decimal.Decimal
	TimeInForce TimeInForce
	Callback    *Callback
}

// BuyLimit enqueues a buy limit order and dispatches it to the venue
// asynchronously. The returned snapshot has status enqueued.
func (p *Pipeline) BuyLimit(ctx context.Context, req LimitRequest) (Order, error) {
	return p.enqueueLimit(ctx, SideBuy, req)
}

// SellLimit is the sell-side counterpart of BuyLimit.
func (p *Pipeline) SellLimit(ctx context.Context, req LimitRequest) (Order, error) {
	return p.enqueueLimit(ctx, SideSell, req)
}

func (p *Pipeline) enqueueLimit(ctx context.Context, side Side, req LimitRequest) (Order, error) {
	if _, ok := p.adapters[req.VenueID]; !ok {
		return Order{}, fmt.Errorf("%w: %s", ErrUnknownVenue, req.VenueID)
	}
	tif := req.TimeInForce
	if tif == "" {
		tif = GoodTillCancel
	}
	snap := p.store.Add(Order{
		VenueID:     req.VenueID,
		AccountID:   req.AccountID,
		Symbol:      req.Symbol,
		Side:        side,
		Type:        TypeLimit,
		TimeInForce: tif,
		Price:       req.Price,
		Size:        req.Size,
		Callback:    req.Callback,
	})
	p.transitioned(nil, snap)

	p.wg.Add(1)
	go p.submit(ctx, snap)
	return snap, nil
}

func (p *Pipeline) submit(ctx context.Context, snap Order) {
	defer p.wg.Done()
	defer p.recoverToError(snap.ClientID, StatusEnqueued)

	ad := p.adapters[snap.VenueID]
	if !p.allow(snap) {
		p.fail(snap.ClientID, StatusEnqueued, ErrVenueUnavailable.Error())
		return
	}
	res, err := ad.CreateOrder(ctx, snap.AccountID, venue.CreateRequest{
		ClientID:    snap.ClientID,
		Symbol:      snap.Symbol,
		Side:        string(snap.Side),
		Type:        string(snap.Type),
		TimeInForce: string(snap.TimeInForce),
		Price:       snap.Price,
		Size:        snap.Size,
	})
	p.breakers[snap.VenueID].Record(err)
	if err != nil {
		p.fail(snap.ClientID, StatusEnqueued, err.Error())
		return
	}

	old, upd, ok := p.store.FindByAndUpdate(
		Query{ClientID: snap.ClientID, Status: StatusEnqueued},
		Update{Status: StatusPending, ServerID: &res.ServerID},
	)
	if ok {
		p.transitioned(&old, upd)
	}
}

// Cancel gates a pending order into canceling and asks the venue to pull
// it. A missing order returns ErrOrderNotFound; a known order in any other
// state is returned unchanged with ErrStatusMustBePending.
func (p *Pipeline) Cancel(ctx context.Context, clientID string) (Order, error) {
	old, upd, ok := p.store.FindByAndUpdate(
		Query{ClientID: clientID, Status: StatusPending},
		Update{Status: StatusCanceling},
	)
	if !ok {
		cur, found := p.store.Find(clientID)
		if !found {
			return Order{}, ErrOrderNotFound
		}
		logger.Warnf("order: cancel rejected, %s is %s", clientID, cur.Status)
		return cur, ErrStatusMustBePending
	}
	p.transitioned(&old, upd)

	p.wg.Add(1)
	go p.sendCancel(ctx, upd)
	return upd, nil
}

func (p *Pipeline) sendCancel(ctx context.Context, snap Order) {
	defer p.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			p.cancelFailed(snap, fmt.Sprintf("panic: %v", r))
		}
	}()

	ad := p.adapters[snap.VenueID]
	if !p.allow(snap) {
		p.cancelFailed(snap, ErrVenueUnavailable.Error())
		return
	}
	_, err := ad.CancelOrder(ctx, snap.AccountID, snap.ServerID)
	p.breakers[snap.VenueID].Record(err)
	if err != nil {
		p.cancelFailed(snap, err.Error())
		return
	}

	old, upd, ok := p.store.FindByAndUpdate(
		Query{ClientID: snap.ClientID, Status: StatusCanceling},
		Update{Status: StatusCanceled},
	)
	if ok {
		p.transitioned(&old, upd)
	}
}

// cancelFailed leaves the order in canceling; the strategy decides what
// to do next. Not retried here.
func (p *Pipeline) cancelFailed(snap Order, reason string) {
	logger.Warnf("order: cancel of %s failed on %s: %s", snap.ClientID, snap.VenueID, reason)
	p.events.Record(telemetry.Event{
		Kind:     telemetry.KindVenueCancelFailed,
		VenueID:  snap.VenueID,
		Symbol:   snap.Symbol,
		ClientID: snap.ClientID,
		Status:   string(StatusCanceling),
		Reason:   reason,
	})
}

// Amend gates a pending order into amending and forwards the attrs to the
// venue. Fields are applied to the stored order only when the venue
// accepts the amend; rejection moves the order to error.
func (p *Pipeline) Amend(ctx context.Context, clientID string, attrs venue.AmendAttrs) (Order, error) {
	old, upd, ok := p.store.FindByAndUpdate(
		Query{ClientID: clientID, Status: StatusPending},
		Update{Status: StatusAmending},
	)
	if !ok {
		cur, found := p.store.Find(clientID)
		if !found {
			return Order{}, ErrOrderNotFound
		}
		logger.Warnf("order: amend rejected, %s is %s", clientID, cur.Status)
		return cur, ErrStatusMustBePending
	}
	p.transitioned(&old, upd)

	p.wg.Add(1)
	go p.sendAmend(ctx, upd, attrs)
	return upd, nil
}

func (p *Pipeline) sendAmend(ctx context.Context, snap Order, attrs venue.AmendAttrs) {
	defer p.wg.Done()
	defer p.recoverToError(snap.ClientID, StatusAmending)

	ad := p.adapters[snap.VenueID]
	if !p.allow(snap) {
		p.fail(snap.ClientID, StatusAmending, ErrVenueUnavailable.Error())
		return
	}
	_, err := ad.AmendOrder(ctx, snap.AccountID, snap.ServerID, attrs)
	p.breakers[snap.VenueID].Record(err)
	if err != nil {
		p.fail(snap.ClientID, StatusAmending, err.Error())
		return
	}
	p.amendAccepted(snap.ClientID, attrs)
}

func (p *Pipeline) amendAccepted(clientID string, attrs venue.AmendAttrs) {
	upd := Update{Status: StatusPending, Price: attrs.Price, Size: attrs.Size}
	if attrs.TimeInForce != nil {
		tif := TimeInForce(*attrs.TimeInForce)
		upd.TimeInForce = &tif
	}
	old, next, ok := p.store.FindByAndUpdate(
		Query{ClientID: clientID, Status: StatusAmending},
		upd,
	)
	if ok {
		p.transitioned(&old, next)
	}
}

// BulkAmendRequest pairs a client id with the attrs to apply.
type BulkAmendRequest struct {
	ClientID string
	Attrs    venue.AmendAttrs
}

// BulkAmendResult is one per-order outcome of AmendBulk. Err carries the
// gate rejection when the order could not enter amending.
type BulkAmendResult struct {
	Order Order
	Err   error
}

// AmendBulk gates each order into amending and sends one bulk request per
// (venue, account). Per-order venue outcomes resolve asynchronously via
// the usual transitions.
func (p *Pipeline) AmendBulk(ctx context.Context, reqs []BulkAmendRequest) []BulkAmendResult {
	type batchKey struct {
		venueID string
		account string
	}
	type batchEntry struct {
		clientID string
		req      venue.AmendRequest
		attrs    venue.AmendAttrs
	}

	results := make([]BulkAmendResult, 0, len(reqs))
	batches := make(map[batchKey][]batchEntry)

	for _, req := range reqs {
		old, upd, ok := p.store.FindByAndUpdate(
			Query{ClientID: req.ClientID, Status: StatusPending},
			Update{Status: StatusAmending},
		)
		if !ok {
			cur, found := p.store.Find(req.ClientID)
			if !found {
				results = append(results, BulkAmendResult{Err: ErrOrderNotFound})
				continue
			}
			results = append(results, BulkAmendResult{Order: cur, Err: ErrStatusMustBePending})
			continue
		}
		p.transitioned(&old, upd)
		results = append(results, BulkAmendResult{Order: upd})

		key := batchKey{venueID: upd.VenueID, account: upd.AccountID}
		batches[key] = append(batches[key], batchEntry{
			clientID: upd.ClientID,
			req:      venue.AmendRequest{ServerID: upd.ServerID, Attrs: req.Attrs},
			attrs:    req.Attrs,
		})
	}

	for key, entries := range batches {
		key, entries := key, entries
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					for _, e := range entries {
						p.fail(e.clientID, StatusAmending, fmt.Sprintf("panic: %v", r))
					}
				}
			}()

			ad := p.adapters[key.venueID]
			venueReqs := make([]venue.AmendRequest, 0, len(entries))
			for _, e := range entries {
				venueReqs = append(venueReqs, e.req)
			}
			outcomes, err := ad.AmendOrders(ctx, key.account, venueReqs)
			p.breakers[key.venueID].Record(err)
			if err != nil {
				for _, e := range entries {
					p.fail(e.clientID, StatusAmending, err.Error())
				}
				return
			}

			byServer := make(map[string]batchEntry, len(entries))
			for _, e := range entries {
				byServer[e.req.ServerID] = e
			}
			for _, out := range outcomes {
				e, ok := byServer[out.ServerID]
				if !ok {
					continue
				}
				if out.Err != nil {
					p.fail(e.clientID, StatusAmending, out.Err.Error())
					continue
				}
				p.amendAccepted(e.clientID, e.attrs)
			}
		}()
	}
	return results
}

// allow consults the venue's breaker; the breaker itself reports trips to
// telemetry.
func (p *Pipeline) allow(snap Order) bool {
	br := p.breakers[snap.VenueID]
	return br == nil || br.Allow()
}

// fail moves an order from the given status to error, recording the venue
// reason. A lost race (order already moved on) is a no-op.
func (p *Pipeline) fail(clientID string, from Status, reason string) {
	old, upd, ok := p.store.FindByAndUpdate(
		Query{ClientID: clientID, Status: from},
		Update{Status: StatusError, ErrorReason: &reason},
	)
	if ok {
		p.transitioned(&old, upd)
	}
}

// recoverToError converts a panic in an adapter task into status=error on
// the owning order; it must never propagate to an advisor.
func (p *Pipeline) recoverToError(clientID string, from Status) {
	if r := recover(); r != nil {
		p.fail(clientID, from, fmt.Sprintf("panic: %v", r))
	}
}

// transitioned emits the canonical log line, journals the transition, and
// fires the order's update callback — exactly once per transition.
func (p *Pipeline) transitioned(old *Order, upd Order) {
	logger.Order(upd.LogLine())
	p.events.Record(telemetry.Event{
		Kind:     telemetry.KindOrderTransition,
		VenueID:  upd.VenueID,
		Symbol:   upd.Symbol,
		ClientID: upd.ClientID,
		Status:   string(upd.Status),
		Reason:   upd.ErrorReason,
	})
	upd.fire(old)
}
