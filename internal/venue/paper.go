package venue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tidwall/gjson"
)

var (
	ErrUnknownSymbol = errors.New("unknown symbol")
	ErrUnknownOrder  = errors.New("unknown order")
)

// Paper is an in-process adapter that accepts orders deterministically.
// Venue params arrive as an opaque JSON document from config:
//
//	{"latency_ms": 5, "reject_symbols": ["btc_usd"]}
type Paper struct {
	name    string
	latency time.Duration
	reject  map[string]bool

	mu     sync.Mutex
	orders map[string]CreateRequest
	seq    uint64
}

// NewPaper builds a paper venue from its raw params document. Unknown
// keys are ignored.
func NewPaper(name string, params string) *Paper {
	p := &Paper{
		name:   name,
		reject: make(map[string]bool),
		orders: make(map[string]CreateRequest),
	}
	if params != "" && gjson.Valid(params) {
		doc := gjson.Parse(params)
		if ms := doc.Get("latency_ms"); ms.Exists() {
			p.latency = time.Duration(ms.Int()) * time.Millisecond
		}
		doc.Get("reject_symbols").ForEach(func(_, v gjson.Result) bool {
			sym := strings.ToLower(strings.TrimSpace(v.String()))
			if sym != "" {
				p.reject[sym] = true
			}
			return true
		})
	}
	return p
}

func (p *Paper) Name() string {
	return p.name
}

func (p *Paper) CreateOrder(ctx context.Context, account string, req CreateRequest) (CreateResult, error) {
	if err := p.sleep(ctx); err != nil {
		return CreateResult{}, err
	}
	if p.reject[strings.ToLower(req.Symbol)] {
		return CreateResult{}, ErrUnknownSymbol
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	serverID := fmt.Sprintf("%s-%d", p.name, atomic.AddUint64(&p.seq, 1))
	p.orders[serverID] = req
	return CreateResult{ServerID: serverID}, nil
}

func (p *Paper) AmendOrder(ctx context.Context, account, serverID string, attrs AmendAttrs) (AmendResult, error) {
	if err := p.sleep(ctx); err != nil {
		return AmendResult{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	req, ok := p.orders[serverID]
	if !ok {
		return AmendResult{}, ErrUnknownOrder
	}
	if attrs.Price != nil {
		req.Price = *attrs.Price
	}
	if attrs.Size != nil {
		req.Size = *attrs.Size
	}
	if attrs.TimeInForce != nil {
		req.TimeInForce = *attrs.TimeInForce
	}
	p.orders[serverID] = req
	return AmendResult{ServerID: serverID}, nil
}

func (p *Paper) AmendOrders(ctx context.Context, account string, reqs []AmendRequest) ([]AmendOutcome, error) {
	out := make([]AmendOutcome, 0, len(reqs))
	for _, req := range reqs {
		_, err := p.AmendOrder(ctx, account, req.ServerID, req.Attrs)
		out = append(out, AmendOutcome{ServerID: req.ServerID, Err: err})
	}
	return out, nil
}

func (p *Paper) CancelOrder(ctx context.Context, account, serverID string) (CancelResult, error) {
	if err := p.sleep(ctx); err != nil {
		return CancelResult{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.orders[serverID]; !ok {
		return CancelResult{}, ErrUnknownOrder
	}
	delete(p.orders, serverID)
	return CancelResult{OrderID: serverID}, nil
}

func (p *Paper) sleep(ctx context.Context) error {
	if p.latency <= 0 {
		return nil
	}
	timer := time.NewTimer(p.latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
