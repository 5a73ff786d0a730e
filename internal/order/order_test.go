package order

import (
	"regexp"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

var logLineRe = regexp.MustCompile(`^\[order:([^,]+),([a-z]+),([^,]+),([^,]+),([^,]+),(buy|sell),(limit),(fok|gtc|ioc),([^,]+),([^,\]]+)(,[^\]]+)?\]$`)

func TestOrderLogLine(t *testing.T) {
	o := Order{
		ClientID:    "11111111-2222-3333-4444-555555555555",
		VenueID:     "exchange_a",
		AccountID:   "main",
		Symbol:      "btc_usd",
		Side:        SideBuy,
		Type:        TypeLimit,
		TimeInForce: GoodTillCancel,
		Price:       decimal.RequireFromString("100.1"),
		Size:        decimal.RequireFromString("0.1"),
		Status:      StatusEnqueued,
	}

	t.Run("canonical format", func(t *testing.T) {
		line := o.LogLine()
		assert.Equal(t,
			"[order:11111111-2222-3333-4444-555555555555,enqueued,exchange_a,main,btc_usd,buy,limit,gtc,100.1,0.1]",
			line)
		assert.Regexp(t, logLineRe, line)
	})

	t.Run("error reason only on error status", func(t *testing.T) {
		o := o
		o.ErrorReason = "unknown_error"
		assert.NotContains(t, o.LogLine(), "unknown_error")

		o.Status = StatusError
		line := o.LogLine()
		assert.Equal(t,
			"[order:11111111-2222-3333-4444-555555555555,error,exchange_a,main,btc_usd,buy,limit,gtc,100.1,0.1,unknown_error]",
			line)
		assert.Regexp(t, logLineRe, line)
	})
}

func TestStatusTerminal(t *testing.T) {
	assert.True(t, StatusCanceled.Terminal())
	assert.True(t, StatusError.Terminal())
	assert.False(t, StatusEnqueued.Terminal())
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusAmending.Terminal())
	assert.False(t, StatusCanceling.Terminal())
}
