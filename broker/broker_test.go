package broker

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAction(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want Action
	}{
		{"buy", Buy},
		{" Buy ", Buy},
		{"BuyToCover", BuyToCover},
		{"buy_to_cover", BuyToCover},
		{"SELL", Sell},
		{"sellshort", SellShort},
		{"sell_short", SellShort},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseAction(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseAction("hold")
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestDirectionSides(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Long, DirectionOf(Buy))
	assert.Equal(t, Long, DirectionOf(BuyToCover))
	assert.Equal(t, Short, DirectionOf(Sell))
	assert.Equal(t, Short, DirectionOf(SellShort))

	assert.True(t, Long.IsEntry(BuyToCover))
	assert.True(t, Long.IsExit(SellShort))
	assert.True(t, Short.IsEntry(Sell))
	assert.True(t, Short.IsExit(Buy))
	assert.False(t, Short.IsExit(Sell))

	assert.Equal(t, "long", Long.String())
	assert.Equal(t, "S", Short.Tag())
}

func TestExecutionValidate(t *testing.T) {
	t.Parallel()

	ok := Execution{
		Instrument: "ES 12-25",
		Order:      Order{Action: Sell},
		Price:      5000,
		Quantity:   -2,
		Time:       time.Now(),
	}
	require.NoError(t, ok.Validate())
	assert.Equal(t, 2, ok.Qty())

	zero := ok
	zero.Quantity = 0
	assert.ErrorIs(t, zero.Validate(), ErrInvalidExecution)

	noSide := ok
	noSide.Order.Action = ActionUnknown
	assert.ErrorIs(t, noSide.Validate(), ErrUnknownAction)

	noInstr := ok
	noInstr.Instrument = " "
	assert.ErrorIs(t, noInstr.Validate(), ErrInvalidExecution)

	for _, px := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		bad := ok
		bad.Price = px
		assert.ErrorIs(t, bad.Validate(), ErrInvalidExecution)
	}
}

func TestOrderBook(t *testing.T) {
	t.Parallel()

	b := NewOrderBook()
	b.Apply(Order{ID: "1", Instrument: "ES 12-25", Action: Sell, LimitPrice: 105})
	b.Apply(Order{ID: "2", Instrument: "NQ 12-25", Action: Sell, StopPrice: 90})
	b.Apply(Order{ID: "3", Instrument: "es 12-25", Action: Sell, StopPrice: 95})

	got := b.ForInstrument("ES 12-25")
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].ID)
	assert.Equal(t, "3", got[1].ID)

	// update keeps position
	b.Apply(Order{ID: "1", Instrument: "ES 12-25", Action: Sell, LimitPrice: 107})
	got = b.ForInstrument("ES 12-25")
	assert.Equal(t, 107.0, got[0].LimitPrice)

	b.Apply(Order{ID: "1", Instrument: "ES 12-25", State: OrderCancelled})
	got = b.ForInstrument("ES 12-25")
	require.Len(t, got, 1)
	assert.Equal(t, "3", got[0].ID)

	b.Apply(Order{Instrument: "ES 12-25", Action: Sell, LimitPrice: 1})
	b.Apply(Order{Instrument: "ES 12-25", Action: Sell, LimitPrice: 2})
	assert.Equal(t, 4, b.Len())
}

func TestOrderBookWithoutIDs(t *testing.T) {
	t.Parallel()

	b := NewOrderBook()
	target := Order{Instrument: "ES 12-25", Action: Sell, LimitPrice: 105, Label: "Target"}

	for i := 0; i < 1000; i++ {
		b.Apply(target)
	}
	assert.Equal(t, 1, b.Len())

	filled := target
	filled.State = OrderFilled
	filled.Instrument = "es 12-25"
	b.Apply(filled)
	assert.Empty(t, b.ForInstrument("ES 12-25"))
	assert.Equal(t, 0, b.Len())

	// a terminal update for an unknown order is a no-op
	b.Apply(Order{Instrument: "ES 12-25", Action: Sell, StopPrice: 98, State: OrderCancelled})
	assert.Equal(t, 0, b.Len())
}
