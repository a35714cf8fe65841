package capfriends

import (
	"sort"

	"github.com/shopspring/decimal"
)

// ATH tiers, weakest first.
const (
	TierWatch     = "Watch"
	TierConsider  = "Consider"
	TierGoodBuy   = "Good Buy"
	TierStrongBuy = "Strong Buy"
)

// ATHBands are the lower bounds (percent below ATH, inclusive) of the
// Consider, Good Buy and Strong Buy tiers. Anything below Consider is Watch.
type ATHBands struct {
	Consider  Amount `json:"consider"`
	GoodBuy   Amount `json:"good_buy"`
	StrongBuy Amount `json:"strong_buy"`
}

// DefaultATHBands returns the 5/10/20 bands.
func DefaultATHBands() ATHBands {
	return ATHBands{
		Consider:  NewAmountFromInt(5),
		GoodBuy:   NewAmountFromInt(10),
		StrongBuy: NewAmountFromInt(20),
	}
}

func (b ATHBands) orDefault() ATHBands {
	if b.Consider.IsZero() && b.GoodBuy.IsZero() && b.StrongBuy.IsZero() {
		return DefaultATHBands()
	}
	return b
}

// Tier classifies a percentage below ATH.
func (b ATHBands) Tier(pctBelow decimal.Decimal) string {
	b = b.orDefault()
	switch {
	case pctBelow.GreaterThanOrEqual(b.StrongBuy.Decimal):
		return TierStrongBuy
	case pctBelow.GreaterThanOrEqual(b.GoodBuy.Decimal):
		return TierGoodBuy
	case pctBelow.GreaterThanOrEqual(b.Consider.Decimal):
		return TierConsider
	default:
		return TierWatch
	}
}

// EvaluateATH returns nil when the historical max is unknown or the fund is
// at or above it.
func EvaluateATH(fundCode string, currentPrice, historicalMax Amount, bands ATHBands) *ATHSignal {
	if !historicalMax.IsPositive() || currentPrice.GreaterThanOrEqual(historicalMax.Decimal) {
		return nil
	}
	below := historicalMax.Sub(currentPrice.Decimal).Div(historicalMax.Decimal).Mul(hundred)
	return &ATHSignal{
		FundCode:     fundCode,
		DisplayName:  fundCode,
		CurrentPrice: currentPrice,
		ATHPrice:     historicalMax,
		PctBelowATH:  amountOf(below),
		Tier:         bands.Tier(below),
	}
}

// sortSignals orders by depth below ATH, deepest first.
func sortSignals(signals []ATHSignal) {
	sort.SliceStable(signals, func(i, j int) bool {
		if signals[i].PctBelowATH.Equal(signals[j].PctBelowATH.Decimal) {
			return signals[i].FundCode < signals[j].FundCode
		}
		return signals[i].PctBelowATH.GreaterThan(signals[j].PctBelowATH.Decimal)
	})
}
