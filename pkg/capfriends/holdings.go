package capfriends

import (
	"sort"

	"github.com/shopspring/decimal"
)

// holdingTotals is the raw aggregation of one fund's ledger rows.
type holdingTotals struct {
	buyUnits  decimal.Decimal
	buyAmount decimal.Decimal
	sellUnits decimal.Decimal
	realized  decimal.Decimal
}

func (t holdingTotals) units() decimal.Decimal {
	return t.buyUnits.Sub(t.sellUnits)
}

func (t holdingTotals) avgCost() decimal.Decimal {
	if t.buyUnits.IsZero() {
		return decimal.Zero
	}
	return t.buyAmount.Div(t.buyUnits)
}

func sumRows(rows []Transaction) holdingTotals {
	var t holdingTotals
	for _, r := range rows {
		switch r.Side {
		case SideBuy:
			t.buyUnits = t.buyUnits.Add(r.Units.Decimal)
			t.buyAmount = t.buyAmount.Add(r.Units.Mul(r.PricePerUnit.Decimal))
		case SideSell:
			t.sellUnits = t.sellUnits.Add(r.Units.Decimal)
			t.realized = t.realized.Add(r.RealizedGainLoss.Decimal)
		}
	}
	return t
}

// AggregateHolding derives the holding for the rows of one (portfolio, fund)
// key. SELL rows reduce units but never touch the weighted average cost.
// The second result is false when the position is fully exited.
func AggregateHolding(portfolioID, fundCode string, rows []Transaction) (Holding, bool) {
	t := sumRows(rows)
	units := t.units()
	avg := t.avgCost()
	h := Holding{
		PortfolioID:      portfolioID,
		FundCode:         fundCode,
		DisplayName:      fundCode,
		Units:            amountOf(units),
		WeightedAvgCost:  amountOf(avg),
		Investment:       amountOf(units.Mul(avg)),
		RealizedGainLoss: amountOf(t.realized),
	}
	if units.IsNegative() || isZeroUnits(units) {
		return h, false
	}
	return h, true
}

// groupByFund splits a portfolio's ledger by fund, preserving row order and
// first-seen fund order.
func groupByFund(rows []Transaction) ([]string, map[string][]Transaction) {
	var order []string
	byFund := map[string][]Transaction{}
	for _, r := range rows {
		if _, ok := byFund[r.FundCode]; !ok {
			order = append(order, r.FundCode)
		}
		byFund[r.FundCode] = append(byFund[r.FundCode], r)
	}
	return order, byFund
}

// activeHoldings aggregates every fund of a portfolio ledger and drops
// exited positions. Targets are attached from the config store.
func activeHoldings(portfolioID string, rows []Transaction, targets map[string]Amount) []Holding {
	order, byFund := groupByFund(rows)
	holdings := make([]Holding, 0, len(order))
	for _, fund := range order {
		h, active := AggregateHolding(portfolioID, fund, byFund[fund])
		if !active {
			continue
		}
		h.TargetAllocationPct = targets[fund]
		holdings = append(holdings, h)
	}
	sort.SliceStable(holdings, func(i, j int) bool {
		return holdings[i].FundCode < holdings[j].FundCode
	})
	return holdings
}

// totalTarget sums target allocations of active holdings, optionally
// skipping one fund whose target is about to be replaced.
func totalTarget(holdings []Holding, skipFund string) decimal.Decimal {
	total := decimal.Zero
	for _, h := range holdings {
		if h.FundCode == skipFund {
			continue
		}
		total = total.Add(h.TargetAllocationPct.Decimal)
	}
	return total
}

func findHolding(holdings []Holding, fundCode string) (Holding, bool) {
	for _, h := range holdings {
		if h.FundCode == fundCode {
			return h, true
		}
	}
	return Holding{}, false
}
