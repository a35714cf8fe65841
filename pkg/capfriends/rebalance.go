package capfriends

import (
	"github.com/shopspring/decimal"
)

// ComputeRebalancePlan is a pure function of the active holdings, a price
// snapshot and the portfolio configuration.
//
// Funds missing from prices, or priced at zero or below, are reported with
// PriceUnavailable and kept out of the valuation base, so one stale quote does not skew every other
// fund's allocation percentage.
func ComputeRebalancePlan(p Portfolio, holdings []Holding, prices PriceSnapshot) RebalancePlan {
	threshold := p.Threshold().Decimal
	sipBudget := p.PeriodicSIPBudget.Decimal
	lumpsumBudget := p.LumpsumBudget.Decimal

	plan := RebalancePlan{
		PortfolioID:           p.ID,
		RebalanceThresholdPct: amountOf(threshold),
		PeriodicSIPBudget:     p.PeriodicSIPBudget,
		LumpsumBudget:         p.LumpsumBudget,
		Funds:                 make([]FundPlan, 0, len(holdings)),
	}

	// Step 1: value every priced holding.
	totalValue := decimal.Zero
	totalInvestment := decimal.Zero
	totalRealized := decimal.Zero
	for _, h := range holdings {
		fp := FundPlan{
			FundCode:            h.FundCode,
			DisplayName:         h.DisplayName,
			Units:               h.Units,
			Investment:          h.Investment,
			TargetAllocationPct: h.TargetAllocationPct,
			Action:              ActionHold,
		}
		totalRealized = totalRealized.Add(h.RealizedGainLoss.Decimal)
		price, ok := prices[h.FundCode]
		if !ok || !price.IsPositive() {
			fp.PriceUnavailable = true
			plan.PriceUnavailable = append(plan.PriceUnavailable, h.FundCode)
		} else {
			fp.CurrentPrice = amountPtr(price)
			fp.CurrentValue = amountOf(h.Units.Mul(price.Decimal))
			totalValue = totalValue.Add(fp.CurrentValue.Decimal)
			totalInvestment = totalInvestment.Add(h.Investment.Decimal)
		}
		plan.Funds = append(plan.Funds, fp)
	}

	// Steps 2-5: allocation, target value, ongoing SIP and gaps.
	gaps := make([]decimal.Decimal, len(plan.Funds))
	totalGap := decimal.Zero
	for i := range plan.Funds {
		fp := &plan.Funds[i]
		weight := fp.TargetAllocationPct.Div(hundred)
		fp.OngoingSIP = amountOf(weight.Mul(sipBudget))
		fp.TargetLumpsum = amountOf(weight.Mul(lumpsumBudget))
		if fp.PriceUnavailable {
			continue
		}
		fp.CurrentAllocationPct = amountOf(pct(fp.CurrentValue.Decimal, totalValue))
		fp.TargetValue = amountOf(weight.Mul(totalValue))
		fp.UnrealizedPL = amountOf(fp.CurrentValue.Sub(fp.Investment.Decimal))
		gaps[i] = maxZero(fp.TargetValue.Sub(fp.CurrentValue.Decimal))
		totalGap = totalGap.Add(gaps[i])
	}

	// Step 5: gap-proportional SIP, or the target-weight split when nothing is
	// underweight.
	for i := range plan.Funds {
		fp := &plan.Funds[i]
		if fp.PriceUnavailable {
			continue
		}
		if totalGap.IsZero() {
			fp.RebalanceSIP = fp.OngoingSIP
			continue
		}
		if gaps[i].IsPositive() {
			fp.RebalanceSIP = amountOf(gaps[i].Div(totalGap).Mul(sipBudget))
		}
	}

	// Steps 6-7: threshold-gated lumpsum and one-shot correction.
	postLumpsum := totalValue.Add(lumpsumBudget)
	for i := range plan.Funds {
		fp := &plan.Funds[i]
		if fp.PriceUnavailable {
			continue
		}
		drift := fp.CurrentAllocationPct.Sub(fp.TargetAllocationPct.Decimal).Abs()
		fp.Drift = amountOf(drift)
		if drift.LessThanOrEqual(threshold) {
			fp.RebalanceLumpsum = fp.TargetLumpsum
			fp.BuySellDelta = Amount{}
			continue
		}
		weight := fp.TargetAllocationPct.Div(hundred)
		fp.RebalanceLumpsum = amountOf(maxZero(weight.Mul(postLumpsum).Sub(fp.CurrentValue.Decimal)))
		fp.BuySellDelta = amountOf(fp.TargetValue.Sub(fp.CurrentValue.Decimal))
		fp.Action = actionFor(fp.BuySellDelta.Decimal)
	}

	plan.TotalInvestment = amountOf(totalInvestment)
	plan.TotalCurrentValue = amountOf(totalValue)
	plan.TotalUnrealizedPL = amountOf(totalValue.Sub(totalInvestment))
	plan.TotalRealizedPL = amountOf(totalRealized)
	plan.TotalGap = amountOf(totalGap)
	return plan
}

func actionFor(delta decimal.Decimal) string {
	switch {
	case delta.Abs().LessThan(currencyEpsilon):
		return ActionHold
	case delta.IsPositive():
		return ActionBuy
	default:
		return ActionSell
	}
}
