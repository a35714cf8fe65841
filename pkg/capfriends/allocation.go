package capfriends

import (
	"context"
	"sort"
)

// GetHoldings returns the active holdings of a portfolio, sorted by fund code.
func (c *Core) GetHoldings(ctx context.Context, portfolioID string) ([]Holding, error) {
	portfolioID = normalizePortfolioID(portfolioID)
	if _, err := c.requirePortfolio(ctx, portfolioID); err != nil {
		return nil, err
	}
	if cached, ok := c.cache.get(portfolioID); ok {
		return cached, nil
	}
	gen := c.cache.generation(portfolioID)
	holdings, err := c.loadHoldings(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	c.cache.set(portfolioID, gen, holdings)
	return holdings, nil
}

// loadHoldings aggregates a portfolio straight from the ledger, bypassing the
// cache. Writers call it under the portfolio lock.
func (c *Core) loadHoldings(ctx context.Context, portfolioID string) ([]Holding, error) {
	rows, err := c.ledger.ListTransactions(ctx, portfolioID, "")
	if err != nil {
		return nil, err
	}
	targets, err := c.portfolios.TargetAllocations(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	holdings := activeHoldings(portfolioID, rows, targets)
	c.labelHoldings(ctx, holdings)
	return holdings, nil
}

// GetRebalancePlan computes the rebalance plan of a portfolio. A nil prices
// snapshot is filled from the configured price feed as of now.
func (c *Core) GetRebalancePlan(ctx context.Context, portfolioID string, prices PriceSnapshot) (*RebalancePlan, error) {
	portfolioID = normalizePortfolioID(portfolioID)
	p, err := c.requirePortfolio(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	holdings, err := c.GetHoldings(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	prices = normalizeCodes(prices)
	if prices == nil {
		prices, _ = c.PriceSnapshotAt(ctx, fundCodes(holdings), c.now())
	}
	plan := ComputeRebalancePlan(*p, holdings, prices)
	if len(plan.PriceUnavailable) > 0 {
		c.logger.Debug("plan computed with missing prices", "portfolio_id", portfolioID, "funds", plan.PriceUnavailable)
	}
	return &plan, nil
}

// GetBuySignals evaluates every fund held in the given portfolios (all
// portfolios when none are named) against its all-time high. Funds held in
// several portfolios yield one signal. Nil prices and ath are filled from the
// configured price feed.
func (c *Core) GetBuySignals(ctx context.Context, portfolioIDs []string, prices PriceSnapshot, ath ATHTable) ([]ATHSignal, error) {
	if len(portfolioIDs) == 0 {
		portfolios, err := c.ListPortfolios(ctx)
		if err != nil {
			return nil, err
		}
		for _, p := range portfolios {
			portfolioIDs = append(portfolioIDs, p.ID)
		}
	}

	heldIn := map[string][]string{}
	labels := map[string]string{}
	var funds []string
	for _, pid := range portfolioIDs {
		holdings, err := c.GetHoldings(ctx, pid)
		if err != nil {
			return nil, err
		}
		for _, h := range holdings {
			if _, seen := heldIn[h.FundCode]; !seen {
				funds = append(funds, h.FundCode)
				labels[h.FundCode] = h.DisplayName
			}
			if !containsString(heldIn[h.FundCode], h.PortfolioID) {
				heldIn[h.FundCode] = append(heldIn[h.FundCode], h.PortfolioID)
			}
		}
	}

	prices = normalizeCodes(prices)
	ath = normalizeCodes(ath)
	if prices == nil || ath == nil {
		feedPrices, feedATH := c.PriceSnapshotAt(ctx, funds, c.now())
		if prices == nil {
			prices = feedPrices
		}
		if ath == nil {
			ath = feedATH
		}
	}

	signals := []ATHSignal{}
	for _, fund := range funds {
		price, ok := prices[fund]
		if !ok {
			continue
		}
		high, ok := ath[fund]
		if !ok {
			continue
		}
		signal := EvaluateATH(fund, price, high, c.bands)
		if signal == nil {
			continue
		}
		signal.DisplayName = labels[fund]
		signal.PortfolioIDs = heldIn[fund]
		sort.Strings(signal.PortfolioIDs)
		signals = append(signals, *signal)
	}
	sortSignals(signals)
	return signals, nil
}

func fundCodes(holdings []Holding) []string {
	codes := make([]string, 0, len(holdings))
	for _, h := range holdings {
		codes = append(codes, h.FundCode)
	}
	return codes
}
