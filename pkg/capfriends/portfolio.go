package capfriends

import (
	"context"
	"strings"
)

// PortfolioUpdate lists the portfolio settings UpdatePortfolio may change.
type PortfolioUpdate struct {
	Name                  *string `json:"name"`
	Owner                 *string `json:"owner"`
	RebalanceThresholdPct *Amount `json:"rebalance_threshold_pct"`
	PeriodicSIPBudget     *Amount `json:"periodic_sip_budget"`
	LumpsumBudget         *Amount `json:"lumpsum_budget"`
}

// CreatePortfolio registers a new portfolio. An unset threshold takes the
// configured default.
func (c *Core) CreatePortfolio(ctx context.Context, p Portfolio) (*Portfolio, error) {
	p.ID = normalizePortfolioID(p.ID)
	p.Name = strings.TrimSpace(p.Name)
	p.Owner = strings.TrimSpace(p.Owner)
	if p.ID == "" {
		return nil, NewError(ErrCodeInvalidInput, "portfolio id required")
	}
	if p.Name == "" {
		p.Name = p.ID
	}
	if p.RebalanceThresholdPct == nil {
		p.RebalanceThresholdPct = amountPtr(c.threshold)
	}
	if err := validatePortfolioSettings(p); err != nil {
		return nil, err
	}

	unlock := c.locks.lock(p.ID)
	defer unlock()

	existing, err := c.portfolios.GetPortfolio(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, NewErrorf(ErrCodeDuplicate, "portfolio %s already exists", p.ID)
	}
	if p.CreatedAt == "" {
		p.CreatedAt = nowRFC3339(c.now)
	}
	if err := c.portfolios.SavePortfolio(ctx, p); err != nil {
		return nil, err
	}
	c.logger.Info("portfolio created", "portfolio_id", p.ID, "owner", p.Owner)
	c.logOperation(ctx, OperationLog{Operation: "PORTFOLIO_CREATED", PortfolioID: stringPtr(p.ID)})
	return c.GetPortfolio(ctx, p.ID)
}

// UpdatePortfolio applies a partial update to a portfolio's settings.
func (c *Core) UpdatePortfolio(ctx context.Context, id string, upd PortfolioUpdate) (*Portfolio, error) {
	id = normalizePortfolioID(id)
	unlock := c.locks.lock(id)
	defer unlock()

	p, err := c.requirePortfolio(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.Name != nil {
		if name := strings.TrimSpace(*upd.Name); name != "" {
			p.Name = name
		}
	}
	if upd.Owner != nil {
		p.Owner = strings.TrimSpace(*upd.Owner)
	}
	if upd.RebalanceThresholdPct != nil {
		p.RebalanceThresholdPct = amountPtr(*upd.RebalanceThresholdPct)
	}
	if upd.PeriodicSIPBudget != nil {
		p.PeriodicSIPBudget = *upd.PeriodicSIPBudget
	}
	if upd.LumpsumBudget != nil {
		p.LumpsumBudget = *upd.LumpsumBudget
	}
	if err := validatePortfolioSettings(*p); err != nil {
		return nil, err
	}
	if err := c.portfolios.SavePortfolio(ctx, *p); err != nil {
		return nil, err
	}
	c.logOperation(ctx, OperationLog{Operation: "PORTFOLIO_UPDATED", PortfolioID: stringPtr(id)})
	return c.GetPortfolio(ctx, id)
}

// GetPortfolio returns one portfolio.
func (c *Core) GetPortfolio(ctx context.Context, id string) (*Portfolio, error) {
	return c.requirePortfolio(ctx, normalizePortfolioID(id))
}

// ListPortfolios returns every portfolio ordered by ID.
func (c *Core) ListPortfolios(ctx context.Context) ([]Portfolio, error) {
	portfolios, err := c.portfolios.ListPortfolios(ctx)
	if err != nil {
		return nil, err
	}
	if portfolios == nil {
		portfolios = []Portfolio{}
	}
	return portfolios, nil
}

// SetTargetAllocation sets the target percentage of a held fund.
func (c *Core) SetTargetAllocation(ctx context.Context, portfolioID, fundCode string, target Amount) error {
	portfolioID = normalizePortfolioID(portfolioID)
	fundCode = normalizeFundCode(fundCode)
	if fundCode == "" {
		return NewError(ErrCodeInvalidInput, "fund_code required")
	}

	unlock := c.locks.lock(portfolioID)
	defer unlock()

	if _, err := c.requirePortfolio(ctx, portfolioID); err != nil {
		return err
	}
	holdings, err := c.loadHoldings(ctx, portfolioID)
	if err != nil {
		return err
	}
	if _, ok := findHolding(holdings, fundCode); !ok {
		return NewErrorf(ErrCodeFundNotHeld, "fund %s is not held in this portfolio", fundCode).
			WithDetail("fund_code", fundCode)
	}
	if err := validateTarget(fundCode, target, holdings); err != nil {
		return err
	}
	if err := c.portfolios.SetTargetAllocation(ctx, portfolioID, fundCode, target); err != nil {
		return err
	}
	c.cache.invalidate(portfolioID)
	c.logger.Info("target allocation set", "portfolio_id", portfolioID, "fund_code", fundCode, "target_pct", target.String())
	c.logOperation(ctx, OperationLog{
		Operation:   "TARGET_SET",
		PortfolioID: stringPtr(portfolioID),
		FundCode:    stringPtr(fundCode),
		Details:     stringPtr(target.String()),
	})
	return nil
}

// GetTotalTargetAllocation sums target percentages over active holdings.
func (c *Core) GetTotalTargetAllocation(ctx context.Context, portfolioID string) (Amount, error) {
	holdings, err := c.GetHoldings(ctx, portfolioID)
	if err != nil {
		return Amount{}, err
	}
	return amountOf(totalTarget(holdings, "")), nil
}

func (c *Core) requirePortfolio(ctx context.Context, id string) (*Portfolio, error) {
	if id == "" {
		return nil, NewError(ErrCodeInvalidInput, "portfolio id required")
	}
	p, err := c.portfolios.GetPortfolio(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, NewErrorf(ErrCodePortfolioNotFound, "portfolio %s not found", id).
			WithDetail("portfolio_id", id)
	}
	return p, nil
}

func validatePortfolioSettings(p Portfolio) error {
	if threshold := p.Threshold(); threshold.IsNegative() || threshold.GreaterThan(hundred) {
		return NewErrorf(ErrCodeInvalidAmount, "rebalance threshold must be between 0 and 100, got %s", threshold.String()).
			WithDetail("field", "rebalance_threshold_pct")
	}
	if p.PeriodicSIPBudget.IsNegative() {
		return NewError(ErrCodeInvalidAmount, "periodic SIP budget cannot be negative").
			WithDetail("field", "periodic_sip_budget")
	}
	if p.LumpsumBudget.IsNegative() {
		return NewError(ErrCodeInvalidAmount, "lumpsum budget cannot be negative").
			WithDetail("field", "lumpsum_budget")
	}
	return nil
}
