package api

import "capitalfriends/pkg/capfriends"

type createPortfolioPayload struct {
	ID                    string             `json:"id"`
	Name                  string             `json:"name"`
	Owner                 string             `json:"owner"`
	RebalanceThresholdPct *capfriends.Amount `json:"rebalance_threshold_pct"`
	PeriodicSIPBudget     *capfriends.Amount `json:"periodic_sip_budget"`
	LumpsumBudget         *capfriends.Amount `json:"lumpsum_budget"`
}

type recordTransactionPayload struct {
	PortfolioID         string             `json:"portfolio_id"`
	Kind                string             `json:"kind"`
	Subtype             string             `json:"subtype"`
	FundCode            string             `json:"fund_code"`
	Date                string             `json:"date"`
	Units               capfriends.Amount  `json:"units"`
	Price               capfriends.Amount  `json:"price"`
	Notes               string             `json:"notes"`
	TargetAllocationPct *capfriends.Amount `json:"target_allocation_pct"`
	ToFundCode          string             `json:"to_fund_code"`
	ToPrice             capfriends.Amount  `json:"to_price"`
}

type amendTransactionPayload struct {
	Date  *string            `json:"date"`
	Units *capfriends.Amount `json:"units"`
	Price *capfriends.Amount `json:"price"`
	Notes *string            `json:"notes"`
}

type targetPayload struct {
	TargetAllocationPct *capfriends.Amount `json:"target_allocation_pct"`
}

type targetSummary struct {
	PortfolioID    string            `json:"portfolio_id"`
	TotalTargetPct capfriends.Amount `json:"total_target_pct"`
	AvailablePct   capfriends.Amount `json:"available_pct"`
}

type fundPayload struct {
	DisplayName string `json:"display_name"`
	Category    string `json:"category"`
}

type pricePayload struct {
	FundCode string            `json:"fund_code"`
	Date     string            `json:"date"`
	Price    capfriends.Amount `json:"price"`
	Source   string            `json:"source"`
}

// planPayload lets a client price a plan with its own snapshot instead of
// the stored NAVs.
type planPayload struct {
	Prices capfriends.PriceSnapshot `json:"prices"`
}

type signalsPayload struct {
	PortfolioIDs []string                 `json:"portfolio_ids"`
	Prices       capfriends.PriceSnapshot `json:"prices"`
	ATH          capfriends.ATHTable      `json:"ath"`
}

type commentaryPayload struct {
	BaseURL string                   `json:"base_url"`
	APIKey  string                   `json:"api_key"`
	Model   string                   `json:"model"`
	Prices  capfriends.PriceSnapshot `json:"prices"`
}
