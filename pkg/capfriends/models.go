package capfriends

import "time"

// Ledger sides.
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Transaction subtypes.
const (
	SubtypeInitial    = "INITIAL"
	SubtypeSIP        = "SIP"
	SubtypeLumpsum    = "LUMPSUM"
	SubtypeWithdrawal = "WITHDRAWAL"
	SubtypeSwitch     = "SWITCH"
)

// Intent kinds accepted by RecordTransaction.
const (
	IntentBuy    = "BUY"
	IntentSell   = "SELL"
	IntentSwitch = "SWITCH"
)

// Plan actions.
const (
	ActionBuy  = "BUY"
	ActionSell = "SELL"
	ActionHold = "HOLD"
)

// DefaultRebalanceThresholdPct applies when a portfolio has no threshold set.
var DefaultRebalanceThresholdPct = NewAmountFromInt(5)

var buySubtypes = []string{SubtypeInitial, SubtypeSIP, SubtypeLumpsum}

var sellSubtypes = []string{SubtypeWithdrawal}

// Transaction is one immutable ledger row.
type Transaction struct {
	ID               string  `json:"id"`
	GroupID          string  `json:"group_id,omitempty"`
	PortfolioID      string  `json:"portfolio_id"`
	FundCode         string  `json:"fund_code"`
	Date             string  `json:"date"`
	Side             string  `json:"side"`
	Subtype          string  `json:"subtype"`
	Units            Amount  `json:"units"`
	PricePerUnit     Amount  `json:"price_per_unit"`
	TotalAmount      Amount  `json:"total_amount"`
	RealizedGainLoss Amount  `json:"realized_gain_loss"`
	Notes            string  `json:"notes,omitempty"`
	CreatedAt        string  `json:"created_at"`
	UpdatedAt        *string `json:"updated_at,omitempty"`
}

// TransactionIntent is what a caller asks the engine to record.
// For SWITCH, FundCode/Units/Price describe the fund being sold and
// ToFundCode/ToPrice the fund being bought.
type TransactionIntent struct {
	PortfolioID         string
	Kind                string
	Subtype             string
	FundCode            string
	Date                string
	Units               Amount
	Price               Amount
	Notes               string
	TargetAllocationPct *Amount
	ToFundCode          string
	ToPrice             Amount
}

// RecordResult returns the IDs written for an intent.
type RecordResult struct {
	TransactionID     string `json:"transaction_id"`
	PairTransactionID string `json:"pair_transaction_id,omitempty"`
	GroupID           string `json:"group_id,omitempty"`
}

// TransactionPatch lists the fields AmendTransaction may change.
type TransactionPatch struct {
	Date  *string
	Units *Amount
	Price *Amount
	Notes *string
}

// Holding is the derived position of one fund within one portfolio.
type Holding struct {
	PortfolioID         string `json:"portfolio_id"`
	FundCode            string `json:"fund_code"`
	DisplayName         string `json:"display_name"`
	Category            string `json:"category,omitempty"`
	Units               Amount `json:"units"`
	WeightedAvgCost     Amount `json:"weighted_avg_cost"`
	Investment          Amount `json:"investment"`
	RealizedGainLoss    Amount `json:"realized_gain_loss"`
	TargetAllocationPct Amount `json:"target_allocation_pct"`
}

// Portfolio carries the rebalancing configuration of one portfolio. A nil
// RebalanceThresholdPct means unset; zero is a valid threshold.
type Portfolio struct {
	ID                    string  `json:"id"`
	Name                  string  `json:"name"`
	Owner                 string  `json:"owner,omitempty"`
	RebalanceThresholdPct *Amount `json:"rebalance_threshold_pct,omitempty"`
	PeriodicSIPBudget     Amount  `json:"periodic_sip_budget"`
	LumpsumBudget         Amount  `json:"lumpsum_budget"`
	CreatedAt             string  `json:"created_at,omitempty"`
}

// Threshold returns the rebalance threshold, or the package default when
// none is set.
func (p Portfolio) Threshold() Amount {
	if p.RebalanceThresholdPct == nil {
		return DefaultRebalanceThresholdPct
	}
	return *p.RebalanceThresholdPct
}

// FundInfo labels a fund for display.
type FundInfo struct {
	Code        string `json:"code"`
	DisplayName string `json:"display_name"`
	Category    string `json:"category,omitempty"`
}

// FundPlan is the rebalance recommendation for one fund.
type FundPlan struct {
	FundCode             string  `json:"fund_code"`
	DisplayName          string  `json:"display_name"`
	Units                Amount  `json:"units"`
	Investment           Amount  `json:"investment"`
	CurrentPrice         *Amount `json:"current_price"`
	CurrentValue         Amount  `json:"current_value"`
	CurrentAllocationPct Amount  `json:"current_allocation_pct"`
	TargetAllocationPct  Amount  `json:"target_allocation_pct"`
	TargetValue          Amount  `json:"target_value"`
	Drift                Amount  `json:"drift"`
	OngoingSIP           Amount  `json:"ongoing_sip"`
	RebalanceSIP         Amount  `json:"rebalance_sip"`
	TargetLumpsum        Amount  `json:"target_lumpsum"`
	RebalanceLumpsum     Amount  `json:"rebalance_lumpsum"`
	BuySellDelta         Amount  `json:"buy_sell_delta"`
	UnrealizedPL         Amount  `json:"unrealized_pl"`
	Action               string  `json:"action"`
	PriceUnavailable     bool    `json:"price_unavailable"`
}

// RebalancePlan is the per-portfolio output of the allocation engine.
type RebalancePlan struct {
	PortfolioID           string     `json:"portfolio_id"`
	RebalanceThresholdPct Amount     `json:"rebalance_threshold_pct"`
	PeriodicSIPBudget     Amount     `json:"periodic_sip_budget"`
	LumpsumBudget         Amount     `json:"lumpsum_budget"`
	TotalInvestment       Amount     `json:"total_investment"`
	TotalCurrentValue     Amount     `json:"total_current_value"`
	TotalUnrealizedPL     Amount     `json:"total_unrealized_pl"`
	TotalRealizedPL       Amount     `json:"total_realized_pl"`
	TotalGap              Amount     `json:"total_gap"`
	Funds                 []FundPlan `json:"funds"`
	PriceUnavailable      []string   `json:"price_unavailable,omitempty"`
}

// PriceSnapshot maps fund code to the price used for a computation.
type PriceSnapshot map[string]Amount

// ATHTable maps fund code to its historical maximum price.
type ATHTable map[string]Amount

// ATHSignal flags a fund trading below its all-time high.
type ATHSignal struct {
	FundCode     string   `json:"fund_code"`
	DisplayName  string   `json:"display_name"`
	PortfolioIDs []string `json:"portfolio_ids"`
	CurrentPrice Amount   `json:"current_price"`
	ATHPrice     Amount   `json:"ath_price"`
	PctBelowATH  Amount   `json:"pct_below_ath"`
	Tier         string   `json:"tier"`
}

// Time helpers.
func nowRFC3339(now func() time.Time) string {
	return now().UTC().Format(time.RFC3339)
}

func todayISO(now func() time.Time) string {
	return now().Format("2006-01-02")
}
