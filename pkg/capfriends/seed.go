package capfriends

import (
	"context"
	"fmt"
	"os"
	"sort"

	toml "github.com/pelletier/go-toml/v2"
)

// Seed describes portfolios and fund labels to ensure at startup.
//
//	[[funds]]
//	code = "PPFAS-FLEXI"
//	name = "Parag Parikh Flexi Cap"
//	category = "Flexi Cap"
//
//	[[portfolios]]
//	id = "family-core"
//	name = "Family Core"
//	owner = "household"
//	rebalance_threshold_pct = 5
//	periodic_sip_budget = 25000
//	lumpsum_budget = 100000
//	[portfolios.targets]
//	PPFAS-FLEXI = 60
type Seed struct {
	Funds      []SeedFund      `toml:"funds"`
	Portfolios []SeedPortfolio `toml:"portfolios"`
}

// SeedFund is one fund label entry.
type SeedFund struct {
	Code     string `toml:"code"`
	Name     string `toml:"name"`
	Category string `toml:"category"`
}

// SeedPortfolio is one portfolio entry. Targets apply only to funds the
// portfolio already holds.
type SeedPortfolio struct {
	ID                    string             `toml:"id"`
	Name                  string             `toml:"name"`
	Owner                 string             `toml:"owner"`
	RebalanceThresholdPct *float64           `toml:"rebalance_threshold_pct"`
	PeriodicSIPBudget     float64            `toml:"periodic_sip_budget"`
	LumpsumBudget         float64            `toml:"lumpsum_budget"`
	Targets               map[string]float64 `toml:"targets"`
}

// SeedReport summarizes what ApplySeed changed.
type SeedReport struct {
	FundsUpserted     int      `json:"funds_upserted"`
	PortfoliosCreated int      `json:"portfolios_created"`
	PortfoliosUpdated int      `json:"portfolios_updated"`
	TargetsApplied    int      `json:"targets_applied"`
	TargetsSkipped    []string `json:"targets_skipped,omitempty"`
}

// ParseSeed decodes a TOML seed document.
func ParseSeed(data []byte) (*Seed, error) {
	var seed Seed
	if err := toml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	return &seed, nil
}

// LoadSeedFile reads a TOML seed file. A missing file yields an empty seed.
func LoadSeedFile(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Seed{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seed %s: %w", path, err)
	}
	return ParseSeed(data)
}

// ApplySeed upserts fund labels and portfolios, then applies targets for
// funds that are held. Existing ledgers are never touched.
func (c *Core) ApplySeed(ctx context.Context, seed *Seed) (*SeedReport, error) {
	report := &SeedReport{}
	if seed == nil {
		return report, nil
	}

	for _, f := range seed.Funds {
		if err := c.UpsertFund(ctx, FundInfo{Code: f.Code, DisplayName: f.Name, Category: f.Category}); err != nil {
			return report, fmt.Errorf("seed fund %s: %w", f.Code, err)
		}
		report.FundsUpserted++
	}

	for _, sp := range seed.Portfolios {
		var threshold *Amount
		if sp.RebalanceThresholdPct != nil {
			threshold = amountPtr(NewAmount(*sp.RebalanceThresholdPct))
		}
		sip := NewAmount(sp.PeriodicSIPBudget)
		lumpsum := NewAmount(sp.LumpsumBudget)

		existing, err := c.portfolios.GetPortfolio(ctx, normalizePortfolioID(sp.ID))
		if err != nil {
			return report, err
		}
		if existing == nil {
			if _, err := c.CreatePortfolio(ctx, Portfolio{
				ID:                    sp.ID,
				Name:                  sp.Name,
				Owner:                 sp.Owner,
				RebalanceThresholdPct: threshold,
				PeriodicSIPBudget:     sip,
				LumpsumBudget:         lumpsum,
			}); err != nil {
				return report, fmt.Errorf("seed portfolio %s: %w", sp.ID, err)
			}
			report.PortfoliosCreated++
		} else {
			upd := PortfolioUpdate{
				Owner:             &sp.Owner,
				PeriodicSIPBudget: &sip,
				LumpsumBudget:     &lumpsum,
			}
			if sp.Name != "" {
				upd.Name = &sp.Name
			}
			upd.RebalanceThresholdPct = threshold
			if _, err := c.UpdatePortfolio(ctx, sp.ID, upd); err != nil {
				return report, fmt.Errorf("seed portfolio %s: %w", sp.ID, err)
			}
			report.PortfoliosUpdated++
		}

		funds := make([]string, 0, len(sp.Targets))
		for fund := range sp.Targets {
			funds = append(funds, fund)
		}
		sort.Strings(funds)
		for _, fund := range funds {
			err := c.SetTargetAllocation(ctx, sp.ID, fund, NewAmount(sp.Targets[fund]))
			if IsErrorCode(err, ErrCodeFundNotHeld) {
				report.TargetsSkipped = append(report.TargetsSkipped, normalizePortfolioID(sp.ID)+"/"+normalizeFundCode(fund))
				c.logger.Debug("seed target skipped, fund not held", "portfolio_id", sp.ID, "fund_code", fund)
				continue
			}
			if err != nil {
				return report, fmt.Errorf("seed target %s/%s: %w", sp.ID, fund, err)
			}
			report.TargetsApplied++
		}
	}
	c.logger.Info("seed applied",
		"funds", report.FundsUpserted,
		"portfolios_created", report.PortfoliosCreated,
		"portfolios_updated", report.PortfoliosUpdated,
		"targets", report.TargetsApplied,
	)
	return report, nil
}
