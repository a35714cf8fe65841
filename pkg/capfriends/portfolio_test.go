package capfriends

import (
	"context"
	"errors"
	"testing"
)

func TestCreatePortfolio(t *testing.T) {
	core, cleanup := setupTestCore(t)
	defer cleanup()
	ctx := context.Background()

	p, err := core.CreatePortfolio(ctx, Portfolio{
		ID:                "  family  ",
		Owner:             "household",
		PeriodicSIPBudget: amt(25000),
		LumpsumBudget:     amt(100000),
	})
	assertNoError(t, err, "create portfolio")
	if p.ID != "family" || p.Name != "family" || p.Owner != "household" {
		t.Errorf("unexpected portfolio %+v", p)
	}
	assertAmountEquals(t, p.Threshold(), 5, "default threshold")
	assertAmountEquals(t, p.PeriodicSIPBudget, 25000, "sip budget")

	_, err = core.CreatePortfolio(ctx, Portfolio{ID: "family"})
	assertErrorCode(t, err, ErrCodeDuplicate, "duplicate portfolio")

	_, err = core.CreatePortfolio(ctx, Portfolio{ID: "bad", LumpsumBudget: amt(-1)})
	assertErrorCode(t, err, ErrCodeInvalidAmount, "negative budget")

	_, err = core.CreatePortfolio(ctx, Portfolio{ID: ""})
	assertErrorCode(t, err, ErrCodeInvalidInput, "empty id")

	list, err := core.ListPortfolios(ctx)
	assertNoError(t, err, "list portfolios")
	if len(list) != 1 {
		t.Errorf("expected 1 portfolio, got %d", len(list))
	}
}

func TestUpdatePortfolio(t *testing.T) {
	core, cleanup := setupTestCore(t)
	defer cleanup()
	ctx := context.Background()

	testPortfolio(t, core, "family")
	name := "Family Core"
	threshold := amt(7.5)
	sip := amt(12000)
	p, err := core.UpdatePortfolio(ctx, "family", PortfolioUpdate{
		Name:                  &name,
		RebalanceThresholdPct: &threshold,
		PeriodicSIPBudget:     &sip,
	})
	assertNoError(t, err, "update portfolio")
	if p.Name != name {
		t.Errorf("name = %q", p.Name)
	}
	assertAmountEquals(t, p.Threshold(), 7.5, "threshold")
	assertAmountEquals(t, p.PeriodicSIPBudget, 12000, "sip")
	assertAmountEquals(t, p.LumpsumBudget, 0, "lumpsum untouched")

	tooHigh := amt(150)
	_, err = core.UpdatePortfolio(ctx, "family", PortfolioUpdate{RebalanceThresholdPct: &tooHigh})
	assertErrorCode(t, err, ErrCodeInvalidAmount, "threshold above 100")

	_, err = core.UpdatePortfolio(ctx, "ghost", PortfolioUpdate{Name: &name})
	assertErrorCode(t, err, ErrCodePortfolioNotFound, "update unknown")
}

func TestPortfolio_ZeroThresholdIsKept(t *testing.T) {
	core, cleanup := setupTestCore(t)
	defer cleanup()
	ctx := context.Background()

	zero := amt(0)
	p, err := core.CreatePortfolio(ctx, Portfolio{ID: "strict", RebalanceThresholdPct: &zero})
	assertNoError(t, err, "create with zero threshold")
	assertAmountEquals(t, p.Threshold(), 0, "explicit zero on create")

	testPortfolio(t, core, "family")
	p, err = core.UpdatePortfolio(ctx, "family", PortfolioUpdate{RebalanceThresholdPct: &zero})
	assertNoError(t, err, "update to zero threshold")
	assertAmountEquals(t, p.Threshold(), 0, "explicit zero on update")

	sip := amt(1000)
	p, err = core.UpdatePortfolio(ctx, "family", PortfolioUpdate{PeriodicSIPBudget: &sip})
	assertNoError(t, err, "update without threshold")
	assertAmountEquals(t, p.Threshold(), 0, "omitted threshold leaves it unchanged")

	testBuyWithTarget(t, core, "family", "A", 48, 100, 50)
	testBuyWithTarget(t, core, "family", "B", 52, 100, 50)
	plan, err := core.GetRebalancePlan(ctx, "family", PriceSnapshot{"A": amt(100), "B": amt(100)})
	assertNoError(t, err, "plan")
	assertAmountEquals(t, findFundPlan(t, *plan, "A").BuySellDelta, 200, "zero threshold corrects 2% drift")
}

func TestTargetAllocation_NeverExceedsHundred(t *testing.T) {
	core, cleanup := setupTestCore(t)
	defer cleanup()
	ctx := context.Background()

	testPortfolio(t, core, "family")
	testBuyWithTarget(t, core, "family", "A", 10, 10, 60)

	target := amt(50)
	_, err := core.RecordTransaction(ctx, TransactionIntent{
		PortfolioID: "family", Kind: IntentBuy, FundCode: "B", Units: amt(1), Price: amt(10),
		TargetAllocationPct: &target,
	})
	assertErrorCode(t, err, ErrCodeAllocationExceeded, "60 + 50")
	var coded *Error
	if !errors.As(err, &coded) {
		t.Fatalf("expected *Error, got %T", err)
	}
	assertAmountEquals(t, coded.Details["current_total"].(Amount), 60, "current_total detail")
	assertAmountEquals(t, coded.Details["requested"].(Amount), 50, "requested detail")
	assertAmountEquals(t, coded.Details["available"].(Amount), 40, "available detail")

	rows, err := core.ListTransactions(ctx, "family", "B")
	assertNoError(t, err, "list B")
	if len(rows) != 0 {
		t.Errorf("rejected buy must not write")
	}

	testBuyWithTarget(t, core, "family", "B", 1, 10, 40)
	total, err := core.GetTotalTargetAllocation(ctx, "family")
	assertNoError(t, err, "total target")
	assertAmountEquals(t, total, 100, "total at cap")

	// A fund's own target is replaced, not added to itself.
	assertNoError(t, core.SetTargetAllocation(ctx, "family", "A", amt(60)), "reset A to same value")
	assertNoError(t, core.SetTargetAllocation(ctx, "family", "A", amt(30)), "lower A")
	err = core.SetTargetAllocation(ctx, "family", "B", amt(70.01))
	assertErrorCode(t, err, ErrCodeAllocationExceeded, "B above available")

	total, err = core.GetTotalTargetAllocation(ctx, "family")
	assertNoError(t, err, "total target")
	assertAmountEquals(t, total, 70, "after lowering A")
}

func TestSetTargetAllocation_Rejections(t *testing.T) {
	core, cleanup := setupTestCore(t)
	defer cleanup()
	ctx := context.Background()

	testPortfolio(t, core, "family")
	testBuy(t, core, "family", "A", 1, 10)

	assertErrorCode(t, core.SetTargetAllocation(ctx, "family", "B", amt(10)), ErrCodeFundNotHeld, "unheld fund")
	assertErrorCode(t, core.SetTargetAllocation(ctx, "family", "A", amt(-1)), ErrCodeInvalidAmount, "negative")
	assertErrorCode(t, core.SetTargetAllocation(ctx, "family", "A", amt(101)), ErrCodeInvalidAmount, "above 100")
	assertErrorCode(t, core.SetTargetAllocation(ctx, "ghost", "A", amt(10)), ErrCodePortfolioNotFound, "unknown portfolio")
}

func TestTargetAllocation_ClearedWhenFundExits(t *testing.T) {
	core, cleanup := setupTestCore(t)
	defer cleanup()
	ctx := context.Background()

	testPortfolio(t, core, "family")
	testBuyWithTarget(t, core, "family", "A", 10, 10, 60)
	testSell(t, core, "family", "A", 10, 12)
	testBuyWithTarget(t, core, "family", "B", 1, 10, 100)

	// Re-entering A must not resurrect its old 60%.
	testBuy(t, core, "family", "A", 1, 10)
	total, err := core.GetTotalTargetAllocation(ctx, "family")
	assertNoError(t, err, "total target")
	assertAmountEquals(t, total, 100, "sum stays within cap")
	assertAmountEquals(t, mustHolding(t, core, "family", "A").TargetAllocationPct, 0, "A target cleared")
}

func TestSwitch_DestinationTargetUsesPostSwitchBase(t *testing.T) {
	core, cleanup := setupTestCore(t)
	defer cleanup()
	ctx := context.Background()

	testPortfolio(t, core, "family")
	testBuyWithTarget(t, core, "family", "A", 10, 10, 100)

	target := amt(100)
	res, err := core.RecordTransaction(ctx, TransactionIntent{
		PortfolioID: "family", Kind: IntentSwitch, FundCode: "A", Units: amt(10), Price: amt(10),
		ToFundCode: "B", ToPrice: amt(10), TargetAllocationPct: &target,
	})
	assertNoError(t, err, "full switch carries the target")
	if res.PairTransactionID == "" {
		t.Fatal("expected pair transaction")
	}
	assertAmountEquals(t, mustHolding(t, core, "family", "B").TargetAllocationPct, 100, "B target")

	testBuyWithTarget(t, core, "family", "C", 1, 10, 0)
	_, err = core.RecordTransaction(ctx, TransactionIntent{
		PortfolioID: "family", Kind: IntentSwitch, FundCode: "B", Units: amt(5), Price: amt(10),
		ToFundCode: "C", ToPrice: amt(10), TargetAllocationPct: &target,
	})
	assertErrorCode(t, err, ErrCodeAllocationExceeded, "partial switch keeps source target in the base")
}
