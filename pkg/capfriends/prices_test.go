package capfriends

import (
	"context"
	"testing"
	"time"
)

func TestSQLiteStore_PriceFeed(t *testing.T) {
	core, cleanup := setupTestCore(t)
	defer cleanup()
	ctx := context.Background()

	for _, p := range []PricePoint{
		{FundCode: "a", Date: "2026-01-02", Price: amt(99.5)},
		{FundCode: "A", Date: "2026-02-02", Price: amt(142.35)},
		{FundCode: "A", Date: "2026-03-02", Price: amt(120)},
		{FundCode: "A", Date: "2026-04-02", Price: amt(300)},
	} {
		assertNoError(t, core.RecordPrice(ctx, p), "record price")
	}

	asOf := time.Date(2026, 3, 10, 0, 0, 0, 0, indiaLocation)
	store := NewSQLiteStore(core.db)

	current, err := store.CurrentPrice(ctx, "A", asOf)
	assertNoError(t, err, "current price")
	assertAmountEquals(t, current, 120, "latest price on or before as-of")

	high, err := store.HistoricalMax(ctx, "A", asOf)
	assertNoError(t, err, "historical max")
	assertAmountEquals(t, high, 142.35, "numeric max, not lexical")

	_, err = store.CurrentPrice(ctx, "A", time.Date(2025, 12, 1, 0, 0, 0, 0, indiaLocation))
	assertErrorCode(t, err, ErrCodePriceUnavailable, "before first price")
	_, err = store.HistoricalMax(ctx, "B", asOf)
	assertErrorCode(t, err, ErrCodePriceUnavailable, "unknown fund")
}

func TestRecordPrice_ReplacesSameDate(t *testing.T) {
	core, cleanup := setupTestCore(t)
	defer cleanup()
	ctx := context.Background()

	assertNoError(t, core.RecordPrice(ctx, PricePoint{FundCode: "A", Price: amt(10)}), "first")
	assertNoError(t, core.RecordPrice(ctx, PricePoint{FundCode: "A", Price: amt(11), Source: "amfi"}), "replace")

	history, err := core.PriceHistory(ctx, "a", 0)
	assertNoError(t, err, "history")
	if len(history) != 1 {
		t.Fatalf("expected 1 price, got %d", len(history))
	}
	if history[0].Date != "2026-03-15" || history[0].Source != "amfi" {
		t.Errorf("unexpected point %+v", history[0])
	}
	assertAmountEquals(t, history[0].Price, 11, "replaced price")
}

func TestRecordPrice_Validation(t *testing.T) {
	core, cleanup := setupTestCore(t)
	defer cleanup()
	ctx := context.Background()

	assertErrorCode(t, core.RecordPrice(ctx, PricePoint{Price: amt(1)}), ErrCodeInvalidInput, "missing fund")
	assertErrorCode(t, core.RecordPrice(ctx, PricePoint{FundCode: "A", Price: amt(0)}), ErrCodeInvalidAmount, "zero price")
	assertErrorCode(t, core.RecordPrice(ctx, PricePoint{FundCode: "A", Price: amt(1), Date: "tomorrow"}), ErrCodeInvalidInput, "bad date")
}

func TestPriceSnapshotAt_SkipsMissing(t *testing.T) {
	core, cleanup := setupTestCore(t)
	defer cleanup()
	ctx := context.Background()

	assertNoError(t, core.RecordPrice(ctx, PricePoint{FundCode: "A", Date: "2026-03-01", Price: amt(50)}), "record")

	prices, aths := core.PriceSnapshotAt(ctx, []string{"A", "B"}, testNow)
	if len(prices) != 1 || len(aths) != 1 {
		t.Fatalf("expected only A, got prices=%v aths=%v", prices, aths)
	}
	assertAmountEquals(t, prices["A"], 50, "A price")
	if _, ok := prices["B"]; ok {
		t.Error("missing price must be absent, not zero")
	}
}

func TestPriceSnapshotAt_NoFeed(t *testing.T) {
	core, _ := setupMemoryCore(t)
	prices, aths := core.PriceSnapshotAt(context.Background(), []string{"A"}, testNow)
	if len(prices) != 0 || len(aths) != 0 {
		t.Errorf("expected empty snapshot without a feed")
	}
	err := core.RecordPrice(context.Background(), PricePoint{FundCode: "A", Price: amt(1)})
	assertErrorCode(t, err, ErrCodeInternal, "read-only feed")
}

// fixedFeed quotes the same price and high for every fund.
type fixedFeed struct {
	price Amount
	high  Amount
}

func (f fixedFeed) CurrentPrice(ctx context.Context, fundCode string, asOf time.Time) (Amount, error) {
	return f.price, nil
}

func (f fixedFeed) HistoricalMax(ctx context.Context, fundCode string, asOf time.Time) (Amount, error) {
	return f.high, nil
}

func TestPriceSnapshotAt_DropsNonPositivePrices(t *testing.T) {
	store := NewMemoryStore()
	core := New(Deps{Ledger: store, Portfolios: store, Funds: store, Prices: fixedFeed{price: amt(0), high: amt(0)}},
		Options{Logger: testLogger(), Now: testClock})

	prices, aths := core.PriceSnapshotAt(context.Background(), []string{"A"}, testNow)
	if len(prices) != 0 || len(aths) != 0 {
		t.Errorf("zero quotes must be absent, got prices=%v aths=%v", prices, aths)
	}
}
