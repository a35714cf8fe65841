package capfriends

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

var testNow = time.Date(2026, 3, 15, 10, 30, 0, 0, indiaLocation)

func testClock() time.Time { return testNow }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// setupTestCore creates a temporary database for testing and returns a Core instance.
// The caller should defer cleanup() to remove the temp file.
func setupTestCore(t *testing.T) (*Core, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "capfriends-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}

	core, err := OpenWithOptions(Options{
		DBPath: filepath.Join(tmpDir, "test.db"),
		Logger: testLogger(),
		Now:    testClock,
	})
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("failed to open test db: %v", err)
	}

	cleanup := func() {
		core.Close()
		os.RemoveAll(tmpDir)
	}
	return core, cleanup
}

// setupMemoryCore returns a Core over an in-memory store.
func setupMemoryCore(t *testing.T) (*Core, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	core := New(Deps{Ledger: store, Portfolios: store, Funds: store}, Options{
		Logger: testLogger(),
		Now:    testClock,
	})
	return core, store
}

// testPortfolio creates a portfolio with the default threshold.
func testPortfolio(t *testing.T, core *Core, id string) {
	t.Helper()
	_, err := core.CreatePortfolio(context.Background(), Portfolio{ID: id, Name: id})
	if err != nil {
		t.Fatalf("failed to create test portfolio: %v", err)
	}
}

func testBuy(t *testing.T, core *Core, portfolioID, fundCode string, units, price float64) *RecordResult {
	t.Helper()
	res, err := core.RecordTransaction(context.Background(), TransactionIntent{
		PortfolioID: portfolioID,
		Kind:        IntentBuy,
		FundCode:    fundCode,
		Units:       NewAmount(units),
		Price:       NewAmount(price),
	})
	if err != nil {
		t.Fatalf("failed to record test BUY: %v", err)
	}
	return res
}

func testBuyWithTarget(t *testing.T, core *Core, portfolioID, fundCode string, units, price, target float64) *RecordResult {
	t.Helper()
	pct := NewAmount(target)
	res, err := core.RecordTransaction(context.Background(), TransactionIntent{
		PortfolioID:         portfolioID,
		Kind:                IntentBuy,
		FundCode:            fundCode,
		Units:               NewAmount(units),
		Price:               NewAmount(price),
		TargetAllocationPct: &pct,
	})
	if err != nil {
		t.Fatalf("failed to record test BUY: %v", err)
	}
	return res
}

func testSell(t *testing.T, core *Core, portfolioID, fundCode string, units, price float64) *RecordResult {
	t.Helper()
	res, err := core.RecordTransaction(context.Background(), TransactionIntent{
		PortfolioID: portfolioID,
		Kind:        IntentSell,
		FundCode:    fundCode,
		Units:       NewAmount(units),
		Price:       NewAmount(price),
	})
	if err != nil {
		t.Fatalf("failed to record test SELL: %v", err)
	}
	return res
}

func mustHolding(t *testing.T, core *Core, portfolioID, fundCode string) Holding {
	t.Helper()
	holdings, err := core.GetHoldings(context.Background(), portfolioID)
	assertNoError(t, err, "get holdings")
	h, ok := findHolding(holdings, fundCode)
	if !ok {
		t.Fatalf("holding %s/%s not found in %+v", portfolioID, fundCode, holdings)
	}
	return h
}

func amt(f float64) Amount {
	return NewAmount(f)
}

// assertAmountEquals fails the test if the amount is not approximately want.
func assertAmountEquals(t *testing.T, got Amount, want float64, msg string) {
	t.Helper()
	diff := got.Float() - want
	if diff < 0 {
		diff = -diff
	}
	if diff >= 0.001 {
		t.Errorf("%s: got %s, want %.4f", msg, got.String(), want)
	}
}

// assertNoError fails the test if err is not nil.
func assertNoError(t *testing.T, err error, msg string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: unexpected error: %v", msg, err)
	}
}

// assertError fails the test if err is nil.
func assertError(t *testing.T, err error, msg string) {
	t.Helper()
	if err == nil {
		t.Fatalf("%s: expected error but got nil", msg)
	}
}

// assertErrorCode fails the test unless err carries code.
func assertErrorCode(t *testing.T, err error, code ErrorCode, msg string) {
	t.Helper()
	if err == nil {
		t.Fatalf("%s: expected %s but got nil", msg, code)
	}
	if !IsErrorCode(err, code) {
		t.Fatalf("%s: expected %s, got %v", msg, code, err)
	}
}
