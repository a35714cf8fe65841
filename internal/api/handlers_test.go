package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"capitalfriends/pkg/capfriends"
)

// setupTestRouter creates a test router over a temporary database.
func setupTestRouter(t *testing.T) (http.Handler, *capfriends.Core) {
	t.Helper()
	return setupRouterWithLogger(t, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func setupRouterWithLogger(t *testing.T, logger *slog.Logger) (http.Handler, *capfriends.Core) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	core, err := capfriends.OpenWithOptions(capfriends.Options{DBPath: dbPath, Logger: logger})
	if err != nil {
		t.Fatalf("open core: %v", err)
	}
	t.Cleanup(func() { _ = core.Close() })
	return NewRouter(core), core
}

// doRequest performs a request and returns the response.
func doRequest(router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	reqBody := bytes.NewBuffer(nil)
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	}
	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func doRawRequest(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

// parseJSON parses the response body into a map.
func parseJSON(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var result map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&result); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
	return result
}

func parseList(t *testing.T, rr *httptest.ResponseRecorder) []map[string]any {
	t.Helper()
	var result []map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&result); err != nil {
		t.Fatalf("decode response list: %v", err)
	}
	return result
}

func expectStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rr.Code, rr.Body.String())
	}
}

func expectNumber(t *testing.T, got any, want float64) {
	t.Helper()
	f, ok := got.(float64)
	if !ok {
		t.Fatalf("expected number %v, got %T %v", want, got, got)
	}
	if math.Abs(f-want) > 0.001 {
		t.Fatalf("expected %v, got %v", want, f)
	}
}

func createPortfolio(t *testing.T, router http.Handler, id string) {
	t.Helper()
	rr := doRequest(router, http.MethodPost, "/api/portfolios", map[string]any{
		"id":                  id,
		"name":                id + " family",
		"periodic_sip_budget": 10000,
		"lumpsum_budget":      50000,
	})
	expectStatus(t, rr, http.StatusCreated)
}

func recordBuy(t *testing.T, router http.Handler, pid, fund string, units, price float64, target any) string {
	t.Helper()
	body := map[string]any{
		"portfolio_id": pid,
		"kind":         "BUY",
		"fund_code":    fund,
		"date":         "2026-01-10",
		"units":        units,
		"price":        price,
	}
	if target != nil {
		body["target_allocation_pct"] = target
	}
	rr := doRequest(router, http.MethodPost, "/api/transactions", body)
	expectStatus(t, rr, http.StatusCreated)
	return parseJSON(t, rr)["transaction_id"].(string)
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := setupTestRouter(t)

	rr := doRequest(router, http.MethodGet, "/api/health", nil)
	expectStatus(t, rr, http.StatusOK)
	if parseJSON(t, rr)["status"] != "ok" {
		t.Fatalf("expected status ok")
	}
}

func TestPortfolioEndpoints(t *testing.T) {
	router, _ := setupTestRouter(t)

	rr := doRequest(router, http.MethodGet, "/api/portfolios", nil)
	expectStatus(t, rr, http.StatusOK)
	if got := parseList(t, rr); len(got) != 0 {
		t.Fatalf("expected no portfolios, got %d", len(got))
	}

	createPortfolio(t, router, "dad")

	rr = doRequest(router, http.MethodPost, "/api/portfolios", map[string]any{"id": "dad"})
	expectStatus(t, rr, http.StatusConflict)
	if parseJSON(t, rr)["error_code"] != string(capfriends.ErrCodeDuplicate) {
		t.Fatalf("expected DUPLICATE error code")
	}

	rr = doRequest(router, http.MethodPut, "/api/portfolios/dad", map[string]any{
		"owner":                   "Ravi",
		"rebalance_threshold_pct": 7.5,
	})
	expectStatus(t, rr, http.StatusOK)
	updated := parseJSON(t, rr)
	if updated["owner"] != "Ravi" {
		t.Fatalf("expected owner Ravi, got %v", updated["owner"])
	}
	expectNumber(t, updated["rebalance_threshold_pct"], 7.5)
	expectNumber(t, updated["periodic_sip_budget"], 10000)

	rr = doRequest(router, http.MethodGet, "/api/portfolios/dad", nil)
	expectStatus(t, rr, http.StatusOK)
	if parseJSON(t, rr)["name"] != "dad family" {
		t.Fatalf("expected name to survive update")
	}

	rr = doRequest(router, http.MethodPut, "/api/portfolios/dad", map[string]any{"rebalance_threshold_pct": 150})
	expectStatus(t, rr, http.StatusBadRequest)

	rr = doRequest(router, http.MethodPost, "/api/portfolios", map[string]any{"id": "strict", "rebalance_threshold_pct": 0})
	expectStatus(t, rr, http.StatusCreated)
	expectNumber(t, parseJSON(t, rr)["rebalance_threshold_pct"], 0)
}

func TestPortfolioNotFoundCarriesDetails(t *testing.T) {
	router, _ := setupTestRouter(t)

	rr := doRequest(router, http.MethodGet, "/api/portfolios/ghost/holdings", nil)
	expectStatus(t, rr, http.StatusNotFound)
	body := parseJSON(t, rr)
	if body["error_code"] != string(capfriends.ErrCodePortfolioNotFound) {
		t.Fatalf("expected PORTFOLIO_NOT_FOUND, got %v", body["error_code"])
	}
	if body["category"] != string(capfriends.CategoryNotFound) {
		t.Fatalf("expected not_found category, got %v", body["category"])
	}
	details, _ := body["details"].(map[string]any)
	if details["portfolio_id"] != "ghost" {
		t.Fatalf("expected portfolio_id detail, got %v", body["details"])
	}
	if body["request_id"] == "" || body["request_id"] == nil {
		t.Fatalf("expected request id in error body")
	}
}

func TestTransactionLifecycle(t *testing.T) {
	router, _ := setupTestRouter(t)
	createPortfolio(t, router, "mom")

	id := recordBuy(t, router, "mom", "ppfas", 100, 100, 60)

	rr := doRequest(router, http.MethodGet, "/api/transactions/"+id, nil)
	expectStatus(t, rr, http.StatusOK)
	row := parseJSON(t, rr)
	if row["fund_code"] != "PPFAS" || row["subtype"] != capfriends.SubtypeInitial {
		t.Fatalf("unexpected row %v", row)
	}

	rr = doRequest(router, http.MethodGet, "/api/portfolios/mom/holdings", nil)
	expectStatus(t, rr, http.StatusOK)
	holdings := parseList(t, rr)
	if len(holdings) != 1 {
		t.Fatalf("expected 1 holding, got %d", len(holdings))
	}
	expectNumber(t, holdings[0]["units"], 100)
	expectNumber(t, holdings[0]["target_allocation_pct"], 60)

	rr = doRequest(router, http.MethodPost, "/api/transactions", map[string]any{
		"portfolio_id": "mom",
		"kind":         "SELL",
		"fund_code":    "PPFAS",
		"date":         "2026-02-01",
		"units":        40,
		"price":        120,
	})
	expectStatus(t, rr, http.StatusCreated)
	sellID := parseJSON(t, rr)["transaction_id"].(string)

	rr = doRequest(router, http.MethodGet, "/api/transactions/"+sellID, nil)
	expectStatus(t, rr, http.StatusOK)
	expectNumber(t, parseJSON(t, rr)["realized_gain_loss"], 800)

	rr = doRequest(router, http.MethodPatch, "/api/transactions/"+sellID, map[string]any{"units": 50})
	expectStatus(t, rr, http.StatusOK)
	expectNumber(t, parseJSON(t, rr)["units"], 50)

	rr = doRequest(router, http.MethodGet, "/api/portfolios/mom/transactions?fund_code=ppfas", nil)
	expectStatus(t, rr, http.StatusOK)
	if got := parseList(t, rr); len(got) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(got))
	}

	rr = doRequest(router, http.MethodDelete, "/api/transactions/"+sellID, nil)
	expectStatus(t, rr, http.StatusOK)

	rr = doRequest(router, http.MethodGet, "/api/transactions/"+sellID, nil)
	expectStatus(t, rr, http.StatusNotFound)

	rr = doRequest(router, http.MethodDelete, "/api/transactions/"+sellID, nil)
	expectStatus(t, rr, http.StatusNotFound)
}

func TestRecordTransactionRejections(t *testing.T) {
	router, _ := setupTestRouter(t)
	createPortfolio(t, router, "mom")
	recordBuy(t, router, "mom", "PPFAS", 10, 100, 60)

	tests := []struct {
		name   string
		body   map[string]any
		status int
		code   capfriends.ErrorCode
	}{
		{
			name:   "oversell",
			body:   map[string]any{"portfolio_id": "mom", "kind": "SELL", "fund_code": "PPFAS", "units": 11, "price": 100},
			status: http.StatusBadRequest,
			code:   capfriends.ErrCodeInsufficientUnits,
		},
		{
			name:   "unheld fund",
			body:   map[string]any{"portfolio_id": "mom", "kind": "SELL", "fund_code": "HDFC", "units": 1, "price": 100},
			status: http.StatusConflict,
			code:   capfriends.ErrCodeFundNotHeld,
		},
		{
			name:   "self switch",
			body:   map[string]any{"portfolio_id": "mom", "kind": "SWITCH", "fund_code": "PPFAS", "to_fund_code": "ppfas", "units": 1, "price": 100, "to_price": 50},
			status: http.StatusBadRequest,
			code:   capfriends.ErrCodeNoSelfSwitch,
		},
		{
			name:   "zero price",
			body:   map[string]any{"portfolio_id": "mom", "kind": "BUY", "fund_code": "PPFAS", "units": 1, "price": 0},
			status: http.StatusBadRequest,
			code:   capfriends.ErrCodeInvalidAmount,
		},
		{
			name:   "unknown portfolio",
			body:   map[string]any{"portfolio_id": "nobody", "kind": "BUY", "fund_code": "PPFAS", "units": 1, "price": 10},
			status: http.StatusNotFound,
			code:   capfriends.ErrCodePortfolioNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doRequest(router, http.MethodPost, "/api/transactions", tt.body)
			expectStatus(t, rr, tt.status)
			if got := parseJSON(t, rr)["error_code"]; got != string(tt.code) {
				t.Fatalf("expected %s, got %v", tt.code, got)
			}
		})
	}

	rr := doRawRequest(router, http.MethodPost, "/api/transactions", "{bad}")
	expectStatus(t, rr, http.StatusBadRequest)

	rr = doRequest(router, http.MethodPost, "/api/transactions", map[string]any{"portfolio_id": "mom", "unknown": true})
	expectStatus(t, rr, http.StatusBadRequest)
}

func TestSwitchEndpoint(t *testing.T) {
	router, _ := setupTestRouter(t)
	createPortfolio(t, router, "mom")
	recordBuy(t, router, "mom", "PPFAS", 100, 50, 40)
	recordBuy(t, router, "mom", "HDFC", 10, 100, 30)

	rr := doRequest(router, http.MethodPost, "/api/transactions", map[string]any{
		"portfolio_id":          "mom",
		"kind":                  "SWITCH",
		"fund_code":             "PPFAS",
		"to_fund_code":          "ICICI",
		"units":                 100,
		"price":                 60,
		"to_price":              20,
		"target_allocation_pct": 70,
	})
	expectStatus(t, rr, http.StatusCreated)
	result := parseJSON(t, rr)
	if result["group_id"] == nil || result["pair_transaction_id"] == nil {
		t.Fatalf("expected switch group ids, got %v", result)
	}

	rr = doRequest(router, http.MethodGet, "/api/portfolios/mom/holdings", nil)
	holdings := parseList(t, rr)
	if len(holdings) != 2 {
		t.Fatalf("expected HDFC and ICICI, got %d holdings", len(holdings))
	}
	icici := holdings[1]
	if icici["fund_code"] != "ICICI" {
		t.Fatalf("expected ICICI second, got %v", icici["fund_code"])
	}
	expectNumber(t, icici["units"], 300)
	expectNumber(t, icici["target_allocation_pct"], 70)

	// Retracting the sell leg removes the whole switch.
	rr = doRequest(router, http.MethodDelete, "/api/transactions/"+result["transaction_id"].(string), nil)
	expectStatus(t, rr, http.StatusOK)
	rr = doRequest(router, http.MethodGet, "/api/transactions/"+result["pair_transaction_id"].(string), nil)
	expectStatus(t, rr, http.StatusNotFound)
}

func TestTargetEndpoints(t *testing.T) {
	router, _ := setupTestRouter(t)
	createPortfolio(t, router, "mom")
	recordBuy(t, router, "mom", "PPFAS", 10, 100, 60)
	recordBuy(t, router, "mom", "HDFC", 10, 100, nil)

	rr := doRequest(router, http.MethodPut, "/api/portfolios/mom/targets/hdfc", map[string]any{"target_allocation_pct": 50})
	expectStatus(t, rr, http.StatusBadRequest)
	body := parseJSON(t, rr)
	if body["error_code"] != string(capfriends.ErrCodeAllocationExceeded) {
		t.Fatalf("expected ALLOCATION_EXCEEDED, got %v", body["error_code"])
	}
	details := body["details"].(map[string]any)
	expectNumber(t, details["current_total"], 60)
	expectNumber(t, details["available"], 40)

	rr = doRequest(router, http.MethodPut, "/api/portfolios/mom/targets/hdfc", map[string]any{"target_allocation_pct": 40})
	expectStatus(t, rr, http.StatusOK)

	rr = doRequest(router, http.MethodGet, "/api/portfolios/mom/targets", nil)
	expectStatus(t, rr, http.StatusOK)
	summary := parseJSON(t, rr)
	expectNumber(t, summary["total_target_pct"], 100)
	expectNumber(t, summary["available_pct"], 0)

	rr = doRequest(router, http.MethodPut, "/api/portfolios/mom/targets/axis", map[string]any{"target_allocation_pct": 0})
	expectStatus(t, rr, http.StatusConflict)

	rr = doRequest(router, http.MethodPut, "/api/portfolios/mom/targets/hdfc", map[string]any{})
	expectStatus(t, rr, http.StatusBadRequest)
}

func TestPlanEndpoint(t *testing.T) {
	router, _ := setupTestRouter(t)
	createPortfolio(t, router, "mom")
	recordBuy(t, router, "mom", "PPFAS", 100, 100, 100)

	rr := doRequest(router, http.MethodPost, "/api/portfolios/mom/plan", map[string]any{
		"prices": map[string]any{"ppfas": 120},
	})
	expectStatus(t, rr, http.StatusOK)
	plan := parseJSON(t, rr)
	expectNumber(t, plan["total_current_value"], 12000)
	expectNumber(t, plan["total_unrealized_pl"], 2000)
	funds := plan["funds"].([]any)
	if len(funds) != 1 {
		t.Fatalf("expected 1 fund plan, got %d", len(funds))
	}
	fund := funds[0].(map[string]any)
	expectNumber(t, fund["current_allocation_pct"], 100)
	if fund["action"] != capfriends.ActionHold {
		t.Fatalf("expected HOLD, got %v", fund["action"])
	}

	// Without a stored NAV the fund is reported unavailable.
	rr = doRequest(router, http.MethodGet, "/api/portfolios/mom/plan", nil)
	expectStatus(t, rr, http.StatusOK)
	plan = parseJSON(t, rr)
	if missing, _ := plan["price_unavailable"].([]any); len(missing) != 1 {
		t.Fatalf("expected PPFAS unavailable, got %v", plan["price_unavailable"])
	}

	rr = doRequest(router, http.MethodPost, "/api/prices", map[string]any{"fund_code": "ppfas", "price": 110})
	expectStatus(t, rr, http.StatusOK)

	rr = doRequest(router, http.MethodGet, "/api/portfolios/mom/plan", nil)
	expectStatus(t, rr, http.StatusOK)
	expectNumber(t, parseJSON(t, rr)["total_current_value"], 11000)
}

func TestSignalsEndpoint(t *testing.T) {
	router, _ := setupTestRouter(t)
	createPortfolio(t, router, "mom")
	createPortfolio(t, router, "dad")
	recordBuy(t, router, "mom", "PPFAS", 10, 100, nil)
	recordBuy(t, router, "dad", "PPFAS", 10, 100, nil)

	rr := doRequest(router, http.MethodPost, "/api/signals", map[string]any{
		"prices": map[string]any{"PPFAS": 142.35},
		"ath":    map[string]any{"PPFAS": 168.50},
	})
	expectStatus(t, rr, http.StatusOK)
	signals := parseList(t, rr)
	if len(signals) != 1 {
		t.Fatalf("expected one signal across portfolios, got %d", len(signals))
	}
	if signals[0]["tier"] != capfriends.TierGoodBuy {
		t.Fatalf("expected Good Buy, got %v", signals[0]["tier"])
	}
	if ids := signals[0]["portfolio_ids"].([]any); len(ids) != 2 {
		t.Fatalf("expected both portfolios, got %v", ids)
	}

	rr = doRequest(router, http.MethodGet, "/api/signals?portfolio_id=mom", nil)
	expectStatus(t, rr, http.StatusOK)
	if got := parseList(t, rr); len(got) != 0 {
		t.Fatalf("expected no signals without prices, got %d", len(got))
	}
}

func TestFundAndPriceEndpoints(t *testing.T) {
	router, _ := setupTestRouter(t)

	rr := doRequest(router, http.MethodPut, "/api/funds/ppfas", map[string]any{
		"display_name": "Parag Parikh Flexi Cap",
		"category":     "Flexi Cap",
	})
	expectStatus(t, rr, http.StatusOK)

	rr = doRequest(router, http.MethodGet, "/api/funds/PPFAS", nil)
	expectStatus(t, rr, http.StatusOK)
	if parseJSON(t, rr)["display_name"] != "Parag Parikh Flexi Cap" {
		t.Fatalf("expected display name")
	}

	rr = doRequest(router, http.MethodGet, "/api/funds/NOPE", nil)
	expectStatus(t, rr, http.StatusNotFound)

	rr = doRequest(router, http.MethodGet, "/api/funds", nil)
	expectStatus(t, rr, http.StatusOK)
	if got := parseList(t, rr); len(got) != 1 {
		t.Fatalf("expected 1 fund, got %d", len(got))
	}

	for _, p := range []map[string]any{
		{"fund_code": "PPFAS", "date": "2026-01-01", "price": 70.5},
		{"fund_code": "PPFAS", "date": "2026-01-02", "price": 71.25},
	} {
		rr = doRequest(router, http.MethodPost, "/api/prices", p)
		expectStatus(t, rr, http.StatusOK)
	}
	rr = doRequest(router, http.MethodPost, "/api/prices", map[string]any{"fund_code": "PPFAS", "price": -1})
	expectStatus(t, rr, http.StatusBadRequest)

	rr = doRequest(router, http.MethodGet, "/api/prices/ppfas?limit=10", nil)
	expectStatus(t, rr, http.StatusOK)
	history := parseList(t, rr)
	if len(history) != 2 || history[0]["date"] != "2026-01-01" {
		t.Fatalf("unexpected history %v", history)
	}
}

func TestOperationLogsEndpoint(t *testing.T) {
	router, _ := setupTestRouter(t)
	createPortfolio(t, router, "mom")
	recordBuy(t, router, "mom", "PPFAS", 10, 100, nil)

	rr := doRequest(router, http.MethodGet, "/api/operation-logs?limit=1", nil)
	expectStatus(t, rr, http.StatusOK)
	logs := parseList(t, rr)
	if len(logs) != 1 {
		t.Fatalf("expected 1 log, got %d", len(logs))
	}
	if logs[0]["operation"] != "TRANSACTION_BUY" {
		t.Fatalf("expected newest log first, got %v", logs[0]["operation"])
	}
}

func TestStorageInfoEndpoint(t *testing.T) {
	router, core := setupTestRouter(t)

	rr := doRequest(router, http.MethodGet, "/api/storage", nil)
	expectStatus(t, rr, http.StatusOK)
	info := parseJSON(t, rr)
	if info["db_path"] != core.DBPath() || info["db_name"] != "test.db" {
		t.Fatalf("unexpected storage info %v", info)
	}
	if available := info["available"].([]any); len(available) != 1 {
		t.Fatalf("expected the open db listed, got %v", available)
	}
}

func TestCommentaryRequiresAPIKey(t *testing.T) {
	router, _ := setupTestRouter(t)
	createPortfolio(t, router, "mom")

	rr := doRequest(router, http.MethodPost, "/api/portfolios/mom/commentary", nil)
	expectStatus(t, rr, http.StatusBadRequest)
	if parseJSON(t, rr)["error_code"] != string(capfriends.ErrCodeInvalidInput) {
		t.Fatalf("expected INVALID_INPUT")
	}
}
