package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"capitalfriends/pkg/capfriends"
)

var hundredPct = capfriends.NewAmountFromInt(100)

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Portfolios.

func (h *handler) listPortfolios(w http.ResponseWriter, r *http.Request) {
	result, err := h.core.ListPortfolios(r.Context())
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) createPortfolio(w http.ResponseWriter, r *http.Request) {
	var payload createPortfolioPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p := capfriends.Portfolio{
		ID:                    payload.ID,
		Name:                  payload.Name,
		Owner:                 payload.Owner,
		RebalanceThresholdPct: payload.RebalanceThresholdPct,
	}
	if payload.PeriodicSIPBudget != nil {
		p.PeriodicSIPBudget = *payload.PeriodicSIPBudget
	}
	if payload.LumpsumBudget != nil {
		p.LumpsumBudget = *payload.LumpsumBudget
	}
	created, err := h.core.CreatePortfolio(r.Context(), p)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *handler) getPortfolio(w http.ResponseWriter, r *http.Request) {
	p, err := h.core.GetPortfolio(r.Context(), chi.URLParam(r, "portfolioID"))
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *handler) updatePortfolio(w http.ResponseWriter, r *http.Request) {
	var payload capfriends.PortfolioUpdate
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := h.core.UpdatePortfolio(r.Context(), chi.URLParam(r, "portfolioID"), payload)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *handler) getHoldings(w http.ResponseWriter, r *http.Request) {
	result, err := h.core.GetHoldings(r.Context(), chi.URLParam(r, "portfolioID"))
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	if result == nil {
		result = []capfriends.Holding{}
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	result, err := h.core.ListTransactions(r.Context(), chi.URLParam(r, "portfolioID"), r.URL.Query().Get("fund_code"))
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) getPlan(w http.ResponseWriter, r *http.Request) {
	var payload planPayload
	if r.Method == http.MethodPost {
		if err := decodeOptionalJSON(r, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	plan, err := h.core.GetRebalancePlan(r.Context(), chi.URLParam(r, "portfolioID"), payload.Prices)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (h *handler) planCommentary(w http.ResponseWriter, r *http.Request) {
	var payload commentaryPayload
	if err := decodeOptionalJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req := capfriends.PlanCommentaryRequest{
		BaseURL:     firstNonEmpty(payload.BaseURL, h.commentary.BaseURL),
		APIKey:      firstNonEmpty(payload.APIKey, h.commentary.APIKey),
		Model:       firstNonEmpty(payload.Model, h.commentary.Model),
		PortfolioID: chi.URLParam(r, "portfolioID"),
		Prices:      payload.Prices,
	}
	result, err := h.core.PlanCommentary(r.Context(), req)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) getTargets(w http.ResponseWriter, r *http.Request) {
	pid := chi.URLParam(r, "portfolioID")
	total, err := h.core.GetTotalTargetAllocation(r.Context(), pid)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	available := capfriends.Amount{Decimal: hundredPct.Sub(total.Decimal)}
	writeJSON(w, http.StatusOK, targetSummary{PortfolioID: pid, TotalTargetPct: total, AvailablePct: available})
}

func (h *handler) setTarget(w http.ResponseWriter, r *http.Request) {
	var payload targetPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if payload.TargetAllocationPct == nil {
		writeError(w, http.StatusBadRequest, "target_allocation_pct is required")
		return
	}
	pid := chi.URLParam(r, "portfolioID")
	if err := h.core.SetTargetAllocation(r.Context(), pid, chi.URLParam(r, "fundCode"), *payload.TargetAllocationPct); err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// Ledger.

func (h *handler) recordTransaction(w http.ResponseWriter, r *http.Request) {
	var payload recordTransactionPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := h.core.RecordTransaction(r.Context(), capfriends.TransactionIntent{
		PortfolioID:         payload.PortfolioID,
		Kind:                payload.Kind,
		Subtype:             payload.Subtype,
		FundCode:            payload.FundCode,
		Date:                payload.Date,
		Units:               payload.Units,
		Price:               payload.Price,
		Notes:               payload.Notes,
		TargetAllocationPct: payload.TargetAllocationPct,
		ToFundCode:          payload.ToFundCode,
		ToPrice:             payload.ToPrice,
	})
	if err != nil {
		// The ledger write may have landed even though the target did not.
		if result != nil {
			writeJSON(w, http.StatusMultiStatus, map[string]any{"result": result, "error": err.Error()})
			return
		}
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *handler) getTransaction(w http.ResponseWriter, r *http.Request) {
	t, err := h.core.GetTransaction(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *handler) amendTransaction(w http.ResponseWriter, r *http.Request) {
	var payload amendTransactionPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	t, err := h.core.AmendTransaction(r.Context(), chi.URLParam(r, "id"), capfriends.TransactionPatch{
		Date:  payload.Date,
		Units: payload.Units,
		Price: payload.Price,
		Notes: payload.Notes,
	})
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *handler) retractTransaction(w http.ResponseWriter, r *http.Request) {
	if err := h.core.RetractTransaction(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Signals.

func (h *handler) getSignals(w http.ResponseWriter, r *http.Request) {
	var payload signalsPayload
	if r.Method == http.MethodPost {
		if err := decodeOptionalJSON(r, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if len(payload.PortfolioIDs) == 0 {
		payload.PortfolioIDs = splitList(r.URL.Query()["portfolio_id"])
	}
	signals, err := h.core.GetBuySignals(r.Context(), payload.PortfolioIDs, payload.Prices, payload.ATH)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, signals)
}

// Funds and prices.

func (h *handler) listFunds(w http.ResponseWriter, r *http.Request) {
	funds, err := h.core.ListFunds(r.Context())
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, funds)
}

func (h *handler) getFund(w http.ResponseWriter, r *http.Request) {
	fund, err := h.core.GetFund(r.Context(), chi.URLParam(r, "fundCode"))
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fund)
}

func (h *handler) upsertFund(w http.ResponseWriter, r *http.Request) {
	var payload fundPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	info := capfriends.FundInfo{
		Code:        chi.URLParam(r, "fundCode"),
		DisplayName: payload.DisplayName,
		Category:    payload.Category,
	}
	if err := h.core.UpsertFund(r.Context(), info); err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *handler) recordPrice(w http.ResponseWriter, r *http.Request) {
	var payload pricePayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	err := h.core.RecordPrice(r.Context(), capfriends.PricePoint{
		FundCode: payload.FundCode,
		Date:     payload.Date,
		Price:    payload.Price,
		Source:   payload.Source,
	})
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

func (h *handler) priceHistory(w http.ResponseWriter, r *http.Request) {
	limit := parseIntDefault(r.URL.Query().Get("limit"), 0)
	points, err := h.core.PriceHistory(r.Context(), chi.URLParam(r, "fundCode"), limit)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, points)
}

func (h *handler) getOperationLogs(w http.ResponseWriter, r *http.Request) {
	limit := parseIntDefault(r.URL.Query().Get("limit"), 50)
	offset := parseIntDefault(r.URL.Query().Get("offset"), 0)
	limit, offset = normalizeLimitOffset(limit, offset)
	logs, err := h.core.GetOperationLogs(r.Context(), limit, offset)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

// Helpers.

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

// decodeOptionalJSON treats an empty body as an empty payload.
func decodeOptionalJSON(r *http.Request, dst any) error {
	if err := decodeJSON(r, dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func parseIntDefault(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return i
}

func normalizeLimitOffset(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// splitList accepts both repeated and comma-separated query values.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
