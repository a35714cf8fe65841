package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"capitalfriends/pkg/capfriends"
)

func TestStatusForCode(t *testing.T) {
	tests := []struct {
		code capfriends.ErrorCode
		want int
	}{
		{capfriends.ErrCodeInvalidInput, http.StatusBadRequest},
		{capfriends.ErrCodeInvalidAmount, http.StatusBadRequest},
		{capfriends.ErrCodeInsufficientUnits, http.StatusBadRequest},
		{capfriends.ErrCodeNoSelfSwitch, http.StatusBadRequest},
		{capfriends.ErrCodeAllocationExceeded, http.StatusBadRequest},
		{capfriends.ErrCodeDuplicate, http.StatusConflict},
		{capfriends.ErrCodePortfolioNotFound, http.StatusNotFound},
		{capfriends.ErrCodeFundNotFound, http.StatusNotFound},
		{capfriends.ErrCodeTransactionNotFound, http.StatusNotFound},
		{capfriends.ErrCodeFundNotHeld, http.StatusConflict},
		{capfriends.ErrCodePriceUnavailable, http.StatusBadGateway},
		{capfriends.ErrCodeLedgerWriteFailed, http.StatusBadGateway},
		{capfriends.ErrCodeInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := statusForCode(tt.code); got != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestWriteCoreError(t *testing.T) {
	t.Run("wrapped structured error", func(t *testing.T) {
		inner := capfriends.NewError(capfriends.ErrCodeAllocationExceeded, "too much").
			WithDetail("available", 40)
		err := fmt.Errorf("set target: %w", inner)

		rr := httptest.NewRecorder()
		writeCoreError(rr, httptest.NewRequest(http.MethodGet, "/", nil), err)
		expectStatus(t, rr, http.StatusBadRequest)

		var resp ErrorResponse
		if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if resp.Error != "too much" || resp.ErrorCode != string(capfriends.ErrCodeAllocationExceeded) {
			t.Fatalf("unexpected response %+v", resp)
		}
		if resp.Category != string(capfriends.CategoryValidation) {
			t.Fatalf("expected validation category, got %q", resp.Category)
		}
		if resp.Details["available"] != float64(40) {
			t.Fatalf("expected details, got %v", resp.Details)
		}
	})

	t.Run("plain error", func(t *testing.T) {
		rr := httptest.NewRecorder()
		writeCoreError(rr, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("boom"))
		expectStatus(t, rr, http.StatusInternalServerError)
	})
}

func TestNormalizeLimitOffset(t *testing.T) {
	tests := []struct {
		name       string
		limit      int
		offset     int
		wantLimit  int
		wantOffset int
	}{
		{name: "defaults", limit: 0, offset: 0, wantLimit: 50, wantOffset: 0},
		{name: "negative offset", limit: 25, offset: -5, wantLimit: 25, wantOffset: 0},
		{name: "capped", limit: 10000, offset: 3, wantLimit: 500, wantOffset: 3},
		{name: "pass through", limit: 10, offset: 2, wantLimit: 10, wantOffset: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limit, offset := normalizeLimitOffset(tt.limit, tt.offset)
			if limit != tt.wantLimit || offset != tt.wantOffset {
				t.Fatalf("expected (%d, %d), got (%d, %d)", tt.wantLimit, tt.wantOffset, limit, offset)
			}
		})
	}
}

func TestSplitList(t *testing.T) {
	got := splitList([]string{"mom,dad", " kid ", ""})
	if len(got) != 3 || got[0] != "mom" || got[1] != "dad" || got[2] != "kid" {
		t.Fatalf("unexpected split %v", got)
	}
}
