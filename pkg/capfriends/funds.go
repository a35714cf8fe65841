package capfriends

import (
	"context"
	"database/sql"
	"strings"
)

// LookupFund implements FundReference.
func (s *SQLiteStore) LookupFund(ctx context.Context, code string) (FundInfo, bool) {
	var info FundInfo
	var category sql.NullString
	err := s.db.QueryRowContext(ctx, "SELECT code, display_name, category FROM funds WHERE code = ?", normalizeFundCode(code)).
		Scan(&info.Code, &info.DisplayName, &category)
	if err != nil {
		return FundInfo{}, false
	}
	if category.Valid {
		info.Category = category.String
	}
	return info, true
}

// UpsertFund inserts or updates fund labels.
func (s *SQLiteStore) UpsertFund(ctx context.Context, info FundInfo) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO funds (code, display_name, category)
		VALUES (?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET
			display_name = excluded.display_name,
			category = excluded.category
	`, info.Code, info.DisplayName, nullString(stringPtr(info.Category)))
	if err != nil {
		return WrapError(ErrCodeDatabase, "upsert fund", err)
	}
	return nil
}

// ListFunds returns every known fund ordered by code.
func (s *SQLiteStore) ListFunds(ctx context.Context) ([]FundInfo, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT code, display_name, category FROM funds ORDER BY code")
	if err != nil {
		return nil, WrapError(ErrCodeDatabase, "list funds", err)
	}
	defer rows.Close()
	var out []FundInfo
	for rows.Next() {
		var info FundInfo
		var category sql.NullString
		if err := rows.Scan(&info.Code, &info.DisplayName, &category); err != nil {
			return nil, WrapError(ErrCodeDatabase, "scan fund", err)
		}
		if category.Valid {
			info.Category = category.String
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// fundRegistry is implemented by stores that can persist fund labels.
type fundRegistry interface {
	UpsertFund(ctx context.Context, info FundInfo) error
	ListFunds(ctx context.Context) ([]FundInfo, error)
}

// UpsertFund stores display labels for a fund.
func (c *Core) UpsertFund(ctx context.Context, info FundInfo) error {
	info.Code = normalizeFundCode(info.Code)
	info.DisplayName = strings.TrimSpace(info.DisplayName)
	info.Category = strings.TrimSpace(info.Category)
	if info.Code == "" {
		return NewError(ErrCodeInvalidInput, "fund code required")
	}
	if info.DisplayName == "" {
		info.DisplayName = info.Code
	}
	reg, ok := c.funds.(fundRegistry)
	if !ok {
		return NewError(ErrCodeInternal, "fund reference is read-only")
	}
	if err := reg.UpsertFund(ctx, info); err != nil {
		return err
	}
	c.cache.invalidateAll()
	return nil
}

// ListFunds returns the known fund labels.
func (c *Core) ListFunds(ctx context.Context) ([]FundInfo, error) {
	reg, ok := c.funds.(fundRegistry)
	if !ok {
		return nil, NewError(ErrCodeInternal, "fund reference cannot be listed")
	}
	return reg.ListFunds(ctx)
}

// GetFund returns labels for one fund.
func (c *Core) GetFund(ctx context.Context, code string) (*FundInfo, error) {
	if c.funds == nil {
		return nil, NewErrorf(ErrCodeFundNotFound, "fund %s not found", code)
	}
	info, ok := c.funds.LookupFund(ctx, normalizeFundCode(code))
	if !ok {
		return nil, NewErrorf(ErrCodeFundNotFound, "fund %s not found", normalizeFundCode(code))
	}
	return &info, nil
}

// labelHoldings fills display labels; unknown funds keep their code.
func (c *Core) labelHoldings(ctx context.Context, holdings []Holding) {
	if c.funds == nil {
		return
	}
	for i := range holdings {
		if info, ok := c.funds.LookupFund(ctx, holdings[i].FundCode); ok {
			holdings[i].DisplayName = info.DisplayName
			holdings[i].Category = info.Category
		}
	}
}
