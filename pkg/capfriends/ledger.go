package capfriends

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// realizedGain is (sellPrice - avgBuyPrice) * unitsSold.
func realizedGain(sellPrice, avgBuyPrice, units decimal.Decimal) decimal.Decimal {
	return sellPrice.Sub(avgBuyPrice).Mul(units)
}

func newTransactionID() string {
	return uuid.NewString()
}

// buildRows turns a validated intent into ledger rows. held is the pre-sale
// holding of the source fund for SELL and SWITCH; it is ignored for BUY.
func buildRows(in TransactionIntent, held Holding, createdAt string) []Transaction {
	base := Transaction{
		PortfolioID: in.PortfolioID,
		Date:        in.Date,
		Notes:       in.Notes,
		CreatedAt:   createdAt,
	}

	switch in.Kind {
	case IntentBuy:
		row := base
		row.ID = newTransactionID()
		row.FundCode = in.FundCode
		row.Side = SideBuy
		row.Subtype = in.Subtype
		row.Units = in.Units
		row.PricePerUnit = in.Price
		row.TotalAmount = amountOf(in.Units.Mul(in.Price.Decimal))
		return []Transaction{row}

	case IntentSell:
		return []Transaction{sellRow(base, in.FundCode, in.Subtype, in.Units, in.Price, held)}

	case IntentSwitch:
		groupID := uuid.NewString()
		sell := sellRow(base, in.FundCode, SubtypeSwitch, in.Units, in.Price, held)
		sell.GroupID = groupID

		proceeds := in.Units.Mul(in.Price.Decimal)
		buy := base
		buy.ID = newTransactionID()
		buy.GroupID = groupID
		buy.FundCode = in.ToFundCode
		buy.Side = SideBuy
		buy.Subtype = SubtypeSwitch
		buy.Units = amountOf(proceeds.Div(in.ToPrice.Decimal))
		buy.PricePerUnit = in.ToPrice
		buy.TotalAmount = amountOf(buy.Units.Mul(in.ToPrice.Decimal))
		return []Transaction{sell, buy}
	}
	return nil
}

func sellRow(base Transaction, fundCode, subtype string, units, price Amount, held Holding) Transaction {
	row := base
	row.ID = newTransactionID()
	row.FundCode = fundCode
	row.Side = SideSell
	row.Subtype = subtype
	row.Units = units
	row.PricePerUnit = price
	row.TotalAmount = amountOf(units.Mul(price.Decimal))
	row.RealizedGainLoss = amountOf(realizedGain(price.Decimal, held.WeightedAvgCost.Decimal, units.Decimal))
	return row
}

// applyPatch returns the amended copy of row. For SELL rows the realized
// gain is re-measured against the average buy price implied by the row as
// originally booked, not against the current holding.
func applyPatch(row Transaction, p TransactionPatch, updatedAt string) Transaction {
	out := row
	if p.Date != nil {
		out.Date = *p.Date
	}
	if p.Units != nil {
		out.Units = *p.Units
	}
	if p.Price != nil {
		out.PricePerUnit = *p.Price
	}
	if p.Notes != nil {
		out.Notes = *p.Notes
	}
	out.TotalAmount = amountOf(out.Units.Mul(out.PricePerUnit.Decimal))
	if out.Side == SideSell {
		avgBuy := impliedAvgBuyPrice(row)
		out.RealizedGainLoss = amountOf(realizedGain(out.PricePerUnit.Decimal, avgBuy, out.Units.Decimal))
	}
	out.UpdatedAt = &updatedAt
	return out
}

// impliedAvgBuyPrice recovers originalPrice - originalGain/originalUnits.
func impliedAvgBuyPrice(row Transaction) decimal.Decimal {
	if row.Units.IsZero() {
		return row.PricePerUnit.Decimal
	}
	return row.PricePerUnit.Sub(row.RealizedGainLoss.Div(row.Units.Decimal))
}

// replaceRow substitutes row in rows by ID.
func replaceRow(rows []Transaction, row Transaction) []Transaction {
	out := make([]Transaction, len(rows))
	for i, r := range rows {
		if r.ID == row.ID {
			out[i] = row
			continue
		}
		out[i] = r
	}
	return out
}

// withoutRows drops the given IDs from rows.
func withoutRows(rows []Transaction, ids []string) []Transaction {
	out := make([]Transaction, 0, len(rows))
	for _, r := range rows {
		if containsString(ids, r.ID) {
			continue
		}
		out = append(out, r)
	}
	return out
}
