package ledger

import "github.com/shopspring/decimal"

// CurrentStock folds a product's transactions into its stock level:
// sum of IN minus sum of OUT plus signed CORRECTION quantities. The fold is
// order-independent, so the result is reproducible from the transaction log
// regardless of insertion order.
func CurrentStock(txs []*Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range txs {
		switch tx.Type {
		case TxIn:
			total = total.Add(tx.Quantity)
		case TxOut:
			total = total.Sub(tx.Quantity)
		case TxCorrection:
			total = total.Add(tx.Quantity)
		}
	}
	return total
}

// AverageConsumption computes the rolling monthly average over OUT
// transactions flagged includeInAvg: total flagged quantity divided by the
// number of distinct calendar months containing at least one flagged OUT.
// A product with no qualifying months averages zero.
func AverageConsumption(txs []*Transaction) decimal.Decimal {
	months := make(map[string]struct{})
	total := decimal.Zero
	for _, tx := range txs {
		if tx.Type != TxOut || !tx.IncludeInAvg {
			continue
		}
		months[tx.Date.Format("2006-01")] = struct{}{}
		total = total.Add(tx.Quantity)
	}
	if len(months) == 0 {
		return decimal.Zero
	}
	return total.Div(decimal.NewFromInt(int64(len(months))))
}

// Aggregate derives both cache figures for a product, rounded to the two
// decimal places the cache columns store. Rounding happens here, at the
// edge, never inside the summations.
func Aggregate(txs []*Transaction) StockFigures {
	return StockFigures{
		CurrentStock:   CurrentStock(txs).Round(2),
		AvgConsumption: AverageConsumption(txs).Round(2),
	}
}
