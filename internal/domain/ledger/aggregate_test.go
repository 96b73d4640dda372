package ledger

import (
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func tx(txType TxType, qty string, date time.Time, includeInAvg bool) *Transaction {
	return &Transaction{
		Type:         txType,
		Quantity:     decimal.RequireFromString(qty),
		Date:         date,
		IncludeInAvg: includeInAvg,
	}
}

func TestCurrentStock_MixedLedger(t *testing.T) {
	now := time.Now()
	txs := []*Transaction{
		tx(TxIn, "1000", now, false),
		tx(TxOut, "300", now, true),
		tx(TxIn, "500", now, false),
		tx(TxOut, "200", now, true),
		tx(TxCorrection, "-50", now, false),
		tx(TxCorrection, "25", now, false),
	}

	got := CurrentStock(txs)
	if !got.Equal(decimal.RequireFromString("975")) {
		t.Errorf("CurrentStock = %s, want 975", got)
	}
}

func TestCurrentStock_OrderIndependent(t *testing.T) {
	now := time.Now()
	txs := []*Transaction{
		tx(TxIn, "120.50", now, false),
		tx(TxOut, "30.25", now, true),
		tx(TxCorrection, "-10.10", now, false),
		tx(TxIn, "5", now, false),
		tx(TxOut, "0.15", now, false),
	}

	want := CurrentStock(txs)
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		shuffled := make([]*Transaction, len(txs))
		copy(shuffled, txs)
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})
		if got := CurrentStock(shuffled); !got.Equal(want) {
			t.Fatalf("CurrentStock changed under reordering: %s != %s", got, want)
		}
	}
}

func TestCurrentStock_Empty(t *testing.T) {
	if got := CurrentStock(nil); !got.IsZero() {
		t.Errorf("CurrentStock(nil) = %s, want 0", got)
	}
}

func TestAverageConsumption_SixMonths(t *testing.T) {
	quantities := []string{"100", "120", "90", "130", "110", "100"}
	var txs []*Transaction
	for i, q := range quantities {
		date := time.Date(2024, time.Month(i+1), 15, 0, 0, 0, 0, time.UTC)
		txs = append(txs, tx(TxOut, q, date, true))
	}

	got := AverageConsumption(txs).Round(2)
	want := decimal.RequireFromString("108.33")
	if !got.Equal(want) {
		t.Errorf("AverageConsumption = %s, want %s", got, want)
	}

	// An excluded OUT of arbitrary size must not move the average.
	txs = append(txs, tx(TxOut, "99999", time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), false))
	if got := AverageConsumption(txs).Round(2); !got.Equal(want) {
		t.Errorf("AverageConsumption with excluded OUT = %s, want %s", got, want)
	}
}

func TestAverageConsumption_SameMonthCollapses(t *testing.T) {
	date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	txs := []*Transaction{
		tx(TxOut, "40", date, true),
		tx(TxOut, "60", date.AddDate(0, 0, 20), true),
	}

	// Two OUTs in one calendar month count as one month.
	got := AverageConsumption(txs)
	if !got.Equal(decimal.RequireFromString("100")) {
		t.Errorf("AverageConsumption = %s, want 100", got)
	}
}

func TestAverageConsumption_NoQualifyingMonths(t *testing.T) {
	now := time.Now()
	txs := []*Transaction{
		tx(TxIn, "500", now, false),
		tx(TxOut, "100", now, false), // not flagged
	}
	if got := AverageConsumption(txs); !got.IsZero() {
		t.Errorf("AverageConsumption = %s, want 0", got)
	}
}

func TestAggregate_RoundsAtTheEdge(t *testing.T) {
	txs := []*Transaction{
		tx(TxIn, "10.005", time.Now(), false),
		tx(TxOut, "3.333", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), true),
		tx(TxOut, "3.333", time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), true),
		tx(TxOut, "3.333", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), true),
	}

	figures := Aggregate(txs)
	if figures.CurrentStock.Exponent() < -2 {
		t.Errorf("CurrentStock not rounded to 2 places: %s", figures.CurrentStock)
	}
	if !figures.AvgConsumption.Equal(decimal.RequireFromString("3.33")) {
		t.Errorf("AvgConsumption = %s, want 3.33", figures.AvgConsumption)
	}
}

func TestCreateTransactionParams_Validate(t *testing.T) {
	base := CreateTransactionParams{
		ProductID: "p1",
		Type:      TxIn,
		Quantity:  decimal.RequireFromString("10"),
		Date:      time.Now(),
	}

	if err := base.Validate(); err != nil {
		t.Errorf("valid params rejected: %v", err)
	}

	negative := base
	negative.Type = TxOut
	negative.Quantity = decimal.RequireFromString("-5")
	if err := negative.Validate(); err == nil {
		t.Error("negative OUT quantity accepted")
	}

	zeroCorrection := base
	zeroCorrection.Type = TxCorrection
	zeroCorrection.Quantity = decimal.Zero
	if err := zeroCorrection.Validate(); err == nil {
		t.Error("zero correction accepted")
	}

	signedCorrection := base
	signedCorrection.Type = TxCorrection
	signedCorrection.Quantity = decimal.RequireFromString("-12.5")
	if err := signedCorrection.Validate(); err != nil {
		t.Errorf("signed correction rejected: %v", err)
	}

	badType := base
	badType.Type = TxType("TRANSFER")
	if err := badType.Validate(); err == nil {
		t.Error("unknown type accepted")
	}
}
