package sales

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"retail-sim-lab/internal/catalog"
	"retail-sim-lab/internal/domain"
)

func testRange() (domain.Date, domain.Date) {
	return domain.NewDate(2024, time.November, 1), domain.NewDate(2024, time.November, 7)
}

func TestGenerate_CertainSaleEveryCell(t *testing.T) {
	// 10 products over 7 days at probability 1.0 → exactly one record per
	// cell, 70 records total.
	products, err := catalog.Generate(10, 42)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	start, end := testRange()

	records, err := Generate(products, start, end, 1.0, 42)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(records) != 70 {
		t.Fatalf("got %d records, want 70", len(records))
	}

	// Emission order: day ascending, then product ID; transaction IDs
	// sequential from TXN000001.
	for i, rec := range records {
		wantTxn := fmt.Sprintf(domain.TransactionIDFormat, i+1)
		if rec.TransactionID != wantTxn {
			t.Errorf("record %d: transaction id %q, want %q", i, rec.TransactionID, wantTxn)
		}
		wantDay := start.AddDays(i / 10)
		if rec.Date != wantDay {
			t.Errorf("record %d: date %s, want %s", i, rec.Date, wantDay)
		}
		wantProduct := products[i%10].ProductID
		if rec.ProductID != wantProduct {
			t.Errorf("record %d: product %q, want %q", i, rec.ProductID, wantProduct)
		}
	}
}

func TestGenerate_ZeroProbabilityNoSales(t *testing.T) {
	products, _ := catalog.Generate(10, 42)
	start, end := testRange()

	records, err := Generate(products, start, end, 0.0, 42)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("got %d records, want 0", len(records))
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	products, _ := catalog.Generate(20, 7)
	start, end := testRange()

	a, err := Generate(products, start, end, 0.7, 7)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	b, err := Generate(products, start, end, 0.7, 7)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].TransactionID != b[i].TransactionID || a[i].ProductID != b[i].ProductID ||
			a[i].Quantity != b[i].Quantity || !a[i].Revenue.Equal(b[i].Revenue) || a[i].Date != b[i].Date {
			t.Errorf("record %d differs between runs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestGenerate_RecordInvariants(t *testing.T) {
	products, _ := catalog.Generate(30, 11)
	start, end := testRange()

	records, err := Generate(products, start, end, 0.7, 11)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(records) == 0 {
		t.Fatal("expected some records at probability 0.7")
	}

	byID := make(map[string]domain.Product, len(products))
	for _, p := range products {
		byID[p.ProductID] = p
	}
	for _, rec := range records {
		if rec.Quantity < 1 || rec.Quantity > 5 {
			t.Errorf("%s: quantity %d outside [1, 5]", rec.TransactionID, rec.Quantity)
		}
		if !rec.ConsistentRevenue() {
			t.Errorf("%s: revenue %s != %s x %d", rec.TransactionID, rec.Revenue, rec.UnitPrice, rec.Quantity)
		}
		p, ok := byID[rec.ProductID]
		if !ok {
			t.Errorf("%s: unknown product %s", rec.TransactionID, rec.ProductID)
			continue
		}
		if rec.ProductName != p.Name || rec.Category != p.Category || !rec.UnitPrice.Equal(p.Price) {
			t.Errorf("%s: denormalized fields diverge from catalog", rec.TransactionID)
		}
		if rec.Date.Before(start) || rec.Date.After(end) {
			t.Errorf("%s: date %s outside range", rec.TransactionID, rec.Date)
		}
	}
}

// cellOutcomes maps each (product, day) cell to its drawn quantity, with 0
// meaning no sale. Transaction IDs are excluded on purpose: they depend on
// emission order across the whole run.
func cellOutcomes(records []domain.SaleRecord) map[domain.SaleKey]int64 {
	out := make(map[domain.SaleKey]int64, len(records))
	for _, rec := range records {
		out[rec.Key()] = rec.Quantity
	}
	return out
}

func TestGenerate_CatalogGrowthKeepsCells(t *testing.T) {
	// Adding products must not change outcomes for existing cells.
	small, _ := catalog.Generate(5, 42)
	large, _ := catalog.Generate(25, 42)
	start, end := testRange()

	smallRecs, err := Generate(small, start, end, 0.7, 42)
	if err != nil {
		t.Fatalf("Generate small: %v", err)
	}
	largeRecs, err := Generate(large, start, end, 0.7, 42)
	if err != nil {
		t.Fatalf("Generate large: %v", err)
	}

	largeCells := cellOutcomes(largeRecs)
	for key, quantity := range cellOutcomes(smallRecs) {
		if largeCells[key] != quantity {
			t.Errorf("cell %s/%s: quantity %d with small catalog, %d with large",
				key.ProductID, key.Date, quantity, largeCells[key])
		}
	}
	// And the reverse: cells of shared products absent from the small run
	// must be absent from the large run too.
	smallCells := cellOutcomes(smallRecs)
	for key, quantity := range largeCells {
		if key.ProductID > small[len(small)-1].ProductID {
			continue
		}
		if smallCells[key] != quantity {
			t.Errorf("cell %s/%s: quantity %d with large catalog, %d with small",
				key.ProductID, key.Date, quantity, smallCells[key])
		}
	}
}

func TestGenerate_RangeGrowthKeepsCells(t *testing.T) {
	// Extending the date range must not change outcomes on earlier days.
	products, _ := catalog.Generate(10, 42)
	start, _ := testRange()
	shortEnd := start.AddDays(2)
	longEnd := start.AddDays(13)

	shortRecs, err := Generate(products, start, shortEnd, 0.7, 42)
	if err != nil {
		t.Fatalf("Generate short: %v", err)
	}
	longRecs, err := Generate(products, start, longEnd, 0.7, 42)
	if err != nil {
		t.Fatalf("Generate long: %v", err)
	}

	longCells := cellOutcomes(longRecs)
	for key, quantity := range cellOutcomes(shortRecs) {
		if longCells[key] != quantity {
			t.Errorf("cell %s/%s: quantity %d in short range, %d in long",
				key.ProductID, key.Date, quantity, longCells[key])
		}
	}
}

func TestForEachDay_StreamsInOrder(t *testing.T) {
	products, _ := catalog.Generate(10, 42)
	start, end := testRange()

	var days []domain.Date
	total := 0
	err := ForEachDay(products, start, end, 1.0, 42, func(day domain.Date, records []domain.SaleRecord) error {
		days = append(days, day)
		total += len(records)
		for _, rec := range records {
			if rec.Date != day {
				t.Errorf("record %s dated %s delivered on day %s", rec.TransactionID, rec.Date, day)
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("ForEachDay: %v", err)
	}

	if len(days) != 7 {
		t.Fatalf("visited %d days, want 7", len(days))
	}
	for i := 1; i < len(days); i++ {
		if !days[i-1].Before(days[i]) {
			t.Errorf("days out of order: %s then %s", days[i-1], days[i])
		}
	}
	if total != 70 {
		t.Errorf("streamed %d records, want 70", total)
	}
}

func TestForEachDay_CallbackErrorStops(t *testing.T) {
	products, _ := catalog.Generate(10, 42)
	start, end := testRange()

	boom := errors.New("boom")
	calls := 0
	err := ForEachDay(products, start, end, 1.0, 42, func(domain.Date, []domain.SaleRecord) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want callback error", err)
	}
	if calls != 1 {
		t.Errorf("callback ran %d times after failing, want 1", calls)
	}
}

func TestGenerate_Validation(t *testing.T) {
	products, _ := catalog.Generate(5, 42)
	start, end := testRange()

	cases := []struct {
		name     string
		products []domain.Product
		start    domain.Date
		end      domain.Date
		prob     float64
	}{
		{"empty catalog", nil, start, end, 0.7},
		{"duplicate ids", append([]domain.Product{products[0]}, products...), start, end, 0.7},
		{"zero start", products, domain.Date{}, end, 0.7},
		{"inverted range", products, end, start, 0.7},
		{"negative probability", products, start, end, -0.1},
		{"probability above one", products, start, end, 1.1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Generate(tc.products, tc.start, tc.end, tc.prob, 42)
			if !errors.Is(err, domain.ErrInvalidParameter) {
				t.Errorf("got %v, want ErrInvalidParameter", err)
			}
		})
	}
}
