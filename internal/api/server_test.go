package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"retail-sim-lab/internal/domain"
	"retail-sim-lab/internal/storage/memory"
	"retail-sim-lab/internal/verification"
)

const (
	baselineBody = `{"baseline": {"num_products": 8, "date_start": "2024-03-01", "date_end": "2024-03-07"}}`
	enrichedBody = `{"baseline": {"num_products": 8, "date_start": "2024-03-01", "date_end": "2024-03-07"},
		"enrichment": {"start_date": "2024-03-04"}}`
)

func newTestServer() *httptest.Server {
	s := New(Options{
		RunStore:     memory.NewRunStore(),
		ProductStore: memory.NewProductStore(),
		SaleStore:    memory.NewSaleStore(),
		Logger:       log.New(io.Discard, "", 0),
	})
	return httptest.NewServer(s.Handler())
}

func createRun(t *testing.T, ts *httptest.Server, body string) createRunResponse {
	t.Helper()
	resp, err := http.Post(ts.URL+"/runs", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST /runs failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		data, _ := io.ReadAll(resp.Body)
		t.Fatalf("Expected 201, got %d: %s", resp.StatusCode, data)
	}
	var out createRunResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("Decode create response failed: %v", err)
	}
	return out
}

func getJSON(t *testing.T, url string, out interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("Decode %s failed: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestServer_Health(t *testing.T) {
	ts := newTestServer()
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "ok" {
		t.Errorf("Expected ok, got %q", body)
	}
}

func TestServer_Metrics(t *testing.T) {
	ts := newTestServer()
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "retail_sim_") {
		t.Error("Expected retail_sim_ metrics in exposition")
	}
}

func TestServer_CreateRun(t *testing.T) {
	ts := newTestServer()
	defer ts.Close()

	created := createRun(t, ts, baselineBody)
	run := created.Run
	if run == nil {
		t.Fatal("Expected run metadata")
	}
	if !strings.HasPrefix(run.RunID, "run-") {
		t.Errorf("Expected run- prefix, got %s", run.RunID)
	}
	if run.Mode != domain.RunModeRule {
		t.Errorf("Expected mode rule, got %s", run.Mode)
	}
	if run.NumProducts != 8 {
		t.Errorf("Expected 8 products, got %d", run.NumProducts)
	}
	if run.NumSales == 0 {
		t.Error("Expected sale records")
	}
	if run.Enriched {
		t.Error("Expected a plain baseline run")
	}
	if len(created.Warnings) != 0 {
		t.Errorf("Expected no warnings, got %v", created.Warnings)
	}
}

func TestServer_CreateRun_InvalidConfig(t *testing.T) {
	ts := newTestServer()
	defer ts.Close()

	for _, body := range []string{
		`{"baseline": {"num_products": 0, "date_start": "2024-03-01", "date_end": "2024-03-07"}}`,
		`{"baseline": {"num_products": 8}}`,
		`{invalid`,
	} {
		resp, err := http.Post(ts.URL+"/runs", "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatalf("POST /runs failed: %v", err)
		}
		var errResp errorResponse
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
			t.Fatalf("Decode error response failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("Expected 400 for %q, got %d", body, resp.StatusCode)
		}
		if errResp.Error == "" {
			t.Errorf("Expected an error message for %q", body)
		}
	}
}

func TestServer_GetRun(t *testing.T) {
	ts := newTestServer()
	defer ts.Close()

	created := createRun(t, ts, baselineBody)

	var run domain.RunMetadata
	status := getJSON(t, ts.URL+"/runs/"+created.Run.RunID, &run)
	if status != http.StatusOK {
		t.Fatalf("Expected 200, got %d", status)
	}
	if run.RunID != created.Run.RunID {
		t.Errorf("Expected run %s, got %s", created.Run.RunID, run.RunID)
	}
	if run.SalesHash != created.Run.SalesHash {
		t.Errorf("Expected sales hash %s, got %s", created.Run.SalesHash, run.SalesHash)
	}

	if status := getJSON(t, ts.URL+"/runs/run-missing", nil); status != http.StatusNotFound {
		t.Errorf("Expected 404 for an unknown run, got %d", status)
	}
}

func TestServer_ListRuns(t *testing.T) {
	ts := newTestServer()
	defer ts.Close()

	createRun(t, ts, baselineBody)
	createRun(t, ts, enrichedBody)

	var list listRunsResponse
	if status := getJSON(t, ts.URL+"/runs", &list); status != http.StatusOK {
		t.Fatalf("Expected 200, got %d", status)
	}
	if list.Total != 2 || len(list.Runs) != 2 {
		t.Errorf("Expected 2 runs, got total %d with %d entries", list.Total, len(list.Runs))
	}
}

func TestServer_GetProducts(t *testing.T) {
	ts := newTestServer()
	defer ts.Close()

	created := createRun(t, ts, enrichedBody)

	var products productsResponse
	if status := getJSON(t, ts.URL+"/runs/"+created.Run.RunID+"/products", &products); status != http.StatusOK {
		t.Fatalf("Expected 200, got %d", status)
	}
	if products.Total != 8 {
		t.Fatalf("Expected 8 products, got %d", products.Total)
	}
	flagged := 0
	for _, p := range products.Products {
		if p.Enriched {
			flagged++
		}
	}
	// Default fraction 0.5 over 8 products selects round(0.5 x 8) = 4.
	if flagged != 4 {
		t.Errorf("Expected 4 cohort members, got %d", flagged)
	}
}

func TestServer_GetSales(t *testing.T) {
	ts := newTestServer()
	defer ts.Close()

	created := createRun(t, ts, enrichedBody)
	base := ts.URL + "/runs/" + created.Run.RunID + "/sales"

	var sales salesResponse
	if status := getJSON(t, base, &sales); status != http.StatusOK {
		t.Fatalf("Expected 200, got %d", status)
	}
	if sales.Variant != domain.VariantBaseline {
		t.Errorf("Expected the baseline variant by default, got %s", sales.Variant)
	}
	if sales.Total != created.Run.NumSales {
		t.Errorf("Expected %d records, got %d", created.Run.NumSales, sales.Total)
	}

	var factual salesResponse
	if status := getJSON(t, base+"?variant=factual", &factual); status != http.StatusOK {
		t.Fatalf("Expected 200, got %d", status)
	}
	if factual.Total != created.Run.NumSales {
		t.Errorf("Expected %d factual records, got %d", created.Run.NumSales, factual.Total)
	}

	if status := getJSON(t, base+"?variant=bogus", nil); status != http.StatusBadRequest {
		t.Errorf("Expected 400 for an unknown variant, got %d", status)
	}

	// Filter by the product of the first record.
	productID := sales.Sales[0].ProductID
	var filtered salesResponse
	if status := getJSON(t, base+"?product="+productID, &filtered); status != http.StatusOK {
		t.Fatalf("Expected 200, got %d", status)
	}
	if filtered.Total == 0 {
		t.Fatalf("Expected records for product %s", productID)
	}
	for _, rec := range filtered.Sales {
		if rec.ProductID != productID {
			t.Errorf("Expected only %s records, got %s", productID, rec.ProductID)
			break
		}
	}
}

func TestServer_GetSummary(t *testing.T) {
	ts := newTestServer()
	defer ts.Close()

	created := createRun(t, ts, baselineBody)
	base := ts.URL + "/runs/" + created.Run.RunID + "/summary"

	var summary summaryResponse
	if status := getJSON(t, base, &summary); status != http.StatusOK {
		t.Fatalf("Expected 200, got %d", status)
	}
	if summary.Summary == nil {
		t.Fatal("Expected a summary")
	}
	if summary.Summary.TotalProducts != 8 {
		t.Errorf("Expected 8 products, got %d", summary.Summary.TotalProducts)
	}
	if summary.Summary.TotalTransactions != created.Run.NumSales {
		t.Errorf("Expected %d transactions, got %d", created.Run.NumSales, summary.Summary.TotalTransactions)
	}
	if len(summary.Daily) != 0 || len(summary.Categories) != 0 {
		t.Error("Expected no breakdown by default")
	}

	var daily summaryResponse
	if status := getJSON(t, base+"?breakdown=daily", &daily); status != http.StatusOK {
		t.Fatalf("Expected 200, got %d", status)
	}
	if len(daily.Daily) == 0 || len(daily.Daily) > 7 {
		t.Errorf("Expected between 1 and 7 daily entries, got %d", len(daily.Daily))
	}

	var categories summaryResponse
	if status := getJSON(t, base+"?breakdown=category", &categories); status != http.StatusOK {
		t.Fatalf("Expected 200, got %d", status)
	}
	if len(categories.Categories) == 0 {
		t.Error("Expected category entries")
	}

	if status := getJSON(t, base+"?breakdown=bogus", nil); status != http.StatusBadRequest {
		t.Errorf("Expected 400 for an unknown breakdown, got %d", status)
	}
}

func TestServer_GetLift(t *testing.T) {
	ts := newTestServer()
	defer ts.Close()

	enriched := createRun(t, ts, enrichedBody)

	var lift liftResponse
	if status := getJSON(t, ts.URL+"/runs/"+enriched.Run.RunID+"/lift", &lift); status != http.StatusOK {
		t.Fatalf("Expected 200, got %d", status)
	}
	if lift.Lift == nil {
		t.Fatal("Expected a lift")
	}
	// quantity_boost only raises quantities, so lift is positive.
	if lift.Lift.UnitsLift <= 0 {
		t.Errorf("Expected a positive units lift, got %d", lift.Lift.UnitsLift)
	}
	if !lift.Lift.RevenueLift.IsPositive() {
		t.Errorf("Expected a positive revenue lift, got %s", lift.Lift.RevenueLift)
	}

	plain := createRun(t, ts, baselineBody)
	if status := getJSON(t, ts.URL+"/runs/"+plain.Run.RunID+"/lift", nil); status != http.StatusNotFound {
		t.Errorf("Expected 404 for a run without enrichment streams, got %d", status)
	}
}

func TestServer_VerifyRun(t *testing.T) {
	ts := newTestServer()
	defer ts.Close()

	created := createRun(t, ts, enrichedBody)

	resp, err := http.Post(ts.URL+"/runs/"+created.Run.RunID+"/verify", "application/json", nil)
	if err != nil {
		t.Fatalf("POST verify failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		t.Fatalf("Expected 200, got %d: %s", resp.StatusCode, data)
	}
	var result verification.RunResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("Decode verify response failed: %v", err)
	}
	if !result.Match {
		t.Errorf("Expected the replay to match, got %+v", result.Datasets)
	}
	if len(result.Datasets) != 5 {
		t.Errorf("Expected 5 verified datasets, got %d", len(result.Datasets))
	}

	missing, err := http.Post(ts.URL+"/runs/run-missing/verify", "application/json", nil)
	if err != nil {
		t.Fatalf("POST verify failed: %v", err)
	}
	missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 for an unknown run, got %d", missing.StatusCode)
	}
}

func TestServer_Effects(t *testing.T) {
	ts := newTestServer()
	defer ts.Close()

	var effects effectsResponse
	if status := getJSON(t, ts.URL+"/effects", &effects); status != http.StatusOK {
		t.Fatalf("Expected 200, got %d", status)
	}
	want := map[string]bool{"quantity_boost": false, "probability_boost": false, "combined_boost": false}
	for _, name := range effects.Effects {
		if _, ok := want[name]; ok {
			want[name] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("Expected built-in effect %s in %v", name, effects.Effects)
		}
	}
}

func TestServer_Status(t *testing.T) {
	ts := newTestServer()
	defer ts.Close()

	createRun(t, ts, baselineBody)

	var status statusResponse
	if code := getJSON(t, ts.URL+"/status", &status); code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", code)
	}
	if status.Status != "running" {
		t.Errorf("Expected running, got %s", status.Status)
	}
	if status.RunsStored != 1 || status.RunsCreated != 1 {
		t.Errorf("Expected 1 stored and 1 created run, got %+v", status)
	}
}

// enrichDataset builds a fixed grid of 3 products over 4 days.
func enrichDataset() []domain.SaleRecord {
	var records []domain.SaleRecord
	txn := 0
	for day := 1; day <= 4; day++ {
		for p := 1; p <= 3; p++ {
			txn++
			rec := domain.SaleRecord{
				TransactionID: fmt.Sprintf("TXN%06d", txn),
				ProductID:     fmt.Sprintf("PROD%04d", p),
				ProductName:   "Novel",
				Category:      "Books",
				UnitPrice:     decimal.RequireFromString("10.00"),
				Date:          domain.NewDate(2024, time.March, day),
			}
			records = append(records, rec.WithQuantity(2))
		}
	}
	return records
}

func postJSON(t *testing.T, url string, payload interface{}, out interface{}) int {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Marshal payload failed: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s failed: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("Decode %s failed: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestServer_Enrich(t *testing.T) {
	ts := newTestServer()
	defer ts.Close()

	records := enrichDataset()
	var out enrichResponse
	status := postJSON(t, ts.URL+"/enrich", map[string]interface{}{
		"sales":      records,
		"effect":     "quantity_boost:0.5",
		"start_date": "2024-03-03",
		"seed":       7,
	}, &out)
	if status != http.StatusOK {
		t.Fatalf("Expected 200, got %d", status)
	}

	if out.Effect != "quantity_boost(effect_size=0.5)" {
		t.Errorf("Expected the resolved effect spec, got %q", out.Effect)
	}
	// Default fraction 0.5 over 3 products selects round(0.5 x 3) = 2.
	if len(out.Cohort) != 2 {
		t.Fatalf("Expected 2 cohort members, got %v", out.Cohort)
	}
	if !sort.StringsAreSorted(out.Cohort) {
		t.Errorf("Expected a sorted cohort, got %v", out.Cohort)
	}
	// One record per cohort product on each of the 2 treated days.
	if out.Treated != 4 {
		t.Errorf("Expected 4 treated records, got %d", out.Treated)
	}
	if len(out.Factual) != len(records) {
		t.Fatalf("Expected %d factual records, got %d", len(records), len(out.Factual))
	}

	cohort := make(map[string]bool, len(out.Cohort))
	for _, id := range out.Cohort {
		cohort[id] = true
	}
	start := domain.NewDate(2024, time.March, 3)
	changed := 0
	for i, rec := range out.Factual {
		orig := records[i]
		if rec.TransactionID != orig.TransactionID {
			t.Fatalf("Expected stable record order, got %s at index %d", rec.TransactionID, i)
		}
		if cohort[orig.ProductID] && !orig.Date.Before(start) {
			// quantity_boost 0.5: round(2 x 1.5) = 3.
			if rec.Quantity != 3 {
				t.Errorf("Expected quantity 3 on %s, got %d", rec.TransactionID, rec.Quantity)
			}
			changed++
		} else if rec.Quantity != orig.Quantity {
			t.Errorf("Expected %s untouched, got quantity %d", rec.TransactionID, rec.Quantity)
		}
		if !rec.ConsistentRevenue() {
			t.Errorf("Expected consistent revenue on %s", rec.TransactionID)
		}
	}
	if changed != out.Treated {
		t.Errorf("Expected %d treated records, found %d", out.Treated, changed)
	}
}

func TestServer_Enrich_NotationEquivalence(t *testing.T) {
	ts := newTestServer()
	defer ts.Close()

	records := enrichDataset()
	var shorthand, structured enrichResponse
	if status := postJSON(t, ts.URL+"/enrich", map[string]interface{}{
		"sales":      records,
		"effect":     "quantity_boost:0.5",
		"start_date": "2024-03-03",
	}, &shorthand); status != http.StatusOK {
		t.Fatalf("Expected 200 for the shorthand notation, got %d", status)
	}
	if status := postJSON(t, ts.URL+"/enrich", map[string]interface{}{
		"sales":      records,
		"effect":     map[string]interface{}{"function": "quantity_boost", "params": map[string]interface{}{"effect_size": 0.5}},
		"start_date": "2024-03-03",
	}, &structured); status != http.StatusOK {
		t.Fatalf("Expected 200 for the structured notation, got %d", status)
	}

	if len(shorthand.Factual) != len(structured.Factual) {
		t.Fatalf("Expected equal dataset sizes, got %d and %d", len(shorthand.Factual), len(structured.Factual))
	}
	for i := range shorthand.Factual {
		a, b := shorthand.Factual[i], structured.Factual[i]
		if a.TransactionID != b.TransactionID || a.Quantity != b.Quantity || !a.Revenue.Equal(b.Revenue) {
			t.Fatalf("Expected identical datasets, diverged at index %d: %+v vs %+v", i, a, b)
		}
	}
}

func TestServer_Enrich_Invalid(t *testing.T) {
	ts := newTestServer()
	defer ts.Close()

	records := enrichDataset()
	cases := map[string]map[string]interface{}{
		"empty sales":    {"sales": []domain.SaleRecord{}, "effect": "quantity_boost:0.5", "start_date": "2024-03-03"},
		"unknown effect": {"sales": records, "effect": "typo_boost:0.5", "start_date": "2024-03-03"},
		"bad start date": {"sales": records, "effect": "quantity_boost:0.5", "start_date": "03/03/2024"},
		"bad fraction":   {"sales": records, "effect": "quantity_boost:0.5", "start_date": "2024-03-03", "fraction": 1.5},
	}
	for name, payload := range cases {
		if status := postJSON(t, ts.URL+"/enrich", payload, nil); status != http.StatusBadRequest {
			t.Errorf("Expected 400 for %s, got %d", name, status)
		}
	}
}
