package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lox/energybill/internal/api"
	"github.com/lox/energybill/internal/dataset"
	"github.com/lox/energybill/internal/ingest"
	"github.com/lox/energybill/internal/models"
)

func setupTestDataset(t *testing.T) *dataset.Context {
	t.Helper()
	at := func(day, hour int) time.Time {
		return time.Date(2024, 1, day, hour, 0, 0, 0, time.UTC)
	}
	records := []models.MergedRecord{
		{Timestamp: at(1, 10), EnergyKWh: 1.0, TemperatureC: -5, PriceCentPerKWh: 10, BillEUR: 0.1},
		{Timestamp: at(1, 11), EnergyKWh: 3.0, TemperatureC: -3, PriceCentPerKWh: 10, BillEUR: 0.3},
		{Timestamp: at(2, 10), EnergyKWh: 2.0, TemperatureC: -1, PriceCentPerKWh: 20, BillEUR: 0.4},
	}
	diag := ingest.Diagnostics{Dataset: "readings", Total: 5, Kept: 3, Duplicates: 2}
	return dataset.New(records, time.UTC, diag)
}

func get(t *testing.T, srv *api.Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()
	srv := api.NewServer(setupTestDataset(t), "8080", nil)

	w := get(t, srv, "/health")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var health api.HealthStatus
	if err := json.NewDecoder(w.Body).Decode(&health); err != nil {
		t.Fatal(err)
	}
	if health.Status != "ok" || health.Records != 3 {
		t.Errorf("unexpected health: %+v", health)
	}
	if health.Dropped["readings"] != 2 {
		t.Errorf("expected 2 dropped readings, got %d", health.Dropped["readings"])
	}
	if health.LoadID == "" {
		t.Error("expected load_id")
	}
}

func TestHealthEndpoint_NoRecords(t *testing.T) {
	t.Parallel()
	srv := api.NewServer(dataset.New(nil, time.UTC), "8080", nil)

	w := get(t, srv, "/health")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"degraded"`) {
		t.Errorf("expected degraded status, got %s", w.Body.String())
	}
}

func TestRecordsEndpoint(t *testing.T) {
	t.Parallel()
	srv := api.NewServer(setupTestDataset(t), "8080", nil)

	w := get(t, srv, "/api/records")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var records []models.MergedRecord
	if err := json.NewDecoder(w.Body).Decode(&records); err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if records[0].BillEUR != 0.1 {
		t.Errorf("expected bill 0.1, got %v", records[0].BillEUR)
	}
}

func TestBucketsEndpoint(t *testing.T) {
	t.Parallel()
	srv := api.NewServer(setupTestDataset(t), "8080", nil)

	tests := []struct {
		query string
		want  int
	}{
		{"", 3},
		{"?granularity=hourly", 3},
		{"?granularity=Daily", 2},
		{"?granularity=weekly", 1},
	}
	for _, tt := range tests {
		w := get(t, srv, "/api/buckets"+tt.query)
		if w.Code != 200 {
			t.Fatalf("%s: expected 200, got %d", tt.query, w.Code)
		}
		var buckets []models.Bucket
		if err := json.NewDecoder(w.Body).Decode(&buckets); err != nil {
			t.Fatal(err)
		}
		if len(buckets) != tt.want {
			t.Errorf("%s: expected %d buckets, got %d", tt.query, tt.want, len(buckets))
		}
	}
}

func TestBucketsEndpoint_BadGranularity(t *testing.T) {
	t.Parallel()
	srv := api.NewServer(setupTestDataset(t), "8080", nil)

	w := get(t, srv, "/api/buckets?granularity=monthly")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "monthly") {
		t.Errorf("expected error to name the granularity, got %s", w.Body.String())
	}
}

func TestSummaryEndpoint(t *testing.T) {
	t.Parallel()
	srv := api.NewServer(setupTestDataset(t), "8080", nil)

	w := get(t, srv, "/api/summary?granularity=daily&start=2024-01-01&end=2024-01-01")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Granularity string `json:"granularity"`
		Report      struct {
			Count       int `json:"count"`
			TotalEnergy struct {
				Value   *float64 `json:"value"`
				Unit    string   `json:"unit"`
				Defined bool     `json:"defined"`
			} `json:"total_energy"`
			Energy struct {
				StdDev struct {
					Value   *float64 `json:"value"`
					Defined bool     `json:"defined"`
				} `json:"std_dev"`
			} `json:"energy"`
		} `json:"report"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}

	if resp.Granularity != "daily" || resp.Report.Count != 1 {
		t.Errorf("unexpected summary: %+v", resp)
	}
	if resp.Report.TotalEnergy.Value == nil || *resp.Report.TotalEnergy.Value != 4.0 || resp.Report.TotalEnergy.Unit != "kWh" {
		t.Errorf("unexpected total energy: %+v", resp.Report.TotalEnergy)
	}
	if resp.Report.Energy.StdDev.Defined || resp.Report.Energy.StdDev.Value != nil {
		t.Errorf("single bucket std dev should be undefined, got %+v", resp.Report.Energy.StdDev)
	}
}

func TestSummaryEndpoint_DefaultsToFullSpan(t *testing.T) {
	t.Parallel()
	srv := api.NewServer(setupTestDataset(t), "8080", nil)

	w := get(t, srv, "/api/summary")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"count":3`) {
		t.Errorf("expected all 3 hourly buckets, got %s", w.Body.String())
	}
}

func TestSummaryEndpoint_Errors(t *testing.T) {
	t.Parallel()
	srv := api.NewServer(setupTestDataset(t), "8080", nil)

	tests := []struct {
		name  string
		query string
		code  int
		text  string
	}{
		{"empty range", "?start=2024-02-01&end=2024-02-07", http.StatusNotFound, "No data available"},
		{"bad date", "?start=01.02.2024", http.StatusBadRequest, "start"},
		{"reversed range", "?start=2024-01-02&end=2024-01-01", http.StatusBadRequest, "before start"},
		{"bad granularity", "?granularity=yearly", http.StatusBadRequest, "yearly"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(t, srv, "/api/summary"+tt.query)
			if w.Code != tt.code {
				t.Fatalf("expected %d, got %d", tt.code, w.Code)
			}
			if !strings.Contains(w.Body.String(), tt.text) {
				t.Errorf("expected body to contain %q, got %s", tt.text, w.Body.String())
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	srv := api.NewServer(setupTestDataset(t), "8080", nil)

	get(t, srv, "/api/buckets?granularity=daily")
	w := get(t, srv, "/metrics")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "energybill_compute_latency_seconds") {
		t.Error("expected compute latency metric in exposition")
	}
}
