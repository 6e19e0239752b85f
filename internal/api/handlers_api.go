package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/lox/energybill/internal/models"
	"github.com/lox/energybill/internal/stats"
)

type HealthStatus struct {
	Status   string         `json:"status"`
	LoadID   string         `json:"load_id"`
	LoadedAt time.Time      `json:"loaded_at"`
	Timezone string         `json:"timezone"`
	Records  int            `json:"records"`
	Dropped  map[string]int `json:"dropped"`
	Flags    map[string]int `json:"quality_flags"`
}

// Summary is the /api/summary response.
type Summary struct {
	Granularity models.Granularity `json:"granularity"`
	Report      *models.Report     `json:"report"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := HealthStatus{
		Status:   "ok",
		LoadID:   s.ds.ID().String(),
		LoadedAt: s.ds.LoadedAt(),
		Timezone: s.ds.Location().String(),
		Records:  s.ds.Len(),
		Dropped:  s.ds.Dropped(),
		Flags:    s.ds.QualityFlags(),
	}
	if health.Records == 0 {
		health.Status = "degraded"
	}

	w.Header().Set("Content-Type", "application/json")
	if health.Status != "ok" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	s.writeJSON(w, health)
}

func (s *Server) handleAPIRecords(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	s.writeJSON(w, s.ds.Records())
}

func (s *Server) handleAPIBuckets(w http.ResponseWriter, r *http.Request) {
	g, ok := s.granularity(w, r)
	if !ok {
		return
	}

	buckets, err := s.ds.Aggregate(g)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	s.writeJSON(w, buckets)
}

func (s *Server) handleAPISummary(w http.ResponseWriter, r *http.Request) {
	g, ok := s.granularity(w, r)
	if !ok {
		return
	}

	buckets, err := s.ds.Aggregate(g)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	first, last, _ := s.ds.Span(buckets)
	start, ok := s.date(w, r, "start", first)
	if !ok {
		return
	}
	end, ok := s.date(w, r, "end", last)
	if !ok {
		return
	}
	if end.Before(start) {
		http.Error(w, "end date is before start date", http.StatusBadRequest)
		return
	}

	report, err := s.ds.Summarize(buckets, start, end)
	if errors.Is(err, stats.ErrEmptyRange) {
		http.Error(w, "No data available for the selected date range: "+err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	s.writeJSON(w, Summary{Granularity: g, Report: report})
}

// granularity reads ?granularity=, defaulting to hourly.
func (s *Server) granularity(w http.ResponseWriter, r *http.Request) (models.Granularity, bool) {
	raw := r.URL.Query().Get("granularity")
	if raw == "" {
		return models.Hourly, true
	}
	g, err := models.ParseGranularity(raw)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return "", false
	}
	return g, true
}

func (s *Server) date(w http.ResponseWriter, r *http.Request, key string, fallback time.Time) (time.Time, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, true
	}
	t, err := s.ds.ParseDate(raw)
	if err != nil {
		http.Error(w, key+": "+err.Error(), http.StatusBadRequest)
		return time.Time{}, false
	}
	return t, true
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("write response", zap.Error(err))
	}
}
