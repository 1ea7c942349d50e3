package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"retail-sim-lab/internal/config"
	"retail-sim-lab/internal/domain"
	"retail-sim-lab/internal/enrichment"
	"retail-sim-lab/internal/metrics"
	"retail-sim-lab/internal/observability"
)

// maxConfigBytes bounds the POST /runs request body.
const maxConfigBytes = 1 << 20

// maxDatasetBytes bounds the POST /enrich request body, which carries a
// full sales dataset.
const maxDatasetBytes = 32 << 20

type errorResponse struct {
	Error string `json:"error"`
}

type createRunResponse struct {
	Run      *domain.RunMetadata `json:"run"`
	Warnings []string            `json:"warnings,omitempty"`
}

type listRunsResponse struct {
	Runs  []*domain.RunMetadata `json:"runs"`
	Total int                   `json:"total"`
}

type productsResponse struct {
	RunID    string                       `json:"run_id"`
	Products []enrichment.AssignedProduct `json:"products"`
	Total    int                          `json:"total"`
}

type salesResponse struct {
	RunID   string              `json:"run_id"`
	Variant string              `json:"variant"`
	Sales   []domain.SaleRecord `json:"sales"`
	Total   int                 `json:"total"`
}

type summaryResponse struct {
	RunID      string                    `json:"run_id"`
	Variant    string                    `json:"variant"`
	Summary    *metrics.RunSummary       `json:"summary"`
	Daily      []metrics.DailySummary    `json:"daily,omitempty"`
	Categories []metrics.CategorySummary `json:"categories,omitempty"`
}

type liftResponse struct {
	RunID string        `json:"run_id"`
	Lift  *metrics.Lift `json:"lift"`
}

type effectsResponse struct {
	Effects []string `json:"effects"`
}

// effectField accepts both effect notations in JSON bodies, mirroring the
// config loader: the shorthand string "name:size" and the structured
// {function, params} object.
type effectField struct {
	spec domain.EffectSpec
}

func (e *effectField) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var shorthand string
		if err := json.Unmarshal(data, &shorthand); err != nil {
			return err
		}
		spec, err := enrichment.ParseSpec(shorthand)
		if err != nil {
			return err
		}
		e.spec = spec
		return nil
	}
	var structured struct {
		Function string         `json:"function"`
		Params   map[string]any `json:"params"`
	}
	if err := json.Unmarshal(data, &structured); err != nil {
		return err
	}
	e.spec = domain.EffectSpec{Function: structured.Function, Params: structured.Params}
	return nil
}

// enrichRequest carries a caller-supplied sales dataset to treat. Fraction
// and Seed are pointers so an omitted field falls back to the config
// defaults while an explicit zero is rejected as out of range.
type enrichRequest struct {
	Sales     []domain.SaleRecord `json:"sales"`
	Effect    effectField         `json:"effect"`
	StartDate string              `json:"start_date"`
	Fraction  *float64            `json:"fraction"`
	Seed      *int64              `json:"seed"`
}

type enrichResponse struct {
	Effect  string              `json:"effect"`
	Cohort  []string            `json:"cohort"`
	Treated int                 `json:"treated"`
	Factual []domain.SaleRecord `json:"factual"`
}

type statusResponse struct {
	Status      string `json:"status"`
	Uptime      string `json:"uptime"`
	RunsStored  int    `json:"runs_stored"`
	RunsCreated int    `json:"runs_created"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Printf("write response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// handleStatus returns server status as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	runs, err := s.runStore.List(r.Context())
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}

	s.mu.Lock()
	created := s.runsCreated
	s.mu.Unlock()

	s.writeJSON(w, http.StatusOK, statusResponse{
		Status:      "running",
		Uptime:      time.Since(s.started).String(),
		RunsStored:  len(runs),
		RunsCreated: created,
	})
}

func (s *Server) handleEffects(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, effectsResponse{Effects: s.effects.Names()})
}

// handleCreateRun generates and persists a new run. The body is a config
// document in the same YAML/JSON shape the CLI accepts; omitted fields keep
// their defaults.
func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxConfigBytes))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("read request body: %w", err))
		return
	}

	cfg := config.Default()
	if len(bytes.TrimSpace(body)) > 0 {
		if err := yaml.Unmarshal(body, cfg); err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("parse config: %w", err))
			return
		}
	}

	result, err := s.runner.Run(r.Context(), cfg)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}

	s.mu.Lock()
	s.runsCreated++
	s.mu.Unlock()

	for _, msg := range result.Errors {
		s.logger.Printf("run %s: %s", result.Run.RunID, msg)
	}
	s.writeJSON(w, http.StatusCreated, createRunResponse{Run: result.Run, Warnings: result.Errors})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.runStore.List(r.Context())
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, listRunsResponse{Runs: runs, Total: len(runs)})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.runStore.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, run)
}

// handleGetProducts returns a run's catalog with each product's treatment
// flag.
func (s *Server) handleGetProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	runID := r.PathValue("id")

	if _, err := s.runStore.GetByID(ctx, runID); err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	products, err := s.productStore.GetByRun(ctx, runID)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	cohortIDs, err := s.productStore.GetEnriched(ctx, runID)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	cohort := make(map[string]struct{}, len(cohortIDs))
	for _, id := range cohortIDs {
		cohort[id] = struct{}{}
	}

	assigned := enrichment.Assign(products, cohort)
	s.writeJSON(w, http.StatusOK, productsResponse{RunID: runID, Products: assigned, Total: len(assigned)})
}

// handleGetSales returns one sales stream of a run. Query parameters:
// variant (baseline, factual, counterfactual; default baseline) and an
// optional product filter.
func (s *Server) handleGetSales(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	runID := r.PathValue("id")

	variant := r.URL.Query().Get("variant")
	if variant == "" {
		variant = domain.VariantBaseline
	}
	switch variant {
	case domain.VariantBaseline, domain.VariantFactual, domain.VariantCounterfactual:
	default:
		s.writeError(w, http.StatusBadRequest,
			fmt.Errorf("%w: variant %q (valid: baseline, factual, counterfactual)", domain.ErrInvalidParameter, variant))
		return
	}

	if _, err := s.runStore.GetByID(ctx, runID); err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}

	var (
		records []domain.SaleRecord
		err     error
	)
	if productID := r.URL.Query().Get("product"); productID != "" {
		records, err = s.saleStore.GetByProduct(ctx, runID, variant, productID)
	} else {
		records, err = s.saleStore.GetByRunVariant(ctx, runID, variant)
	}
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, salesResponse{RunID: runID, Variant: variant, Sales: records, Total: len(records)})
}

// handleGetSummary returns dataset totals for one stream, with an optional
// daily or category breakdown.
func (s *Server) handleGetSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	runID := r.PathValue("id")

	variant := r.URL.Query().Get("variant")
	if variant == "" {
		variant = domain.VariantBaseline
	}

	if _, err := s.runStore.GetByID(ctx, runID); err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}

	summary, err := s.aggregator.ComputeSummary(ctx, runID, variant)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	resp := summaryResponse{RunID: runID, Variant: variant, Summary: summary}

	switch breakdown := r.URL.Query().Get("breakdown"); breakdown {
	case "":
	case "daily", "category":
		records, err := s.saleStore.GetByRunVariant(ctx, runID, variant)
		if err != nil {
			s.writeError(w, statusFor(err), err)
			return
		}
		if breakdown == "daily" {
			resp.Daily = metrics.SummarizeDaily(records)
		} else {
			resp.Categories = metrics.SummarizeCategories(records)
		}
	default:
		s.writeError(w, http.StatusBadRequest,
			fmt.Errorf("%w: breakdown %q (valid: daily, category)", domain.ErrInvalidParameter, breakdown))
		return
	}

	s.writeJSON(w, http.StatusOK, resp)
}

// handleGetLift compares a run's factual and counterfactual streams.
func (s *Server) handleGetLift(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	runID := r.PathValue("id")

	if _, err := s.runStore.GetByID(ctx, runID); err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}

	lift, err := s.aggregator.ComputeRunLift(ctx, runID)
	if err != nil {
		s.writeError(w, statusFor(err), fmt.Errorf("run %s: %w", runID, err))
		return
	}
	s.writeJSON(w, http.StatusOK, liftResponse{RunID: runID, Lift: lift})
}

// handleVerifyRun replays a run from its config snapshot and reports
// divergences.
func (s *Server) handleVerifyRun(w http.ResponseWriter, r *http.Request) {
	result, err := s.verifier.VerifyRun(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	observability.RecordVerification(result.Match)
	s.writeJSON(w, http.StatusOK, result)
}

// handleEnrich treats a caller-supplied sales dataset without storing
// anything: the cohort is selected over the product IDs present in the
// dataset and the effect applied from the start date on. Stored runs are
// never enriched after the fact; their config snapshot is immutable.
func (s *Server) handleEnrich(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxDatasetBytes))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("read request body: %w", err))
		return
	}

	var req enrichRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("parse request: %w", err))
		return
	}
	if len(req.Sales) == 0 {
		s.writeError(w, http.StatusBadRequest,
			fmt.Errorf("%w: sales dataset must not be empty", domain.ErrInvalidParameter))
		return
	}
	start, err := domain.ParseDate(req.StartDate)
	if err != nil {
		s.writeError(w, statusFor(err), fmt.Errorf("start_date: %w", err))
		return
	}

	defaults := config.Default()
	fraction := defaults.Enrichment.Fraction
	if req.Fraction != nil {
		fraction = *req.Fraction
	}
	seed := defaults.Seed
	if req.Seed != nil {
		seed = *req.Seed
	}

	ids := make([]string, len(req.Sales))
	for i, rec := range req.Sales {
		ids[i] = rec.ProductID
	}
	cohort, err := enrichment.SelectCohort(ids, fraction, seed)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	factual, err := enrichment.ApplyWithCohort(s.effects, req.Sales, req.Effect.spec, start, cohort)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}

	treated := 0
	for _, rec := range req.Sales {
		if _, ok := cohort[rec.ProductID]; ok && !rec.Date.Before(start) {
			treated++
		}
	}

	cohortIDs := make([]string, 0, len(cohort))
	for id := range cohort {
		cohortIDs = append(cohortIDs, id)
	}
	sort.Strings(cohortIDs)

	observability.RecordEnrichment(req.Effect.spec.Function, len(cohort), treated)
	s.writeJSON(w, http.StatusOK, enrichResponse{
		Effect:  req.Effect.spec.String(),
		Cohort:  cohortIDs,
		Treated: treated,
		Factual: factual,
	})
}
