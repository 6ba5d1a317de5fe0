package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"interestbatch/models"
	"interestbatch/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type triggerBody struct {
	Parameters map[string]any `json:"parameters,omitempty"`
	AccountIDs []string       `json:"accountIds,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// POST /api/v1/jobs/{jobType}/trigger
func (s *Server) handleTriggerJob(w http.ResponseWriter, r *http.Request) {
	var body triggerBody
	// An empty body triggers with configured defaults
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, r, service.NewValidationError("body", "invalid JSON: %v", err))
		return
	}

	exec, err := s.engine.TriggerJob(r.Context(), service.TriggerRequest{
		JobType:    models.JobType(chi.URLParam(r, "jobType")),
		Parameters: body.Parameters,
		AccountIDs: body.AccountIDs,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, exec)
}

// GET /api/v1/executions?jobType=&status=&dateFrom=&dateTo=&page=&pageSize=
func (s *Server) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	page, err := parsePage(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var filter models.ExecutionFilter
	if v := query.Get("jobType"); v != "" {
		jobType := models.JobType(v)
		filter.JobType = &jobType
	}
	if v := query.Get("status"); v != "" {
		status := models.ExecutionStatus(v)
		filter.Status = &status
	}
	if filter.DateFrom, err = parseTimeParam(query.Get("dateFrom"), "dateFrom"); err != nil {
		writeError(w, r, err)
		return
	}
	if filter.DateTo, err = parseTimeParam(query.Get("dateTo"), "dateTo"); err != nil {
		writeError(w, r, err)
		return
	}

	list, err := s.engine.ListExecutions(r.Context(), filter, page)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, list)
}

// GET /api/v1/executions/{id}
func (s *Server) handleGetExecution(w http.ResponseWriter, r *http.Request) {
	id, err := parseExecutionID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	exec, err := s.engine.GetExecution(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, exec)
}

// POST /api/v1/executions/{id}/cancel
func (s *Server) handleCancelExecution(w http.ResponseWriter, r *http.Request) {
	id, err := parseExecutionID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	exec, err := s.engine.CancelExecution(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, exec)
}

// GET /api/v1/executions/{id}/results?status=&page=&pageSize=
func (s *Server) handleGetAccountResults(w http.ResponseWriter, r *http.Request) {
	id, err := parseExecutionID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	page, err := parsePage(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	filter := models.AccountResultFilter{ExecutionID: id}
	if v := r.URL.Query().Get("status"); v != "" {
		status := models.AccountResultStatus(v)
		filter.Status = &status
	}

	list, err := s.engine.GetAccountResults(r.Context(), filter, page)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, list)
}

// GET /api/v1/summary
func (s *Server) handleGetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.engine.GetSummary(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// GET /api/v1/configs
func (s *Server) handleGetConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := s.engine.GetConfigs(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, configs)
}

// GET /api/v1/configs/{jobType}
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.engine.GetConfig(r.Context(), models.JobType(chi.URLParam(r, "jobType")))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, cfg)
}

// POST /api/v1/configs
func (s *Server) handleCreateConfig(w http.ResponseWriter, r *http.Request) {
	var cfg models.JobConfig
	if err := decodeJSON(r, &cfg); err != nil {
		writeError(w, r, err)
		return
	}

	created, err := s.engine.CreateConfig(r.Context(), &cfg)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

// PATCH /api/v1/configs/{jobType}
func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var patch models.JobConfigPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, r, err)
		return
	}

	updated, err := s.engine.UpdateConfig(r.Context(), models.JobType(chi.URLParam(r, "jobType")), &patch)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

func parseExecutionID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, service.NewValidationError("id", "invalid execution id")
	}
	return id, nil
}

// parsePage reads page and pageSize; range clamping happens in the engine
func parsePage(r *http.Request) (models.Page, error) {
	var page models.Page
	query := r.URL.Query()

	if v := query.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return page, service.NewValidationError("page", "must be a positive integer")
		}
		page.Page = n
	}
	if v := query.Get("pageSize"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return page, service.NewValidationError("pageSize", "must be a positive integer")
		}
		page.PageSize = n
	}
	return page, nil
}

// parseTimeParam accepts a calendar date or an RFC 3339 timestamp
func parseTimeParam(value, field string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	if t, err := service.ParseReferenceDate(value); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, service.NewValidationError(field, "expected YYYY-MM-DD or RFC 3339 timestamp")
	}
	return &t, nil
}
