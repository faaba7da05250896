package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/splitlab/splitlab/internal/engine"
	"github.com/splitlab/splitlab/internal/store"
)

type HealthResponse struct {
	Status        string `json:"status"`
	TestsCount    int    `json:"tests_count"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	tests, err := s.engine.ListTests(r.Context(), "")
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:        "ok",
		TestsCount:    len(tests),
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
	})
}

func (s *Server) handleCreateTest(w http.ResponseWriter, r *http.Request) {
	var spec engine.TestSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	test, err := s.engine.CreateTest(r.Context(), spec)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	transitionsTotal.WithLabelValues("create").Inc()
	writeJSON(w, http.StatusCreated, test)
}

func (s *Server) handleListTests(w http.ResponseWriter, r *http.Request) {
	tests, err := s.engine.ListTests(r.Context(), r.URL.Query().Get("campaign_id"))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	// Return empty array instead of null
	if tests == nil {
		tests = []*store.Test{}
	}
	writeJSON(w, http.StatusOK, tests)
}

func (s *Server) handleGetTest(w http.ResponseWriter, r *http.Request) {
	test, err := s.engine.GetTest(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, test)
}

func (s *Server) handleStartTest(w http.ResponseWriter, r *http.Request) {
	test, err := s.engine.StartTest(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	transitionsTotal.WithLabelValues("start").Inc()
	writeJSON(w, http.StatusOK, test)
}

func (s *Server) handlePauseTest(w http.ResponseWriter, r *http.Request) {
	test, err := s.engine.PauseTest(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	transitionsTotal.WithLabelValues("pause").Inc()
	writeJSON(w, http.StatusOK, test)
}

func (s *Server) handleCompleteTest(w http.ResponseWriter, r *http.Request) {
	test, err := s.engine.CompleteTest(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	transitionsTotal.WithLabelValues("complete").Inc()
	writeJSON(w, http.StatusOK, test)
}

// EventRequest is the beacon body posted by platform callbacks.
type EventRequest struct {
	VariantID string  `json:"variant_id"`
	Type      string  `json:"type"`
	Value     float64 `json:"value,omitempty"`
}

func (s *Server) handleRecordEvent(w http.ResponseWriter, r *http.Request) {
	var req EventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.VariantID == "" {
		writeError(w, http.StatusBadRequest, "variant_id is required")
		return
	}

	eventType, err := store.ParseEventType(req.Type)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.engine.RecordEvent(r.Context(), r.PathValue("id"), req.VariantID, eventType, req.Value); err != nil {
		eventsRejected.Inc()
		s.writeEngineError(w, err)
		return
	}

	eventsTotal.WithLabelValues(string(eventType)).Inc()
	w.WriteHeader(http.StatusNoContent)
}

type SpendRequest struct {
	VariantID string  `json:"variant_id"`
	Amount    float64 `json:"amount"`
}

func (s *Server) handleRecordSpend(w http.ResponseWriter, r *http.Request) {
	var req SpendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.VariantID == "" {
		writeError(w, http.StatusBadRequest, "variant_id is required")
		return
	}

	if err := s.engine.RecordSpend(r.Context(), r.PathValue("id"), req.VariantID, req.Amount); err != nil {
		eventsRejected.Inc()
		s.writeEngineError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAllocate(w http.ResponseWriter, r *http.Request) {
	unit := r.URL.Query().Get("unit")
	if unit == "" {
		writeError(w, http.StatusBadRequest, "unit parameter required")
		return
	}

	variant, err := s.engine.Allocate(r.Context(), r.PathValue("id"), unit)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	allocationsTotal.Inc()
	writeJSON(w, http.StatusOK, variant)
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	result, err := s.engine.EvaluateTest(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// writeEngineError maps engine error classes onto HTTP statuses.
func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	var validationErr *engine.ValidationError
	var stateErr *engine.InvalidStateError

	switch {
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":      "validation failed",
			"violations": validationErr.Violations,
		})
	case errors.As(err, &stateErr):
		writeError(w, http.StatusConflict, stateErr.Error())
	case errors.Is(err, engine.ErrInsufficientData):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		s.log.Error("request failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
