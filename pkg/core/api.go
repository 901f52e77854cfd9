/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package core

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/carverauto/farmradar/pkg/db"
	srHttp "github.com/carverauto/farmradar/pkg/http"
	"github.com/carverauto/farmradar/pkg/logger"
	"github.com/carverauto/farmradar/pkg/models"
)

const (
	defaultTimeout      = 10 * time.Second
	defaultReadTimeout  = 10 * time.Second
	defaultWriteTimeout = 30 * time.Second
	defaultIdleTimeout  = 60 * time.Second
	maxQueryBodyBytes   = 1 << 20
)

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// QueryRequest is the body of POST /api/query.
type QueryRequest struct {
	SQL string `json:"sql"`
}

// QueryResponse carries the rows of an ad-hoc query.
type QueryResponse struct {
	Results []map[string]any `json:"results"`
}

// APIServer serves the read-only query API.
type APIServer struct {
	store  Store
	router *mux.Router
	log    logger.Logger
	srv    *http.Server
	apiKey string
}

// APIOption configures an APIServer.
type APIOption func(*APIServer)

// WithAPIKey requires every /api request to carry key.
func WithAPIKey(key string) APIOption {
	return func(s *APIServer) {
		s.apiKey = key
	}
}

// NewAPIServer creates an API server over store.
func NewAPIServer(store Store, log logger.Logger, opts ...APIOption) *APIServer {
	s := &APIServer{
		store:  store,
		router: mux.NewRouter(),
		log:    log,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.setupRoutes()

	s.srv = &http.Server{
		Handler:           s.router,
		ReadTimeout:       defaultReadTimeout,
		ReadHeaderTimeout: defaultReadTimeout,
		WriteTimeout:      defaultWriteTimeout,
		IdleTimeout:       defaultIdleTimeout,
	}

	return s
}

func (s *APIServer) setupRoutes() {
	s.router.Use(func(next http.Handler) http.Handler {
		return srHttp.CommonMiddleware(next, s.log)
	})

	api := s.router.PathPrefix("/api").Subrouter()
	if s.apiKey != "" {
		api.Use(srHttp.APIKeyMiddleware(s.apiKey, s.log))
	}

	api.HandleFunc("/machines", s.getMachines).Methods(http.MethodGet)
	api.HandleFunc("/machines/{machine_id}/state", s.getMachineState).Methods(http.MethodGet)
	api.HandleFunc("/history/{category}", s.getHistory).Methods(http.MethodGet)
	api.HandleFunc("/query", s.handleQuery).Methods(http.MethodPost)
}

// Handler returns the HTTP handler of the API.
func (s *APIServer) Handler() http.Handler {
	return s.router
}

// Start serves the API on addr until Stop.
func (s *APIServer) Start(addr string) error {
	lc := &net.ListenConfig{}

	lis, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return err
	}

	return s.Serve(lis)
}

// Serve serves the API on an existing listener until Stop.
func (s *APIServer) Serve(lis net.Listener) error {
	s.log.Info().Str("addr", lis.Addr().String()).Msg("HTTP API listening")

	if err := s.srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

// Stop shuts the API down.
func (s *APIServer) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *APIServer) getMachines(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), defaultTimeout)
	defer cancel()

	machines, err := s.store.ReadMachines(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list machines")
		writeError(w, "Internal server error", http.StatusInternalServerError)

		return
	}

	if machines == nil {
		machines = []db.Machine{}
	}

	s.writeJSON(w, machines)
}

func (s *APIServer) getMachineState(w http.ResponseWriter, r *http.Request) {
	machineID := mux.Vars(r)["machine_id"]

	ctx, cancel := context.WithTimeout(r.Context(), defaultTimeout)
	defer cancel()

	ci, found, err := s.store.ReadState(ctx, machineID)
	if err != nil {
		s.log.Error().Err(err).Str("machine_id", machineID).Msg("Failed to read machine state")
		writeError(w, "Internal server error", http.StatusInternalServerError)

		return
	}

	if !found {
		writeError(w, "Machine not found", http.StatusNotFound)
		return
	}

	s.writeJSON(w, ci)
}

func (s *APIServer) getHistory(w http.ResponseWriter, r *http.Request) {
	category := models.Category(mux.Vars(r)["category"])

	if _, err := models.Lookup(category); err != nil {
		writeError(w, "Unknown category", http.StatusBadRequest)
		return
	}

	startStr := r.URL.Query().Get("start")
	endStr := r.URL.Query().Get("end")

	if startStr == "" || endStr == "" {
		writeError(w, "start and end parameters are required", http.StatusBadRequest)
		return
	}

	start, err := time.Parse(time.RFC3339, startStr)
	if err != nil {
		writeError(w, "Invalid start time format", http.StatusBadRequest)
		return
	}

	end, err := time.Parse(time.RFC3339, endStr)
	if err != nil {
		writeError(w, "Invalid end time format", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), defaultTimeout)
	defer cancel()

	history, err := s.store.ReadHistory(ctx, category, start, end)
	if err != nil {
		s.log.Error().Err(err).Str("category", string(category)).Msg("Failed to read history")
		writeError(w, "Internal server error", http.StatusInternalServerError)

		return
	}

	s.writeJSON(w, history)
}

func (s *APIServer) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest

	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxQueryBodyBytes)).Decode(&req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.SQL == "" {
		writeError(w, "sql is required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), defaultTimeout)
	defer cancel()

	results, err := s.store.Query(ctx, req.SQL)
	if err != nil {
		if errors.Is(err, db.ErrFailedToQuery) || errors.Is(err, db.ErrFailedToScan) {
			writeError(w, "Failed to execute query: "+err.Error(), http.StatusBadRequest)
			return
		}

		s.log.Error().Err(err).Msg("Failed to execute query")
		writeError(w, "Internal server error", http.StatusInternalServerError)

		return
	}

	if results == nil {
		results = []map[string]any{}
	}

	s.writeJSON(w, QueryResponse{Results: results})
}

func (s *APIServer) writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Error encoding response")
	}
}

func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(ErrorResponse{Message: message, Status: status})
}
