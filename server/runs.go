// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/dialogbench/dialogbench/storage"
)

// defaultListLimit bounds unqualified run listings.
const defaultListLimit = 20

// RunsAPI serves stored evaluation runs.
type RunsAPI struct {
	store storage.Storage
}

// NewRunsAPI creates the runs API over a storage backend.
func NewRunsAPI(store storage.Storage) *RunsAPI {
	return &RunsAPI{store: store}
}

// Routes implements [Router].
func (a *RunsAPI) Routes() Routes {
	return Routes{
		{
			Name:        "ListRuns",
			Methods:     []string{http.MethodGet},
			Pattern:     "/api/runs",
			HandlerFunc: a.listRuns,
		},
		{
			Name:        "GetRun",
			Methods:     []string{http.MethodGet},
			Pattern:     "/api/runs/{run_id}",
			HandlerFunc: a.getRun,
		},
		{
			Name:        "GetRunVerdict",
			Methods:     []string{http.MethodGet},
			Pattern:     "/api/runs/{run_id}/verdict",
			HandlerFunc: a.getVerdict,
		},
	}
}

func (a *RunsAPI) listRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, NewStatusError(fmt.Errorf("invalid limit %q", raw), http.StatusBadRequest))
			return
		}
		limit = parsed
	}

	records, err := a.store.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if records == nil {
		records = []*storage.RunRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": records})
}

func (a *RunsAPI) getRun(w http.ResponseWriter, r *http.Request) {
	record, err := a.fetch(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (a *RunsAPI) getVerdict(w http.ResponseWriter, r *http.Request) {
	record, err := a.fetch(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if record.GateVerdict == nil {
		writeError(w, NewStatusError(
			fmt.Errorf("run %s was not gated", record.RunID), http.StatusNotFound))
		return
	}
	writeJSON(w, http.StatusOK, record.GateVerdict)
}

func (a *RunsAPI) fetch(r *http.Request) (*storage.RunRecord, error) {
	runID := mux.Vars(r)["run_id"]
	record, err := a.store.GetRun(r.Context(), runID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, NewStatusError(fmt.Errorf("run %s not found", runID), http.StatusNotFound)
	}
	return record, err
}
