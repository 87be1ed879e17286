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

package server_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dialogbench/dialogbench/gate"
	"github.com/dialogbench/dialogbench/server"
	"github.com/dialogbench/dialogbench/storage"
)

func seededStore(t *testing.T) *storage.MemoryStorage {
	t.Helper()
	store := storage.NewMemoryStorage()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"run-a", "run-b"} {
		record := &storage.RunRecord{
			RunID:     id,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
			Status:    "passed",
			Metrics:   gate.Metrics{TotalTurns: 2, PassedTurns: 2, SuccessRate: 1},
			GateVerdict: &gate.Verdict{
				Passed: true,
				Checks: []gate.Check{{Name: "success_rate", Passed: true, Value: 1, Threshold: 0.8}},
			},
		}
		if err := store.SaveRun(t.Context(), record); err != nil {
			t.Fatal(err)
		}
	}
	return store
}

func get(t *testing.T, handler http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestListRuns(t *testing.T) {
	t.Parallel()
	router := server.NewRouter(server.NewRunsAPI(seededStore(t)))

	rec := get(t, router, "/api/runs")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}

	var body struct {
		Runs []storage.RunRecord `json:"runs"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Runs) != 2 || body.Runs[0].RunID != "run-b" {
		t.Errorf("unexpected listing: %+v", body.Runs)
	}
}

func TestListRunsLimit(t *testing.T) {
	t.Parallel()
	router := server.NewRouter(server.NewRunsAPI(seededStore(t)))

	rec := get(t, router, "/api/runs?limit=1")
	var body struct {
		Runs []storage.RunRecord `json:"runs"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Runs) != 1 {
		t.Errorf("got %d runs, want 1", len(body.Runs))
	}

	if rec := get(t, router, "/api/runs?limit=bogus"); rec.Code != http.StatusBadRequest {
		t.Errorf("bogus limit status = %d, want 400", rec.Code)
	}
}

func TestGetRun(t *testing.T) {
	t.Parallel()
	router := server.NewRouter(server.NewRunsAPI(seededStore(t)))

	rec := get(t, router, "/api/runs/run-a")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}
	var record storage.RunRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &record); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if record.RunID != "run-a" {
		t.Errorf("got run %q, want run-a", record.RunID)
	}

	if rec := get(t, router, "/api/runs/absent"); rec.Code != http.StatusNotFound {
		t.Errorf("missing run status = %d, want 404", rec.Code)
	}
}

func TestGetVerdict(t *testing.T) {
	t.Parallel()
	store := seededStore(t)
	router := server.NewRouter(server.NewRunsAPI(store))

	rec := get(t, router, "/api/runs/run-a/verdict")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}
	var verdict gate.Verdict
	if err := json.Unmarshal(rec.Body.Bytes(), &verdict); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !verdict.Passed || len(verdict.Checks) != 1 {
		t.Errorf("unexpected verdict: %+v", verdict)
	}

	// An ungated run has no verdict to serve.
	ungated := &storage.RunRecord{RunID: "run-c", CreatedAt: time.Now().UTC(), Status: "passed"}
	if err := store.SaveRun(t.Context(), ungated); err != nil {
		t.Fatal(err)
	}
	if rec := get(t, router, "/api/runs/run-c/verdict"); rec.Code != http.StatusNotFound {
		t.Errorf("ungated verdict status = %d, want 404", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	router := server.NewRouter(server.NewRunsAPI(seededStore(t)))

	if rec := get(t, router, "/healthz"); rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d, want 200", rec.Code)
	}
}
