package runs

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/kilianp07/ecom/core/runlog"
)

func testStore(t *testing.T) runlog.Store {
	t.Helper()
	store, err := runlog.NewJSONLStore(filepath.Join(t.TempDir(), "runs.jsonl"))
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	now := time.Now().UTC()
	for i, scene := range []string{"north", "south", "north"} {
		rec := runlog.RunRecord{
			ID:       scene + strconv.Itoa(i),
			Scene:    scene,
			Started:  now.Add(time.Duration(i) * time.Minute),
			Schedule: map[string][][]float64{"pImp": {{1, 2}}},
		}
		if err := store.Append(context.Background(), rec); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	return store
}

func get(t *testing.T, h http.Handler, url, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, url, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHandler_ListAndFilters(t *testing.T) {
	h := NewHandler(testStore(t), "tok")

	rr := get(t, h, "/api/runs?scene=north", "tok")
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	var out []runlog.RunRecord
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 records, got %d", len(out))
	}
	if out[0].Schedule != nil {
		t.Fatalf("list must not include schedules")
	}

	rr = get(t, h, "/api/runs?limit=1", "tok")
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(out) != 1 || out[0].ID != "north2" {
		t.Fatalf("unexpected limited result %+v", out)
	}

	if rr := get(t, h, "/api/runs?start=yesterday", "tok"); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}
	if rr := get(t, h, "/api/runs", ""); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rr.Code)
	}
}

func TestHandler_Get(t *testing.T) {
	h := NewHandler(testStore(t), "")

	rr := get(t, h, "/api/runs/south1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	var rec runlog.RunRecord
	if err := json.Unmarshal(rr.Body.Bytes(), &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if rec.Scene != "south" || len(rec.Schedule["pImp"]) != 1 {
		t.Fatalf("unexpected record %+v", rec)
	}

	if rr := get(t, h, "/api/runs/missing", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rr.Code)
	}
}
