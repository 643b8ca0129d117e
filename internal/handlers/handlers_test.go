package handlers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"scentledger/internal/db/dbtest"
	"scentledger/internal/ledger"
	"scentledger/internal/workspace"
	"scentledger/models"
)

func withTestWorkspace(t *testing.T) *workspace.Workspace {
	t.Helper()
	ws, err := workspace.Open(context.Background(), dbtest.Open(t))
	if err != nil {
		t.Fatalf("workspace.Open() error = %v", err)
	}
	Configure(ws)
	t.Cleanup(func() {
		Configure(nil)
	})
	return ws
}

func testMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/materials", ListMaterials)
	mux.HandleFunc("POST /api/materials", CreateMaterial)
	mux.HandleFunc("PUT /api/materials/{id}", UpdateMaterial)
	mux.HandleFunc("DELETE /api/materials/{id}", DeleteMaterial)
	mux.HandleFunc("POST /api/materials/{id}/instances", AddInstance)
	mux.HandleFunc("GET /api/inventory", ListInventory)
	mux.HandleFunc("GET /api/inventory/{id}", ShowInventory)
	mux.HandleFunc("POST /api/dilutions", CreateDilution)
	mux.HandleFunc("DELETE /api/dilutions/{id}", UndoDilution)
	mux.HandleFunc("GET /api/history/{target}", ListHistory)
	mux.HandleFunc("GET /api/formulas", ListFormulas)
	mux.HandleFunc("POST /api/formulas", CreateFormula)
	mux.HandleFunc("GET /api/formulas/{id}", ShowFormula)
	mux.HandleFunc("POST /api/formulas/{id}/undo", UndoFormula)
	mux.HandleFunc("POST /api/formulas/{id}/notes", AddFormulaNote)
	mux.HandleFunc("POST /api/trials", CreateTrial)
	mux.HandleFunc("GET /api/trials", ListTrials)
	mux.HandleFunc("GET /api/events", Events)
	mux.HandleFunc("GET /api/reports/inventory.xlsx", InventoryReport)
	return mux
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return out
}

func TestHandlersWithoutWorkspace(t *testing.T) {
	Configure(nil)
	rr := do(t, testMux(), http.MethodGet, "/api/materials", nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without workspace, got %d", rr.Code)
	}
}

func TestMixtureLifecycleOverHTTP(t *testing.T) {
	ws := withTestWorkspace(t)
	mux := testMux()

	rr := do(t, mux, http.MethodPost, "/api/materials", ledger.AbstractSpec{
		Name: "Petitgrain",
		Type: models.MaterialTypeEssentialOil,
		Tags: []string{"green"},
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create material status = %d body = %s", rr.Code, rr.Body.String())
	}
	material := decode[materialResponse](t, rr)
	if material.TypeLabel != "Essential oil" || len(material.Tags) != 1 {
		t.Fatalf("material response = %+v", material)
	}

	rr = do(t, mux, http.MethodPost, "/api/materials/"+itoa(material.ID)+"/instances", ledger.InstanceSpec{Grams: 100})
	if rr.Code != http.StatusCreated {
		t.Fatalf("add instance status = %d body = %s", rr.Code, rr.Body.String())
	}
	lot := decode[models.Material](t, rr)

	rr = do(t, mux, http.MethodPost, "/api/formulas", map[string]any{
		"name":        "Neroli water",
		"type":        "MIXTURE",
		"grams_total": 30,
		"materials":   []map[string]any{{"material_id": lot.ID, "grams": 30}},
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create formula status = %d body = %s", rr.Code, rr.Body.String())
	}
	formula := decode[models.Formula](t, rr)

	rr = do(t, mux, http.MethodGet, "/api/inventory/"+itoa(lot.ID), nil)
	if got := decode[models.Material](t, rr); got.GramsAvailable != 70 {
		t.Fatalf("grams after mixture = %v, want 70", got.GramsAvailable)
	}

	rr = do(t, mux, http.MethodGet, "/api/history/formula", nil)
	if entries := decode[[]ledger.HistoryEntry](t, rr); len(entries) != 1 || entries[0].TargetID != formula.ID {
		t.Fatalf("history = %+v", entries)
	}

	rr = do(t, mux, http.MethodPost, "/api/formulas/"+itoa(formula.ID)+"/notes", noteRequest{Content: "needs more zest"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("add note status = %d", rr.Code)
	}

	rr = do(t, mux, http.MethodPost, "/api/formulas/"+itoa(formula.ID)+"/undo", nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("undo status = %d body = %s", rr.Code, rr.Body.String())
	}
	if got, _ := ws.Ledger.Get(lot.ID); got.GramsAvailable != 100 {
		t.Fatalf("grams after undo = %v, want 100", got.GramsAvailable)
	}

	rr = do(t, mux, http.MethodGet, "/api/formulas/"+itoa(formula.ID), nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("show undone formula status = %d, want 404", rr.Code)
	}
}

func TestErrorMapping(t *testing.T) {
	ws := withTestWorkspace(t)
	mux := testMux()
	ctx := context.Background()

	material, err := ws.Ledger.DefineAbstractMaterial(ctx, ledger.AbstractSpec{Name: "Benzoin", Type: models.MaterialTypeAbsolute})
	if err != nil {
		t.Fatalf("DefineAbstractMaterial() error = %v", err)
	}
	lot, err := ws.Ledger.AddInventoryInstance(ctx, material.ID, ledger.InstanceSpec{Grams: 2})
	if err != nil {
		t.Fatalf("AddInventoryInstance() error = %v", err)
	}

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{name: "validation", method: http.MethodPost, path: "/api/materials", body: map[string]any{"type": "EO"}, want: http.StatusBadRequest},
		{name: "unknown field", method: http.MethodPost, path: "/api/materials", body: map[string]any{"colour": "red"}, want: http.StatusBadRequest},
		{name: "bad id", method: http.MethodPut, path: "/api/materials/abc", body: map[string]any{}, want: http.StatusBadRequest},
		{name: "missing material", method: http.MethodDelete, path: "/api/materials/999", want: http.StatusNotFound},
		{name: "missing dilution", method: http.MethodDelete, path: "/api/dilutions/999", want: http.StatusNotFound},
		{name: "insufficient", method: http.MethodPost, path: "/api/dilutions", body: ledger.DilutionSpec{SourceID: lot.ID, GramsMaterial: 5, GramsTotal: 10}, want: http.StatusConflict},
		{name: "bad history target", method: http.MethodGet, path: "/api/history/trial", want: http.StatusBadRequest},
		{name: "bad inventory filter", method: http.MethodGet, path: "/api/inventory?material=x", want: http.StatusBadRequest},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, mux, tt.method, tt.path, tt.body)
			if rr.Code != tt.want {
				t.Fatalf("%s %s status = %d, want %d (body %s)", tt.method, tt.path, rr.Code, tt.want, rr.Body.String())
			}
		})
	}
}

func TestValidationErrorListsFields(t *testing.T) {
	withTestWorkspace(t)

	rr := do(t, testMux(), http.MethodPost, "/api/trials", map[string]any{"description": "nameless"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	resp := decode[errorResponse](t, rr)
	if resp.Fields["Name"] != "required" {
		t.Fatalf("fields = %v, want Name=required", resp.Fields)
	}
}

func TestInventoryReportDownload(t *testing.T) {
	ws := withTestWorkspace(t)
	if _, err := ws.Ledger.DefineAbstractMaterial(context.Background(), ledger.AbstractSpec{Name: "Styrax", Type: models.MaterialTypeAbsolute}); err != nil {
		t.Fatalf("DefineAbstractMaterial() error = %v", err)
	}

	rr := do(t, testMux(), http.MethodGet, "/api/reports/inventory.xlsx", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Header().Get("Content-Disposition"), "inventory-") {
		t.Fatalf("content disposition = %q", rr.Header().Get("Content-Disposition"))
	}
	f, err := excelize.OpenReader(bytes.NewReader(rr.Body.Bytes()))
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()
	if name, _ := f.GetCellValue("Materials", "B2"); name != "Styrax" {
		t.Fatalf("Materials!B2 = %q, want Styrax", name)
	}
}

func TestEventsStreamsChanges(t *testing.T) {
	ws := withTestWorkspace(t)
	srv := httptest.NewServer(testMux())
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events", nil)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("GET /api/events error = %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	if line, err := reader.ReadString('\n'); err != nil || !strings.HasPrefix(line, ": connected") {
		t.Fatalf("first line = %q, %v", line, err)
	}

	if _, err := ws.Ledger.DefineAbstractMaterial(context.Background(), ledger.AbstractSpec{Name: "Labdanum", Type: models.MaterialTypeAbsolute}); err != nil {
		t.Fatalf("DefineAbstractMaterial() error = %v", err)
	}

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read event: %v", err)
		}
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		if !strings.Contains(line, ledger.StoreAbstracts) {
			t.Fatalf("event data = %q, want %s change", line, ledger.StoreAbstracts)
		}
		return
	}
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
