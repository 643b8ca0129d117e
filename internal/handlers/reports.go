package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	applog "scentledger/internal/log"
	"scentledger/internal/report"
)

// InventoryReport downloads the inventory workbook.
func InventoryReport(w http.ResponseWriter, r *http.Request) {
	ws, ok := loaded(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := report.WriteInventory(&buf, ws.Ledger); err != nil {
		applog.Error(r.Context(), "failed to build inventory report", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to build report")
		return
	}
	filename := fmt.Sprintf("inventory-%s.xlsx", time.Now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		applog.Error(r.Context(), "failed to write inventory report", "error", err)
	}
}
