package report

import (
	"bytes"
	"context"
	"testing"

	"github.com/xuri/excelize/v2"

	"scentledger/internal/db/dbtest"
	"scentledger/internal/ledger"
	"scentledger/models"
)

func TestInventoryWorkbook(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := ledger.New(dbtest.Open(t))
	material, err := l.DefineAbstractMaterial(ctx, ledger.AbstractSpec{
		Name: "Vetiver",
		Type: models.MaterialTypeEssentialOil,
		Tags: []string{"earthy", "base"},
	})
	if err != nil {
		t.Fatalf("DefineAbstractMaterial() error = %v", err)
	}
	lot, err := l.AddInventoryInstance(ctx, material.ID, ledger.InstanceSpec{Grams: 25})
	if err != nil {
		t.Fatalf("AddInventoryInstance() error = %v", err)
	}
	if err := l.RecordConsumption(ctx, models.TargetFormula, 9, []ledger.Spend{{MaterialID: lot.ID, Grams: 5}}); err != nil {
		t.Fatalf("RecordConsumption() error = %v", err)
	}

	var buf bytes.Buffer
	if err := WriteInventory(&buf, l); err != nil {
		t.Fatalf("WriteInventory() error = %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()

	tests := []struct {
		sheet string
		cell  string
		want  string
	}{
		{SheetInventory, "B2", "Vetiver"},
		{SheetInventory, "G2", "20"},
		{SheetMaterials, "C2", "Essential oil"},
		{SheetMaterials, "F2", "earthy, base"},
		{SheetHistory, "A2", "FORMULA"},
		{SheetHistory, "D2", "5"},
	}
	for _, tt := range tests {
		got, err := f.GetCellValue(tt.sheet, tt.cell)
		if err != nil {
			t.Fatalf("GetCellValue(%s, %s) error = %v", tt.sheet, tt.cell, err)
		}
		if got != tt.want {
			t.Fatalf("%s!%s = %q, want %q", tt.sheet, tt.cell, got, tt.want)
		}
	}

	if sheets := f.GetSheetList(); len(sheets) != 3 {
		t.Fatalf("sheets = %v, want 3", sheets)
	}
}
