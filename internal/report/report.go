// Package report renders ledger snapshots as xlsx workbooks.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"scentledger/internal/ledger"
	"scentledger/models"
)

const (
	SheetInventory = "Inventory"
	SheetMaterials = "Materials"
	SheetHistory   = "History"
)

// ContentType is the media type of the workbook written by WriteInventory.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Source provides the snapshots a workbook is built from.
type Source interface {
	Abstracts() []models.AbstractMaterial
	Inventory() []models.Material
	History(target models.TargetType) []ledger.HistoryEntry
}

// Inventory builds a workbook with one sheet of lots, one of material
// definitions and one of consumption history.
func Inventory(src Source) (*excelize.File, error) {
	f := excelize.NewFile()

	names := make(map[uint]string)
	for _, m := range src.Abstracts() {
		names[m.ID] = m.Name
	}

	lots := [][]any{{"ID", "Material", "Name", "Type", "Manufacturer", "Batch", "Grams available", "Grams initial", "Grams material", "Grams solvent", "Source", "Created"}}
	for _, lot := range src.Inventory() {
		lots = append(lots, []any{
			lot.ID,
			names[lot.MaterialID],
			deref(lot.Name),
			string(lot.Type),
			deref(lot.Manufacturer),
			deref(lot.BatchID),
			lot.GramsAvailable,
			lot.GramsInitial,
			deref(lot.GramsMaterial),
			deref(lot.GramsSolvent),
			deref(lot.InstanceID),
			lot.CreatedAt,
		})
	}

	materials := [][]any{{"ID", "Name", "Type", "Family", "CAS", "Tags"}}
	for _, m := range src.Abstracts() {
		materials = append(materials, []any{
			m.ID,
			m.Name,
			m.Type.Label(),
			deref(m.Family),
			deref(m.CASNumber),
			strings.Join(m.TagValues(), ", "),
		})
	}

	history := [][]any{{"Target", "Target ID", "Lot", "Grams", "Created"}}
	for _, target := range []models.TargetType{models.TargetFormula, models.TargetDilution} {
		for _, entry := range src.History(target) {
			for _, spent := range entry.Materials {
				history = append(history, []any{string(entry.Target), entry.TargetID, spent.ID, spent.Grams, entry.CreatedAt})
			}
		}
	}

	if err := f.SetSheetName("Sheet1", SheetInventory); err != nil {
		return nil, err
	}
	for _, sheet := range []struct {
		name string
		rows [][]any
	}{
		{SheetInventory, lots},
		{SheetMaterials, materials},
		{SheetHistory, history},
	} {
		if sheet.name != SheetInventory {
			if _, err := f.NewSheet(sheet.name); err != nil {
				return nil, err
			}
		}
		if err := writeRows(f, sheet.name, sheet.rows); err != nil {
			return nil, fmt.Errorf("write sheet %s: %w", sheet.name, err)
		}
	}
	return f, nil
}

// WriteInventory streams the Inventory workbook to w.
func WriteInventory(w io.Writer, src Source) error {
	f, err := Inventory(src)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

func deref[T any](v *T) any {
	if v == nil {
		return ""
	}
	return *v
}
