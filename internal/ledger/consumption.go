package ledger

import (
	"context"
	"sort"
	"time"

	"gorm.io/gorm"

	"scentledger/internal/db"
	"scentledger/internal/domainerr"
	applog "scentledger/internal/log"
	"scentledger/models"
)

// Spend asks for grams to be taken from one inventory lot.
type Spend struct {
	MaterialID uint    `json:"material_id" validate:"required"`
	Grams      float64 `json:"grams" validate:"gt=0"`
}

// SpentMaterial is one lot inside an aggregated history entry.
type SpentMaterial struct {
	ID    uint    `json:"id"`
	Grams float64 `json:"grams"`
}

// HistoryEntry aggregates every history row written for one target.
type HistoryEntry struct {
	Target    models.TargetType `json:"target"`
	TargetID  uint              `json:"target_id"`
	Materials []SpentMaterial   `json:"materials"`
	CreatedAt time.Time         `json:"created_at"`
}

func (e HistoryEntry) clone() HistoryEntry {
	out := e
	out.Materials = append([]SpentMaterial(nil), e.Materials...)
	return out
}

func (e HistoryEntry) total() float64 {
	sum := grams(0)
	for _, m := range e.Materials {
		sum = sum.Add(grams(m.Grams))
	}
	return sum.InexactFloat64()
}

// Consumption is the committed effect of ConsumeTx, applied to the mirrors by
// ApplyConsumption.
type Consumption struct {
	entry HistoryEntry
}

// Restoration is the committed effect of RestoreTx, applied to the mirrors by
// ApplyRestoration.
type Restoration struct {
	entry HistoryEntry
}

type spendSet []Spend

func (s spendSet) check() error {
	for _, spend := range s {
		if err := domainerr.Check(spend); err != nil {
			return err
		}
	}
	return nil
}

// RecordConsumption writes one history row per spend and decrements each lot.
func (l *Ledger) RecordConsumption(ctx context.Context, target models.TargetType, targetID uint, spends []Spend) error {
	var consumed Consumption
	err := l.db.Transaction(ctx, func(tx *gorm.DB) error {
		var err error
		consumed, err = l.ConsumeTx(tx, target, targetID, spends)
		return err
	})
	if err != nil {
		return l.observe("record_consumption", domainerr.Storage("record consumption", err))
	}
	l.ApplyConsumption(consumed)
	return l.observe("record_consumption", nil)
}

// ConsumeTx does the database half of RecordConsumption inside tx. The caller
// passes the result to ApplyConsumption once tx has committed.
func (l *Ledger) ConsumeTx(tx *gorm.DB, target models.TargetType, targetID uint, spends []Spend) (Consumption, error) {
	if err := spendSet(spends).check(); err != nil {
		return Consumption{}, err
	}

	entry := HistoryEntry{
		Target:    target,
		TargetID:  targetID,
		Materials: make([]SpentMaterial, 0, len(spends)),
		CreatedAt: l.timestamp(time.Time{}),
	}
	if len(spends) == 0 {
		return Consumption{entry: entry}, nil
	}

	rows := make([][]any, 0, len(spends))
	for _, spend := range spends {
		rows = append(rows, []any{spend.MaterialID, targetID, string(target), spend.Grams, entry.CreatedAt})
		entry.Materials = append(entry.Materials, SpentMaterial{ID: spend.MaterialID, Grams: spend.Grams})
	}
	columns := []string{"material_id", "target_id", "target_type", "grams", "created_at"}
	if err := db.BulkInsert(tx, models.MaterialHistory{}.TableName(), columns, rows); err != nil {
		return Consumption{}, err
	}

	for _, spend := range spends {
		res := tx.Model(&models.Material{}).
			Where("id = ?", spend.MaterialID).
			Update("grams_available", gorm.Expr("grams_available - ?", spend.Grams))
		if err := notFoundOr("inventory instance", spend.MaterialID, res.RowsAffected, res.Error); err != nil {
			return Consumption{}, err
		}
	}
	return Consumption{entry: entry}, nil
}

// ApplyConsumption decrements the mirrored lots and prepends the aggregated entry.
// Materials already recorded against the same target are kept after the new ones.
func (l *Ledger) ApplyConsumption(c Consumption) {
	if len(c.entry.Materials) == 0 {
		return
	}
	for _, m := range c.entry.Materials {
		taken := m.Grams
		l.inventory.Update(m.ID, func(lot *models.Material) {
			lot.GramsAvailable = sub(lot.GramsAvailable, taken)
		})
	}
	entry := c.entry.clone()
	history := l.history(entry.Target)
	if prior, ok := history.Get(entry.TargetID); ok {
		entry.Materials = append(entry.Materials, prior.Materials...)
	}
	history.Prepend(entry)
	l.metrics.Consumed(string(c.entry.Target), c.entry.total())
}

// ReverseConsumption credits back every lot the target drew from and drops its
// history rows.
func (l *Ledger) ReverseConsumption(ctx context.Context, target models.TargetType, targetID uint) error {
	var restored Restoration
	err := l.db.Transaction(ctx, func(tx *gorm.DB) error {
		var err error
		restored, err = l.RestoreTx(tx, target, targetID)
		return err
	})
	if err != nil {
		return l.observe("reverse_consumption", domainerr.Storage("reverse consumption", err))
	}
	l.ApplyRestoration(restored)
	return l.observe("reverse_consumption", nil)
}

// RestoreTx does the database half of ReverseConsumption inside tx. Lots that no
// longer exist are skipped.
func (l *Ledger) RestoreTx(tx *gorm.DB, target models.TargetType, targetID uint) (Restoration, error) {
	var rows []models.MaterialHistory
	err := tx.Where("target_id = ? AND target_type = ?", targetID, target).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return Restoration{}, err
	}

	entry := HistoryEntry{Target: target, TargetID: targetID}
	for _, row := range rows {
		res := tx.Model(&models.Material{}).
			Where("id = ?", row.MaterialID).
			Update("grams_available", gorm.Expr("grams_available + ?", row.Grams))
		if res.Error != nil {
			return Restoration{}, res.Error
		}
		if res.RowsAffected == 0 {
			applog.Debug(tx.Statement.Context, "skipping restore of deleted instance", "material_id", row.MaterialID, "target_id", targetID)
			continue
		}
		entry.Materials = append(entry.Materials, SpentMaterial{ID: row.MaterialID, Grams: row.Grams})
	}

	if len(rows) > 0 {
		err = tx.Where("target_id = ? AND target_type = ?", targetID, target).
			Delete(&models.MaterialHistory{}).Error
		if err != nil {
			return Restoration{}, err
		}
	}
	return Restoration{entry: entry}, nil
}

// ApplyRestoration credits the mirrored lots and removes the aggregated entry.
func (l *Ledger) ApplyRestoration(r Restoration) {
	for _, m := range r.entry.Materials {
		credited := m.Grams
		l.inventory.Update(m.ID, func(lot *models.Material) {
			lot.GramsAvailable = add(lot.GramsAvailable, credited)
		})
	}
	l.history(r.entry.Target).Remove(r.entry.TargetID)
	l.metrics.Restored(string(r.entry.Target), r.entry.total())
}

// ListHistory reads the history of target from the database, aggregated per
// target and sorted newest first.
func (l *Ledger) ListHistory(ctx context.Context, target models.TargetType) ([]HistoryEntry, error) {
	conn, err := l.db.Connect(ctx)
	if err != nil {
		return nil, domainerr.Storage("list history", err)
	}
	var rows []models.MaterialHistory
	err = conn.Where("target_type = ?", target).
		Order("created_at DESC").
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, domainerr.Storage("list history", err)
	}
	return aggregate(target, rows), nil
}

func aggregate(target models.TargetType, rows []models.MaterialHistory) []HistoryEntry {
	entries := make([]HistoryEntry, 0)
	index := make(map[uint]int)
	for _, row := range rows {
		pos, ok := index[row.TargetID]
		if !ok {
			pos = len(entries)
			index[row.TargetID] = pos
			entries = append(entries, HistoryEntry{
				Target:    target,
				TargetID:  row.TargetID,
				CreatedAt: row.CreatedAt,
			})
		}
		entries[pos].Materials = append(entries[pos].Materials, SpentMaterial{ID: row.MaterialID, Grams: row.Grams})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	return entries
}
