package formulas

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"scentledger/internal/domainerr"
	"scentledger/models"
)

// AddNote attaches a note to a formula. The note leads the mirrored note list.
func (r *Registry) AddNote(ctx context.Context, formulaID uint, content string) (models.FormulaNote, error) {
	if err := domainerr.Check(noteInput{Content: content}); err != nil {
		return models.FormulaNote{}, r.observe("add_formula_note", err)
	}

	note := models.FormulaNote{FormulaID: formulaID, Content: content, CreatedAt: r.timestamp(time.Time{})}
	err := r.db.Transaction(ctx, func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Formula{}).Where("id = ?", formulaID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return domainerr.NotFound("formula", formulaID)
		}
		return tx.Create(&note).Error
	})
	if err != nil {
		return models.FormulaNote{}, r.observe("add_formula_note", domainerr.Storage("add formula note", err))
	}

	r.updateNotes(formulaID, func(notes []models.FormulaNote) []models.FormulaNote {
		return append([]models.FormulaNote{note}, notes...)
	})
	return note, r.observe("add_formula_note", nil)
}

// EditNote replaces the content of a note.
func (r *Registry) EditNote(ctx context.Context, noteID uint, content string) (models.FormulaNote, error) {
	if err := domainerr.Check(noteInput{Content: content}); err != nil {
		return models.FormulaNote{}, r.observe("edit_formula_note", err)
	}

	var note models.FormulaNote
	err := r.db.Transaction(ctx, func(tx *gorm.DB) error {
		err := tx.First(&note, noteID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domainerr.NotFound("formula note", noteID)
		}
		if err != nil {
			return err
		}
		note.Content = content
		return tx.Model(&note).Update("content", content).Error
	})
	if err != nil {
		return models.FormulaNote{}, r.observe("edit_formula_note", domainerr.Storage("edit formula note", err))
	}

	r.updateNotes(note.FormulaID, func(notes []models.FormulaNote) []models.FormulaNote {
		for i := range notes {
			if notes[i].ID == noteID {
				notes[i].Content = content
			}
		}
		return notes
	})
	return note, r.observe("edit_formula_note", nil)
}

// RemoveNote deletes a note of formulaID.
func (r *Registry) RemoveNote(ctx context.Context, formulaID, noteID uint) error {
	conn, err := r.db.Connect(ctx)
	if err != nil {
		return r.observe("remove_formula_note", domainerr.Storage("remove formula note", err))
	}
	res := conn.Where("id = ? AND formula_id = ?", noteID, formulaID).Delete(&models.FormulaNote{})
	if res.Error != nil {
		return r.observe("remove_formula_note", domainerr.Storage("remove formula note", res.Error))
	}
	if res.RowsAffected == 0 {
		return r.observe("remove_formula_note", domainerr.NotFound("formula note", noteID))
	}

	r.updateNotes(formulaID, func(notes []models.FormulaNote) []models.FormulaNote {
		kept := notes[:0]
		for _, n := range notes {
			if n.ID != noteID {
				kept = append(kept, n)
			}
		}
		return kept
	})
	return r.observe("remove_formula_note", nil)
}

func (r *Registry) updateNotes(formulaID uint, fn func([]models.FormulaNote) []models.FormulaNote) {
	apply := func(f *models.Formula) {
		f.Notes = fn(f.Notes)
	}
	if !r.mixtures.Update(formulaID, apply) {
		r.drafts.Update(formulaID, apply)
	}
}
