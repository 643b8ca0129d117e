package ledger

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"scentledger/internal/db"
	"scentledger/internal/domainerr"
	applog "scentledger/internal/log"
	"scentledger/models"
)

// AbstractSpec describes an abstract material to define or overwrite.
type AbstractSpec struct {
	Name        string              `json:"name" validate:"required"`
	Description *string             `json:"description,omitempty"`
	Type        models.MaterialType `json:"type" validate:"required,oneof=EO SY NA"`
	Family      *string             `json:"family,omitempty"`
	CASNumber   *string             `json:"cas_number,omitempty"`
	Tags        []string            `json:"tags,omitempty"`
	Links       []string            `json:"links,omitempty"`
}

func (s AbstractSpec) row() models.AbstractMaterial {
	return models.AbstractMaterial{
		Name:        strings.TrimSpace(s.Name),
		Description: s.Description,
		Type:        s.Type,
		Family:      s.Family,
		CASNumber:   s.CASNumber,
	}
}

// DefineAbstractMaterial inserts a material definition with its tags and links.
func (l *Ledger) DefineAbstractMaterial(ctx context.Context, spec AbstractSpec) (models.AbstractMaterial, error) {
	if err := domainerr.Check(spec); err != nil {
		return models.AbstractMaterial{}, l.observe("define_abstract", err)
	}

	var material models.AbstractMaterial
	err := l.db.Transaction(ctx, func(tx *gorm.DB) error {
		row := spec.row()
		row.CreatedAt = l.timestamp(row.CreatedAt)
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		if err := writeLabels(tx, row.ID, spec.Tags, spec.Links); err != nil {
			return err
		}
		var err error
		material, err = loadAbstract(tx, row.ID)
		return err
	})
	if err != nil {
		return models.AbstractMaterial{}, l.observe("define_abstract", domainerr.Storage("define abstract material", err))
	}

	l.abstracts.Prepend(material)
	applog.Debug(ctx, "abstract material defined", "id", material.ID, "name", material.Name)
	return material, l.observe("define_abstract", nil)
}

// UpdateAbstractMaterial overwrites every scalar field of id and replaces its tags and links.
func (l *Ledger) UpdateAbstractMaterial(ctx context.Context, id uint, spec AbstractSpec) (models.AbstractMaterial, error) {
	if err := domainerr.Check(spec); err != nil {
		return models.AbstractMaterial{}, l.observe("update_abstract", err)
	}

	var material models.AbstractMaterial
	err := l.db.Transaction(ctx, func(tx *gorm.DB) error {
		row := spec.row()
		res := tx.Model(&models.AbstractMaterial{}).Where("id = ?", id).Updates(map[string]any{
			"name":        row.Name,
			"description": row.Description,
			"type":        row.Type,
			"family":      row.Family,
			"cas_number":  row.CASNumber,
		})
		if err := notFoundOr("abstract material", id, res.RowsAffected, res.Error); err != nil {
			return err
		}
		if err := tx.Where("material_id = ?", id).Delete(&models.MaterialTag{}).Error; err != nil {
			return err
		}
		if err := tx.Where("material_id = ?", id).Delete(&models.MaterialLink{}).Error; err != nil {
			return err
		}
		if err := writeLabels(tx, id, spec.Tags, spec.Links); err != nil {
			return err
		}
		var err error
		material, err = loadAbstract(tx, id)
		return err
	})
	if err != nil {
		return models.AbstractMaterial{}, l.observe("update_abstract", domainerr.Storage("update abstract material", err))
	}

	if !l.abstracts.Replace(material) {
		l.abstracts.Prepend(material)
	}
	return material, l.observe("update_abstract", nil)
}

// DeleteAbstractMaterial removes a definition together with its tags, links and
// inventory lots.
func (l *Ledger) DeleteAbstractMaterial(ctx context.Context, id uint) error {
	err := l.db.Transaction(ctx, func(tx *gorm.DB) error {
		res := tx.Where("id = ?", id).Delete(&models.AbstractMaterial{})
		if err := notFoundOr("abstract material", id, res.RowsAffected, res.Error); err != nil {
			return err
		}
		for _, model := range []any{&models.MaterialTag{}, &models.MaterialLink{}, &models.Material{}} {
			if err := tx.Where("material_id = ?", id).Delete(model).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return l.observe("delete_abstract", domainerr.Storage("delete abstract material", err))
	}

	l.abstracts.Remove(id)
	removed := l.inventory.RemoveFunc(func(m models.Material) bool {
		return m.MaterialID == id
	})
	applog.Debug(ctx, "abstract material deleted", "id", id, "instances", len(removed))
	return l.observe("delete_abstract", nil)
}

// ListAbstracts reads every abstract material with tags and links, newest first.
func (l *Ledger) ListAbstracts(ctx context.Context) ([]models.AbstractMaterial, error) {
	conn, err := l.db.Connect(ctx)
	if err != nil {
		return nil, domainerr.Storage("list abstract materials", err)
	}
	var materials []models.AbstractMaterial
	err = withLabels(conn).Order("id DESC").Find(&materials).Error
	if err != nil {
		return nil, domainerr.Storage("list abstract materials", err)
	}
	return materials, nil
}

func withLabels(tx *gorm.DB) *gorm.DB {
	byID := func(q *gorm.DB) *gorm.DB { return q.Order("id ASC") }
	return tx.Preload("Tags", byID).Preload("Links", byID)
}

func loadAbstract(tx *gorm.DB, id uint) (models.AbstractMaterial, error) {
	var material models.AbstractMaterial
	err := withLabels(tx).First(&material, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return material, domainerr.NotFound("abstract material", id)
	}
	return material, err
}

func writeLabels(tx *gorm.DB, id uint, tags, links []string) error {
	if rows := labelRows(id, tags); len(rows) > 0 {
		if err := db.BulkInsert(tx, models.MaterialTag{}.TableName(), []string{"material_id", "value"}, rows); err != nil {
			return err
		}
	}
	if rows := labelRows(id, links); len(rows) > 0 {
		if err := db.BulkInsert(tx, models.MaterialLink{}.TableName(), []string{"material_id", "value"}, rows); err != nil {
			return err
		}
	}
	return nil
}

func labelRows(id uint, values []string) [][]any {
	rows := make([][]any, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		rows = append(rows, []any{id, value})
	}
	return rows
}
