package ledger

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"scentledger/internal/domainerr"
	applog "scentledger/internal/log"
	"scentledger/models"
)

// InstanceSpec describes a new inventory lot. A positive Predilution percentage
// records the lot as a dilution with that share of material.
type InstanceSpec struct {
	Name         *string   `json:"name,omitempty"`
	Manufacturer *string   `json:"manufacturer,omitempty"`
	BatchID      *string   `json:"batch_id,omitempty"`
	Link         *string   `json:"link,omitempty"`
	Grams        float64   `json:"grams" validate:"gt=0"`
	Predilution  *float64  `json:"predilution,omitempty" validate:"omitempty,gte=0,lte=100"`
	CreatedAt    time.Time `json:"created_at"`
}

// DilutionSpec describes a dilution made from an existing lot.
type DilutionSpec struct {
	SourceID      uint      `json:"source_id" validate:"required"`
	Name          *string   `json:"name,omitempty"`
	GramsMaterial float64   `json:"grams_material" validate:"gt=0"`
	GramsTotal    float64   `json:"grams_total" validate:"gtefield=GramsMaterial"`
	CreatedAt     time.Time `json:"created_at"`
}

// AddInventoryInstance records a new lot of the abstract material materialID.
func (l *Ledger) AddInventoryInstance(ctx context.Context, materialID uint, spec InstanceSpec) (models.Material, error) {
	if err := domainerr.Check(spec); err != nil {
		return models.Material{}, l.observe("add_instance", err)
	}

	lot := models.Material{
		MaterialID:     materialID,
		Name:           spec.Name,
		Type:           models.InstanceTypePure,
		Manufacturer:   spec.Manufacturer,
		BatchID:        spec.BatchID,
		Link:           spec.Link,
		GramsAvailable: spec.Grams,
		GramsInitial:   spec.Grams,
		CreatedAt:      l.timestamp(spec.CreatedAt),
	}
	if spec.Predilution != nil && *spec.Predilution > 0 {
		material, solvent := splitPercent(spec.Grams, *spec.Predilution)
		lot.Type = models.InstanceTypeDilution
		lot.GramsMaterial = &material
		lot.GramsSolvent = &solvent
	}

	err := l.db.Transaction(ctx, func(tx *gorm.DB) error {
		if err := requireAbstract(tx, materialID); err != nil {
			return err
		}
		return tx.Create(&lot).Error
	})
	if err != nil {
		return models.Material{}, l.observe("add_instance", domainerr.Storage("add inventory instance", err))
	}

	l.inventory.Append(lot)
	applog.Debug(ctx, "inventory instance added", "id", lot.ID, "material_id", materialID, "grams", lot.GramsInitial)
	return lot, l.observe("add_instance", nil)
}

// CreateDilutionFromInstance takes GramsMaterial from the source lot and records a
// new dilution lot of GramsTotal. The insert and the consumption share one transaction.
func (l *Ledger) CreateDilutionFromInstance(ctx context.Context, spec DilutionSpec) (models.Material, error) {
	if err := domainerr.Check(spec); err != nil {
		return models.Material{}, l.observe("create_dilution", err)
	}

	var (
		lot      models.Material
		consumed Consumption
	)
	err := l.db.Transaction(ctx, func(tx *gorm.DB) error {
		source, err := loadInstance(tx, spec.SourceID)
		if err != nil {
			return err
		}
		if grams(spec.GramsMaterial).GreaterThan(grams(source.GramsAvailable)) {
			return &domainerr.InsufficientInventoryError{
				MaterialID: source.ID,
				Available:  source.GramsAvailable,
				Requested:  spec.GramsMaterial,
			}
		}

		content := pureContent(spec.GramsMaterial, source.GramsMaterial, source.GramsSolvent)
		solvent := sub(spec.GramsTotal, spec.GramsMaterial)
		sourceID := source.ID
		lot = models.Material{
			MaterialID:     source.MaterialID,
			InstanceID:     &sourceID,
			Name:           spec.Name,
			Type:           models.InstanceTypeDilution,
			GramsAvailable: spec.GramsTotal,
			GramsInitial:   spec.GramsTotal,
			GramsMaterial:  &content,
			GramsSolvent:   &solvent,
			CreatedAt:      l.timestamp(spec.CreatedAt),
		}
		if err := tx.Create(&lot).Error; err != nil {
			return err
		}

		consumed, err = l.ConsumeTx(tx, models.TargetDilution, lot.ID, []Spend{{MaterialID: source.ID, Grams: spec.GramsMaterial}})
		return err
	})
	if err != nil {
		return models.Material{}, l.observe("create_dilution", domainerr.Storage("create dilution", err))
	}

	l.inventory.Append(lot)
	l.ApplyConsumption(consumed)
	applog.Debug(ctx, "dilution created", "id", lot.ID, "source", spec.SourceID, "grams_material", spec.GramsMaterial)
	return lot, l.observe("create_dilution", nil)
}

// UndoDilution credits the source lot back and deletes the dilution lot.
func (l *Ledger) UndoDilution(ctx context.Context, id uint) error {
	var restored Restoration
	err := l.db.Transaction(ctx, func(tx *gorm.DB) error {
		var err error
		restored, err = l.RestoreTx(tx, models.TargetDilution, id)
		if err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&models.Material{})
		return notFoundOr("inventory instance", id, res.RowsAffected, res.Error)
	})
	if err != nil {
		return l.observe("undo_dilution", domainerr.Storage("undo dilution", err))
	}

	l.ApplyRestoration(restored)
	l.inventory.Remove(id)
	return l.observe("undo_dilution", nil)
}

// DeleteInventoryInstance removes a lot. History rows of targets it fed are kept.
func (l *Ledger) DeleteInventoryInstance(ctx context.Context, id uint) error {
	conn, err := l.db.Connect(ctx)
	if err != nil {
		return l.observe("delete_instance", domainerr.Storage("delete inventory instance", err))
	}
	res := conn.Where("id = ?", id).Delete(&models.Material{})
	if err := notFoundOr("inventory instance", id, res.RowsAffected, res.Error); err != nil {
		return l.observe("delete_instance", domainerr.Storage("delete inventory instance", err))
	}

	l.inventory.Remove(id)
	return l.observe("delete_instance", nil)
}

// ListInventory reads every lot in insertion order.
func (l *Ledger) ListInventory(ctx context.Context) ([]models.Material, error) {
	conn, err := l.db.Connect(ctx)
	if err != nil {
		return nil, domainerr.Storage("list inventory", err)
	}
	var lots []models.Material
	if err := conn.Order("id ASC").Find(&lots).Error; err != nil {
		return nil, domainerr.Storage("list inventory", err)
	}
	return lots, nil
}

func requireAbstract(tx *gorm.DB, id uint) error {
	var count int64
	if err := tx.Model(&models.AbstractMaterial{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return domainerr.NotFound("abstract material", id)
	}
	return nil
}

func loadInstance(tx *gorm.DB, id uint) (models.Material, error) {
	var lot models.Material
	err := tx.First(&lot, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return lot, domainerr.NotFound("inventory instance", id)
	}
	return lot, err
}
