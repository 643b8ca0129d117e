// Package formulas is the registry of mixtures and drafts. Creating a mixture
// draws its ingredients from the ledger; drafts never touch inventory.
package formulas

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"scentledger/internal/db"
	"scentledger/internal/domainerr"
	"scentledger/internal/ledger"
	applog "scentledger/internal/log"
	"scentledger/internal/metrics"
	"scentledger/internal/store"
	"scentledger/models"
)

const (
	StoreMixtures = "formulae_mixture"
	StoreDrafts   = "formulae_draft"
)

// Builder describes a formula to create.
type Builder struct {
	Name        string             `json:"name" validate:"required"`
	Type        models.FormulaType `json:"type" validate:"required,oneof=MIXTURE DRAFT"`
	Description *string            `json:"description,omitempty"`
	GramsTotal  float64            `json:"grams_total" validate:"gte=0"`
	Materials   []ledger.Spend     `json:"materials" validate:"dive"`
	CreatedAt   time.Time          `json:"created_at"`
}

type noteInput struct {
	Content string `validate:"required"`
}

// Registry owns the formula tables and the mixture and draft mirrors.
type Registry struct {
	db      *db.Accessor
	ledger  *ledger.Ledger
	metrics *metrics.Recorder
	now     func() time.Time

	mixtures *store.Store[models.Formula]
	drafts   *store.Store[models.Formula]
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock overrides the time source used for new rows.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// New returns a Registry that writes through the same database as l.
func New(l *ledger.Ledger, opts ...Option) *Registry {
	id := func(f models.Formula) uint { return f.ID }
	r := &Registry{
		db:       l.Accessor(),
		ledger:   l,
		metrics:  l.Metrics(),
		now:      time.Now,
		mixtures: store.New(StoreMixtures, id, store.WithClone(models.Formula.Clone)),
		drafts:   store.New(StoreDrafts, id, store.WithClone(models.Formula.Clone)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) observe(op string, err error) error {
	r.metrics.Observe(op, err)
	return err
}

func (r *Registry) timestamp(t time.Time) time.Time {
	if t.IsZero() {
		t = r.now()
	}
	return t.UTC()
}

func (r *Registry) mirror(t models.FormulaType) *store.Store[models.Formula] {
	if t == models.FormulaDraft {
		return r.drafts
	}
	return r.mixtures
}

// Create inserts the formula and its ingredient rows. A MIXTURE records its
// consumption in the same transaction.
func (r *Registry) Create(ctx context.Context, b Builder) (models.Formula, error) {
	if err := domainerr.Check(b); err != nil {
		return models.Formula{}, r.observe("create_formula", err)
	}

	var (
		formula  models.Formula
		consumed ledger.Consumption
	)
	err := r.db.Transaction(ctx, func(tx *gorm.DB) error {
		row := models.Formula{
			Name:        strings.TrimSpace(b.Name),
			Type:        b.Type,
			Description: b.Description,
			GramsTotal:  b.GramsTotal,
			CreatedAt:   r.timestamp(b.CreatedAt),
		}
		if err := tx.Omit("Materials", "Notes").Create(&row).Error; err != nil {
			return err
		}
		if len(b.Materials) > 0 {
			rows := make([][]any, 0, len(b.Materials))
			for _, m := range b.Materials {
				rows = append(rows, []any{row.ID, m.MaterialID, m.Grams})
			}
			if err := db.BulkInsert(tx, models.FormulaMaterial{}.TableName(), []string{"formula_id", "material_id", "grams"}, rows); err != nil {
				return err
			}
		}
		if b.Type == models.FormulaMixture {
			var err error
			consumed, err = r.ledger.ConsumeTx(tx, models.TargetFormula, row.ID, b.Materials)
			if err != nil {
				return err
			}
		}
		var err error
		formula, err = loadFormula(tx, row.ID)
		return err
	})
	if err != nil {
		return models.Formula{}, r.observe("create_formula", domainerr.Storage("create formula", err))
	}

	r.ledger.ApplyConsumption(consumed)
	r.mirror(formula.Type).Prepend(formula)
	applog.Debug(ctx, "formula created", "id", formula.ID, "type", formula.Type, "materials", len(formula.Materials))
	return formula, r.observe("create_formula", nil)
}

// Promote turns a draft into a mixture and records its consumption.
func (r *Registry) Promote(ctx context.Context, id uint) (models.Formula, error) {
	var (
		formula  models.Formula
		consumed ledger.Consumption
	)
	err := r.db.Transaction(ctx, func(tx *gorm.DB) error {
		draft, err := loadFormula(tx, id)
		if err != nil {
			return err
		}
		if draft.Type != models.FormulaDraft {
			return &domainerr.ValidationError{
				Fields: map[string]string{"Type": "eq=DRAFT"},
				Err:    errors.New("only drafts can be promoted"),
			}
		}
		if err := tx.Model(&models.Formula{}).Where("id = ?", id).Update("type", models.FormulaMixture).Error; err != nil {
			return err
		}
		spends := make([]ledger.Spend, 0, len(draft.Materials))
		for _, m := range draft.Materials {
			spends = append(spends, ledger.Spend{MaterialID: m.MaterialID, Grams: m.Grams})
		}
		consumed, err = r.ledger.ConsumeTx(tx, models.TargetFormula, id, spends)
		if err != nil {
			return err
		}
		formula, err = loadFormula(tx, id)
		return err
	})
	if err != nil {
		return models.Formula{}, r.observe("promote_formula", domainerr.Storage("promote formula", err))
	}

	r.ledger.ApplyConsumption(consumed)
	r.drafts.Remove(id)
	r.mixtures.Prepend(formula)
	return formula, r.observe("promote_formula", nil)
}

// Remove deletes a formula with its ingredient rows and notes. Consumption
// history is left untouched; use Undo to give the grams back.
func (r *Registry) Remove(ctx context.Context, id uint) error {
	err := r.db.Transaction(ctx, func(tx *gorm.DB) error {
		return removeTx(tx, id)
	})
	if err != nil {
		return r.observe("remove_formula", domainerr.Storage("remove formula", err))
	}
	r.forget(id)
	return r.observe("remove_formula", nil)
}

// Undo credits back every lot the formula used and removes it, in one transaction.
func (r *Registry) Undo(ctx context.Context, id uint) error {
	var restored ledger.Restoration
	err := r.db.Transaction(ctx, func(tx *gorm.DB) error {
		var err error
		restored, err = r.ledger.RestoreTx(tx, models.TargetFormula, id)
		if err != nil {
			return err
		}
		return removeTx(tx, id)
	})
	if err != nil {
		return r.observe("undo_formula", domainerr.Storage("undo formula", err))
	}

	r.ledger.ApplyRestoration(restored)
	r.forget(id)
	applog.Debug(ctx, "formula undone", "id", id)
	return r.observe("undo_formula", nil)
}

func (r *Registry) forget(id uint) {
	if !r.mixtures.Remove(id) {
		r.drafts.Remove(id)
	}
}

func removeTx(tx *gorm.DB, id uint) error {
	if err := tx.Where("formula_id = ?", id).Delete(&models.FormulaMaterial{}).Error; err != nil {
		return err
	}
	if err := tx.Where("formula_id = ?", id).Delete(&models.FormulaNote{}).Error; err != nil {
		return err
	}
	res := tx.Where("id = ?", id).Delete(&models.Formula{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domainerr.NotFound("formula", id)
	}
	return nil
}

// ListAll reads every formula with materials and notes, newest first.
func (r *Registry) ListAll(ctx context.Context) ([]models.Formula, error) {
	conn, err := r.db.Connect(ctx)
	if err != nil {
		return nil, domainerr.Storage("list formulae", err)
	}
	var formulae []models.Formula
	if err := withDetails(conn).Order("created_at DESC").Order("id DESC").Find(&formulae).Error; err != nil {
		return nil, domainerr.Storage("list formulae", err)
	}
	return formulae, nil
}

// GetByID reads one formula from the database.
func (r *Registry) GetByID(ctx context.Context, id uint) (models.Formula, error) {
	conn, err := r.db.Connect(ctx)
	if err != nil {
		return models.Formula{}, domainerr.Storage("get formula", err)
	}
	formula, err := loadFormula(conn, id)
	if err != nil {
		return models.Formula{}, domainerr.Storage("get formula", err)
	}
	return formula, nil
}

func withDetails(tx *gorm.DB) *gorm.DB {
	return tx.
		Preload("Materials", func(q *gorm.DB) *gorm.DB { return q.Order("id ASC") }).
		Preload("Notes", func(q *gorm.DB) *gorm.DB { return q.Order("created_at DESC").Order("id DESC") })
}

func loadFormula(tx *gorm.DB, id uint) (models.Formula, error) {
	var formula models.Formula
	err := withDetails(tx).First(&formula, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return formula, domainerr.NotFound("formula", id)
	}
	return formula, err
}

// Load rebuilds the mixture and draft mirrors from the database.
func (r *Registry) Load(ctx context.Context) error {
	formulae, err := r.ListAll(ctx)
	if err != nil {
		return err
	}
	var mixtures, drafts []models.Formula
	for _, f := range formulae {
		if f.Type == models.FormulaDraft {
			drafts = append(drafts, f)
		} else {
			mixtures = append(mixtures, f)
		}
	}
	r.mixtures.Reset(mixtures)
	r.drafts.Reset(drafts)
	applog.Info(ctx, "formulae loaded", "mixtures", len(mixtures), "drafts", len(drafts))
	return nil
}

// Mixtures returns the committed formulae, newest first.
func (r *Registry) Mixtures() []models.Formula {
	return r.mixtures.All()
}

// Drafts returns the draft formulae, newest first.
func (r *Registry) Drafts() []models.Formula {
	return r.drafts.All()
}

// Get returns a mixture from the mirror.
func (r *Registry) Get(id uint) (models.Formula, bool) {
	return r.mixtures.Get(id)
}

// GetDraft returns a draft from the mirror.
func (r *Registry) GetDraft(id uint) (models.Formula, bool) {
	return r.drafts.Get(id)
}

// Subscribe registers fn on both formula mirrors.
func (r *Registry) Subscribe(fn store.Observer) (cancel func()) {
	a := r.mixtures.Subscribe(fn)
	b := r.drafts.Subscribe(fn)
	return func() {
		a()
		b()
	}
}
