// Package trials records exploratory accords over abstract materials. Trials
// never touch inventory.
package trials

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

const StoreTrials = "trials"

// Spec describes a trial to create.
type Spec struct {
	Name        string    `json:"name" validate:"required"`
	Description string    `json:"description"`
	MaterialIDs []uint    `json:"material_ids" validate:"dive,required"`
	CreatedAt   time.Time `json:"created_at"`
}

type noteInput struct {
	Content string `validate:"required"`
}

// Resolver looks up abstract materials by id.
type Resolver interface {
	GetAbstract(id uint) (models.AbstractMaterial, bool)
}

// Registry owns the trial tables and the trial mirror.
type Registry struct {
	db       *db.Accessor
	resolver Resolver
	metrics  *metrics.Recorder
	now      func() time.Time

	trials *store.Store[models.Trial]
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock overrides the time source used for new rows.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// New returns a Registry writing through the ledger's database and resolving
// materials through its abstract index.
func New(l *ledger.Ledger, opts ...Option) *Registry {
	r := &Registry{
		db:       l.Accessor(),
		resolver: l,
		metrics:  l.Metrics(),
		now:      time.Now,
		trials: store.New(StoreTrials,
			func(t models.Trial) uint { return t.ID },
			store.WithClone(models.Trial.Clone),
		),
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

// resolve fills Materials from Entries, skipping ids the ledger does not know.
func (r *Registry) resolve(t models.Trial) models.Trial {
	t.Materials = make([]models.AbstractMaterial, 0, len(t.Entries))
	for _, id := range t.MaterialIDs() {
		if m, ok := r.resolver.GetAbstract(id); ok {
			t.Materials = append(t.Materials, m)
		}
	}
	return t
}

// Create inserts a trial with its material associations.
func (r *Registry) Create(ctx context.Context, spec Spec) (models.Trial, error) {
	if err := domainerr.Check(spec); err != nil {
		return models.Trial{}, r.observe("create_trial", err)
	}

	var trial models.Trial
	err := r.db.Transaction(ctx, func(tx *gorm.DB) error {
		row := models.Trial{
			Name:        strings.TrimSpace(spec.Name),
			Description: spec.Description,
			CreatedAt:   r.timestamp(spec.CreatedAt),
		}
		if err := tx.Omit("Entries", "Notes").Create(&row).Error; err != nil {
			return err
		}
		if len(spec.MaterialIDs) > 0 {
			rows := make([][]any, 0, len(spec.MaterialIDs))
			for _, id := range spec.MaterialIDs {
				rows = append(rows, []any{row.ID, id})
			}
			if err := db.BulkInsert(tx, models.TrialMaterial{}.TableName(), []string{"trial_id", "material_id"}, rows); err != nil {
				return err
			}
		}
		var err error
		trial, err = loadTrial(tx, row.ID)
		return err
	})
	if err != nil {
		return models.Trial{}, r.observe("create_trial", domainerr.Storage("create trial", err))
	}

	trial = r.resolve(trial)
	r.trials.Prepend(trial)
	applog.Debug(ctx, "trial created", "id", trial.ID, "materials", len(trial.Materials))
	return trial, r.observe("create_trial", nil)
}

// GetByID reads one trial from the database.
func (r *Registry) GetByID(ctx context.Context, id uint) (models.Trial, error) {
	conn, err := r.db.Connect(ctx)
	if err != nil {
		return models.Trial{}, domainerr.Storage("get trial", err)
	}
	trial, err := loadTrial(conn, id)
	if err != nil {
		return models.Trial{}, domainerr.Storage("get trial", err)
	}
	return r.resolve(trial), nil
}

// ListAll reads every trial, newest first.
func (r *Registry) ListAll(ctx context.Context) ([]models.Trial, error) {
	conn, err := r.db.Connect(ctx)
	if err != nil {
		return nil, domainerr.Storage("list trials", err)
	}
	var trials []models.Trial
	if err := withDetails(conn).Order("created_at DESC").Order("id DESC").Find(&trials).Error; err != nil {
		return nil, domainerr.Storage("list trials", err)
	}
	for i := range trials {
		trials[i] = r.resolve(trials[i])
	}
	return trials, nil
}

// Remove deletes a trial with its associations and notes.
func (r *Registry) Remove(ctx context.Context, id uint) error {
	err := r.db.Transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Where("trial_id = ?", id).Delete(&models.TrialMaterial{}).Error; err != nil {
			return err
		}
		if err := tx.Where("trial_id = ?", id).Delete(&models.TrialNote{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&models.Trial{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domainerr.NotFound("trial", id)
		}
		return nil
	})
	if err != nil {
		return r.observe("remove_trial", domainerr.Storage("remove trial", err))
	}
	r.trials.Remove(id)
	return r.observe("remove_trial", nil)
}

// AddNote attaches a note to a trial. The note leads the mirrored note list.
func (r *Registry) AddNote(ctx context.Context, trialID uint, content string) (models.TrialNote, error) {
	if err := domainerr.Check(noteInput{Content: content}); err != nil {
		return models.TrialNote{}, r.observe("add_trial_note", err)
	}

	note := models.TrialNote{TrialID: trialID, Content: content, CreatedAt: r.timestamp(time.Time{})}
	err := r.db.Transaction(ctx, func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Trial{}).Where("id = ?", trialID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return domainerr.NotFound("trial", trialID)
		}
		return tx.Create(&note).Error
	})
	if err != nil {
		return models.TrialNote{}, r.observe("add_trial_note", domainerr.Storage("add trial note", err))
	}

	r.trials.Update(trialID, func(t *models.Trial) {
		t.Notes = append([]models.TrialNote{note}, t.Notes...)
	})
	return note, r.observe("add_trial_note", nil)
}

// EditNote replaces the content of a note.
func (r *Registry) EditNote(ctx context.Context, noteID uint, content string) (models.TrialNote, error) {
	if err := domainerr.Check(noteInput{Content: content}); err != nil {
		return models.TrialNote{}, r.observe("edit_trial_note", err)
	}

	var note models.TrialNote
	err := r.db.Transaction(ctx, func(tx *gorm.DB) error {
		err := tx.First(&note, noteID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domainerr.NotFound("trial note", noteID)
		}
		if err != nil {
			return err
		}
		note.Content = content
		return tx.Model(&note).Update("content", content).Error
	})
	if err != nil {
		return models.TrialNote{}, r.observe("edit_trial_note", domainerr.Storage("edit trial note", err))
	}

	r.trials.Update(note.TrialID, func(t *models.Trial) {
		for i := range t.Notes {
			if t.Notes[i].ID == noteID {
				t.Notes[i].Content = content
			}
		}
	})
	return note, r.observe("edit_trial_note", nil)
}

// RemoveNote deletes a note of trialID.
func (r *Registry) RemoveNote(ctx context.Context, trialID, noteID uint) error {
	conn, err := r.db.Connect(ctx)
	if err != nil {
		return r.observe("remove_trial_note", domainerr.Storage("remove trial note", err))
	}
	res := conn.Where("id = ? AND trial_id = ?", noteID, trialID).Delete(&models.TrialNote{})
	if res.Error != nil {
		return r.observe("remove_trial_note", domainerr.Storage("remove trial note", res.Error))
	}
	if res.RowsAffected == 0 {
		return r.observe("remove_trial_note", domainerr.NotFound("trial note", noteID))
	}

	r.trials.Update(trialID, func(t *models.Trial) {
		kept := t.Notes[:0]
		for _, n := range t.Notes {
			if n.ID != noteID {
				kept = append(kept, n)
			}
		}
		t.Notes = kept
	})
	return r.observe("remove_trial_note", nil)
}

// Load rebuilds the trial mirror. The ledger's abstract mirror must be loaded first.
func (r *Registry) Load(ctx context.Context) error {
	trials, err := r.ListAll(ctx)
	if err != nil {
		return err
	}
	r.trials.Reset(trials)
	applog.Info(ctx, "trials loaded", "count", len(trials))
	return nil
}

// Trials returns the mirrored trials, newest first. Materials are resolved on
// read so edits and deletions in the ledger show up without a reload.
func (r *Registry) Trials() []models.Trial {
	trials := r.trials.All()
	for i := range trials {
		trials[i] = r.resolve(trials[i])
	}
	return trials
}

// Get returns a trial from the mirror with its materials resolved.
func (r *Registry) Get(id uint) (models.Trial, bool) {
	trial, ok := r.trials.Get(id)
	if !ok {
		return trial, false
	}
	return r.resolve(trial), true
}

// Subscribe registers fn on the trial mirror.
func (r *Registry) Subscribe(fn store.Observer) (cancel func()) {
	return r.trials.Subscribe(fn)
}

func withDetails(tx *gorm.DB) *gorm.DB {
	return tx.
		Preload("Entries", func(q *gorm.DB) *gorm.DB { return q.Order("id ASC") }).
		Preload("Notes", func(q *gorm.DB) *gorm.DB { return q.Order("created_at DESC").Order("id DESC") })
}

func loadTrial(tx *gorm.DB, id uint) (models.Trial, error) {
	var trial models.Trial
	err := withDetails(tx).First(&trial, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return trial, domainerr.NotFound("trial", id)
	}
	return trial, err
}
