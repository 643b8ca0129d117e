// Package ledger owns material definitions, inventory lots and the consumption
// history that ties lots to the formulae and dilutions that used them.
//
// Every mutation writes to the database first and only touches the in-memory
// mirrors after the transaction committed.
package ledger

import (
	"context"
	"time"

	"scentledger/internal/db"
	"scentledger/internal/domainerr"
	applog "scentledger/internal/log"
	"scentledger/internal/metrics"
	"scentledger/internal/store"
	"scentledger/models"
)

// Store names used in change notifications.
const (
	StoreAbstracts       = "materials_abstract"
	StoreInventory       = "materials"
	StoreHistoryFormula  = "history_formula"
	StoreHistoryDilution = "history_dilution"
)

// Ledger is the material ledger. It is safe for concurrent use.
type Ledger struct {
	db      *db.Accessor
	metrics *metrics.Recorder
	now     func() time.Time

	abstracts *store.Store[models.AbstractMaterial]
	inventory *store.Store[models.Material]
	formulas  *store.Store[HistoryEntry]
	dilutions *store.Store[HistoryEntry]
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithMetrics records operations and gram movements on rec.
func WithMetrics(rec *metrics.Recorder) Option {
	return func(l *Ledger) {
		l.metrics = rec
	}
}

// WithClock overrides the time source used for new rows.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// New returns a Ledger backed by accessor with empty mirrors. Call Load to fill them.
func New(accessor *db.Accessor, opts ...Option) *Ledger {
	l := &Ledger{
		db:  accessor,
		now: time.Now,
		abstracts: store.New(StoreAbstracts,
			func(m models.AbstractMaterial) uint { return m.ID },
			store.WithClone(models.AbstractMaterial.Clone),
		),
		inventory: store.New(StoreInventory,
			func(m models.Material) uint { return m.ID },
			store.WithClone(models.Material.Clone),
		),
		formulas: store.New(StoreHistoryFormula,
			func(e HistoryEntry) uint { return e.TargetID },
			store.WithClone(HistoryEntry.clone),
		),
		dilutions: store.New(StoreHistoryDilution,
			func(e HistoryEntry) uint { return e.TargetID },
			store.WithClone(HistoryEntry.clone),
		),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Accessor returns the database accessor the ledger writes through.
func (l *Ledger) Accessor() *db.Accessor {
	return l.db
}

// Metrics returns the recorder the ledger reports to. It may be nil.
func (l *Ledger) Metrics() *metrics.Recorder {
	return l.metrics
}

func (l *Ledger) timestamp(t time.Time) time.Time {
	if t.IsZero() {
		t = l.now()
	}
	return t.UTC()
}

// Load rebuilds every mirror from the database.
func (l *Ledger) Load(ctx context.Context) error {
	abstracts, err := l.ListAbstracts(ctx)
	if err != nil {
		return err
	}
	inventory, err := l.ListInventory(ctx)
	if err != nil {
		return err
	}
	formulas, err := l.ListHistory(ctx, models.TargetFormula)
	if err != nil {
		return err
	}
	dilutions, err := l.ListHistory(ctx, models.TargetDilution)
	if err != nil {
		return err
	}

	l.abstracts.Reset(abstracts)
	l.inventory.Reset(inventory)
	l.formulas.Reset(formulas)
	l.dilutions.Reset(dilutions)

	applog.Info(ctx, "ledger loaded",
		"abstracts", len(abstracts),
		"inventory", len(inventory),
		"formula_history", len(formulas),
		"dilution_history", len(dilutions),
	)
	return nil
}

// Get returns the inventory lot with id from the mirror.
func (l *Ledger) Get(id uint) (models.Material, bool) {
	return l.inventory.Get(id)
}

// GetAbstract returns the abstract material with id from the mirror.
func (l *Ledger) GetAbstract(id uint) (models.AbstractMaterial, bool) {
	return l.abstracts.Get(id)
}

// Inventory returns the inventory lots in insertion order.
func (l *Ledger) Inventory() []models.Material {
	return l.inventory.All()
}

// Abstracts returns the abstract materials, newest first.
func (l *Ledger) Abstracts() []models.AbstractMaterial {
	return l.abstracts.All()
}

// History returns the aggregated consumption entries for target, newest first.
func (l *Ledger) History(target models.TargetType) []HistoryEntry {
	return l.history(target).All()
}

func (l *Ledger) history(target models.TargetType) *store.Store[HistoryEntry] {
	if target == models.TargetDilution {
		return l.dilutions
	}
	return l.formulas
}

// Subscribe registers fn on every ledger mirror.
func (l *Ledger) Subscribe(fn store.Observer) (cancel func()) {
	cancels := []func(){
		l.abstracts.Subscribe(fn),
		l.inventory.Subscribe(fn),
		l.formulas.Subscribe(fn),
		l.dilutions.Subscribe(fn),
	}
	return func() {
		for _, c := range cancels {
			c()
		}
	}
}

func (l *Ledger) observe(op string, err error) error {
	l.metrics.Observe(op, err)
	return err
}

func notFoundOr(entity string, id uint, rows int64, err error) error {
	if err != nil {
		return err
	}
	if rows == 0 {
		return domainerr.NotFound(entity, id)
	}
	return nil
}
