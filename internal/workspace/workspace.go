// Package workspace wires the ledger and the registries over one database and
// loads their mirrors.
package workspace

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"scentledger/internal/db"
	"scentledger/internal/formulas"
	"scentledger/internal/ledger"
	applog "scentledger/internal/log"
	"scentledger/internal/metrics"
	"scentledger/internal/store"
	"scentledger/internal/trials"
)

// Workspace is the loaded application state.
type Workspace struct {
	DB       *db.Accessor
	Ledger   *ledger.Ledger
	Formulas *formulas.Registry
	Trials   *trials.Registry
	Metrics  *metrics.Recorder
}

type options struct {
	registerer prometheus.Registerer
	ledgerOpts []ledger.Option
}

// Option configures Open.
type Option func(*options)

// WithRegisterer registers the ledger metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// WithLedgerOptions passes extra options to the ledger.
func WithLedgerOptions(opts ...ledger.Option) Option {
	return func(o *options) {
		o.ledgerOpts = append(o.ledgerOpts, opts...)
	}
}

// Open connects, migrates the schema and loads every mirror in dependency
// order: abstracts, inventory and history first, then formulae, then trials.
func Open(ctx context.Context, accessor *db.Accessor, opts ...Option) (*Workspace, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	conn, err := accessor.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := db.AutoMigrate(conn); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	rec := metrics.New(o.registerer)
	l := ledger.New(accessor, append([]ledger.Option{ledger.WithMetrics(rec)}, o.ledgerOpts...)...)
	ws := &Workspace{
		DB:       accessor,
		Ledger:   l,
		Formulas: formulas.New(l),
		Trials:   trials.New(l),
		Metrics:  rec,
	}
	if err := ws.Load(ctx); err != nil {
		return nil, err
	}
	return ws, nil
}

// Load refreshes every mirror from the database.
func (w *Workspace) Load(ctx context.Context) error {
	if err := w.Ledger.Load(ctx); err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}
	if err := w.Formulas.Load(ctx); err != nil {
		return fmt.Errorf("load formulae: %w", err)
	}
	if err := w.Trials.Load(ctx); err != nil {
		return fmt.Errorf("load trials: %w", err)
	}
	applog.Debug(ctx, "workspace loaded")
	return nil
}

// Subscribe registers fn on every mirror in the workspace.
func (w *Workspace) Subscribe(fn store.Observer) (cancel func()) {
	cancels := []func(){
		w.Ledger.Subscribe(fn),
		w.Formulas.Subscribe(fn),
		w.Trials.Subscribe(fn),
	}
	return func() {
		for _, c := range cancels {
			c()
		}
	}
}

// Close releases the database handle.
func (w *Workspace) Close() error {
	return w.DB.Close()
}
