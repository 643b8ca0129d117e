package models

// All returns every persisted model in dependency order, for AutoMigrate.
func All() []any {
	return []any{
		&AbstractMaterial{},
		&MaterialTag{},
		&MaterialLink{},
		&Material{},
		&MaterialHistory{},
		&Formula{},
		&FormulaMaterial{},
		&FormulaNote{},
		&Trial{},
		&TrialMaterial{},
		&TrialNote{},
	}
}
