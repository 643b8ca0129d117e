package mock

import (
	"context"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"scentledger/internal/db"
	applog "scentledger/internal/log"
	"scentledger/models"
)

// New returns an in-memory sqlite database seeded with a representative atelier:
// three material definitions, pure lots, one dilution, a committed mixture, a draft
// and a trial.
func New(ctx context.Context) (*gorm.DB, error) {
	applog.Debug(ctx, "initialising mock database")

	cfg := db.GormConfig()
	cfg.Logger = logger.Default.LogMode(logger.Silent)

	database, err := gorm.Open(sqlite.Open("file:scentledger-mock?mode=memory&cache=shared"), cfg)
	if err != nil {
		return nil, err
	}

	if sqlDB, err := database.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(database); err != nil {
		return nil, err
	}

	var existing int64
	if err := database.WithContext(ctx).Model(&models.AbstractMaterial{}).Count(&existing).Error; err != nil {
		return nil, err
	}
	if existing > 0 {
		applog.Debug(ctx, "mock database already seeded")
		return database, nil
	}

	if err := database.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return seed(ctx, tx)
	}); err != nil {
		return nil, err
	}

	applog.Debug(ctx, "mock database ready")
	return database, nil
}

func ptr[T any](v T) *T {
	return &v
}

func seed(ctx context.Context, tx *gorm.DB) error {
	applog.Debug(ctx, "seeding mock database")

	created := time.Date(2024, time.March, 2, 10, 0, 0, 0, time.UTC)

	bergamot := models.AbstractMaterial{
		Name:        "Bergamot",
		Description: ptr("Cold-pressed citrus brightness harvested from Calabria groves."),
		Type:        models.MaterialTypeEssentialOil,
		Family:      ptr("FRESH"),
		CASNumber:   ptr("8007-75-8"),
		Tags:        []models.MaterialTag{{Value: "citrus"}, {Value: "top"}},
		Links:       []models.MaterialLink{{Value: "https://www.thegoodscentscompany.com/data/es1003291.html"}},
	}
	iris := models.AbstractMaterial{
		Name:        "Orris Butter",
		Description: ptr("Velvety floral heart with powdery texture and persistence."),
		Type:        models.MaterialTypeAbsolute,
		Family:      ptr("FLORAL"),
		CASNumber:   ptr("8002-73-1"),
		Tags:        []models.MaterialTag{{Value: "powdery"}},
	}
	ambroxan := models.AbstractMaterial{
		Name:        "Ambroxan",
		Description: ptr("Modern ambergris profile delivering warmth and diffusion."),
		Type:        models.MaterialTypeSynthetic,
		Family:      ptr("AMBER"),
		CASNumber:   ptr("6790-58-5"),
		Tags:        []models.MaterialTag{{Value: "base"}, {Value: "diffusive"}},
	}

	for _, material := range []*models.AbstractMaterial{&bergamot, &iris, &ambroxan} {
		if err := tx.Create(material).Error; err != nil {
			return err
		}
	}

	bergamotLot := models.Material{
		MaterialID:     bergamot.ID,
		Name:           ptr("Bergamot FCF"),
		Type:           models.InstanceTypePure,
		Manufacturer:   ptr("Capua 1880"),
		BatchID:        ptr("CP-2231"),
		GramsAvailable: 100,
		GramsInitial:   100,
		CreatedAt:      created,
	}
	ambroxanLot := models.Material{
		MaterialID:     ambroxan.ID,
		Type:           models.InstanceTypePure,
		Manufacturer:   ptr("Firmenich"),
		GramsAvailable: 50,
		GramsInitial:   50,
		CreatedAt:      created,
	}
	irisLot := models.Material{
		MaterialID:     iris.ID,
		Name:           ptr("Orris 10% in DPG"),
		Type:           models.InstanceTypeDilution,
		GramsAvailable: 20,
		GramsInitial:   20,
		GramsMaterial:  ptr(2.0),
		GramsSolvent:   ptr(18.0),
		CreatedAt:      created,
	}
	for _, lot := range []*models.Material{&bergamotLot, &ambroxanLot, &irisLot} {
		if err := tx.Create(lot).Error; err != nil {
			return err
		}
	}

	// 10% ambroxan dilution made from 5 g of the pure lot.
	ambroxanDilution := models.Material{
		MaterialID:     ambroxan.ID,
		InstanceID:     &ambroxanLot.ID,
		Name:           ptr("Ambroxan 10%"),
		Type:           models.InstanceTypeDilution,
		GramsAvailable: 50,
		GramsInitial:   50,
		GramsMaterial:  ptr(5.0),
		GramsSolvent:   ptr(45.0),
		CreatedAt:      created.Add(time.Hour),
	}
	if err := tx.Create(&ambroxanDilution).Error; err != nil {
		return err
	}

	aurum := models.Formula{
		Name:        "Aurum Nocturne",
		Type:        models.FormulaMixture,
		Description: ptr("Resinous amber core balanced with luminous citrus facets."),
		GramsTotal:  30,
		Materials: []models.FormulaMaterial{
			{MaterialID: bergamotLot.ID, Grams: 18},
			{MaterialID: ambroxanDilution.ID, Grams: 12},
		},
		Notes: []models.FormulaNote{
			{Content: "Opening too sharp, try more orris next time.", CreatedAt: created.Add(26 * time.Hour)},
		},
		CreatedAt: created.Add(24 * time.Hour),
	}
	lumen := models.Formula{
		Name:        "Lumen Celeste",
		Type:        models.FormulaDraft,
		Description: ptr("Radiant iris halo with cool musk trails for longevity."),
		GramsTotal:  14,
		Materials: []models.FormulaMaterial{
			{MaterialID: irisLot.ID, Grams: 9.2},
			{MaterialID: bergamotLot.ID, Grams: 4.8},
		},
		CreatedAt: created.Add(48 * time.Hour),
	}
	for _, formula := range []*models.Formula{&aurum, &lumen} {
		if err := tx.Create(formula).Error; err != nil {
			return err
		}
	}

	history := []models.MaterialHistory{
		{MaterialID: ambroxanLot.ID, TargetID: ambroxanDilution.ID, TargetType: models.TargetDilution, Grams: 5, CreatedAt: ambroxanDilution.CreatedAt},
		{MaterialID: bergamotLot.ID, TargetID: aurum.ID, TargetType: models.TargetFormula, Grams: 18, CreatedAt: aurum.CreatedAt},
		{MaterialID: ambroxanDilution.ID, TargetID: aurum.ID, TargetType: models.TargetFormula, Grams: 12, CreatedAt: aurum.CreatedAt},
	}
	if err := tx.Create(&history).Error; err != nil {
		return err
	}
	for _, entry := range history {
		if err := tx.Model(&models.Material{}).
			Where("id = ?", entry.MaterialID).
			Update("grams_available", gorm.Expr("grams_available - ?", entry.Grams)).Error; err != nil {
			return err
		}
	}

	trial := models.Trial{
		Name:        "Citrus amber accord",
		Description: "Looking for a bergamot/ambroxan ratio that survives the drydown.",
		Entries: []models.TrialMaterial{
			{MaterialID: bergamot.ID},
			{MaterialID: ambroxan.ID},
		},
		Notes: []models.TrialNote{
			{Content: "1:1 too flat; 3:1 promising.", CreatedAt: created.Add(72 * time.Hour)},
		},
		CreatedAt: created.Add(70 * time.Hour),
	}
	if err := tx.Create(&trial).Error; err != nil {
		return err
	}

	applog.Debug(ctx, "mock database seeded")
	return nil
}
