package mock

import (
	"context"
	"testing"

	"scentledger/models"
)

func TestNewSeedsExpectedRecords(t *testing.T) {
	ctx := context.Background()
	db, err := New(ctx)
	if err != nil {
		t.Fatalf("mock database initialization failed: %v", err)
	}

	var abstracts []models.AbstractMaterial
	if err := db.WithContext(ctx).Preload("Tags").Find(&abstracts).Error; err != nil {
		t.Fatalf("query abstract materials: %v", err)
	}
	if len(abstracts) != 3 {
		t.Fatalf("expected 3 seeded abstract materials, got %d", len(abstracts))
	}

	var bergamot models.Material
	if err := db.WithContext(ctx).Where("name = ?", "Bergamot FCF").First(&bergamot).Error; err != nil {
		t.Fatalf("query bergamot lot: %v", err)
	}
	if bergamot.GramsAvailable != 82 {
		t.Fatalf("bergamot grams_available = %v, want 82 after seeded mixture", bergamot.GramsAvailable)
	}

	var history []models.MaterialHistory
	if err := db.WithContext(ctx).Find(&history).Error; err != nil {
		t.Fatalf("query history: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 history rows, got %d", len(history))
	}

	var formulae []models.Formula
	if err := db.WithContext(ctx).Preload("Materials").Find(&formulae).Error; err != nil {
		t.Fatalf("query formulae: %v", err)
	}
	if len(formulae) != 2 {
		t.Fatalf("expected 2 formulae, got %d", len(formulae))
	}

	// A second call reuses the shared in-memory database without reseeding.
	again, err := New(ctx)
	if err != nil {
		t.Fatalf("second New() failed: %v", err)
	}
	var count int64
	if err := again.WithContext(ctx).Model(&models.AbstractMaterial{}).Count(&count).Error; err != nil {
		t.Fatalf("count abstract materials: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected reseed to be skipped, found %d materials", count)
	}
}
