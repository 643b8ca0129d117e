package models

import "time"

// FormulaType separates committed mixtures from drafts.
type FormulaType string

const (
	FormulaMixture FormulaType = "MIXTURE"
	FormulaDraft   FormulaType = "DRAFT"
)

type Formula struct {
	ID          uint              `gorm:"primaryKey" json:"id"`
	Name        string            `gorm:"not null" json:"name"`
	Type        FormulaType       `gorm:"type:varchar(16);not null;default:MIXTURE" json:"type"`
	Description *string           `gorm:"type:text" json:"description,omitempty"`
	GramsTotal  float64           `gorm:"not null" json:"grams_total"`
	Materials   []FormulaMaterial `gorm:"foreignKey:FormulaID" json:"materials"`
	Notes       []FormulaNote     `gorm:"foreignKey:FormulaID" json:"notes"`
	CreatedAt   time.Time         `json:"created_at"`
}

func (Formula) TableName() string {
	return "formulae"
}

// Clone returns a deep copy of the formula, its materials and notes.
func (f Formula) Clone() Formula {
	out := f
	out.Description = cloneString(f.Description)
	out.Materials = append([]FormulaMaterial{}, f.Materials...)
	out.Notes = append([]FormulaNote{}, f.Notes...)
	return out
}

// FormulaMaterial is the grams of one inventory lot recorded when the formula was created.
type FormulaMaterial struct {
	ID         uint    `gorm:"primaryKey" json:"-"`
	FormulaID  uint    `gorm:"not null;index" json:"formula_id"`
	MaterialID uint    `gorm:"not null" json:"material_id"` // inventory lot, not the abstract definition
	Grams      float64 `gorm:"not null" json:"grams"`
}

func (FormulaMaterial) TableName() string {
	return "formula_materials"
}

type FormulaNote struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	FormulaID uint      `gorm:"not null;index" json:"formula_id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func (FormulaNote) TableName() string {
	return "formula_notes"
}
