package models

import "time"

// InstanceType distinguishes pure lots from dilutions.
type InstanceType string

const (
	InstanceTypePure     InstanceType = "PURE"
	InstanceTypeDilution InstanceType = "DILUTION"
)

// Material is a physical inventory lot of an abstract material.
type Material struct {
	ID         uint  `gorm:"primaryKey" json:"id"`
	MaterialID uint  `gorm:"not null;index" json:"material_id"` // abstract definition
	InstanceID *uint `gorm:"index" json:"instance_id,omitempty"` // dilution source

	Name         *string      `json:"name,omitempty"`
	Type         InstanceType `gorm:"type:varchar(16);not null;default:PURE" json:"type"`
	Manufacturer *string      `json:"manufacturer,omitempty"`
	BatchID      *string      `json:"batch_id,omitempty"`
	Link         *string      `json:"link,omitempty"`

	GramsAvailable float64  `gorm:"not null" json:"grams_available"`
	GramsInitial   float64  `gorm:"not null" json:"grams_initial"`
	GramsMaterial  *float64 `json:"grams_material,omitempty"`
	GramsSolvent   *float64 `json:"grams_solvent,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

func (Material) TableName() string {
	return "materials"
}

// HasSplit reports whether the lot records a material/solvent split.
func (m Material) HasSplit() bool {
	return m.GramsMaterial != nil && m.GramsSolvent != nil
}

// Clone returns a deep copy of the lot.
func (m Material) Clone() Material {
	out := m
	out.InstanceID = cloneUint(m.InstanceID)
	out.Name = cloneString(m.Name)
	out.Manufacturer = cloneString(m.Manufacturer)
	out.BatchID = cloneString(m.BatchID)
	out.Link = cloneString(m.Link)
	out.GramsMaterial = cloneFloat(m.GramsMaterial)
	out.GramsSolvent = cloneFloat(m.GramsSolvent)
	return out
}
