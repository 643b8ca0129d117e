package models

import "time"

// TargetType names what consumed grams from an inventory lot.
type TargetType string

const (
	TargetFormula  TargetType = "FORMULA"
	TargetDilution TargetType = "DILUTION"
)

// MaterialHistory records grams taken from one lot for one target. It is the only
// audit trail used to restore stock when a target is undone.
type MaterialHistory struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	MaterialID uint       `gorm:"not null;index" json:"material_id"`
	TargetID   uint       `gorm:"not null;index" json:"target_id"`
	TargetType TargetType `gorm:"type:varchar(16);not null;index" json:"target_type"`
	Grams      float64    `gorm:"not null" json:"grams"`
	CreatedAt  time.Time  `json:"created_at"`
}

func (MaterialHistory) TableName() string {
	return "material_history"
}
