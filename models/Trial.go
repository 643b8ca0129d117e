package models

import "time"

// Trial is an exploratory note-taking record over abstract materials. It never
// consumes inventory.
type Trial struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	Name        string          `gorm:"not null" json:"name"`
	Description string          `gorm:"type:text" json:"description"`
	Entries     []TrialMaterial `gorm:"foreignKey:TrialID" json:"-"`
	Notes       []TrialNote     `gorm:"foreignKey:TrialID" json:"notes"`
	CreatedAt   time.Time       `json:"created_at"`

	// Materials holds the abstract materials resolved from Entries.
	Materials []AbstractMaterial `gorm:"-" json:"materials"`
}

func (Trial) TableName() string {
	return "trials"
}

// MaterialIDs returns the abstract material ids associated with the trial.
func (t Trial) MaterialIDs() []uint {
	ids := make([]uint, 0, len(t.Entries))
	for _, entry := range t.Entries {
		ids = append(ids, entry.MaterialID)
	}
	return ids
}

// Clone returns a deep copy of the trial.
func (t Trial) Clone() Trial {
	out := t
	out.Entries = append([]TrialMaterial{}, t.Entries...)
	out.Notes = append([]TrialNote{}, t.Notes...)
	out.Materials = make([]AbstractMaterial, 0, len(t.Materials))
	for _, m := range t.Materials {
		out.Materials = append(out.Materials, m.Clone())
	}
	return out
}

type TrialMaterial struct {
	ID         uint `gorm:"primaryKey" json:"-"`
	TrialID    uint `gorm:"not null;index" json:"trial_id"`
	MaterialID uint `gorm:"not null" json:"material_id"` // abstract definition
}

func (TrialMaterial) TableName() string {
	return "trial_materials"
}

type TrialNote struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TrialID   uint      `gorm:"not null;index" json:"trial_id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func (TrialNote) TableName() string {
	return "trial_notes"
}
