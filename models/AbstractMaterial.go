package models

import "time"

// MaterialType classifies an abstract material by how it is produced.
type MaterialType string

const (
	MaterialTypeEssentialOil MaterialType = "EO"
	MaterialTypeSynthetic    MaterialType = "SY"
	MaterialTypeAbsolute     MaterialType = "NA"
)

// MaterialTypes lists the accepted material types in display order.
var MaterialTypes = []MaterialType{
	MaterialTypeEssentialOil,
	MaterialTypeSynthetic,
	MaterialTypeAbsolute,
}

// Valid reports whether t is one of the known material types.
func (t MaterialType) Valid() bool {
	switch t {
	case MaterialTypeEssentialOil, MaterialTypeSynthetic, MaterialTypeAbsolute:
		return true
	}
	return false
}

// Label returns the human readable name of the material type.
func (t MaterialType) Label() string {
	switch t {
	case MaterialTypeEssentialOil:
		return "Essential oil"
	case MaterialTypeSynthetic:
		return "Synthetic"
	case MaterialTypeAbsolute:
		return "Absolute"
	default:
		return string(t)
	}
}

// AbstractMaterial is a reusable material definition independent of any physical stock.
type AbstractMaterial struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Name        string         `gorm:"not null" json:"name"`
	Description *string        `gorm:"type:text" json:"description,omitempty"`
	Type        MaterialType   `gorm:"type:varchar(2);not null" json:"type"`
	Family      *string        `json:"family,omitempty"`
	CASNumber   *string        `gorm:"column:cas_number" json:"cas_number,omitempty"`
	Tags        []MaterialTag  `gorm:"foreignKey:MaterialID" json:"-"`
	Links       []MaterialLink `gorm:"foreignKey:MaterialID" json:"-"`
	CreatedAt   time.Time      `json:"created_at"`
}

func (AbstractMaterial) TableName() string {
	return "materials_abstract"
}

// TagValues returns the tag strings in storage order.
func (m AbstractMaterial) TagValues() []string {
	values := make([]string, 0, len(m.Tags))
	for _, tag := range m.Tags {
		values = append(values, tag.Value)
	}
	return values
}

// LinkValues returns the reference links in storage order.
func (m AbstractMaterial) LinkValues() []string {
	values := make([]string, 0, len(m.Links))
	for _, link := range m.Links {
		values = append(values, link.Value)
	}
	return values
}

// Clone returns a deep copy so mirror readers never share slices with the store.
func (m AbstractMaterial) Clone() AbstractMaterial {
	out := m
	out.Description = cloneString(m.Description)
	out.Family = cloneString(m.Family)
	out.CASNumber = cloneString(m.CASNumber)
	if m.Tags != nil {
		out.Tags = append([]MaterialTag(nil), m.Tags...)
	}
	if m.Links != nil {
		out.Links = append([]MaterialLink(nil), m.Links...)
	}
	return out
}

// MaterialTag is a free-form label attached to an abstract material.
type MaterialTag struct {
	ID         uint   `gorm:"primaryKey" json:"-"`
	MaterialID uint   `gorm:"not null;index" json:"material_id"`
	Value      string `gorm:"not null" json:"value"`
}

func (MaterialTag) TableName() string {
	return "material_tags"
}

// MaterialLink is a reference URL attached to an abstract material.
type MaterialLink struct {
	ID         uint   `gorm:"primaryKey" json:"-"`
	MaterialID uint   `gorm:"not null;index" json:"material_id"`
	Value      string `gorm:"not null" json:"value"`
}

func (MaterialLink) TableName() string {
	return "material_links"
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

func cloneUint(u *uint) *uint {
	if u == nil {
		return nil
	}
	v := *u
	return &v
}
