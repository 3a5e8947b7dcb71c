package domain

import "time"

// TextureType distinguishes skins from capes.
type TextureType string

const (
	TextureSkin TextureType = "SKIN"
	TextureCape TextureType = "CAPE"
)

// Texture is a stored texture reference for a profile. Hash addresses the
// texture payload in the external texture storage collaborator.
type Texture struct {
	ID        string      `gorm:"primaryKey;size:32" json:"id"`
	ProfileID string      `gorm:"size:32;index;not null" json:"profile_id"`
	Type      TextureType `gorm:"size:16;not null" json:"type"`
	Hash      string      `gorm:"size:64;not null" json:"hash"`
	CreatedAt time.Time   `json:"created_at"`
}
