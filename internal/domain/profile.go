package domain

import "time"

// ModelType is the cosmetic player model variant.
type ModelType string

const (
	ModelSteve ModelType = "steve"
	ModelAlex  ModelType = "alex"
)

// Profile is a named character owned by a user. One user may own several
// profiles; the display name is globally unique.
type Profile struct {
	ID        string    `gorm:"primaryKey;size:32" json:"id"`
	Name      string    `gorm:"size:16;uniqueIndex;not null" json:"name"`
	UserID    string    `gorm:"size:32;index;not null" json:"user_id"`
	Model     ModelType `gorm:"size:16;not null;default:steve" json:"model"`
	CreatedAt time.Time `json:"created_at"`
}
