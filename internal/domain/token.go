package domain

import "time"

// Token is an opaque bearer credential. The row id is the access token
// itself; ClientToken is the caller-supplied correlation id persisted
// alongside it. There is no stored status: staleness and expiry are
// derived from CreatedAt against the two configured horizons.
type Token struct {
	ID          string    `gorm:"primaryKey;size:32" json:"access_token"`
	ClientToken string    `gorm:"size:32;not null" json:"client_token"`
	UserID      string    `gorm:"size:32;index;not null" json:"user_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// ValidAt reports whether the token is still inside the strict "valid"
// horizon. Join uses this; crossing it means a client should refresh.
func (t *Token) ValidAt(now time.Time, valid time.Duration) bool {
	return now.Sub(t.CreatedAt) < valid
}

// InvalidAt reports whether the token has crossed the looser "invalid"
// horizon and is unusable for any purpose.
func (t *Token) InvalidAt(now time.Time, invalid time.Duration) bool {
	return now.Sub(t.CreatedAt) > invalid
}
