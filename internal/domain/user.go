package domain

import "time"

// Permission is the coarse user privilege level. Banned users are locked
// out of every authenticated operation.
type Permission int

const (
	PermissionBanned Permission = -1
	PermissionNormal Permission = 0
	PermissionAdmin  Permission = 1
	PermissionOwner  Permission = 2
)

func (p Permission) String() string {
	switch p {
	case PermissionBanned:
		return "banned"
	case PermissionNormal:
		return "normal"
	case PermissionAdmin:
		return "admin"
	case PermissionOwner:
		return "owner"
	default:
		return "unknown"
	}
}

type User struct {
	ID         string     `gorm:"primaryKey;size:32" json:"id"`
	Email      string     `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Password   string     `gorm:"size:512;not null" json:"-"`
	Nickname   *string    `gorm:"size:64;uniqueIndex" json:"nickname,omitempty"`
	Permission Permission `gorm:"not null;default:0" json:"permission"`
	CreatedAt  time.Time  `json:"created_at"`
	LastLogged time.Time  `json:"last_logged"`
}

func (u *User) IsBanned() bool { return u.Permission == PermissionBanned }
