package models

import "time"

// User owns bots. Passwords are stored hashed by the auth layer.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"uniqueIndex;not null" json:"username"`
	Password  string    `json:"-"`
	Role      string    `gorm:"type:varchar(20);default:'user'" json:"role"` // admin/user
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
