package model

import (
	"time"
)

type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

// swagger:model User
type User struct {
	BaseModel
	Email         string     `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Username      *string    `gorm:"size:50;uniqueIndex" json:"username,omitempty"` // 仅管理员账号使用
	Password      string     `gorm:"size:255;not null" json:"-"`
	FullName      string     `gorm:"size:100;not null" json:"fullName"`
	Qualification string     `gorm:"size:100" json:"qualification"`
	DateOfBirth   time.Time  `gorm:"type:date" json:"dateOfBirth"`
	Role          UserRole   `gorm:"size:20;not null;index" json:"role"`
	LastLogin     *time.Time `json:"lastLogin,omitempty"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
