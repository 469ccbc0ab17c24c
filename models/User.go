package models

import (
	"time"

	"gorm.io/gorm"
)

type User struct {
	gorm.Model
	Name          string     `json:"name" gorm:"size:100;not null"`
	Email         string     `json:"email" gorm:"uniqueIndex;not null"`
	Password      string     `json:"-"`
	Role          string     `json:"role" gorm:"type:varchar(20);default:user;index"` // user, admin
	FeedbackCount int        `json:"feedbackCount" gorm:"default:0"`
	LastLogin     *time.Time `json:"lastLogin"`
	IsActive      *bool      `json:"isActive" gorm:"default:true"`
}

// PublicUser is the minimal identity joined onto feedback items.
type PublicUser struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (u *User) Public() PublicUser {
	return PublicUser{ID: u.ID, Name: u.Name, Email: u.Email}
}
