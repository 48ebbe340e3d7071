package models

import (
	"time"
)

type User struct {
	ID           string    `gorm:"primaryKey;type:varchar(24)" bson:"_id" json:"id"`
	Name         string    `gorm:"type:varchar(100);not null" bson:"name" json:"name"`
	Lastname     string    `gorm:"type:varchar(100)" bson:"lastname" json:"lastname"`
	Email        string    `gorm:"type:varchar(255);uniqueIndex;not null" bson:"email" json:"email"`
	PasswordHash string    `gorm:"type:varchar(100);not null" bson:"password_hash" json:"-"`
	CreatedAt    time.Time `bson:"created_at" json:"createdAt"`
}

func (User) TableName() string {
	return "users"
}

// PublicUser is the user shape returned to clients and embedded in tokens.
type PublicUser struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Lastname string `json:"lastname"`
	Email    string `json:"email"`
}

func (u *User) Public() PublicUser {
	return PublicUser{
		ID:       u.ID,
		Name:     u.Name,
		Lastname: u.Lastname,
		Email:    u.Email,
	}
}
