package models

import (
	"time"

	"gorm.io/gorm"
)

const DefaultRating = 1200

type User struct {
	ID           uint           `json:"id" gorm:"primaryKey"`
	Username     string         `json:"username" gorm:"uniqueIndex;not null"`
	Email        string         `json:"email" gorm:"uniqueIndex;not null"`
	PasswordHash string         `json:"-" gorm:"not null"`
	Rating       int            `json:"rating" gorm:"not null;default:1200"`
	GamesPlayed  int            `json:"games_played" gorm:"not null;default:0"`
	GamesWon     int            `json:"games_won" gorm:"not null;default:0"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `json:"-" gorm:"index"`
}
