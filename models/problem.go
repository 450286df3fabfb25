package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

type Problem struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	Title       string         `json:"title" gorm:"not null"`
	Description string         `json:"description"`
	Difficulty  string         `json:"difficulty" gorm:"not null;index;default:'medium'"` // easy, medium, hard
	Published   bool           `json:"published" gorm:"not null;index;default:false"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`

	// Relationships
	TestCases []TestCase `json:"test_cases,omitempty" gorm:"foreignKey:ProblemID"`
}

type TestCase struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	ProblemID uint           `json:"problem_id" gorm:"not null;index"`
	Input     string         `json:"input" gorm:"not null"`
	Expected  string         `json:"expected" gorm:"not null"`
	IsPublic  bool           `json:"is_public" gorm:"not null;default:false"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}
