package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	GameModeRandom = "random"
	GameModeRoom   = "room"

	GameStatusWaiting   = "waiting"
	GameStatusOngoing   = "ongoing"
	GameStatusFinished  = "finished"
	GameStatusCancelled = "cancelled"

	PlayerStatusWaiting  = "waiting"
	PlayerStatusPlaying  = "playing"
	PlayerStatusFinished = "finished"

	GameResultOpponentLeft = "opponent_left"
	GameResultSolved       = "solved"
	GameResultExpired      = "expired"

	MaxPlayersPerGame = 2
)

type Game struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	RoomID    string `json:"room_id" gorm:"uniqueIndex;not null"`
	Mode      string `json:"mode" gorm:"not null;index"`                     // random, room
	Status    string `json:"status" gorm:"not null;index;default:'waiting'"` // waiting, ongoing, finished, cancelled
	ProblemID uint   `json:"problem_id" gorm:"not null"`
	TimeLimit int    `json:"time_limit" gorm:"not null"` // minutes
	// PlayerCount mirrors len(Players) so the second-player join can be a
	// single conditional UPDATE instead of a read-modify-write.
	PlayerCount int            `json:"player_count" gorm:"not null;default:0"`
	StartedAt   *time.Time     `json:"started_at"`
	EndedAt     *time.Time     `json:"ended_at"`
	WinnerID    *uint          `json:"winner_id"`
	Result      string         `json:"result"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`

	// Relationships
	Problem Problem      `json:"problem,omitempty"`
	Players []GamePlayer `json:"players,omitempty" gorm:"foreignKey:GameID"`
}

type GamePlayer struct {
	ID           uint           `json:"id" gorm:"primaryKey"`
	GameID       uint           `json:"game_id" gorm:"not null;index:idx_game_user,unique"`
	UserID       uint           `json:"user_id" gorm:"not null;index:idx_game_user,unique"`
	RatingBefore int            `json:"rating_before" gorm:"not null"`
	TestsPassed  int            `json:"tests_passed" gorm:"not null;default:0"`
	TotalTests   int            `json:"total_tests" gorm:"not null;default:0"`
	Status       string         `json:"status" gorm:"not null;default:'waiting'"` // waiting, playing, finished
	JoinedAt     time.Time      `json:"joined_at"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `json:"-" gorm:"index"`

	// Relationships
	User User `json:"user,omitempty"`
}

// TimeLimitForDifficulty maps a problem difficulty to the match clock in minutes.
func TimeLimitForDifficulty(difficulty string) int {
	switch difficulty {
	case DifficultyEasy:
		return 30
	case DifficultyHard:
		return 60
	default:
		return 45
	}
}
