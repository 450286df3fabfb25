package models

import "time"

// Match is the immutable archive of a finished game. The live Game row is
// deleted at game end; rating history lives here.
type Match struct {
	ID            uint       `json:"id" gorm:"primaryKey"`
	GameID        uint       `json:"game_id" gorm:"not null;index"`
	RoomID        string     `json:"room_id" gorm:"not null"`
	Mode          string     `json:"mode" gorm:"not null"`
	ProblemID     uint       `json:"problem_id" gorm:"not null"`
	WinnerID      *uint      `json:"winner_id"`
	Result        string     `json:"result"`
	Player1ID     uint       `json:"player1_id" gorm:"not null;index"`
	Player2ID     uint       `json:"player2_id" gorm:"index"`
	Player1Before int        `json:"player1_before"`
	Player1After  int        `json:"player1_after"`
	Player2Before int        `json:"player2_before"`
	Player2After  int        `json:"player2_after"`
	StartedAt     *time.Time `json:"started_at"`
	EndedAt       *time.Time `json:"ended_at"`
	CreatedAt     time.Time  `json:"created_at"`
}
