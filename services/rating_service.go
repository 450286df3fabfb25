package services

import (
	"math"

	"codebattle/models"

	"gorm.io/gorm"
)

const eloK = 32

type RatingService struct {
	db *gorm.DB
}

func NewRatingService(db *gorm.DB) *RatingService {
	return &RatingService{db: db}
}

// ApplyResult adjusts both players' ratings for a decisive game and bumps
// their win/game counters. Runs inside the caller's transaction.
func (s *RatingService) ApplyResult(tx *gorm.DB, winnerID, loserID uint) (winDelta, loseDelta int, err error) {
	var winner, loser models.User
	if err = tx.First(&winner, winnerID).Error; err != nil {
		return 0, 0, err
	}
	if err = tx.First(&loser, loserID).Error; err != nil {
		return 0, 0, err
	}

	winDelta = eloDelta(winner.Rating, loser.Rating, 1)
	loseDelta = eloDelta(loser.Rating, winner.Rating, 0)

	err = tx.Model(&models.User{}).Where("id = ?", winner.ID).Updates(map[string]interface{}{
		"rating":       winner.Rating + winDelta,
		"games_played": gorm.Expr("games_played + 1"),
		"games_won":    gorm.Expr("games_won + 1"),
	}).Error
	if err != nil {
		return 0, 0, err
	}

	err = tx.Model(&models.User{}).Where("id = ?", loser.ID).Updates(map[string]interface{}{
		"rating":       loser.Rating + loseDelta,
		"games_played": gorm.Expr("games_played + 1"),
	}).Error
	if err != nil {
		return 0, 0, err
	}

	return winDelta, loseDelta, nil
}

// eloDelta is the standard Elo adjustment: K * (score - expected), where
// expected = 1 / (1 + 10^((opponent-own)/400)).
func eloDelta(own, opponent int, score float64) int {
	expected := 1.0 / (1.0 + math.Pow(10, float64(opponent-own)/400.0))
	return int(math.Round(eloK * (score - expected)))
}
