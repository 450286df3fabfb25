package services

import (
	"testing"
	"time"

	"codebattle/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func seedGameAt(t *testing.T, db *gorm.DB, game *models.Game, playerIDs ...uint) *models.Game {
	t.Helper()
	require.NoError(t, db.Create(game).Error)
	for _, id := range playerIDs {
		player := models.GamePlayer{
			GameID:       game.ID,
			UserID:       id,
			RatingBefore: models.DefaultRating,
			Status:       models.PlayerStatusWaiting,
			JoinedAt:     time.Now(),
		}
		require.NoError(t, db.Create(&player).Error)
	}
	return game
}

func TestSweepRemovesStaleAndExpiredGames(t *testing.T) {
	db := newTestDB(t)
	cleaner := NewCleaner(db, zap.NewNop())

	alice := seedUser(t, db, "alice", 1200)
	bob := seedUser(t, db, "bob", 1200)
	carol := seedUser(t, db, "carol", 1200)

	now := time.Now()
	startedLongAgo := now.Add(-2 * time.Hour)

	stale := seedGameAt(t, db, &models.Game{
		RoomID:      "stale1",
		Mode:        models.GameModeRandom,
		Status:      models.GameStatusWaiting,
		ProblemID:   1,
		TimeLimit:   45,
		PlayerCount: 1,
		CreatedAt:   now.Add(-time.Hour),
	}, alice.ID)

	expired := seedGameAt(t, db, &models.Game{
		RoomID:      "expired",
		Mode:        models.GameModeRoom,
		Status:      models.GameStatusOngoing,
		ProblemID:   1,
		TimeLimit:   45,
		PlayerCount: 2,
		StartedAt:   &startedLongAgo,
	}, bob.ID, carol.ID)

	fresh := seedGameAt(t, db, &models.Game{
		RoomID:      "fresh1",
		Mode:        models.GameModeRandom,
		Status:      models.GameStatusWaiting,
		ProblemID:   1,
		TimeLimit:   45,
		PlayerCount: 1,
	}, carol.ID)

	cleaner.Sweep()

	var games []models.Game
	require.NoError(t, db.Find(&games).Error)
	require.Len(t, games, 1)
	assert.Equal(t, fresh.ID, games[0].ID)

	var players int64
	require.NoError(t, db.Model(&models.GamePlayer{}).
		Where("game_id IN ?", []uint{stale.ID, expired.ID}).
		Count(&players).Error)
	assert.Zero(t, players)
}

func TestSweepKeepsOngoingGamesWithinClock(t *testing.T) {
	db := newTestDB(t)
	cleaner := NewCleaner(db, zap.NewNop())

	alice := seedUser(t, db, "alice", 1200)
	bob := seedUser(t, db, "bob", 1200)

	startedRecently := time.Now().Add(-10 * time.Minute)
	game := seedGameAt(t, db, &models.Game{
		RoomID:      "live01",
		Mode:        models.GameModeRandom,
		Status:      models.GameStatusOngoing,
		ProblemID:   1,
		TimeLimit:   45,
		PlayerCount: 2,
		StartedAt:   &startedRecently,
	}, alice.ID, bob.ID)

	cleaner.Sweep()

	var found models.Game
	require.NoError(t, db.First(&found, game.ID).Error)
	assert.Equal(t, models.GameStatusOngoing, found.Status)
}
