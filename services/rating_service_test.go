package services

import (
	"testing"

	"codebattle/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEloDelta(t *testing.T) {
	cases := []struct {
		name     string
		own      int
		opponent int
		score    float64
		want     int
	}{
		{"equal ratings win", 1200, 1200, 1, 16},
		{"equal ratings loss", 1200, 1200, 0, -16},
		{"favourite wins", 1400, 1200, 1, 8},
		{"underdog wins", 1200, 1400, 1, 24},
		{"favourite loses", 1400, 1200, 0, -24},
		{"underdog loses", 1200, 1400, 0, -8},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, eloDelta(tc.own, tc.opponent, tc.score))
		})
	}
}

func TestApplyResultUpdatesBothPlayers(t *testing.T) {
	db := newTestDB(t)
	svc := NewRatingService(db)

	winner := seedUser(t, db, "winner", 1200)
	loser := seedUser(t, db, "loser", 1400)

	winDelta, loseDelta, err := svc.ApplyResult(db, winner.ID, loser.ID)
	require.NoError(t, err)
	assert.Equal(t, 24, winDelta)
	assert.Equal(t, -24, loseDelta)

	var w, l models.User
	require.NoError(t, db.First(&w, winner.ID).Error)
	require.NoError(t, db.First(&l, loser.ID).Error)

	assert.Equal(t, 1224, w.Rating)
	assert.Equal(t, 1, w.GamesPlayed)
	assert.Equal(t, 1, w.GamesWon)

	assert.Equal(t, 1376, l.Rating)
	assert.Equal(t, 1, l.GamesPlayed)
	assert.Equal(t, 0, l.GamesWon)
}

func TestApplyResultMissingUser(t *testing.T) {
	db := newTestDB(t)
	svc := NewRatingService(db)

	winner := seedUser(t, db, "winner", 1200)

	_, _, err := svc.ApplyResult(db, winner.ID, 999)
	assert.Error(t, err)
}
