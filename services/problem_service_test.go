package services

import (
	"testing"

	"codebattle/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListPublishedFiltersDraftsAndDifficulty(t *testing.T) {
	db := newTestDB(t)
	svc := NewProblemService(db)

	easy := seedProblem(t, db, models.DifficultyEasy, true)
	hard := seedProblem(t, db, models.DifficultyHard, true)
	seedProblem(t, db, models.DifficultyMedium, false)

	all, err := svc.ListPublished("")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, easy.ID, all[0].ID)
	assert.Equal(t, hard.ID, all[1].ID)

	onlyHard, err := svc.ListPublished(models.DifficultyHard)
	require.NoError(t, err)
	require.Len(t, onlyHard, 1)
	assert.Equal(t, hard.ID, onlyHard[0].ID)
	assert.Equal(t, models.DifficultyHard, onlyHard[0].Difficulty)
}

func TestGetPublishedHidesPrivateTestCases(t *testing.T) {
	db := newTestDB(t)
	svc := NewProblemService(db)

	problem := seedProblem(t, db, models.DifficultyMedium, true)

	view, err := svc.GetPublished(problem.ID)
	require.NoError(t, err)
	assert.Equal(t, problem.Title, view.Title)
	require.Len(t, view.TestCases, 2)
	for _, tc := range view.TestCases {
		assert.NotEqual(t, "100 250", tc.Input)
	}
}

func TestGetPublishedRejectsDrafts(t *testing.T) {
	db := newTestDB(t)
	svc := NewProblemService(db)

	draft := seedProblem(t, db, models.DifficultyMedium, false)

	_, err := svc.GetPublished(draft.ID)
	assert.ErrorIs(t, err, ErrProblemNotFound)

	_, err = svc.GetPublished(999)
	assert.ErrorIs(t, err, ErrProblemNotFound)
}
