package services

import (
	"fmt"
	"strings"
	"testing"

	"codebattle/models"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Problem{},
		&models.TestCase{},
		&models.Game{},
		&models.GamePlayer{},
		&models.Match{},
	))
	return db
}

func newTestGameService(t *testing.T) (*GameService, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	svc := NewGameService(db, nil, NewRatingService(db), zap.NewNop())
	return svc, db
}

func seedUser(t *testing.T, db *gorm.DB, username string, rating int) *models.User {
	t.Helper()
	user := models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "x",
		Rating:       rating,
	}
	require.NoError(t, db.Create(&user).Error)
	return &user
}

func seedProblem(t *testing.T, db *gorm.DB, difficulty string, published bool) *models.Problem {
	t.Helper()
	problem := models.Problem{
		Title:       difficulty + " problem",
		Description: "sum two integers",
		Difficulty:  difficulty,
		Published:   published,
	}
	require.NoError(t, db.Create(&problem).Error)
	cases := []models.TestCase{
		{ProblemID: problem.ID, Input: "1 2", Expected: "3", IsPublic: true},
		{ProblemID: problem.ID, Input: "5 7", Expected: "12", IsPublic: true},
		{ProblemID: problem.ID, Input: "100 250", Expected: "350", IsPublic: false},
	}
	require.NoError(t, db.Create(&cases).Error)
	return &problem
}
