package services

import (
	"errors"

	"codebattle/models"

	"gorm.io/gorm"
)

var ErrProblemNotFound = errors.New("problem not found")

type ProblemService struct {
	db *gorm.DB
}

func NewProblemService(db *gorm.DB) *ProblemService {
	return &ProblemService{db: db}
}

type ProblemSummary struct {
	ID         uint   `json:"id"`
	Title      string `json:"title"`
	Difficulty string `json:"difficulty"`
}

// ListPublished returns the catalog without any test data.
func (s *ProblemService) ListPublished(difficulty string) ([]ProblemSummary, error) {
	q := s.db.Model(&models.Problem{}).Where("published = ?", true)
	if difficulty != "" {
		q = q.Where("difficulty = ?", difficulty)
	}
	summaries := []ProblemSummary{}
	if err := q.Order("id").Find(&summaries).Error; err != nil {
		return nil, err
	}
	return summaries, nil
}

// GetPublished returns one problem with its public test cases only.
func (s *ProblemService) GetPublished(id uint) (*ProblemView, error) {
	var problem models.Problem
	err := s.db.Preload("TestCases").
		Where("published = ?", true).
		First(&problem, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProblemNotFound
		}
		return nil, err
	}
	return &ProblemView{
		ID:          problem.ID,
		Title:       problem.Title,
		Description: problem.Description,
		Difficulty:  problem.Difficulty,
		TestCases:   publicTestCases(problem.TestCases),
	}, nil
}
