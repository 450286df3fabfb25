package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"codebattle/services"

	"github.com/gin-gonic/gin"
)

type ProblemHandler struct {
	problemService *services.ProblemService
}

func NewProblemHandler(problemService *services.ProblemService) *ProblemHandler {
	return &ProblemHandler{problemService: problemService}
}

func (h *ProblemHandler) List(c *gin.Context) {
	problems, err := h.problemService.ListPublished(c.Query("difficulty"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, problems)
}

func (h *ProblemHandler) Get(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid problem id"})
		return
	}

	problem, err := h.problemService.GetPublished(uint(id))
	if err != nil {
		if errors.Is(err, services.ErrProblemNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, problem)
}
