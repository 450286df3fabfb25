package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"codebattle/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service-level failures the handlers translate into HTTP statuses.
var (
	ErrGameNotFound   = errors.New("game not found")
	ErrRoomNotFound   = errors.New("room not found")
	ErrNotParticipant = errors.New("you are not a participant in this game")
	ErrRoomFull       = errors.New("Room is full")
	ErrAlreadyStarted = errors.New("Game already started")
	ErrAlreadyMember  = errors.New("you already joined this room")
	ErrAlreadyInGame  = errors.New("you already have an active game")
	ErrNotOngoing     = errors.New("game is not ongoing")
	ErrNoProblems     = errors.New("no problems available")
)

const (
	gameSnapshotTTL  = 2 * time.Hour
	maxClaimAttempts = 3
)

type GameService struct {
	db     *gorm.DB
	redis  *redis.Client
	rating *RatingService
	log    *zap.Logger
}

func NewGameService(db *gorm.DB, redisClient *redis.Client, rating *RatingService, log *zap.Logger) *GameService {
	return &GameService{
		db:     db,
		redis:  redisClient,
		rating: rating,
		log:    log,
	}
}

type CreateRoomRequest struct {
	Difficulty string `json:"difficulty"`
}

type SubmitProgressRequest struct {
	TestsPassed int `json:"tests_passed" binding:"min=0"`
	TotalTests  int `json:"total_tests" binding:"required,min=1"`
}

// GameView is the outward shape of a game. Test cases are filtered to
// public ones no matter which endpoint produced the view.
type GameView struct {
	ID          uint         `json:"id"`
	RoomID      string       `json:"room_id"`
	Mode        string       `json:"mode"`
	Status      string       `json:"status"`
	TimeLimit   int          `json:"time_limit"`
	StartedAt   *time.Time   `json:"started_at"`
	EndedAt     *time.Time   `json:"ended_at"`
	WinnerID    *uint        `json:"winner_id"`
	Result      string       `json:"result,omitempty"`
	Problem     ProblemView  `json:"problem"`
	Players     []PlayerView `json:"players"`
	PlayerCount int          `json:"player_count"`
}

type ProblemView struct {
	ID          uint           `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Difficulty  string         `json:"difficulty"`
	TestCases   []TestCaseView `json:"test_cases"`
}

type TestCaseView struct {
	ID       uint   `json:"id"`
	Input    string `json:"input"`
	Expected string `json:"expected"`
}

type PlayerView struct {
	UserID       uint   `json:"user_id"`
	Username     string `json:"username"`
	RatingBefore int    `json:"rating_before"`
	TestsPassed  int    `json:"tests_passed"`
	TotalTests   int    `json:"total_tests"`
	Status       string `json:"status"`
}

// JoinRandom joins an open random-mode game or creates a fresh one with a
// random easy problem. Re-entry while a game is active returns that game
// unchanged.
func (s *GameService) JoinRandom(userID uint, hub *Hub) (*GameView, error) {
	if existing, err := s.activeGameForUser(userID); err == nil {
		return s.buildView(existing), nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var user models.User
	if err := s.db.First(&user, userID).Error; err != nil {
		return nil, err
	}

	// Claiming the open slot is a single conditional UPDATE checked via
	// RowsAffected, so two racing joins cannot both land in one game.
	for attempt := 0; attempt < maxClaimAttempts; attempt++ {
		var candidate models.Game
		err := s.db.
			Where("mode = ? AND status = ? AND player_count = ?", models.GameModeRandom, models.GameStatusWaiting, 1).
			Where("id NOT IN (?)", s.db.Model(&models.GamePlayer{}).Select("game_id").Where("user_id = ?", userID)).
			Order("created_at").
			First(&candidate).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				break
			}
			return nil, err
		}

		claimed, err := s.claimSecondSlot(candidate.ID, &user)
		if err != nil {
			return nil, err
		}
		if !claimed {
			continue
		}

		game, err := s.gameByID(candidate.ID)
		if err != nil {
			return nil, err
		}
		view := s.buildView(game)
		s.storeSnapshot(view)
		s.notifyGameStarted(hub, view, userID)
		return view, nil
	}

	return s.createGame(&user, models.GameModeRandom, models.DifficultyEasy)
}

// CreateRoom creates a code-joined game at the requested difficulty
// (default medium). An existing active game is returned unchanged.
func (s *GameService) CreateRoom(userID uint, difficulty string) (*GameView, error) {
	if existing, err := s.activeGameForUser(userID); err == nil {
		return s.buildView(existing), nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	switch difficulty {
	case models.DifficultyEasy, models.DifficultyMedium, models.DifficultyHard:
	case "":
		difficulty = models.DifficultyMedium
	default:
		return nil, fmt.Errorf("invalid difficulty %q", difficulty)
	}

	var user models.User
	if err := s.db.First(&user, userID).Error; err != nil {
		return nil, err
	}

	return s.createGame(&user, models.GameModeRoom, difficulty)
}

// JoinRoom joins a room-mode game by its public code.
func (s *GameService) JoinRoom(userID uint, roomID string, hub *Hub) (*GameView, error) {
	var game models.Game
	err := s.db.Preload("Players").
		Where("room_id = ? AND mode = ?", roomID, models.GameModeRoom).
		First(&game).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}

	if game.PlayerCount >= models.MaxPlayersPerGame {
		return nil, ErrRoomFull
	}
	if game.Status != models.GameStatusWaiting {
		return nil, ErrAlreadyStarted
	}
	for _, p := range game.Players {
		if p.UserID == userID {
			return nil, ErrAlreadyMember
		}
	}
	if _, err := s.activeGameForUser(userID); err == nil {
		return nil, ErrAlreadyInGame
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var user models.User
	if err := s.db.First(&user, userID).Error; err != nil {
		return nil, err
	}

	claimed, err := s.claimSecondSlot(game.ID, &user)
	if err != nil {
		return nil, err
	}
	if !claimed {
		// Lost the race for the last slot.
		return nil, ErrRoomFull
	}

	full, err := s.gameByID(game.ID)
	if err != nil {
		return nil, err
	}
	view := s.buildView(full)
	s.storeSnapshot(view)
	s.notifyGameStarted(hub, view, userID)
	return view, nil
}

// Game returns a status-poll projection of a game.
func (s *GameService) Game(gameID uint) (*GameView, error) {
	game, err := s.gameByID(gameID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGameNotFound
		}
		return nil, err
	}
	return s.buildView(game), nil
}

// PlayGame is the participant-only direct access projection.
func (s *GameService) PlayGame(gameID, userID uint) (*GameView, error) {
	game, err := s.gameByID(gameID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGameNotFound
		}
		return nil, err
	}
	if !isParticipant(game, userID) {
		return nil, ErrNotParticipant
	}
	return s.buildView(game), nil
}

// ActiveGame returns the caller's current waiting or ongoing game.
func (s *GameService) ActiveGame(userID uint) (*GameView, error) {
	game, err := s.activeGameForUser(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGameNotFound
		}
		return nil, err
	}
	return s.buildView(game), nil
}

// ForceLeave forfeits the game for userID. The opponent is declared winner
// and the live record is archived into match history and removed.
func (s *GameService) ForceLeave(gameID, userID uint, hub *Hub) (*GameView, error) {
	game, err := s.gameByID(gameID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGameNotFound
		}
		return nil, err
	}
	if !isParticipant(game, userID) {
		return nil, ErrNotParticipant
	}

	if game.Status == models.GameStatusFinished || game.Status == models.GameStatusCancelled {
		err := s.db.Transaction(func(tx *gorm.DB) error {
			return s.deleteGame(tx, game)
		})
		if err != nil {
			return nil, err
		}
		return s.buildView(game), nil
	}

	var winnerID *uint
	if opponent := opponentOf(game, userID); opponent != nil {
		winnerID = &opponent.UserID
	}
	return s.finishGame(game, userID, winnerID, models.GameResultOpponentLeft, hub)
}

// SubmitProgress records a participant's judged test results. Passing the
// full set ends the game in the submitter's favor.
func (s *GameService) SubmitProgress(gameID, userID uint, req *SubmitProgressRequest, hub *Hub) (*GameView, error) {
	game, err := s.gameByID(gameID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGameNotFound
		}
		return nil, err
	}
	if !isParticipant(game, userID) {
		return nil, ErrNotParticipant
	}
	if game.Status != models.GameStatusOngoing {
		return nil, ErrNotOngoing
	}
	if req.TestsPassed > req.TotalTests {
		return nil, fmt.Errorf("tests_passed exceeds total_tests")
	}

	err = s.db.Model(&models.GamePlayer{}).
		Where("game_id = ? AND user_id = ?", game.ID, userID).
		Updates(map[string]interface{}{
			"tests_passed": req.TestsPassed,
			"total_tests":  req.TotalTests,
		}).Error
	if err != nil {
		return nil, err
	}

	if req.TestsPassed == req.TotalTests {
		game, err = s.gameByID(game.ID)
		if err != nil {
			return nil, err
		}
		return s.finishGame(game, userID, &userID, models.GameResultSolved, hub)
	}

	game, err = s.gameByID(game.ID)
	if err != nil {
		return nil, err
	}
	view := s.buildView(game)
	s.storeSnapshot(view)
	if hub != nil {
		hub.BroadcastToGame(game.ID, "player-progress", map[string]interface{}{
			"player_id":    userID,
			"tests_passed": req.TestsPassed,
			"total_tests":  req.TotalTests,
		})
	}
	return view, nil
}

// HandleDisconnect is the best-effort cleanup invoked by the websocket hub.
// An ongoing two-player game is forfeited exactly like force-leave; a
// waiting game just loses the player and is removed once empty.
func (s *GameService) HandleDisconnect(userID uint, hub *Hub) {
	var games []models.Game
	err := s.db.
		Joins("JOIN game_players gp ON gp.game_id = games.id").
		Where("gp.user_id = ? AND gp.deleted_at IS NULL", userID).
		Where("games.status IN ?", []string{models.GameStatusWaiting, models.GameStatusOngoing}).
		Find(&games).Error
	if err != nil {
		s.log.Error("disconnect cleanup query failed", zap.Uint("user_id", userID), zap.Error(err))
		return
	}

	for i := range games {
		game, err := s.gameByID(games[i].ID)
		if err != nil {
			continue
		}
		if game.Status == models.GameStatusOngoing && len(game.Players) == models.MaxPlayersPerGame {
			var winnerID *uint
			if opponent := opponentOf(game, userID); opponent != nil {
				winnerID = &opponent.UserID
			}
			if _, err := s.finishGame(game, userID, winnerID, models.GameResultOpponentLeft, hub); err != nil {
				s.log.Error("disconnect forfeit failed", zap.Uint("game_id", game.ID), zap.Error(err))
			}
			continue
		}

		err = s.db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("game_id = ? AND user_id = ?", game.ID, userID).
				Delete(&models.GamePlayer{}).Error; err != nil {
				return err
			}
			res := tx.Model(&models.Game{}).
				Where("id = ? AND player_count > 0", game.ID).
				Update("player_count", gorm.Expr("player_count - 1"))
			if res.Error != nil {
				return res.Error
			}
			var remaining int64
			if err := tx.Model(&models.GamePlayer{}).Where("game_id = ?", game.ID).Count(&remaining).Error; err != nil {
				return err
			}
			if remaining == 0 {
				return tx.Delete(&models.Game{}, game.ID).Error
			}
			return nil
		})
		if err != nil {
			s.log.Error("disconnect cleanup failed", zap.Uint("game_id", game.ID), zap.Error(err))
			continue
		}
		s.dropSnapshot(game.ID)
		if hub != nil {
			hub.BroadcastToGame(game.ID, "player-left", map[string]interface{}{
				"player_id": userID,
			})
		}
	}
}

// CachedView serves the hub's state-sync reads: Redis snapshot first,
// database as fallback.
func (s *GameService) CachedView(gameID uint) (*GameView, error) {
	if s.redis != nil {
		data, err := s.redis.Get(context.Background(), snapshotKey(gameID)).Result()
		if err == nil {
			var view GameView
			if err := json.Unmarshal([]byte(data), &view); err == nil {
				return &view, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.log.Warn("snapshot read failed", zap.Uint("game_id", gameID), zap.Error(err))
		}
	}
	return s.Game(gameID)
}

func (s *GameService) createGame(user *models.User, mode, difficulty string) (*GameView, error) {
	problem, err := s.randomProblem(difficulty)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	game := models.Game{
		RoomID:      generateRoomID(),
		Mode:        mode,
		Status:      models.GameStatusWaiting,
		ProblemID:   problem.ID,
		TimeLimit:   models.TimeLimitForDifficulty(problem.Difficulty),
		PlayerCount: 1,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&game).Error; err != nil {
			return err
		}
		player := models.GamePlayer{
			GameID:       game.ID,
			UserID:       user.ID,
			RatingBefore: user.Rating,
			Status:       models.PlayerStatusWaiting,
			JoinedAt:     now,
		}
		return tx.Create(&player).Error
	})
	if err != nil {
		return nil, err
	}

	full, err := s.gameByID(game.ID)
	if err != nil {
		return nil, err
	}
	view := s.buildView(full)
	s.storeSnapshot(view)
	s.log.Info("game created",
		zap.Uint("game_id", game.ID),
		zap.String("mode", mode),
		zap.String("room_id", game.RoomID),
		zap.Uint("user_id", user.ID))
	return view, nil
}

// claimSecondSlot atomically takes the open slot of a waiting game and
// flips it to ongoing. Returns false when another request got there first.
func (s *GameService) claimSecondSlot(gameID uint, user *models.User) (bool, error) {
	now := time.Now()
	claimed := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Game{}).
			Where("id = ? AND status = ? AND player_count = ?", gameID, models.GameStatusWaiting, 1).
			Updates(map[string]interface{}{
				"player_count": models.MaxPlayersPerGame,
				"status":       models.GameStatusOngoing,
				"started_at":   now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		claimed = true
		player := models.GamePlayer{
			GameID:       gameID,
			UserID:       user.ID,
			RatingBefore: user.Rating,
			Status:       models.PlayerStatusPlaying,
			JoinedAt:     now,
		}
		if err := tx.Create(&player).Error; err != nil {
			return err
		}
		// Both players are in, both are playing.
		return tx.Model(&models.GamePlayer{}).
			Where("game_id = ?", gameID).
			Update("status", models.PlayerStatusPlaying).Error
	})
	if err != nil {
		return false, err
	}
	return claimed, nil
}

func (s *GameService) finishGame(game *models.Game, leaverID uint, winnerID *uint, result string, hub *Hub) (*GameView, error) {
	now := time.Now()
	deltas := map[uint]int{}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.GamePlayer{}).
			Where("game_id = ?", game.ID).
			Update("status", models.PlayerStatusFinished).Error; err != nil {
			return err
		}

		updates := map[string]interface{}{
			"status":   models.GameStatusFinished,
			"ended_at": now,
			"result":   result,
		}
		if winnerID != nil {
			updates["winner_id"] = *winnerID
		}
		if err := tx.Model(&models.Game{}).Where("id = ?", game.ID).Updates(updates).Error; err != nil {
			return err
		}

		if winnerID != nil && len(game.Players) == models.MaxPlayersPerGame {
			loser := opponentOf(game, *winnerID)
			if loser != nil {
				winDelta, loseDelta, err := s.rating.ApplyResult(tx, *winnerID, loser.UserID)
				if err != nil {
					return err
				}
				deltas[*winnerID] = winDelta
				deltas[loser.UserID] = loseDelta
			}
		}

		match := buildMatch(game, winnerID, result, now, deltas)
		if err := tx.Create(&match).Error; err != nil {
			return err
		}

		return s.deleteGame(tx, game)
	})
	if err != nil {
		return nil, err
	}

	game.Status = models.GameStatusFinished
	game.EndedAt = &now
	game.WinnerID = winnerID
	game.Result = result
	for i := range game.Players {
		game.Players[i].Status = models.PlayerStatusFinished
	}
	view := s.buildView(game)
	s.dropSnapshot(game.ID)

	if hub != nil {
		hub.BroadcastToGame(game.ID, "game-ended", map[string]interface{}{
			"winner_id":     winnerID,
			"result":        result,
			"left_by":       leaverID,
			"rating_deltas": deltas,
		})
	}
	s.log.Info("game finished",
		zap.Uint("game_id", game.ID),
		zap.String("result", result),
		zap.Any("winner_id", winnerID))
	return view, nil
}

// deleteGame removes the live record; finished games survive only as
// match history.
func (s *GameService) deleteGame(tx *gorm.DB, game *models.Game) error {
	if err := tx.Where("game_id = ?", game.ID).Delete(&models.GamePlayer{}).Error; err != nil {
		return err
	}
	if err := tx.Delete(&models.Game{}, game.ID).Error; err != nil {
		return err
	}
	s.dropSnapshot(game.ID)
	return nil
}

func (s *GameService) activeGameForUser(userID uint) (*models.Game, error) {
	var game models.Game
	err := s.db.
		Joins("JOIN game_players gp ON gp.game_id = games.id").
		Where("gp.user_id = ? AND gp.deleted_at IS NULL", userID).
		Where("games.status IN ?", []string{models.GameStatusWaiting, models.GameStatusOngoing}).
		Preload("Players").Preload("Players.User").
		Preload("Problem").Preload("Problem.TestCases").
		First(&game).Error
	if err != nil {
		return nil, err
	}
	return &game, nil
}

func (s *GameService) gameByID(gameID uint) (*models.Game, error) {
	var game models.Game
	err := s.db.
		Preload("Players").Preload("Players.User").
		Preload("Problem").Preload("Problem.TestCases").
		First(&game, gameID).Error
	if err != nil {
		return nil, err
	}
	return &game, nil
}

func (s *GameService) randomProblem(difficulty string) (*models.Problem, error) {
	var problem models.Problem
	err := s.db.
		Where("difficulty = ? AND published = ?", difficulty, true).
		Order("RANDOM()").
		First(&problem).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: no published %s problems", ErrNoProblems, difficulty)
		}
		return nil, err
	}
	return &problem, nil
}

func (s *GameService) buildView(game *models.Game) *GameView {
	view := &GameView{
		ID:          game.ID,
		RoomID:      game.RoomID,
		Mode:        game.Mode,
		Status:      game.Status,
		TimeLimit:   game.TimeLimit,
		StartedAt:   game.StartedAt,
		EndedAt:     game.EndedAt,
		WinnerID:    game.WinnerID,
		Result:      game.Result,
		PlayerCount: game.PlayerCount,
		Problem: ProblemView{
			ID:          game.Problem.ID,
			Title:       game.Problem.Title,
			Description: game.Problem.Description,
			Difficulty:  game.Problem.Difficulty,
			TestCases:   publicTestCases(game.Problem.TestCases),
		},
	}
	for _, p := range game.Players {
		view.Players = append(view.Players, PlayerView{
			UserID:       p.UserID,
			Username:     p.User.Username,
			RatingBefore: p.RatingBefore,
			TestsPassed:  p.TestsPassed,
			TotalTests:   p.TotalTests,
			Status:       p.Status,
		})
	}
	return view
}

// publicTestCases keeps hidden judge data out of every response.
func publicTestCases(cases []models.TestCase) []TestCaseView {
	views := []TestCaseView{}
	for _, tc := range cases {
		if !tc.IsPublic {
			continue
		}
		views = append(views, TestCaseView{
			ID:       tc.ID,
			Input:    tc.Input,
			Expected: tc.Expected,
		})
	}
	return views
}

func (s *GameService) notifyGameStarted(hub *Hub, view *GameView, joinedID uint) {
	if hub == nil {
		return
	}
	hub.BroadcastToGame(view.ID, "player-joined", map[string]interface{}{
		"player_id":    joinedID,
		"player_count": view.PlayerCount,
		"game":         view,
	})
	hub.BroadcastToGame(view.ID, "game-started", map[string]interface{}{
		"game":       view,
		"time_limit": view.TimeLimit,
	})
}

func (s *GameService) storeSnapshot(view *GameView) {
	if s.redis == nil {
		return
	}
	data, err := json.Marshal(view)
	if err != nil {
		return
	}
	if err := s.redis.Set(context.Background(), snapshotKey(view.ID), data, gameSnapshotTTL).Err(); err != nil {
		s.log.Warn("snapshot write failed", zap.Uint("game_id", view.ID), zap.Error(err))
	}
}

func (s *GameService) dropSnapshot(gameID uint) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(context.Background(), snapshotKey(gameID)).Err(); err != nil {
		s.log.Warn("snapshot delete failed", zap.Uint("game_id", gameID), zap.Error(err))
	}
}

func snapshotKey(gameID uint) string {
	return fmt.Sprintf("game:%d", gameID)
}

func isParticipant(game *models.Game, userID uint) bool {
	for _, p := range game.Players {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

func opponentOf(game *models.Game, userID uint) *models.GamePlayer {
	for i := range game.Players {
		if game.Players[i].UserID != userID {
			return &game.Players[i]
		}
	}
	return nil
}

func buildMatch(game *models.Game, winnerID *uint, result string, endedAt time.Time, deltas map[uint]int) models.Match {
	match := models.Match{
		GameID:    game.ID,
		RoomID:    game.RoomID,
		Mode:      game.Mode,
		ProblemID: game.ProblemID,
		WinnerID:  winnerID,
		Result:    result,
		StartedAt: game.StartedAt,
		EndedAt:   &endedAt,
	}
	if len(game.Players) > 0 {
		p := game.Players[0]
		match.Player1ID = p.UserID
		match.Player1Before = p.RatingBefore
		match.Player1After = p.RatingBefore + deltas[p.UserID]
	}
	if len(game.Players) > 1 {
		p := game.Players[1]
		match.Player2ID = p.UserID
		match.Player2Before = p.RatingBefore
		match.Player2After = p.RatingBefore + deltas[p.UserID]
	}
	return match
}

func generateRoomID() string {
	bytes := make([]byte, 3)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)[:6]
}
