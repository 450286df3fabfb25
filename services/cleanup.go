package services

import (
	"time"

	"codebattle/models"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	staleWaitingAge  = 30 * time.Minute
	ongoingGraceMins = 5
)

// Cleaner is the cleanup leg of the game status machine: stale waiting
// games and ongoing games far past their clock get cancelled and removed.
type Cleaner struct {
	db   *gorm.DB
	log  *zap.Logger
	cron *cron.Cron
}

func NewCleaner(db *gorm.DB, log *zap.Logger) *Cleaner {
	return &Cleaner{db: db, log: log, cron: cron.New()}
}

func (c *Cleaner) Start() {
	c.cron.AddFunc("@every 10m", c.Sweep)
	c.cron.Start()
}

func (c *Cleaner) Stop() {
	c.cron.Stop()
}

func (c *Cleaner) Sweep() {
	now := time.Now()

	stale := []uint{}
	c.db.Model(&models.Game{}).
		Where("status = ? AND created_at <= ?", models.GameStatusWaiting, now.Add(-staleWaitingAge)).
		Pluck("id", &stale)

	expired := []uint{}
	var ongoing []models.Game
	c.db.Where("status = ?", models.GameStatusOngoing).Find(&ongoing)
	for _, g := range ongoing {
		if g.StartedAt == nil {
			continue
		}
		deadline := g.StartedAt.Add(time.Duration(g.TimeLimit+ongoingGraceMins) * time.Minute)
		if now.After(deadline) {
			expired = append(expired, g.ID)
		}
	}

	ids := append(stale, expired...)
	if len(ids) == 0 {
		return
	}

	err := c.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Game{}).Where("id IN ?", ids).
			Updates(map[string]interface{}{
				"status": models.GameStatusCancelled,
				"result": models.GameResultExpired,
			}).Error; err != nil {
			return err
		}
		if err := tx.Where("game_id IN ?", ids).Delete(&models.GamePlayer{}).Error; err != nil {
			return err
		}
		return tx.Where("id IN ?", ids).Delete(&models.Game{}).Error
	})
	if err != nil {
		c.log.Error("cleanup sweep failed", zap.Error(err))
		return
	}
	c.log.Info("cleanup sweep",
		zap.Int("stale_waiting", len(stale)),
		zap.Int("expired_ongoing", len(expired)))
}
