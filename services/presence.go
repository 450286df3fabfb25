package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	presenceKeyPrefix = "online:user:"
	presenceTTL       = 90 * time.Second
)

// PresenceService tracks online users as Redis keys with a TTL, written on
// websocket register and refreshed on ping. Eviction is TTL expiry, so the
// set stays correct across restarts and multiple instances.
type PresenceService struct {
	redis *redis.Client
}

func NewPresenceService(redisClient *redis.Client) *PresenceService {
	return &PresenceService{redis: redisClient}
}

func (s *PresenceService) MarkOnline(ctx context.Context, userID uint) error {
	if s.redis == nil {
		return nil
	}
	return s.redis.Set(ctx, presenceKey(userID), "1", presenceTTL).Err()
}

func (s *PresenceService) Refresh(ctx context.Context, userID uint) error {
	if s.redis == nil {
		return nil
	}
	return s.redis.Expire(ctx, presenceKey(userID), presenceTTL).Err()
}

func (s *PresenceService) MarkOffline(ctx context.Context, userID uint) error {
	if s.redis == nil {
		return nil
	}
	return s.redis.Del(ctx, presenceKey(userID)).Err()
}

func (s *PresenceService) IsOnline(ctx context.Context, userID uint) (bool, error) {
	if s.redis == nil {
		return false, nil
	}
	n, err := s.redis.Exists(ctx, presenceKey(userID)).Result()
	return n > 0, err
}

func (s *PresenceService) OnlineUserIDs(ctx context.Context) ([]uint, error) {
	if s.redis == nil {
		return nil, nil
	}
	var ids []uint
	iter := s.redis.Scan(ctx, 0, presenceKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		raw := strings.TrimPrefix(iter.Val(), presenceKeyPrefix)
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, uint(id))
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

func presenceKey(userID uint) string {
	return fmt.Sprintf("%s%d", presenceKeyPrefix, userID)
}
