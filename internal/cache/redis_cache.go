package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fmonfasani/nexus/internal/domain"
	"github.com/fmonfasani/nexus/pkg/log"
)

// MeetingCache is a read-through Redis cache for meeting records. Cache
// failures are never surfaced to callers: a miss or a broken Redis just
// means the repository gets hit.
type MeetingCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewMeetingCache creates a meeting cache.
func NewMeetingCache(client *redis.Client, prefix string, ttl time.Duration) *MeetingCache {
	return &MeetingCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *MeetingCache) key(id string) string {
	return fmt.Sprintf("%s:meeting:%s", c.prefix, id)
}

// Get returns the cached meeting, or nil on a miss.
func (c *MeetingCache) Get(ctx context.Context, id string) *domain.Meeting {
	data, err := c.client.Get(ctx, c.key(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			l := log.L()
			l.Warn().Err(err).Str(log.FieldMeetingID, id).Msg("meeting cache read failed")
		}
		return nil
	}

	var meeting domain.Meeting
	if err := json.Unmarshal(data, &meeting); err != nil {
		l := log.L()
		l.Warn().Err(err).Str(log.FieldMeetingID, id).Msg("meeting cache entry corrupt, invalidating")
		c.Invalidate(ctx, id)
		return nil
	}
	return &meeting
}

// Set stores a meeting with the configured TTL.
func (c *MeetingCache) Set(ctx context.Context, meeting *domain.Meeting) {
	data, err := json.Marshal(meeting)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.key(meeting.ID), data, c.ttl).Err(); err != nil {
		l := log.L()
		l.Warn().Err(err).Str(log.FieldMeetingID, meeting.ID).Msg("meeting cache write failed")
	}
}

// Invalidate drops a meeting from the cache.
func (c *MeetingCache) Invalidate(ctx context.Context, id string) {
	if err := c.client.Del(ctx, c.key(id)).Err(); err != nil {
		l := log.L()
		l.Warn().Err(err).Str(log.FieldMeetingID, id).Msg("meeting cache invalidation failed")
	}
}
