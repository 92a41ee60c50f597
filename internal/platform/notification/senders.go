package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// LogSender writes every alert to the structured log.
type LogSender struct {
	logger zerolog.Logger
}

func NewLogSender(logger zerolog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Name() string { return "log" }

func (s *LogSender) Send(_ context.Context, a Alert) error {
	s.logger.Warn().
		Str("alert_id", a.ID.String()).
		Str("entity_id", a.EntityID.String()).
		Str("patient_id", a.PatientID).
		Str("list", a.List).
		Str("old_tier", a.OldTier).
		Str("new_tier", a.NewTier).
		Int("days_to_breach", a.DaysToBreach).
		Msg("breach tier transition")
	return nil
}

// publisher is the subset of the redis client used here.
type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *goredis.IntCmd
}

// RedisSender publishes alerts as JSON on a pub/sub channel.
type RedisSender struct {
	rdb     publisher
	channel string
}

func NewRedisSender(rdb publisher, channel string) *RedisSender {
	return &RedisSender{rdb: rdb, channel: channel}
}

func (s *RedisSender) Name() string { return "redis" }

func (s *RedisSender) Send(ctx context.Context, a Alert) error {
	raw, err := json.Marshal(a)
	if err != nil {
		return err
	}
	if err := s.rdb.Publish(ctx, s.channel, raw).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", s.channel, err)
	}
	return nil
}

// MemorySender keeps the most recent alerts in a fixed-size ring.
type MemorySender struct {
	mu   sync.RWMutex
	ring []Alert
	next int
	full bool
}

const DefaultRecentAlerts = 500

func NewMemorySender(capacity int) *MemorySender {
	if capacity <= 0 {
		capacity = DefaultRecentAlerts
	}
	return &MemorySender{ring: make([]Alert, capacity)}
}

func (s *MemorySender) Name() string { return "memory" }

func (s *MemorySender) Send(_ context.Context, a Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ring[s.next] = a
	s.next = (s.next + 1) % len(s.ring)
	if s.next == 0 {
		s.full = true
	}
	return nil
}

// Recent returns up to limit alerts, newest first. limit <= 0 returns all.
func (s *MemorySender) Recent(limit int) []Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := s.next
	if s.full {
		n = len(s.ring)
	}
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]Alert, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (s.next - i + len(s.ring)) % len(s.ring)
		out = append(out, s.ring[idx])
	}
	return out
}
