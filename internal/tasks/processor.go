// Package tasks handles messages from the portal task stream.
package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const TypeSessionCleanup = "session.cleanup"

type SessionCleaner interface {
	DeleteStale(ctx context.Context, now time.Time, retainRevoked time.Duration) (int64, error)
}

type Processor struct {
	sessions      SessionCleaner
	retainRevoked time.Duration
	now           func() time.Time
	logger        zerolog.Logger
}

type TaskPayload struct {
	Type       string `json:"type"`
	EnqueuedAt string `json:"enqueuedAt"`
}

func NewProcessor(sessions SessionCleaner, retainRevoked time.Duration, logger zerolog.Logger) *Processor {
	return &Processor{
		sessions:      sessions,
		retainRevoked: retainRevoked,
		now:           time.Now,
		logger:        logger,
	}
}

func (p *Processor) Handle(ctx context.Context, msg redis.XMessage) error {
	var payload TaskPayload
	if err := decodePayload(msg.Values, &payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	switch payload.Type {
	case TypeSessionCleanup:
		return p.handleSessionCleanup(ctx, payload)
	default:
		p.logger.Warn().Str("type", payload.Type).Str("message_id", msg.ID).Msg("unknown task type")
		return nil
	}
}

func decodePayload(values map[string]interface{}, out *TaskPayload) error {
	bytes, err := json.Marshal(values)
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, out)
}

func (p *Processor) handleSessionCleanup(ctx context.Context, payload TaskPayload) error {
	deleted, err := p.sessions.DeleteStale(ctx, p.now(), p.retainRevoked)
	if err != nil {
		return fmt.Errorf("delete stale sessions: %w", err)
	}
	p.logger.Info().
		Int64("deleted", deleted).
		Str("enqueued_at", payload.EnqueuedAt).
		Msg("session cleanup finished")
	return nil
}
