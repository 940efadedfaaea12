package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"utkarsh/portal/internal/tasks"
)

type StreamWriter interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

type Scheduler struct {
	cron        *cron.Cron
	queue       StreamWriter
	stream      string
	cleanupSpec string
	now         func() time.Time
	log         zerolog.Logger
}

func NewScheduler(queue StreamWriter, stream, cleanupSpec string, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:        cron.New(cron.WithSeconds()),
		queue:       queue,
		stream:      stream,
		cleanupSpec: cleanupSpec,
		now:         time.Now,
		log:         log,
	}
}

func (s *Scheduler) Start() error {
	if s.queue == nil {
		return nil
	}

	if _, err := s.cron.AddFunc(s.cleanupSpec, s.enqueueSessionCleanup); err != nil {
		return fmt.Errorf("schedule session cleanup %q: %w", s.cleanupSpec, err)
	}

	s.cron.Start()
	return nil
}

func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) enqueueSessionCleanup() {
	if err := s.enqueueTask(context.Background(), map[string]any{
		"type":       tasks.TypeSessionCleanup,
		"enqueuedAt": s.now().UTC().Format(time.RFC3339),
	}); err != nil {
		s.log.Error().Err(err).Msg("enqueue session cleanup failed")
	}
}

func (s *Scheduler) enqueueTask(ctx context.Context, payload map[string]any) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := s.queue.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: 10000,
		Approx: true,
		Values: payload,
	}).Result()
	return err
}
