package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"digestbot/internal/mailer"
	logx "digestbot/pkg/logx"
)

// Broadcaster is the slice of the mailer the scheduler needs.
type Broadcaster interface {
	RunCategory(ctx context.Context, categoryID int64) (mailer.Summary, error)
}

// Mailing binds one category to a trigger schedule.
type Mailing struct {
	CategoryID int64
	Schedule   string
}

type Config struct {
	Enabled  bool
	Timezone string
	Mailings []Mailing
}

// Service fires category broadcasts on cron schedules. A tick that lands
// while the previous run for that category is still going is skipped, not
// queued: the busy guard downstream returns ErrBusy and the tick is logged
// away.
type Service struct {
	mailer Broadcaster
	log    logx.Logger

	mu      sync.Mutex
	cfg     Config
	cron    *cron.Cron
	runCtx  context.Context
	cancel  context.CancelFunc
	started bool
}

func New(cfg Config, b Broadcaster, log logx.Logger) *Service {
	return &Service{mailer: b, log: log, cfg: cfg}
}

func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	s.runCtx, s.cancel = context.WithCancel(context.Background())
	s.started = true
	return s.rebuildLocked()
}

func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	cancel := s.cancel
	s.started = false
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if c == nil {
		return nil
	}

	// cron.Stop returns a ctx that is done once running jobs finish.
	done := c.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Apply swaps the schedule table at runtime.
func (s *Service) Apply(cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	if !s.started {
		return nil
	}
	return s.rebuildLocked()
}

func (s *Service) rebuildLocked() error {
	if s.cron != nil {
		s.cron.Stop()
		s.cron = nil
	}
	if !s.cfg.Enabled || len(s.cfg.Mailings) == 0 {
		s.log.Info("scheduler disabled")
		return nil
	}

	loc := time.Local
	if tz := s.cfg.Timezone; tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return fmt.Errorf("scheduler timezone %q: %w", tz, err)
		}
		loc = l
	}

	c := cron.New(cron.WithLocation(loc), cron.WithParser(scheduleParser))
	for _, m := range s.cfg.Mailings {
		spec, err := NormalizeSpec(m.Schedule)
		if err != nil {
			return fmt.Errorf("mailing for category %d: %w", m.CategoryID, err)
		}
		categoryID := m.CategoryID
		if _, err := c.AddFunc(spec, func() { s.fire(categoryID) }); err != nil {
			return fmt.Errorf("mailing for category %d: %w", categoryID, err)
		}
		s.log.Info("mailing scheduled",
			logx.Int64("category_id", categoryID),
			logx.String("schedule", spec))
	}

	c.Start()
	s.cron = c
	return nil
}

func (s *Service) fire(categoryID int64) {
	s.mu.Lock()
	ctx := s.runCtx
	s.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}

	log := s.log.With(logx.Int64("category_id", categoryID))
	log.Info("scheduled mailing triggered")

	sum, err := s.mailer.RunCategory(ctx, categoryID)
	switch {
	case errors.Is(err, mailer.ErrBusy):
		log.Info("previous run still in flight, tick skipped")
	case err != nil:
		log.Error("scheduled mailing failed", logx.Err(err))
	default:
		log.Info("scheduled mailing done",
			logx.Int("delivered", sum.Delivered),
			logx.Int("blocked", sum.Blocked),
			logx.Int("failed", sum.Failed))
	}
}
