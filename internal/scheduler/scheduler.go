// Package scheduler repeats ingestion cycles on a fixed period.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"newslens/pkg/models"
)

type State int

const (
	Stopped State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "stopped"
}

// Ingester runs one fetch cycle.
type Ingester interface {
	FetchAndIngest(ctx context.Context, categories []models.Category, targetTotal int) []models.Article
}

// Counter reports the store size after a cycle. Optional.
type Counter interface {
	CountAll(ctx context.Context) (int, error)
}

type Config struct {
	Categories   []models.Category
	TargetTotal  int
	Period       time.Duration
	CycleTimeout time.Duration
}

type Status struct {
	IsRunning bool       `json:"isRunning"`
	Period    string     `json:"period"`
	LastRunAt *time.Time `json:"lastRunAt,omitempty"`
	LastAdded int        `json:"lastAdded"`
	NextRunAt *time.Time `json:"nextRunAt,omitempty"`
}

type Scheduler struct {
	ingester Ingester
	counter  Counter
	cfg      Config
	logger   zerolog.Logger

	mu        sync.Mutex
	state     State
	cron      *cron.Cron
	entry     cron.EntryID
	lastRunAt time.Time
	lastAdded int

	// background cycles started by Start
	wg sync.WaitGroup
}

func New(cfg Config, ingester Ingester, counter Counter, logger zerolog.Logger) *Scheduler {
	if cfg.Period <= 0 {
		cfg.Period = 3 * time.Minute
	}
	if cfg.CycleTimeout <= 0 {
		cfg.CycleTimeout = 2 * time.Minute
	}
	return &Scheduler{
		ingester: ingester,
		counter:  counter,
		cfg:      cfg,
		logger:   logger.With().Str("component", "scheduler").Logger(),
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
	}
}

// Start arms the periodic cycle and kicks off one cycle right away. Calling
// it while running only logs.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Running {
		s.logger.Info().Msg("scheduler already running")
		return nil
	}

	id, err := s.cron.AddFunc("@every "+s.cfg.Period.String(), func() {
		s.cycle(context.Background())
	})
	if err != nil {
		return fmt.Errorf("schedule cycle: %w", err)
	}
	s.entry = id
	s.cron.Start()
	s.state = Running

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.cycle(context.Background())
	}()

	s.logger.Info().
		Dur("period", s.cfg.Period).
		Int("target", s.cfg.TargetTotal).
		Int("categories", len(s.cfg.Categories)).
		Msg("scheduler started")
	return nil
}

// Stop disarms the timer. A cycle already in flight runs to completion.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Stopped {
		return
	}
	s.cron.Remove(s.entry)
	s.cron.Stop()
	s.entry = 0
	s.state = Stopped
	s.logger.Info().Msg("scheduler stopped")
}

// ManualFetch runs one cycle now and returns how many articles were added.
// The timer and state are left alone.
func (s *Scheduler) ManualFetch(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return s.cycle(ctx), nil
}

func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		IsRunning: s.state == Running,
		Period:    s.cfg.Period.String(),
		LastAdded: s.lastAdded,
	}
	if !s.lastRunAt.IsZero() {
		t := s.lastRunAt
		st.LastRunAt = &t
	}
	if s.state == Running {
		if next := s.cron.Entry(s.entry).Next; !next.IsZero() {
			st.NextRunAt = &next
		}
	}
	return st
}

// entries is the number of armed timer entries.
func (s *Scheduler) entries() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) cycle(ctx context.Context) int {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.CycleTimeout)
	defer cancel()

	started := time.Now()
	added := s.ingester.FetchAndIngest(ctx, s.cfg.Categories, s.cfg.TargetTotal)

	s.mu.Lock()
	s.lastRunAt = started.UTC()
	s.lastAdded = len(added)
	s.mu.Unlock()

	ev := s.logger.Info().Int("added", len(added)).Dur("took", time.Since(started))
	if s.counter != nil {
		if total, err := s.counter.CountAll(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("count articles")
		} else {
			ev = ev.Int("total", total)
		}
	}
	ev.Msg("cycle finished")

	return len(added)
}
