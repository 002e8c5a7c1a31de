package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"auction-settlement-service/internal/domain/shared"
	"auction-settlement-service/internal/ports/outbound"

	"github.com/alitto/pond"
	"github.com/rs/zerolog"
)

// CycleRunner runs one settlement cycle
type CycleRunner interface {
	RunCycle(ctx context.Context) (*shared.CycleReport, error)
}

// CycleScheduler triggers settlement cycles on a fixed interval, never two at once
type CycleScheduler struct {
	runner   CycleRunner
	lock     outbound.LeaderLock
	interval time.Duration
	pool     *pond.WorkerPool
	running  atomic.Bool
	logger   zerolog.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

type CycleSchedulerParams struct {
	Runner   CycleRunner
	Interval time.Duration
	// Lock, when set, is released on Stop so a standby instance can take over
	Lock   outbound.LeaderLock
	Logger zerolog.Logger
}

func NewCycleScheduler(params CycleSchedulerParams) *CycleScheduler {
	ctx, cancel := context.WithCancel(context.Background())

	interval := params.Interval
	if interval <= 0 {
		interval = time.Minute
	}

	return &CycleScheduler{
		runner:   params.Runner,
		lock:     params.Lock,
		interval: interval,
		pool:     pond.New(1, 1),
		logger:   params.Logger.With().Str("component", "cycle_scheduler").Logger(),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start runs the first cycle immediately, then one per interval
func (s *CycleScheduler) Start() {
	s.logger.Info().Dur("interval", s.interval).Msg("Starting settlement scheduler")

	s.wg.Add(1)
	go s.schedulerLoop()
}

// Stop cancels the loop and waits for the in-flight cycle to return
func (s *CycleScheduler) Stop(ctx context.Context) {
	s.logger.Info().Msg("Stopping settlement scheduler")
	s.cancel()
	s.wg.Wait()
	s.pool.StopAndWait()

	if s.lock != nil {
		if err := s.lock.Release(ctx); err != nil {
			s.logger.Error().Err(err).Msg("Failed to release leader lock")
		}
	}
	s.logger.Info().Msg("Settlement scheduler stopped")
}

// Running reports whether a cycle is in flight
func (s *CycleScheduler) Running() bool {
	return s.running.Load()
}

func (s *CycleScheduler) schedulerLoop() {
	defer s.wg.Done()

	s.trigger()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.trigger()
		case <-s.ctx.Done():
			s.logger.Info().Msg("Scheduler loop stopped")
			return
		}
	}
}

// trigger hands a cycle to the pool unless the previous one is still running
func (s *CycleScheduler) trigger() bool {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn().Msg("Previous settlement cycle still running, skipping tick")
		return false
	}

	submitted := s.pool.TrySubmit(func() {
		defer s.running.Store(false)
		s.runCycle()
	})
	if !submitted {
		s.running.Store(false)
		s.logger.Warn().Msg("Settlement pool rejected cycle")
	}
	return submitted
}

func (s *CycleScheduler) runCycle() {
	defer func() {
		if p := recover(); p != nil {
			s.logger.Error().Interface("panic", p).Msg("Settlement cycle panicked")
		}
	}()

	report, err := s.runner.RunCycle(s.ctx)
	if errors.Is(err, context.Canceled) {
		s.logger.Info().Msg("Settlement cycle interrupted by shutdown")
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("Settlement cycle failed")
		return
	}
	if report != nil && report.Leader {
		s.logger.Debug().
			Dur("took", report.FinishedAt.Sub(report.StartedAt)).
			Int("results", len(report.Results)).
			Msg("Settlement cycle done")
	}
}
