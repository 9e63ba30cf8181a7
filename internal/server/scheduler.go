package server

import (
	"context"
	"log"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/redis/go-redis/v9"

	"github.com/agente-films/moviepitch/internal/store"
)

// Scheduler periodically sweeps idle sessions, marking them stale so the
// UI can hide them and the pipeline stops accepting turns for them.
type Scheduler struct {
	Store      *store.Store
	Stop       chan struct{}
	Rdb        *redis.Client
	Spec       string
	StaleAfter time.Duration
	Logger     *log.Logger

	lastSweep *time.Time
}

func (s *Scheduler) Start() {
	ticker := time.NewTicker(1 * time.Minute)
	go func() {
		for {
			select {
			case <-s.Stop:
				ticker.Stop()
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()
}

func (s *Scheduler) tick() {
	if !isDue(s.Spec, s.lastSweep) {
		return
	}
	ctx := context.Background()

	// distributed lock so only one instance sweeps
	if s.Rdb != nil {
		ok, _ := s.Rdb.SetNX(ctx, "sweep:lock:sessions", "1", 2*time.Minute).Result()
		if !ok {
			return
		}
		defer s.Rdb.Del(ctx, "sweep:lock:sessions")
	}

	now := time.Now()
	s.lastSweep = &now
	n, err := s.Store.MarkStaleSessions(ctx, s.StaleAfter)
	if err != nil {
		s.logf("stale sweep failed: %v", err)
		return
	}
	if n > 0 {
		s.logf("stale sweep marked %d sessions", n)
	}
}

// isDue determines if the sweep with cronSpec should run now based on the
// last sweep time. Supports "@daily", "@hourly", and standard 5-field cron
// expressions.
func isDue(cronSpec string, last *time.Time) bool {
	now := time.Now()
	switch cronSpec {
	case "@daily":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= 24*time.Hour
	case "@hourly":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= time.Hour
	default:
		expr, err := cronexpr.Parse(cronSpec)
		if err != nil {
			// Fallback: treat as @hourly if invalid
			if last == nil {
				return true
			}
			return now.Sub(*last) >= time.Hour
		}
		if last == nil {
			return true
		}
		next := expr.Next(*last)
		return !next.After(now)
	}
}

func (s *Scheduler) logf(format string, args ...interface{}) {
	if s.Logger != nil {
		s.Logger.Printf(format, args...)
	}
}
