// services/scheduler.go
package services

import (
	"log"
	"time"

	"workshop-scoring-system/scoring"

	"github.com/go-co-op/gocron/v2"
)

// StartExpiryWatcher runs the driving clock for round expiry. Admission never
// depends on this: every validator call recomputes elapsed time itself. The
// watcher only makes expiry durable so dashboards and the stored state agree
// shortly after the clock runs out.
func (s *RoundService) StartExpiryWatcher() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(5*time.Second),
		gocron.NewTask(func() {
			if err := s.SweepExpired(); err != nil {
				log.Printf("[ExpiryWatcher] sweep failed: %v", err)
			}
		}),
	)
}

// SweepExpired persists the expiry write for any running round whose clock
// has run out: all-mode stations are stopped outright (the round is over for
// that station), a single-mode round gets the pause-equivalent write so the
// Paused-vs-Idle distinction survives for operators.
func (s *RoundService) SweepExpired() error {
	rs, err := s.Store.Fresh()
	if err != nil {
		return err
	}
	snap := rs.Snapshot()
	now := s.Clock.Now()

	if snap.Mode() == scoring.ModeAll {
		for n := 1; n <= scoring.NumStations; n++ {
			st := snap.Stations[n]
			if !st.Expired(now) {
				continue
			}
			if err := s.Store.UpdateStation(n, scoring.Stop(st)); err != nil {
				return err
			}
			log.Printf("⏱ [ExpiryWatcher] station %d round expired — stopped", n)
		}
		return nil
	}

	if snap.Single.Expired(now) {
		if err := s.Store.ApplySingle(scoring.PauseSingle(snap), false); err != nil {
			return err
		}
		log.Printf("⏱ [ExpiryWatcher] round expired — paused (station %v)", rs.ActiveStation)
	}
	return nil
}
