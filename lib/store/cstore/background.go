package cstore

import (
	"time"

	"go.uber.org/zap"
)

// --------------------------------------------------------------------------
// Background Tasks
//
// Two cooperative tasks run for the lifetime of the store: the expiry
// sweeper and the log compactor. Both swallow and log transient errors and
// continue on their schedule; Close cancels them and waits for the current
// step to finish.
// --------------------------------------------------------------------------

// startBackgroundTasks launches the sweeper and the compactor.
func (s *storeImpl) startBackgroundTasks() {
	s.stopCh = make(chan struct{})
	s.wg.Add(2)
	go s.runSweeper()
	go s.runCompactor()
}

// runSweeper wakes every CleanupInterval and physically removes entries
// whose expiry has passed.
func (s *storeImpl) runSweeper() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.opts.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.sweepExpired()
		}
	}
}

// sweepExpired removes all entries that are expired at a single captured
// instant. Removals are not logged to the WAL: recovery replays the
// original SET records with their TTLs and re-evaluates expiry against the
// recovery time, so sweep records would be redundant.
func (s *storeImpl) sweepExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	expired := s.cache.ExpiredKeys(s.now())
	for _, qk := range expired {
		s.cache.Delete(qk)
	}

	if len(expired) > 0 {
		s.logger.Debug("swept expired entries", zap.Int("count", len(expired)))
	}
}

// runCompactor wakes every CompactionInterval and rewrites the log when it
// has grown past MaxLogSize records.
func (s *storeImpl) runCompactor() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.opts.CompactionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.mu.Lock()
			due := s.logSize > s.opts.MaxLogSize
			s.mu.Unlock()

			if !due {
				continue
			}
			if err := s.Compact(); err != nil {
				s.logger.Error("periodic compaction failed", zap.Error(err))
			}
		}
	}
}
