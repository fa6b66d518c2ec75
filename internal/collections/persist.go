package collections

import (
	"context"
	"encoding/json"

	"github.com/mmcdole/marquee/internal/metrics"
)

// snapshot is a serialized copy of the full state at schedule time
type snapshot struct {
	data []byte
}

// schedulePersistLocked queues the current state for writing. Only the most
// recent snapshot is kept, so a burst of mutations collapses into one write
// and the durable copy converges on the latest state. Caller holds s.mu.
func (s *Store) schedulePersistLocked() {
	if !s.hydrated || s.loadFailed {
		// Writing now could overwrite state that Hydrate has yet to read
		s.dirty = true
		return
	}

	data, err := json.Marshal(s.state)
	if err != nil {
		s.logger.Error("failed to encode collections", "error", err)
		metrics.CollectionsPersistTotal.WithLabelValues(metrics.PersistError).Inc()
		return
	}

	if s.pending != nil {
		metrics.CollectionsPersistTotal.WithLabelValues(metrics.PersistSuperseded).Inc()
	}
	s.pending = &snapshot{data: data}

	if s.closed {
		// No writer; Flush picks it up
		return
	}
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// writeLoop is the single writer: snapshots land in the order they were scheduled
func (s *Store) writeLoop() {
	defer close(s.done)
	for {
		select {
		case <-s.wake:
			s.writePending(context.Background())
		case <-s.quit:
			return
		}
	}
}

// writePending writes the latest pending snapshot, if any. Holding writeMu
// while taking the snapshot means a concurrent Flush waits for an in-flight
// write instead of returning early.
func (s *Store) writePending(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	snap := s.pending
	s.pending = nil
	s.mu.Unlock()

	if snap == nil {
		return nil
	}

	if err := s.storage.Set(ctx, StorageKey, snap.data); err != nil {
		s.logger.Error("failed to persist collections", "error", err)
		metrics.CollectionsPersistTotal.WithLabelValues(metrics.PersistError).Inc()
		return err
	}
	metrics.CollectionsPersistTotal.WithLabelValues(metrics.PersistSuccess).Inc()
	return nil
}

// Flush synchronously writes any scheduled snapshot and waits for an
// in-flight write to finish. The error is the storage failure, if any;
// the in-memory state is unaffected either way.
func (s *Store) Flush(ctx context.Context) error {
	return s.writePending(ctx)
}

// Close stops the background writer and flushes what remains.
// The store stays readable and mutable in memory afterwards; later
// snapshots are written only by explicit Flush calls.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		close(s.quit)
		<-s.done
	})
	return s.Flush(context.Background())
}
