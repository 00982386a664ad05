package session

import (
	"time"

	"github.com/hazyhaar/fibre/fiber"
	"github.com/hazyhaar/fibre/mutation"
	"github.com/hazyhaar/fibre/observability"
)

// onCommit runs on the render goroutine right after every commit.
func (s *Session) onCommit(ci fiber.CommitInfo) {
	records := s.surf.adapter.TakeRecords()
	if s.cfg.CompressEnabled() {
		records = mutation.Compress(records)
	}
	now := time.Now()

	s.mu.Lock()
	s.commits++
	n := s.commits
	b := mutation.Batch{
		ID:          "b_" + s.newID(),
		Container:   Container,
		Generation:  ci.Generation,
		Records:     records,
		Effects:     mutation.Effects(ci.Effects),
		Units:       ci.Units,
		Ticks:       ci.Ticks,
		DurationUS:  ci.Duration.Microseconds(),
		Timestamp:   now.UnixMilli(),
		SnapshotRef: s.lastSnap,
	}
	s.last = &b
	if ci.Err != nil {
		s.lastErr = ci.Err
		s.renderErr = ci.Err
	}
	s.mu.Unlock()

	if err := s.sinkR.Send(s.ctx, b); err != nil {
		s.logger.Warn("session: batch delivery failed", "generation", b.Generation, "error", err)
	}
	s.recordMetrics(ci, len(records))

	if every := s.cfg.Snapshot.Every; n == 1 || (every > 0 && n%every == 0) {
		s.snapshot(ci.Generation, now)
	}
}

func (s *Session) snapshot(gen uint64, now time.Time) {
	html, err := s.surf.innerHTML()
	if err != nil {
		s.logger.Warn("session: snapshot failed", "generation", gen, "error", err)
		return
	}
	snap := mutation.Snapshot{
		ID:         "s_" + s.newID(),
		Container:  Container,
		Generation: gen,
		HTML:       html,
		HTMLHash:   mutation.HashHTML(html),
		Timestamp:  now.UnixMilli(),
	}
	s.mu.Lock()
	s.lastSnap = snap.ID
	s.snapshots++
	s.mu.Unlock()

	if err := s.sinkR.SendSnapshot(s.ctx, snap); err != nil {
		s.logger.Warn("session: snapshot delivery failed", "generation", gen, "error", err)
	}
	s.logger.Debug("session: snapshot", "generation", gen, "size", len(html))
}

func (s *Session) recordMetrics(ci fiber.CommitInfo, records int) {
	if s.metrics == nil {
		return
	}
	labels := map[string]string{"container": Container}
	point := func(name string, v float64, unit string) {
		s.metrics.Record(&observability.Metric{Name: name, Value: v, Unit: unit, Labels: labels})
	}
	point(observability.MetricCommitMs, float64(ci.Duration.Microseconds())/1000, "milliseconds")
	point(observability.MetricUnits, float64(ci.Units), "count")
	point(observability.MetricTicks, float64(ci.Ticks), "count")
	point(observability.MetricPlacements, float64(ci.Effects.Placements), "count")
	point(observability.MetricUpdates, float64(ci.Effects.Updates), "count")
	point(observability.MetricDeletions, float64(ci.Effects.Deletions), "count")
	point(observability.MetricRecords, float64(records), "count")
}
