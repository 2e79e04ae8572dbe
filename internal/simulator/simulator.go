package simulator

import (
	"context"
	"log"
	"math/rand"
	"time"

	"netsight/internal/metrics"
	"netsight/internal/models"
)

// Broadcaster pushes one event to every connected client.
type Broadcaster interface {
	Broadcast(event string, v any) error
}

// Recorder receives every emitted packet, e.g. to keep a recent-traffic ring.
type Recorder interface {
	Record(p models.Packet, ts time.Time) error
}

// Config holds the simulator's tunables.
type Config struct {
	Interval         time.Duration
	AlertProbability float64
	// Rand defaults to a time-seeded source. The simulator is its only user.
	Rand *rand.Rand
	// Now defaults to time.Now.
	Now      func() time.Time
	Recorder Recorder
	Metrics  *metrics.Registry
}

// Simulator fabricates packet, alert and stats events on a fixed cadence.
// The counters are owned by the goroutine running Run or Tick.
type Simulator struct {
	out      Broadcaster
	interval time.Duration
	alertP   float64
	rng      *rand.Rand
	now      func() time.Time
	recorder Recorder
	metrics  *metrics.Registry

	totalPackets int
	totalAlerts  int
}

// New creates a simulator that broadcasts through out.
func New(out Broadcaster, cfg Config) *Simulator {
	s := &Simulator{
		out:      out,
		interval: cfg.Interval,
		alertP:   cfg.AlertProbability,
		rng:      cfg.Rand,
		now:      cfg.Now,
		recorder: cfg.Recorder,
		metrics:  cfg.Metrics,
	}
	if s.interval <= 0 {
		s.interval = time.Second
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Run sleeps for the interval and then emits one tick, until ctx is done or a
// tick fails. Ticks drift by the time spent emitting.
func (s *Simulator) Run(ctx context.Context) error {
	log.Printf("Simulator started (interval %s, alert probability %.2f)", s.interval, s.alertP)
	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
		case <-timer.C:
		}
		if err := ctx.Err(); err != nil {
			log.Printf("Simulator stopped after %d packets, %d alerts", s.totalPackets, s.totalAlerts)
			return err
		}

		if err := s.Tick(); err != nil {
			return err
		}
		timer.Reset(s.interval)
	}
}

// Tick emits one packet, an optional alert derived from it, and a stats
// snapshot, in that order.
func (s *Simulator) Tick() error {
	now := s.now()

	packet := NewPacket(s.rng, now)
	if err := s.out.Broadcast(models.EventPacket, packet); err != nil {
		return err
	}
	s.totalPackets++
	if s.metrics != nil {
		s.metrics.PacketsEmitted.Inc()
	}
	if s.recorder != nil {
		if err := s.recorder.Record(packet, now); err != nil {
			log.Printf("Simulator: record packet %s: %v", packet.ID, err)
		}
	}

	if s.rng.Float64() < s.alertP {
		alert := NewAlert(s.rng, now, packet)
		if err := s.out.Broadcast(models.EventAlert, alert); err != nil {
			return err
		}
		s.totalAlerts++
		if s.metrics != nil {
			s.metrics.AlertsEmitted.WithLabelValues(alert.Type).Inc()
		}
	}

	return s.out.Broadcast(models.EventStats, NewStats(s.rng, s.totalPackets, s.totalAlerts))
}

// Totals returns the cumulative packet and alert counters. It must be called
// from the goroutine that drives the simulator, or after Run has returned.
func (s *Simulator) Totals() (packets, alerts int) {
	return s.totalPackets, s.totalAlerts
}
