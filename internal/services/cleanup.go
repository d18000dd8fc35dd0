package services

import (
	"time"

	"go.uber.org/zap"

	"github.com/adi-253/duochat/internal/logging"
	"github.com/adi-253/duochat/internal/metrics"
	"github.com/adi-253/duochat/internal/session"
)

// PresenceJanitor forgets the last-seen time of users who have been offline
// for longer than the retention period, so the presence table does not grow
// with every name ever registered. Online users are never touched.
type PresenceJanitor struct {
	log       *zap.Logger
	registry  session.Registry
	metrics   *metrics.Metrics
	interval  time.Duration
	retention time.Duration
	now       func() time.Time
	stopChan  chan struct{}
}

// NewPresenceJanitor creates a janitor.
//   - interval: how often to sweep (e.g. 1 minute)
//   - retention: how long an offline user's presence is kept
func NewPresenceJanitor(log *zap.Logger, registry session.Registry, m *metrics.Metrics, interval, retention time.Duration) *PresenceJanitor {
	return &PresenceJanitor{
		log:       logging.OrNop(log),
		registry:  registry,
		metrics:   m,
		interval:  interval,
		retention: retention,
		now:       func() time.Time { return time.Now().UTC() },
		stopChan:  make(chan struct{}),
	}
}

// Start runs the sweep loop until Stop is called. Call it with 'go'.
func (j *PresenceJanitor) Start() {
	j.log.Info("presence janitor started",
		zap.Duration("interval", j.interval),
		zap.Duration("retention", j.retention))

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.Sweep()
		case <-j.stopChan:
			j.log.Info("presence janitor stopped")
			return
		}
	}
}

// Stop shuts the loop down. It must be called at most once.
func (j *PresenceJanitor) Stop() {
	close(j.stopChan)
}

// Sweep prunes once and returns how many users were forgotten.
func (j *PresenceJanitor) Sweep() int {
	n := j.registry.PruneOffline(j.now().Add(-j.retention))
	if n > 0 {
		j.log.Debug("pruned offline presence", zap.Int("count", n))
		j.metrics.PresencePruned(n)
	}
	return n
}
