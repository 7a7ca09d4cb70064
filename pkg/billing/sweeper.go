package billing

import (
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/matrizhq/cobrador/pkg/observability"
	"github.com/matrizhq/cobrador/pkg/tenants"
)

// DefaultSweepSchedule runs the sweep hourly at minute 5
const DefaultSweepSchedule = "5 * * * *"

// Sweeper periodically re-evaluates every root tenant so that the status
// population gauges stay fresh and block transitions are logged even for
// tenants with no request traffic.
type Sweeper struct {
	service tenants.Service
	logger  *observability.Logger
	metrics *observability.Metrics
	now     func() time.Time

	cron *cron.Cron

	mu       sync.Mutex
	lastCode map[int64]Code
}

// NewSweeper creates a Sweeper over the given tenant service
func NewSweeper(service tenants.Service, logger *observability.Logger, metrics *observability.Metrics) *Sweeper {
	return &Sweeper{
		service:  service,
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
		lastCode: make(map[int64]Code),
	}
}

// Start schedules the sweep and runs one immediately in the background
func (s *Sweeper) Start(schedule string) error {
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(schedule, s.Sweep); err != nil {
		return err
	}
	s.cron.Start()
	go func() {
		defer observability.RecoverPanic(s.logger, "billing sweep")
		s.Sweep()
	}()
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish
func (s *Sweeper) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// Sweep evaluates all root tenants once
func (s *Sweeper) Sweep() {
	started := s.now()

	roots, err := s.service.ListRoots()
	if err != nil {
		s.logger.WithError(err).Error("billing sweep failed to list tenants")
		return
	}

	counts := make(map[Code]int)
	for _, root := range roots {
		status := Evaluate(root, s.now())
		counts[status.Code]++
		s.recordTransition(root, status)
	}

	if s.metrics != nil {
		for _, code := range allCodes {
			s.metrics.TenantsByStatus.WithLabelValues(string(code)).Set(float64(counts[code]))
		}
		s.metrics.SweepDuration.Observe(time.Since(started).Seconds())
	}

	s.logger.WithFields(map[string]interface{}{
		"tenants":  len(roots),
		"blocked":  counts[CodeBlocked] + counts[CodeManualBlock],
		"past_due": counts[CodePastDue],
		"elapsed":  time.Since(started).String(),
	}).Info("billing sweep completed")
}

func (s *Sweeper) recordTransition(root *tenants.Tenant, status Status) {
	s.mu.Lock()
	previous, seen := s.lastCode[root.ID]
	s.lastCode[root.ID] = status.Code
	s.mu.Unlock()

	if !seen || previous == status.Code {
		return
	}

	entry := s.logger.WithFields(map[string]interface{}{
		"tenant_id": root.ID,
		"from":      string(previous),
		"to":        string(status.Code),
	})
	if status.Blocked {
		entry.Warn("tenant transitioned into a blocked state")
	} else {
		entry.Info("tenant billing status changed")
	}
}

var allCodes = []Code{
	CodeTrialActive, CodeTrialEnding, CodePaid, CodeDueSoon,
	CodePastDue, CodeBlocked, CodeManualBlock,
}
