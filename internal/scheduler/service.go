package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/stockpulse/social-ingest/internal/config"
	"github.com/stockpulse/social-ingest/internal/jobs"
	"github.com/stockpulse/social-ingest/internal/notifications"
)

// Service drives the sync entry points on a cadence. Failed runs are
// already recorded in the manager's stats; the scheduler just logs and
// lets the next tick retry.
type Service struct {
	config   *config.Config
	manager  *jobs.Manager
	notifier notifications.Notifier // nil when no channel is configured
	cron     *cron.Cron
}

// NewService creates a scheduler for the given manager.
func NewService(cfg *config.Config, manager *jobs.Manager, notifier notifications.Notifier) *Service {
	return &Service{
		config:   cfg,
		manager:  manager,
		notifier: notifier,
		cron:     cron.New(cron.WithSeconds()),
	}
}

// Start registers and starts the scheduled jobs.
func (s *Service) Start() error {
	_, err := s.cron.AddFunc(s.config.FinanceSyncSchedule, func() {
		logrus.Info("Starting scheduled finance sync")
		if err := s.manager.RunFinanceSync(context.Background()); err != nil {
			logrus.Errorf("Scheduled finance sync failed: %v", err)
		}
	})
	if err != nil {
		return err
	}

	_, err = s.cron.AddFunc(s.config.TrendingSyncSchedule, func() {
		logrus.Info("Starting scheduled trending sync")
		if err := s.manager.RunTrendingSync(context.Background()); err != nil {
			logrus.Errorf("Scheduled trending sync failed: %v", err)
			return
		}
		if s.notifier == nil {
			return
		}
		if trending := s.manager.Trending(); len(trending) > 0 {
			if err := s.notifier.SendTrendingDigest(trending); err != nil {
				logrus.Errorf("Failed to send trending digest: %v", err)
			}
		}
	})
	if err != nil {
		return err
	}

	// Health watchdog every 30 minutes; alerts only when something is
	// wrong and a notification channel exists.
	_, err = s.cron.AddFunc("0 */30 * * * *", func() {
		health := s.manager.HealthCheck()
		if health.Status == "healthy" || s.notifier == nil {
			return
		}
		logrus.Warnf("Pipeline health is %s with %d issue(s)", health.Status, len(health.Issues))
		if err := s.notifier.SendHealthAlert(health); err != nil {
			logrus.Errorf("Failed to send health alert: %v", err)
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	logrus.Infof("Scheduler started (finance: %q, trending: %q)", s.config.FinanceSyncSchedule, s.config.TrendingSyncSchedule)
	return nil
}

// Stop stops the scheduler.
func (s *Service) Stop() {
	if s.cron != nil {
		s.cron.Stop()
		logrus.Info("Scheduler stopped")
	}
}
