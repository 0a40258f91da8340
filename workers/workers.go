// Package workers runs the periodic batch jobs: the weekly cycle, the
// daily mission assignment and the hourly VIP expiry sweep.
package workers

import (
	"context"
	"time"

	"guildhall/service"

	log "github.com/sirupsen/logrus"
)

const (
	weeklyInterval  = 7 * 24 * time.Hour
	missionInterval = 24 * time.Hour
	vipInterval     = time.Hour
)

// Workers owns the background tickers.
type Workers struct {
	weekly   service.WeeklyService
	missions service.MissionService
}

// New creates the background workers
func New(weekly service.WeeklyService, missions service.MissionService) *Workers {
	return &Workers{weekly: weekly, missions: missions}
}

// Start launches the tickers. They stop when ctx is cancelled.
func (w *Workers) Start(ctx context.Context) {
	go w.runTicker(ctx, "weekly cycle", weeklyInterval, w.weekly.RunWeeklyCycle)
	go w.runTicker(ctx, "mission assignment", missionInterval, w.missions.AssignMissions)
	go w.runTicker(ctx, "vip expiry", vipInterval, w.missions.ExpireVIPs)
}

func (w *Workers) runTicker(ctx context.Context, name string, interval time.Duration, job func(context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.WithFields(log.Fields{
		"job":      name,
		"interval": interval,
	}).Info("Started background job")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := job(ctx); err != nil {
				log.WithFields(log.Fields{
					"job":   name,
					"error": err,
				}).Error("Background job failed")
			}
		}
	}
}
