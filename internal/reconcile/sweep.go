package reconcile

import (
	"context"

	"github.com/robfig/cron/v3"

	"github.com/ignite/sparkpost-monitor/internal/pkg/logger"
	"github.com/ignite/sparkpost-monitor/internal/store"
)

// Sweeper periodically calls Reconcile over every scheduled/sending
// campaign, so a campaign whose last item finished between dispatcher
// polls still settles into completed without waiting on a read-path
// caller to ask.
type Sweeper struct {
	cron *cron.Cron
}

// NewSweeper builds a Sweeper that reconciles every active campaign on
// the given cron schedule, a 6-field expression with a leading seconds
// column (e.g. "0 */5 * * * *" for every five minutes).
func NewSweeper(s store.Store, schedule string) (*Sweeper, error) {
	c := cron.New(cron.WithSeconds())
	_, err := c.AddFunc(schedule, func() {
		runSweep(context.Background(), s)
	})
	if err != nil {
		return nil, err
	}
	return &Sweeper{cron: c}, nil
}

// Start begins running the sweep on its schedule in the background.
func (sw *Sweeper) Start() { sw.cron.Start() }

// Stop waits for any in-flight sweep to finish, then halts the schedule.
func (sw *Sweeper) Stop() { <-sw.cron.Stop().Done() }

func runSweep(ctx context.Context, s store.Store) {
	ids, err := s.ListActiveCampaignIDs(ctx)
	if err != nil {
		logger.Error("reconcile sweep: list active campaigns failed", "error", err.Error())
		return
	}
	for _, id := range ids {
		done, err := Reconcile(ctx, s, id)
		if err != nil {
			logger.Warn("reconcile sweep: reconcile failed", "campaign_id", id, "error", err.Error())
			continue
		}
		if done {
			logger.Info("reconcile sweep: campaign completed", "campaign_id", id)
		}
	}
}
