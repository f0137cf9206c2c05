// Package launch implements the Stage, Launch and RetryFailed
// operations that move a campaign from draft through to an actively
// sending queue.
package launch

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/sparkpost-monitor/internal/config"
	"github.com/ignite/sparkpost-monitor/internal/domain"
	"github.com/ignite/sparkpost-monitor/internal/pkg/distlock"
	"github.com/ignite/sparkpost-monitor/internal/pkg/logger"
	"github.com/ignite/sparkpost-monitor/internal/render"
	"github.com/ignite/sparkpost-monitor/internal/schedule"
	"github.com/ignite/sparkpost-monitor/internal/store"
)

// LockFactory builds a distributed lock scoped to one key. Production
// wires distlock.NewLock; tests can stub it with an always-succeeding lock.
type LockFactory func(key string, ttl time.Duration) distlock.DistLock

// Coordinator implements the three launch-phase operations.
type Coordinator struct {
	store     store.Store
	locks     LockFactory
	clock     func() time.Time
	jitter    schedule.JitterSource
	lockTTL   time.Duration
	scheduler config.SchedulerConfig
}

// New builds a Coordinator. clock and jitter may be nil to use
// time.Now and a standard uniform source respectively. scheduler
// supplies the timezone/working-hours/interval/jitter settings the
// planner uses; pass config.Config.Scheduler as loaded at boot.
func New(s store.Store, locks LockFactory, clock func() time.Time, jitter schedule.JitterSource, scheduler config.SchedulerConfig) *Coordinator {
	if clock == nil {
		clock = time.Now
	}
	if jitter == nil {
		jitter = defaultJitter
	}
	return &Coordinator{store: s, locks: locks, clock: clock, jitter: jitter, lockTTL: 10 * time.Minute, scheduler: scheduler}
}

// Stage expands a campaign's recipient list into staged queue rows:
// contact metadata spread into a substitution map, subject variables
// resolved, any previously staged rows for this campaign replaced.
func (c *Coordinator) Stage(ctx context.Context, campaignID string) error {
	campaign, err := c.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return fmt.Errorf("stage: get campaign: %w", err)
	}
	if campaign.Status != domain.CampaignDraft && campaign.Status != domain.CampaignStaged {
		return ErrNotDraft
	}

	recipients, err := c.store.ListRecipients(ctx, campaignID)
	if err != nil {
		return fmt.Errorf("stage: list recipients: %w", err)
	}

	if err := c.store.DeleteStagedItems(ctx, campaignID); err != nil {
		return fmt.Errorf("stage: clear previous staged items: %w", err)
	}

	items := make([]domain.QueueItem, 0, len(recipients))
	for _, r := range recipients {
		if !r.Eligible() {
			continue
		}
		metadata := buildMetadata(r)
		items = append(items, domain.QueueItem{
			ID:         uuid.New().String(),
			CampaignID: campaignID,
			ContactID:  r.ContactID,
			Email:      r.SelectedEmail,
			Subject:    render.Substitute(campaign.Subject.Content, metadata),
			Body:       "",
			Metadata:   metadata,
			Status:     domain.QueueStaged,
		})
	}

	if err := c.store.InsertQueueItems(ctx, items); err != nil {
		// Nothing to roll back: the campaign's status hasn't changed yet
		// and the staged rows we did manage to write are cleaned up by
		// the next Stage attempt's DeleteStagedItems call.
		return fmt.Errorf("stage: insert queue items: %w", err)
	}

	if ok, err := c.store.UpdateCampaignStatusIf(ctx, campaignID, campaign.Status, domain.CampaignStaged); err != nil {
		return fmt.Errorf("stage: mark campaign staged: %w", err)
	} else if !ok {
		return ErrNotDraft
	}
	return nil
}

// Launch plans and commits a domain/schedule/from_email for every
// staged item named in itemIDs (or all staged items, when itemIDs is
// nil), then transitions the campaign to scheduled.
func (c *Coordinator) Launch(ctx context.Context, campaignID string, itemIDs []string) error {
	return c.planAndCommit(ctx, campaignID, itemIDs, false)
}

// RetryFailed re-plans every failed item for a campaign, pinning each
// to the domain it previously used, and returns the campaign to scheduled.
func (c *Coordinator) RetryFailed(ctx context.Context, campaignID string) error {
	return c.planAndCommit(ctx, campaignID, nil, true)
}

func (c *Coordinator) planAndCommit(ctx context.Context, campaignID string, itemIDs []string, retry bool) error {
	lock := c.locks(fmt.Sprintf("campaign:%s:launch", campaignID), c.lockTTL)
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("launch: acquire lock: %w", err)
	}
	if !acquired {
		return ErrLockBusy
	}
	defer func() {
		if err := lock.Release(ctx); err != nil {
			logger.Warn("launch: failed to release lock", "campaign_id", campaignID, "error", err.Error())
		}
	}()

	campaignBefore, err := c.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return fmt.Errorf("launch: get campaign: %w", err)
	}

	var items []domain.QueueItem
	if retry {
		items, err = c.store.ListFailedItems(ctx, campaignID)
		if err != nil {
			return fmt.Errorf("launch: list failed items: %w", err)
		}
		if len(items) == 0 {
			return ErrNoFailedItems
		}
	} else {
		if campaignBefore.Status != domain.CampaignStaged && campaignBefore.Status != domain.CampaignDraft {
			return ErrNotStaged
		}
		items, err = c.store.ListStagedItems(ctx, campaignID, itemIDs)
		if err != nil {
			return fmt.Errorf("launch: list staged items: %w", err)
		}
	}

	commitments, err := c.store.SnapshotDomainCommitments(ctx)
	if err != nil {
		return fmt.Errorf("launch: snapshot commitments: %w", err)
	}

	planInputs := make([]schedule.Input, 0, len(items))
	for _, it := range items {
		planInputs = append(planInputs, schedule.Input{QueueItemID: it.ID, PinnedDomainIndex: it.DomainIndex})
	}

	cfg := schedule.Config{
		Sender:           campaignBefore.Sender,
		Timezone:         c.scheduler.Timezone,
		WorkStart:        c.scheduler.WorkingHourStart,
		WorkEnd:          c.scheduler.WorkingHourEnd,
		IntervalMinutes:  c.scheduler.IntervalMinutes,
		JitterSecondsMax: c.scheduler.JitterSecondsMax,
		SkipWeekends:     true,
		DisableWorkHours: c.scheduler.DisableWorkingHours,
	}
	results, err := schedule.Plan(cfg, commitments, planInputs, c.clock(), 0, c.jitter)
	if err != nil {
		return fmt.Errorf("launch: plan schedule: %w", err)
	}

	for _, r := range results {
		if err := c.store.ApplySchedule(ctx, r.QueueItemID, r.DomainIndex, r.ScheduledFor, r.FromEmail); err != nil {
			logger.Warn("launch: failed to apply schedule to item", "item_id", r.QueueItemID, "error", err.Error())
		}
	}

	expected := campaignBefore.Status
	if ok, err := c.store.UpdateCampaignStatusIf(ctx, campaignID, expected, domain.CampaignScheduled); err != nil {
		return fmt.Errorf("launch: mark campaign scheduled: %w", err)
	} else if !ok {
		logger.Warn("launch: campaign status changed during launch, leaving as-is", "campaign_id", campaignID)
	}
	return nil
}

func defaultJitter() float64 {
	return rand.Float64()
}
