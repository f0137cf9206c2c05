// Package reconcile implements the lazy, read-time transition of a
// campaign to completed once every one of its queue items has reached
// a terminal status. It is invoked by the (out-of-scope) read path
// whenever a caller asks for a campaign's current state, and, when a
// cron schedule is configured, periodically by Sweeper.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/ignite/sparkpost-monitor/internal/domain"
	"github.com/ignite/sparkpost-monitor/internal/store"
)

// Reconcile checks whether campaignID's queue is fully drained and, if
// so, transitions the campaign to completed via an optimistic-locked
// update. It returns true if the campaign was (or already is)
// completed as a result of this call.
func Reconcile(ctx context.Context, s store.Store, campaignID string) (bool, error) {
	campaign, err := s.GetCampaign(ctx, campaignID)
	if err != nil {
		return false, fmt.Errorf("reconcile: get campaign: %w", err)
	}

	if campaign.Status != domain.CampaignScheduled && campaign.Status != domain.CampaignSending {
		return campaign.Status == domain.CampaignCompleted, nil
	}

	queued, err := s.CountByStatus(ctx, campaignID, domain.QueueQueued)
	if err != nil {
		return false, fmt.Errorf("reconcile: count queued: %w", err)
	}
	processing, err := s.CountByStatus(ctx, campaignID, domain.QueueProcessing)
	if err != nil {
		return false, fmt.Errorf("reconcile: count processing: %w", err)
	}
	sent, err := s.CountByStatus(ctx, campaignID, domain.QueueSent)
	if err != nil {
		return false, fmt.Errorf("reconcile: count sent: %w", err)
	}
	failed, err := s.CountByStatus(ctx, campaignID, domain.QueueFailed)
	if err != nil {
		return false, fmt.Errorf("reconcile: count failed: %w", err)
	}

	hasFuture, err := s.HasFutureScheduled(ctx, campaignID, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("reconcile: check future scheduled: %w", err)
	}

	isComplete := queued == 0 && processing == 0 && (sent+failed) > 0 && !hasFuture
	if !isComplete {
		return false, nil
	}

	ok, err := s.UpdateCampaignStatusIf(ctx, campaignID, campaign.Status, domain.CampaignCompleted)
	if err != nil {
		return false, fmt.Errorf("reconcile: mark completed: %w", err)
	}
	return ok, nil
}
