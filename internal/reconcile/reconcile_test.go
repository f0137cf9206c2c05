package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/sparkpost-monitor/internal/domain"
)

type stubStore struct {
	campaign       *domain.Campaign
	counts         map[domain.QueueStatus]int
	hasFuture      bool
	completedCalls int
}

func (s *stubStore) GetCampaign(ctx context.Context, id string) (*domain.Campaign, error) {
	return s.campaign, nil
}
func (s *stubStore) UpdateCampaignStatusIf(ctx context.Context, id string, expected, next domain.CampaignStatus) (bool, error) {
	if s.campaign.Status != expected {
		return false, nil
	}
	s.campaign.Status = next
	s.completedCalls++
	return true, nil
}
func (s *stubStore) SetPauseReason(ctx context.Context, id, reason string, pausedAt time.Time) error {
	return nil
}
func (s *stubStore) ListRecipients(ctx context.Context, campaignID string) ([]domain.RecipientAttachment, error) {
	return nil, nil
}
func (s *stubStore) DeleteStagedItems(ctx context.Context, campaignID string) error { return nil }
func (s *stubStore) InsertQueueItems(ctx context.Context, items []domain.QueueItem) error {
	return nil
}
func (s *stubStore) ListStagedItems(ctx context.Context, campaignID string, onlyIDs []string) ([]domain.QueueItem, error) {
	return nil, nil
}
func (s *stubStore) ListFailedItems(ctx context.Context, campaignID string) ([]domain.QueueItem, error) {
	return nil, nil
}
func (s *stubStore) ApplySchedule(ctx context.Context, itemID string, domainIndex int, scheduledFor time.Time, fromEmail string) error {
	return nil
}
func (s *stubStore) SnapshotDomainCommitments(ctx context.Context) (map[int]time.Time, error) {
	return nil, nil
}
func (s *stubStore) SelectDue(ctx context.Context, limit int) ([]domain.QueueItem, error) {
	return nil, nil
}
func (s *stubStore) Claim(ctx context.Context, itemID string) (bool, error) { return false, nil }
func (s *stubStore) SetBody(ctx context.Context, itemID, body string) error { return nil }
func (s *stubStore) FinalizeSent(ctx context.Context, itemID string, sentAt time.Time) error {
	return nil
}
func (s *stubStore) FinalizeFailed(ctx context.Context, itemID string, errMsg string) error {
	return nil
}
func (s *stubStore) RequeueProcessing(ctx context.Context, itemID string) error { return nil }
func (s *stubStore) CountByStatus(ctx context.Context, campaignID string, status domain.QueueStatus) (int, error) {
	return s.counts[status], nil
}
func (s *stubStore) HasFutureScheduled(ctx context.Context, campaignID string, after time.Time) (bool, error) {
	return s.hasFuture, nil
}
func (s *stubStore) ListActiveCampaignIDs(ctx context.Context) ([]string, error) {
	if s.campaign == nil {
		return nil, nil
	}
	return []string{s.campaign.ID}, nil
}

func TestReconcile_CompletesWhenAllItemsTerminal(t *testing.T) {
	s := &stubStore{
		campaign: &domain.Campaign{ID: "c1", Status: domain.CampaignScheduled},
		counts:   map[domain.QueueStatus]int{domain.QueueSent: 8, domain.QueueFailed: 2},
	}
	done, err := Reconcile(context.Background(), s, "c1")
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, domain.CampaignCompleted, s.campaign.Status)
	assert.Equal(t, 1, s.completedCalls)
}

func TestReconcile_NotCompleteWhileItemsQueued(t *testing.T) {
	s := &stubStore{
		campaign: &domain.Campaign{ID: "c1", Status: domain.CampaignScheduled},
		counts:   map[domain.QueueStatus]int{domain.QueueQueued: 1, domain.QueueSent: 5},
	}
	done, err := Reconcile(context.Background(), s, "c1")
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, domain.CampaignScheduled, s.campaign.Status)
}

func TestReconcile_NotCompleteWhenFutureItemScheduled(t *testing.T) {
	s := &stubStore{
		campaign:  &domain.Campaign{ID: "c1", Status: domain.CampaignScheduled},
		counts:    map[domain.QueueStatus]int{domain.QueueSent: 5},
		hasFuture: true,
	}
	done, err := Reconcile(context.Background(), s, "c1")
	require.NoError(t, err)
	assert.False(t, done)
}

func TestReconcile_IgnoresPausedCampaign(t *testing.T) {
	s := &stubStore{
		campaign: &domain.Campaign{ID: "c1", Status: domain.CampaignPaused},
		counts:   map[domain.QueueStatus]int{domain.QueueSent: 5},
	}
	done, err := Reconcile(context.Background(), s, "c1")
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, domain.CampaignPaused, s.campaign.Status)
}
