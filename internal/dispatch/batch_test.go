package dispatch

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/sparkpost-monitor/internal/domain"
	"github.com/ignite/sparkpost-monitor/internal/render"
	"github.com/ignite/sparkpost-monitor/internal/transmit"
)

// fakeStore is an in-memory store.Store used to exercise the
// dispatcher without a real database, mirroring the campaign
// repository's contract but kept intentionally small.
type fakeStore struct {
	campaigns map[string]*domain.Campaign
	items     map[string]*domain.QueueItem
	due       []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{campaigns: map[string]*domain.Campaign{}, items: map[string]*domain.QueueItem{}}
}

func (f *fakeStore) GetCampaign(ctx context.Context, id string) (*domain.Campaign, error) {
	c, ok := f.campaigns[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	cp := *c
	return &cp, nil
}
func (f *fakeStore) UpdateCampaignStatusIf(ctx context.Context, id string, expected, next domain.CampaignStatus) (bool, error) {
	c, ok := f.campaigns[id]
	if !ok || c.Status != expected {
		return false, nil
	}
	c.Status = next
	return true, nil
}
func (f *fakeStore) SetPauseReason(ctx context.Context, id, reason string, pausedAt time.Time) error {
	if c, ok := f.campaigns[id]; ok {
		c.PauseReason = &reason
		c.PausedAt = &pausedAt
	}
	return nil
}
func (f *fakeStore) ListRecipients(ctx context.Context, campaignID string) ([]domain.RecipientAttachment, error) {
	return nil, nil
}
func (f *fakeStore) DeleteStagedItems(ctx context.Context, campaignID string) error { return nil }
func (f *fakeStore) InsertQueueItems(ctx context.Context, items []domain.QueueItem) error {
	return nil
}
func (f *fakeStore) ListStagedItems(ctx context.Context, campaignID string, onlyIDs []string) ([]domain.QueueItem, error) {
	return nil, nil
}
func (f *fakeStore) ListFailedItems(ctx context.Context, campaignID string) ([]domain.QueueItem, error) {
	return nil, nil
}
func (f *fakeStore) ApplySchedule(ctx context.Context, itemID string, domainIndex int, scheduledFor time.Time, fromEmail string) error {
	return nil
}
func (f *fakeStore) SnapshotDomainCommitments(ctx context.Context) (map[int]time.Time, error) {
	return nil, nil
}
func (f *fakeStore) SelectDue(ctx context.Context, limit int) ([]domain.QueueItem, error) {
	var out []domain.QueueItem
	for _, id := range f.due {
		out = append(out, *f.items[id])
	}
	return out, nil
}
func (f *fakeStore) Claim(ctx context.Context, itemID string) (bool, error) {
	it, ok := f.items[itemID]
	if !ok || it.Status != domain.QueueQueued {
		return false, nil
	}
	it.Status = domain.QueueProcessing
	return true, nil
}
func (f *fakeStore) SetBody(ctx context.Context, itemID, body string) error {
	if it, ok := f.items[itemID]; ok {
		it.Body = body
	}
	return nil
}
func (f *fakeStore) FinalizeSent(ctx context.Context, itemID string, sentAt time.Time) error {
	if it, ok := f.items[itemID]; ok {
		it.Status = domain.QueueSent
		it.SentAt = &sentAt
	}
	return nil
}
func (f *fakeStore) FinalizeFailed(ctx context.Context, itemID string, errMsg string) error {
	if it, ok := f.items[itemID]; ok {
		it.Status = domain.QueueFailed
		it.ErrorMessage = &errMsg
	}
	return nil
}
func (f *fakeStore) RequeueProcessing(ctx context.Context, itemID string) error { return nil }
func (f *fakeStore) CountByStatus(ctx context.Context, campaignID string, status domain.QueueStatus) (int, error) {
	n := 0
	for _, it := range f.items {
		if it.CampaignID == campaignID && it.Status == status {
			n++
		}
	}
	return n, nil
}
func (f *fakeStore) HasFutureScheduled(ctx context.Context, campaignID string, after time.Time) (bool, error) {
	return false, nil
}
func (f *fakeStore) ListActiveCampaignIDs(ctx context.Context) ([]string, error) {
	var ids []string
	for id, c := range f.campaigns {
		if c.Status == domain.CampaignScheduled || c.Status == domain.CampaignSending {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

type alwaysFailGenerator struct{}

func (alwaysFailGenerator) Generate(ctx context.Context, sections []domain.Section, metadata map[string]string) (map[string]string, error) {
	return nil, fmt.Errorf("generator unavailable")
}

// conditionalFailGenerator fails only for metadata marked "fail", so a
// batch can interleave generation successes and failures.
type conditionalFailGenerator struct{}

func (conditionalFailGenerator) Generate(ctx context.Context, sections []domain.Section, metadata map[string]string) (map[string]string, error) {
	if metadata["fail"] == "true" {
		return nil, fmt.Errorf("generation failed for this recipient")
	}
	out := map[string]string{}
	for _, s := range sections {
		out[s.ID] = "generated"
	}
	return out, nil
}

type noopSender struct{ calls int }

func (n *noopSender) Send(ctx context.Context, req transmit.SendRequest) (bool, error) {
	n.calls++
	return true, nil
}

// rejectingSender fails every send whose recipient is in reject.
type rejectingSender struct{ reject map[string]bool }

func (r *rejectingSender) Send(ctx context.Context, req transmit.SendRequest) (bool, error) {
	if r.reject[req.To] {
		return false, nil
	}
	return true, nil
}

func TestProcessBatch_CircuitBreakerPausesCampaignAfterThreshold(t *testing.T) {
	fs := newFakeStore()
	campaignID := "camp-1"
	fs.campaigns[campaignID] = &domain.Campaign{
		ID:     campaignID,
		Sender: domain.SenderJeffRichmond,
		Status: domain.CampaignScheduled,
		Sections: []domain.Section{
			{ID: "s1", Mode: domain.ModePersonalized, Type: domain.SectionText},
		},
	}

	threshold := 3
	for i := 0; i < threshold+2; i++ {
		id := fmt.Sprintf("item-%d", i)
		fs.items[id] = &domain.QueueItem{ID: id, CampaignID: campaignID, Status: domain.QueueQueued}
		fs.due = append(fs.due, id)
	}

	cfg := DefaultConfig()
	cfg.CircuitThreshold = threshold
	sender := &noopSender{}
	w := NewWorker(cfg, fs, alwaysFailGenerator{}, render.New(), sender)

	err := w.ProcessBatch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.CampaignPaused, fs.campaigns[campaignID].Status)
	assert.Equal(t, 0, sender.calls, "no sends should succeed past generation failure")

	failedCount, _ := fs.CountByStatus(context.Background(), campaignID, domain.QueueFailed)
	assert.GreaterOrEqual(t, failedCount, threshold)

	// Items beyond the threshold should be skipped entirely (left queued),
	// since the circuit breaker stops further claims for this campaign.
	queuedCount, _ := fs.CountByStatus(context.Background(), campaignID, domain.QueueQueued)
	assert.Greater(t, queuedCount, 0)
}

func TestProcessBatch_SuccessfulSendMarksSent(t *testing.T) {
	fs := newFakeStore()
	campaignID := "camp-2"
	fs.campaigns[campaignID] = &domain.Campaign{
		ID:     campaignID,
		Sender: domain.SenderJeffRichmond,
		Status: domain.CampaignScheduled,
		Sections: []domain.Section{
			{ID: "s1", Mode: domain.ModeStatic, Type: domain.SectionText, Content: "hello {{Name}}"},
		},
	}
	fs.items["item-1"] = &domain.QueueItem{ID: "item-1", CampaignID: campaignID, Status: domain.QueueQueued, Metadata: map[string]string{"Name": "Ada"}}
	fs.due = []string{"item-1"}

	sender := &noopSender{}
	w := NewWorker(DefaultConfig(), fs, alwaysFailGenerator{}, render.New(), sender)

	require.NoError(t, w.ProcessBatch(context.Background()))
	assert.Equal(t, domain.QueueSent, fs.items["item-1"].Status)
	assert.Equal(t, 1, sender.calls)
}

func TestProcessBatch_GenerationFailureCounterResetsOnSuccessAndOnSendFailure(t *testing.T) {
	fs := newFakeStore()
	campaignID := "camp-3"
	fs.campaigns[campaignID] = &domain.Campaign{
		ID:     campaignID,
		Sender: domain.SenderJeffRichmond,
		Status: domain.CampaignScheduled,
		Sections: []domain.Section{
			{ID: "s1", Mode: domain.ModePersonalized, Type: domain.SectionText},
		},
	}

	// item-1: generation fails, bumping the counter to 1.
	fs.items["item-1"] = &domain.QueueItem{
		ID: "item-1", CampaignID: campaignID, Status: domain.QueueQueued,
		Email: "a@x.com", Metadata: map[string]string{"fail": "true"},
	}
	// item-2: body is already rendered so generation is skipped, but the
	// send itself fails. The counter must reset here too, not just on
	// a generation success.
	fs.items["item-2"] = &domain.QueueItem{
		ID: "item-2", CampaignID: campaignID, Status: domain.QueueQueued,
		Email: "bad@x.com", Body: "already rendered", Metadata: map[string]string{},
	}
	// item-3: generation fails again. If the counter hadn't reset after
	// item-2, this would be the second consecutive failure and would
	// trip a threshold of 2.
	fs.items["item-3"] = &domain.QueueItem{
		ID: "item-3", CampaignID: campaignID, Status: domain.QueueQueued,
		Email: "c@x.com", Metadata: map[string]string{"fail": "true"},
	}
	fs.due = []string{"item-1", "item-2", "item-3"}

	cfg := DefaultConfig()
	cfg.CircuitThreshold = 2
	sender := &rejectingSender{reject: map[string]bool{"bad@x.com": true}}
	w := NewWorker(cfg, fs, conditionalFailGenerator{}, render.New(), sender)

	require.NoError(t, w.ProcessBatch(context.Background()))

	assert.Equal(t, domain.CampaignScheduled, fs.campaigns[campaignID].Status, "circuit breaker must not trip when failures never run consecutively")
	assert.Equal(t, domain.QueueFailed, fs.items["item-1"].Status)
	assert.Equal(t, domain.QueueFailed, fs.items["item-2"].Status)
	assert.Equal(t, domain.QueueFailed, fs.items["item-3"].Status)
}
