// Package store defines the persistence contract the scheduler,
// launch coordinator, dispatcher and reconciler depend on. The
// Postgres implementation lives in store/postgres; tests depend only
// on this interface and mock it directly.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/ignite/sparkpost-monitor/internal/domain"
)

// ErrNotFound is returned when a campaign or queue item does not exist.
var ErrNotFound = errors.New("store: not found")

// ErrConflict is returned when an optimistic-locking predicate did not
// match any row (the resource moved under the caller).
var ErrConflict = errors.New("store: conflict")

// Store is the persistence contract for the whole engine.
type Store interface {
	GetCampaign(ctx context.Context, campaignID string) (*domain.Campaign, error)
	UpdateCampaignStatusIf(ctx context.Context, campaignID string, expected, next domain.CampaignStatus) (bool, error)
	SetPauseReason(ctx context.Context, campaignID, reason string, pausedAt time.Time) error

	ListRecipients(ctx context.Context, campaignID string) ([]domain.RecipientAttachment, error)

	DeleteStagedItems(ctx context.Context, campaignID string) error
	InsertQueueItems(ctx context.Context, items []domain.QueueItem) error

	ListStagedItems(ctx context.Context, campaignID string, onlyIDs []string) ([]domain.QueueItem, error)
	ListFailedItems(ctx context.Context, campaignID string) ([]domain.QueueItem, error)

	// ApplySchedule transitions an item from staged/failed to queued,
	// attaching the domain/schedule/from_email assigned by the planner.
	ApplySchedule(ctx context.Context, itemID string, domainIndex int, scheduledFor time.Time, fromEmail string) error

	// SnapshotDomainCommitments returns, for every domain index with at
	// least one queued or processing item system-wide, the latest
	// scheduled_for assigned to that domain.
	SnapshotDomainCommitments(ctx context.Context) (map[int]time.Time, error)

	// SelectDue returns up to limit queued items whose scheduled_for
	// has passed and whose campaign is not paused, oldest first.
	SelectDue(ctx context.Context, limit int) ([]domain.QueueItem, error)

	// Claim attempts the queued -> processing transition. A false
	// result with a nil error means another worker already claimed it.
	Claim(ctx context.Context, itemID string) (bool, error)

	SetBody(ctx context.Context, itemID, body string) error
	FinalizeSent(ctx context.Context, itemID string, sentAt time.Time) error
	FinalizeFailed(ctx context.Context, itemID string, errMsg string) error
	RequeueProcessing(ctx context.Context, itemID string) error

	CountByStatus(ctx context.Context, campaignID string, status domain.QueueStatus) (int, error)
	HasFutureScheduled(ctx context.Context, campaignID string, after time.Time) (bool, error)

	// ListActiveCampaignIDs returns every campaign currently scheduled
	// or sending, for the periodic completion sweep.
	ListActiveCampaignIDs(ctx context.Context) ([]string, error)
}
