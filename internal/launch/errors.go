package launch

import "errors"

var (
	// ErrNotDraft is returned by Stage when the campaign is in neither
	// draft nor staged status.
	ErrNotDraft = errors.New("launch: campaign is not draft or staged")
	// ErrNotStaged is returned by Launch when the campaign is in
	// neither staged nor draft status.
	ErrNotStaged = errors.New("launch: campaign is not staged or draft")
	// ErrNoFailedItems is returned by RetryFailed when there is nothing to retry.
	ErrNoFailedItems = errors.New("launch: no failed items to retry")
	// ErrLockBusy is returned when another launch is already in progress for this campaign.
	ErrLockBusy = errors.New("launch: could not acquire campaign lock")
)
