package domain

import "time"

// QueueStatus is the lifecycle state of a single recipient's queued send.
type QueueStatus string

const (
	QueueStaged     QueueStatus = "staged"
	QueueQueued     QueueStatus = "queued"
	QueueProcessing QueueStatus = "processing"
	QueueSent       QueueStatus = "sent"
	QueueFailed     QueueStatus = "failed"
)

// CanTransitionQueueItem reports whether a queue item may move between
// the given statuses.
func CanTransitionQueueItem(from, to QueueStatus) bool {
	switch from {
	case QueueStaged:
		return to == QueueQueued
	case QueueQueued:
		return to == QueueProcessing
	case QueueProcessing:
		return to == QueueSent || to == QueueFailed || to == QueueQueued
	case QueueFailed:
		return to == QueueQueued
	}
	return false
}

// QueueItem is one recipient's position in a campaign's send queue.
//
// Body is populated lazily at dispatch time (JIT rendering); it is
// empty for every item between Stage and the moment the Dispatcher
// claims it.
type QueueItem struct {
	ID           string
	CampaignID   string
	ContactID    string
	Email        string
	Subject      string
	Body         string
	Metadata     map[string]string
	Status       QueueStatus
	DomainIndex  *int
	FromEmail    *string
	ScheduledFor *time.Time
	ErrorMessage *string
	// DelaySeconds is an optional artificial delay applied before send;
	// defaults to zero and is otherwise inert.
	DelaySeconds int
	IsEdited     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
	SentAt       *time.Time
}

// RecipientStatus is the suppression/engagement state of a contact's
// attachment to a campaign's recipient list.
type RecipientStatus string

const (
	RecipientActive        RecipientStatus = "active"
	RecipientBounced        RecipientStatus = "bounced"
	RecipientUnsubscribed   RecipientStatus = "unsubscribed"
	RecipientSpamComplaint  RecipientStatus = "spam_complaint"
)

// RecipientAttachment binds a contact to a campaign with the email
// address selected for that send and any suppression markers.
type RecipientAttachment struct {
	ContactID      string
	CampaignID     string
	SelectedEmail  string
	Details        map[string]string
	Status         RecipientStatus
	BouncedAt      *time.Time
	UnsubscribedAt *time.Time
}

// Eligible reports whether this attachment may still be staged for sending.
func (r RecipientAttachment) Eligible() bool {
	return r.Status == RecipientActive
}
