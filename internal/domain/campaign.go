package domain

import "time"

// CampaignStatus is the lifecycle state of a campaign.
type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignStaged    CampaignStatus = "staged"
	CampaignScheduled CampaignStatus = "scheduled"
	CampaignSending   CampaignStatus = "sending"
	CampaignPaused    CampaignStatus = "paused"
	CampaignCompleted CampaignStatus = "completed"
	CampaignCancelled CampaignStatus = "cancelled"
)

// IsTerminal reports whether a campaign will never transition again on its own.
func (s CampaignStatus) IsTerminal() bool {
	return s == CampaignCompleted || s == CampaignCancelled
}

// SenderIdentity selects which human identity a campaign's outbound
// domain pool is addressed from.
type SenderIdentity string

const (
	SenderToddVitzthum SenderIdentity = "todd_vitzthum"
	SenderJeffRichmond SenderIdentity = "jeff_richmond"
)

// DisplayName returns the human-readable "From" name for the identity.
func (s SenderIdentity) DisplayName() string {
	if s == SenderToddVitzthum {
		return "Todd Vitzthum"
	}
	return "Jeff Richmond"
}

// LocalPart returns the mailbox local-part used ahead of each pool domain.
func (s SenderIdentity) LocalPart() string {
	if s == SenderToddVitzthum {
		return "todd.vitzthum"
	}
	return "jeff.richmond"
}

// ContentFormat is the wire format of a campaign's rendered body.
type ContentFormat string

const (
	FormatHTML ContentFormat = "html"
	FormatText ContentFormat = "text"
)

// Campaign is a single outbound send, made up of ordered content sections
// delivered to a recipient list drawn from a sender identity's domain pool.
type Campaign struct {
	ID               string
	Name             string
	Sender           SenderIdentity
	Subject          SubjectSpec
	Sections         []Section
	Format           ContentFormat
	Status           CampaignStatus
	TotalRecipients  int
	PauseReason      *string
	PausedAt         *time.Time
	StartedAt        *time.Time
	CompletedAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// SubjectSpec is the campaign's subject line, which may carry recipient
// variable placeholders.
type SubjectSpec struct {
	Content string
}

// SectionType distinguishes renderable content blocks within a campaign.
type SectionType string

const (
	SectionText   SectionType = "text"
	SectionButton SectionType = "button"
)

// SectionMode controls whether a section's content is fixed or
// generated per-recipient at send time.
type SectionMode string

const (
	ModeStatic       SectionMode = "static"
	ModePersonalized SectionMode = "personalized"
)

// Section is one ordered block of a campaign's body.
type Section struct {
	ID              string
	Order           int
	Type            SectionType
	Mode            SectionMode
	Content         string
	ButtonURL       *string
	RecipientFields []string
}

// Personalized reports whether this section needs an AI-generated value
// before it can be rendered.
func (s Section) Personalized() bool { return s.Mode == ModePersonalized }

// CanTransitionCampaign reports whether a campaign may move from one
// status to another, mirroring the state machine in SPEC_FULL.md §5.
func CanTransitionCampaign(from, to CampaignStatus) (bool, string) {
	if from.IsTerminal() {
		return false, "campaign is in a terminal state"
	}
	switch to {
	case CampaignStaged:
		if from == CampaignDraft || from == CampaignStaged {
			return true, ""
		}
		return false, "can only stage a draft or staged campaign"
	case CampaignScheduled:
		if from == CampaignStaged || from == CampaignDraft || from == CampaignPaused {
			return true, ""
		}
		return false, "can only launch a draft or staged campaign, or resume a paused one"
	case CampaignSending:
		if from == CampaignScheduled {
			return true, ""
		}
		return false, "can only begin sending a scheduled campaign"
	case CampaignPaused:
		if from == CampaignScheduled || from == CampaignSending {
			return true, ""
		}
		return false, "can only pause an in-flight campaign"
	case CampaignCompleted:
		if from == CampaignScheduled || from == CampaignSending {
			return true, ""
		}
		return false, "can only complete an in-flight campaign"
	case CampaignCancelled:
		return true, ""
	case CampaignDraft:
		if from == CampaignStaged {
			return true, ""
		}
		return false, "can only revert a staged campaign to draft"
	}
	return false, "unknown target status"
}
