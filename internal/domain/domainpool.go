package domain

import "fmt"

// BaseDomains is the fixed pool of sending sub-domains rotated across
// when no domain is already pinned for a recipient. Entries are kept
// in their original warm-up order: the planner's round-robin index
// walks this slice in order, wrapping at the end.
var BaseDomains = []string{
	// Original 7 domains
	"connect-ozlistings.com",
	"engage-ozlistings.com",
	"get-ozlistings.com",
	"join-ozlistings.com",
	"outreach-ozlistings.com",
	"ozlistings-reach.com",
	"reach-ozlistings.com",
	// Later warmed domains
	"access-ozlistings.com",
	"contact-ozlistings.com",
	"direct-ozlistings.com",
	"grow-ozlistings.com",
	"growth-ozlistings.com",
	"link-ozlistings.com",
	"network-ozlistings.com",
	"ozlistings-access.com",
	"ozlistings-connect.com",
	"ozlistings-contact.com",
	"ozlistings-direct.com",
	"ozlistings-engage.com",
	"ozlistings-get.com",
	"ozlistings-grow.com",
	"ozlistings-join.com",
	"ozlistings-link.com",
	"ozlistings-network.com",
	"ozlistings-outreach.com",
	"ozlistings-team.com",
	"ozlistngs-growth.com",
	"team-ozlistings.com",
}

// DomainAt returns the sending address for pool index i under the
// given sender identity: "Display Name <local-part@pool domain>".
func DomainAt(sender SenderIdentity, i int) (domain, address string) {
	d := BaseDomains[i%len(BaseDomains)]
	return d, fmt.Sprintf("%s <%s@%s>", sender.DisplayName(), sender.LocalPart(), d)
}
