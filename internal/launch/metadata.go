package launch

import (
	"strings"

	"github.com/ignite/sparkpost-monitor/internal/domain"
)

// canonicalLowercaseKeys are the contact-detail keys that get promoted
// to title-cased canonical names and then removed in their original
// lowercase form, so each value lives in the map once, under its
// canonical name: a template must reference {{Name}}, not {{name}}.
var canonicalLowercaseKeys = []string{"name", "email", "company", "role", "location"}

// buildMetadata constructs the per-recipient substitution map used by
// both subject-line substitution at stage time and section rendering
// at dispatch time: the contact's free-form details, overlaid with the
// canonical Name/Email/Company/Role/Location fields (Email always
// reflects the address selected for this campaign), plus FirstName and
// LastName split from Name on the first whitespace character.
func buildMetadata(r domain.RecipientAttachment) map[string]string {
	row := make(map[string]string, len(r.Details)+7)
	for k, v := range r.Details {
		row[k] = v
	}

	name := row["name"]
	row["Name"] = name
	row["Email"] = r.SelectedEmail
	row["Company"] = row["company"]
	row["Role"] = row["role"]
	row["Location"] = row["location"]

	first, last := splitName(name)
	row["FirstName"] = first
	row["LastName"] = last

	for _, k := range canonicalLowercaseKeys {
		delete(row, k)
	}

	return row
}

func splitName(full string) (first, last string) {
	full = strings.TrimSpace(full)
	if full == "" {
		return "", ""
	}
	idx := strings.IndexAny(full, " \t\n")
	if idx < 0 {
		return full, ""
	}
	return full[:idx], strings.TrimSpace(full[idx+1:])
}
