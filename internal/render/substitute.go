// Package render turns a campaign's ordered sections into a single
// message body, substituting recipient variables and any AI-generated
// personalized text. It is a pure function of its inputs: no network,
// no store access.
package render

import (
	"regexp"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var variablePattern = regexp.MustCompile(`\{\{(\w+)\}\}`)

var (
	lowerCaser = cases.Lower(language.Und)
	upperCaser = cases.Upper(language.Und)
)

// Substitute replaces every {{Var}} placeholder in content with the
// matching value from data, probing the exact key first, then its
// lowercase form, then its uppercase form. A placeholder with no match
// in any of the three forms is left untouched.
func Substitute(content string, data map[string]string) string {
	return variablePattern.ReplaceAllStringFunc(content, func(match string) string {
		name := variablePattern.FindStringSubmatch(match)[1]
		if v, ok := data[name]; ok {
			return v
		}
		if v, ok := data[lowerCaser.String(name)]; ok {
			return v
		}
		if v, ok := data[upperCaser.String(name)]; ok {
			return v
		}
		return match
	})
}
