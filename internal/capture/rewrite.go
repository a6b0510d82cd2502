package capture

import "regexp"

// countryPattern matches the country assignment isitchristmas.com embeds
// server-side in its markup, with either quote style. The two-letter
// restriction keeps the pattern from touching unrelated assignments.
var countryPattern = regexp.MustCompile(`var country = ["'][A-Z]{2}["'];`)

// RewriteCountry replaces every occurrence of the embedded country assignment
// with the given code. Best effort: if the pattern is absent the body is
// returned unmodified and the site displays its own geolocated default. No
// step validates that a substitution actually occurred; if the site changes
// its markup this silently becomes a no-op.
func RewriteCountry(body []byte, countryCode string) []byte {
	return countryPattern.ReplaceAllLiteral(body, []byte(`var country = "`+countryCode+`";`))
}
