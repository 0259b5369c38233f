package tenant

import (
	"strings"
)

// Slugify lowercases name, drops apostrophes, turns every other run of
// non-alphanumerics into a single dash and trims dashes from both ends.
// "Joe's Pizza" becomes "joes-pizza".
func Slugify(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.NewReplacer("'", "", "’", "", "`", "").Replace(s)

	var b strings.Builder
	b.Grow(len(s))
	dash := false
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.Trim(b.String(), "-")
}
