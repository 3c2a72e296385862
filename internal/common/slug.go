package common

import "strings"

// BookID derives the canonical book identifier from a human-supplied title:
// lower-cased, runs of non-alphanumeric characters collapsed to a single
// underscore, leading/trailing underscores stripped.
// "The Tortoise and the Hare" -> "the_tortoise_and_the_hare".
//
// Two titles that normalize identically collide; the service does not
// disambiguate this case.
func BookID(title string) string {
	var b strings.Builder
	b.Grow(len(title))

	pendingSep := false
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
		default:
			pendingSep = true
		}
	}

	return b.String()
}
