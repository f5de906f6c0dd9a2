package match

import (
	"strings"
	"time"
)

// URLKey normalizes a source URL for identity comparison. Empty input yields "".
func URLKey(raw string) string {
	v := strings.TrimSpace(raw)
	if v == "" {
		return ""
	}
	if idx := strings.IndexAny(v, "?#"); idx >= 0 {
		v = v[:idx]
	}
	v = strings.TrimRight(v, "/")
	if v == "" {
		return ""
	}
	return "url:" + strings.ToLower(v)
}

// TeamKey is the fallback identity: home|away, case-insensitive and trimmed.
func TeamKey(home, away string) string {
	return "teams:" + normalizeKeyPart(home) + "|" + normalizeKeyPart(away)
}

// Identifier picks the URL key when a URL is known, else the team key.
func Identifier(sourceURL, home, away string) string {
	if key := URLKey(sourceURL); key != "" {
		return key
	}
	return TeamKey(home, away)
}

func SameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

func normalizeKeyPart(v string) string {
	return strings.Join(strings.Fields(strings.ToLower(v)), " ")
}
