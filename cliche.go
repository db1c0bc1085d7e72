package safeswipe

import "strings"

// DefaultCliches are common dating-bio phrases. Their order is the order of
// the cliché signal.
var DefaultCliches = []string{
	"love to travel", "adventure", "foodie",
	"spontaneous", "work hard play hard", "down to earth",
}

// MaxClicheDisplay caps how many hits the cliché signal lists.
const MaxClicheDisplay = 4

// MatchCliches returns the phrases that occur in bio, in phrase-list order.
// Matching is a caseless substring test with no word boundaries, so
// "adventurer" counts as "adventure".
func MatchCliches(bio string, phrases []string) []string {
	if bio == "" {
		return nil
	}
	text := fold(bio)
	var hits []string
	for _, p := range phrases {
		if fp := fold(p); fp != "" && strings.Contains(text, fp) {
			hits = append(hits, p)
		}
	}
	return hits
}
