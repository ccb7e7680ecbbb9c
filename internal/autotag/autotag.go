// Package autotag derives tags for a memory from its text. Pure keyword
// matching, deterministic for a given input and clock year.
package autotag

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/timestitch/timestitch/internal/domain"
)

// maxTags caps the number of suggested tags per memory.
const maxTags = 5

type mapping struct {
	keyword string
	tags    []string
}

// mappings is scanned in order, so suggestions are stable across runs.
var mappings = []mapping{
	// Events
	{"birthday", []string{"birthday", "celebration", "party"}},
	{"wedding", []string{"wedding", "celebration", "love"}},
	{"graduation", []string{"graduation", "achievement", "education"}},
	{"anniversary", []string{"anniversary", "celebration", "milestone"}},
	{"holiday", []string{"holiday", "vacation", "travel"}},
	{"christmas", []string{"christmas", "holiday", "family"}},
	{"vacation", []string{"vacation", "travel", "leisure"}},

	// Activities
	{"travel", []string{"travel", "adventure", "journey"}},
	{"trip", []string{"travel", "trip", "adventure"}},
	{"hiking", []string{"hiking", "nature", "outdoor"}},
	{"beach", []string{"beach", "summer", "vacation"}},
	{"mountain", []string{"mountain", "nature", "adventure"}},
	{"cooking", []string{"cooking", "food", "kitchen"}},
	{"sport", []string{"sports", "fitness", "activity"}},
	{"workout", []string{"fitness", "health", "exercise"}},
	{"concert", []string{"music", "concert", "entertainment"}},
	{"movie", []string{"movie", "entertainment", "cinema"}},

	// People
	{"family", []string{"family", "together", "love"}},
	{"friend", []string{"friends", "social", "together"}},
	{"baby", []string{"baby", "family", "milestone"}},
	{"pet", []string{"pet", "animal", "companion"}},

	// Locations
	{"home", []string{"home", "house", "family"}},
	{"office", []string{"work", "office", "professional"}},
	{"school", []string{"school", "education", "learning"}},
	{"restaurant", []string{"food", "dining", "restaurant"}},
	{"park", []string{"park", "nature", "outdoor"}},

	// Seasons
	{"spring", []string{"spring", "season", "nature"}},
	{"summer", []string{"summer", "season", "warm"}},
	{"autumn", []string{"autumn", "fall", "season"}},
	{"winter", []string{"winter", "season", "cold"}},

	// Moods
	{"happy", []string{"happy", "joy", "positive"}},
	{"sad", []string{"sad", "emotional", "memory"}},
	{"excited", []string{"excited", "energy", "positive"}},
	{"peaceful", []string{"peaceful", "calm", "relaxing"}},
	{"beautiful", []string{"beautiful", "aesthetic", "memorable"}},

	// Work
	{"project", []string{"project", "work", "achievement"}},
	{"meeting", []string{"meeting", "work", "professional"}},
	{"presentation", []string{"presentation", "work", "achievement"}},
	{"launch", []string{"launch", "achievement", "milestone"}},
}

var monthSeasons = map[string]string{
	"january": "winter", "february": "winter", "march": "spring",
	"april": "spring", "may": "spring", "june": "summer",
	"july": "summer", "august": "summer", "september": "autumn",
	"october": "autumn", "november": "autumn", "december": "winter",
}

var monthOrder = []string{
	"january", "february", "march", "april", "may", "june",
	"july", "august", "september", "october", "november", "december",
}

// Suggest derives up to five tags from a memory's title and description.
func Suggest(m domain.Memory) []string {
	return FromText(m.Title+" "+m.Description, time.Now())
}

// FromText derives tags from free text. now supplies the year used for
// the "recent" tag.
func FromText(text string, now time.Time) []string {
	content := strings.ToLower(text)

	var tags []string
	seen := make(map[string]bool)
	add := func(tag string) {
		if !seen[tag] {
			seen[tag] = true
			tags = append(tags, tag)
		}
	}

	for _, m := range mappings {
		if strings.Contains(content, m.keyword) {
			for _, tag := range m.tags {
				add(tag)
			}
		}
	}

	if strings.Contains(content, strconv.Itoa(now.Year())) {
		add("recent")
	}

	// Month names imply a season.
	for _, month := range monthOrder {
		if strings.Contains(content, month) {
			add(monthSeasons[month])
		}
	}

	if len(tags) > maxTags {
		tags = tags[:maxTags]
	}
	return tags
}

// Merge appends suggested tags to the user's own, case-insensitively
// deduplicated, user tags first.
func Merge(user, suggested []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, tag := range append(append([]string{}, user...), suggested...) {
		key := strings.ToLower(tag)
		if tag == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, tag)
	}
	return out
}

var locationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:in|at|from|to)\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*)`),
	regexp.MustCompile(`[A-Z][a-z]+,\s*[A-Z][a-z]+`),
}

var locationPrefix = regexp.MustCompile(`^(?i:in|at|from|to)\s+`)

// ExtractLocation pulls a likely place name out of free text, or "" when
// none is found.
func ExtractLocation(text string) string {
	for _, pattern := range locationPatterns {
		if match := pattern.FindString(text); match != "" {
			return strings.TrimSpace(locationPrefix.ReplaceAllString(match, ""))
		}
	}
	return ""
}
