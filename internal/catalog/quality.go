package catalog

import (
	"math"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	minDescriptionLength = 11
	minRunCount          = 10
)

// trustedPublishers earn a quality bonus
var trustedPublishers = map[string]bool{
	"black-forest-labs": true,
	"stability-ai":      true,
	"google":            true,
	"openai":            true,
	"meta":              true,
	"bytedance":         true,
	"minimax":           true,
	"kwaivgi":           true,
	"luma":              true,
	"runwayml":          true,
	"wan-video":         true,
	"ideogram-ai":       true,
	"recraft-ai":        true,
	"lucataco":          true,
	"zsxkib":            true,
}

// premiumPublishers host commercial models billed per output
var premiumPublishers = map[string]bool{
	"black-forest-labs": true,
	"google":            true,
	"openai":            true,
	"runwayml":          true,
	"luma":              true,
	"minimax":           true,
	"kwaivgi":           true,
	"ideogram-ai":       true,
	"recraft-ai":        true,
	"elevenlabs":        true,
}

// QualityScore ranks an entry; higher is better and the value is unbounded
func QualityScore(e RawEntry, now time.Time) float64 {
	runs := e.RunCount
	if runs < 0 {
		runs = 0
	}
	score := math.Log10(float64(runs)+1) * 10

	if descriptionLength(e) > 50 {
		score += 20
	}

	if created, ok := e.VersionCreated(); ok {
		age := now.Sub(created)
		switch {
		case age < 30*24*time.Hour:
			score += 10
		case age < 90*24*time.Hour:
			score += 5
		}
	}

	if trustedPublishers[strings.ToLower(e.Owner)] {
		score += 15
	}

	return score
}

// descriptionLength counts the characters of the trimmed description
func descriptionLength(e RawEntry) int {
	return utf8.RuneCountInString(strings.TrimSpace(e.DescriptionText()))
}

// passesQuality reports whether the entry carries enough signal to normalize
func passesQuality(e RawEntry) bool {
	if !hasInputSchema(e) {
		return false
	}
	if e.Description == nil {
		return false
	}
	desc := strings.TrimSpace(*e.Description)
	if desc == "undefined" || descriptionLength(e) < minDescriptionLength {
		return false
	}
	return e.RunCount >= minRunCount
}

// FilterHighQuality drops low-signal entries and orders the rest by QualityScore,
// best first. The input slice is not modified.
func FilterHighQuality(entries []RawEntry, now time.Time) []RawEntry {
	type scored struct {
		entry RawEntry
		score float64
	}

	kept := make([]scored, 0, len(entries))
	for _, e := range entries {
		if !passesQuality(e) {
			continue
		}
		kept = append(kept, scored{entry: e, score: QualityScore(e, now)})
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].score > kept[j].score
	})

	out := make([]RawEntry, len(kept))
	for i, s := range kept {
		out[i] = s.entry
	}
	return out
}

// pricingTier classifies an entry's cost class
func pricingTier(e RawEntry) PricingTier {
	if premiumPublishers[strings.ToLower(e.Owner)] {
		return PricingPremium
	}
	if e.RunCount > 10000 {
		return PricingCheap
	}
	return PricingFree
}
