// Package classifier assigns a report type, category and tags to free text
// using keyword matching.
package classifier

import (
	"strings"
	"unicode"

	"civicwatch/models"
)

var corruptionKeywords = []string{
	"corruption", "scam", "fraud", "bribery", "embezzlement",
	"kickback", "money laundering", "tax evasion", "illegal",
	"misappropriation", "graft", "nepotism", "crony",
}

var heroKeywords = []string{
	"rescued", "saved", "helped", "honesty", "bravery", "courage",
	"social work", "donation", "volunteer", "award", "recognition",
	"achievement", "innovation", "inspiring", "humanitarian", "selfless",
}

var categories = map[string][]string{
	models.TypeCorruption: {"political", "financial", "bureaucratic", "police", "judicial", "corporate"},
	models.TypeHero:       {"rescue", "social-service", "honesty", "bravery", "innovation", "humanitarian"},
}

const maxTags = 5

// Classify scores text against the hero and corruption keyword sets and
// returns the dominant type with a confidence in [0, 1]. Text matching
// neither set comes back with an empty type and zero confidence.
func Classify(text string) models.Classification {
	lower := strings.ToLower(text)
	tokens := tokenize(lower)

	var corruptionScore, heroScore int
	for _, token := range tokens {
		if matchesAny(token, corruptionKeywords) {
			corruptionScore++
		}
		if matchesAny(token, heroKeywords) {
			heroScore++
		}
	}

	switch {
	case corruptionScore > heroScore && corruptionScore > 0:
		return models.Classification{
			Type:       models.TypeCorruption,
			Confidence: confidence(corruptionScore),
			Category:   detectCategory(lower, categories[models.TypeCorruption]),
			Tags:       extractTags(lower, corruptionKeywords),
		}
	case heroScore > corruptionScore && heroScore > 0:
		return models.Classification{
			Type:       models.TypeHero,
			Confidence: confidence(heroScore),
			Category:   detectCategory(lower, categories[models.TypeHero]),
			Tags:       extractTags(lower, heroKeywords),
		}
	default:
		return models.Classification{}
	}
}

func tokenize(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

func matchesAny(token string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(token, kw) {
			return true
		}
	}
	return false
}

// confidence maps a raw keyword hit count onto [0, 1], saturating at 10 hits.
func confidence(score int) float64 {
	c := float64(score) / 10
	if c > 1.0 {
		return 1.0
	}
	return c
}

// detectCategory returns the first category mentioned in the text, falling
// back to the type's first category.
func detectCategory(text string, cats []string) string {
	for _, cat := range cats {
		if strings.Contains(text, cat) || strings.Contains(text, strings.ReplaceAll(cat, "-", " ")) {
			return cat
		}
	}
	return cats[0]
}

func extractTags(text string, keywords []string) []string {
	var tags []string
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			tags = append(tags, kw)
			if len(tags) == maxTags {
				break
			}
		}
	}
	return tags
}
