// Package textutil holds the query tokenization helpers shared by the
// crawler and the discovery cascade. Tokens drive link scoring and the
// container-context check used by the regex price extractor.
package textutil

import (
	"regexp"
	"sort"
	"strings"
)

var tokenRe = regexp.MustCompile(`[a-z0-9]+`)

// Tokenize lowercases the query and returns alphanumeric tokens longer
// than one character.
func Tokenize(q string) []string {
	var out []string
	for _, t := range tokenRe.FindAllString(strings.ToLower(q), -1) {
		if len(t) > 1 {
			out = append(out, t)
		}
	}
	return out
}

// Phrases builds the 3-gram and 2-gram phrases of the token list, longest
// first, deduplicated. The top phrases gate the price-container check.
func Phrases(tokens []string) []string {
	seen := make(map[string]bool)
	var phrases []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			phrases = append(phrases, p)
		}
	}
	for i := 0; i+2 < len(tokens); i++ {
		add(tokens[i] + " " + tokens[i+1] + " " + tokens[i+2])
	}
	for i := 0; i+1 < len(tokens); i++ {
		add(tokens[i] + " " + tokens[i+1])
	}
	sort.SliceStable(phrases, func(i, j int) bool {
		return len(phrases[i]) > len(phrases[j])
	})
	return phrases
}

// PhrasePresent reports whether the phrase occurs in text allowing
// whitespace or hyphens between its words.
func PhrasePresent(textLower, phrase string) bool {
	parts := strings.Split(phrase, " ")
	quoted := make([]string, len(parts))
	for i, p := range parts {
		quoted[i] = regexp.QuoteMeta(p)
	}
	pat := `\b` + strings.Join(quoted, `[\s\-]+`) + `\b`
	matched, _ := regexp.MatchString(pat, textLower)
	return matched
}

// Overlap counts how many tokens occur in text (case-insensitive).
func Overlap(text string, tokens []string) int {
	low := strings.ToLower(text)
	n := 0
	for _, t := range tokens {
		if strings.Contains(low, t) {
			n++
		}
	}
	return n
}

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify turns a display name into a service-type slug:
// "Car AC Repair" -> "car_ac_repair".
func Slugify(name string) string {
	slug := slugRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "_")
	return strings.Trim(slug, "_")
}
