// Package moderation evaluates inbound group messages against content
// policy and enforces it with deduplicated punitive actions.
package moderation

import (
	_ "embed"
	"strings"
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
	"github.com/samber/lo"

	"gatekeeper/errors"
)

//go:embed blocked/domains.txt
var defaultDomainsFile string

// DefaultBlockedDomains returns the embedded blacklist, one domain per
// line, comments and blanks stripped.
func DefaultBlockedDomains() []string {
	var domains []string
	for _, line := range strings.Split(defaultDomainsFile, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		domains = append(domains, line)
	}
	return domains
}

// Matcher detects blocked domains inside message bodies. Bodies and
// patterns go through the same normalization, so obfuscated links
// (spacing, punctuation, leet substitutions) still hit.
type Matcher struct {
	machine  *goahocorasick.Machine
	original map[string]string
}

func NewMatcher(domains []string) (*Matcher, error) {
	original := make(map[string]string, len(domains))
	var patterns [][]rune
	for _, d := range domains {
		norm := normalizeRunes([]rune(d))
		if len(norm) == 0 {
			continue
		}
		if _, seen := original[string(norm)]; seen {
			continue
		}
		original[string(norm)] = d
		patterns = append(patterns, norm)
	}
	if len(patterns) == 0 {
		return nil, errors.ErrEmptyDomains
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, err
	}
	return &Matcher{machine: m, original: original}, nil
}

// Match returns the blocked domains present in body, deduplicated, in
// their configured spelling. An empty result means the body is clean.
func (m *Matcher) Match(body string) []string {
	norm := normalizeRunes([]rune(body))
	if len(norm) == 0 {
		return nil
	}
	spans := m.machine.MultiPatternSearch(norm, false)
	if len(spans) == 0 {
		return nil
	}
	matched := make([]string, 0, len(spans))
	for _, span := range spans {
		if d, ok := m.original[string(span.Word)]; ok {
			matched = append(matched, d)
		}
	}
	return lo.Uniq(matched)
}

// normalizeRunes lowercases, folds leet substitutions, and drops
// punctuation, spacing, and symbols.
func normalizeRunes(input []rune) []rune {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		folded := foldRune(r)
		if skippable(folded) {
			continue
		}
		out = append(out, unicode.ToLower(folded))
	}
	return out
}

// foldRune maps common leet substitutions back to their alphabet
// counterparts.
func foldRune(r rune) rune {
	switch r {
	case '4', '@':
		return 'a'
	case '3', '€':
		return 'e'
	case '1', '!', '|':
		return 'i'
	case '0':
		return 'o'
	case '5', '$':
		return 's'
	default:
		return r
	}
}

func skippable(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r)
}
